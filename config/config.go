package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server   ServerConfig   `envconfig:"SERVER"`
	Database DatabaseConfig `envconfig:"DB"`
	JWT      JWTConfig      `envconfig:"JWT"`
	Firebase FirebaseConfig `envconfig:"FIREBASE"`
	Hub      HubConfig      `envconfig:"HUB"`
}

type ServerConfig struct {
	Port         string        `envconfig:"PORT" default:"8099"`
	Env          string        `envconfig:"ENV" default:"development"`
	LogLevel     string        `envconfig:"LOG_LEVEL" default:"info"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"10s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"10s"`
	RateLimit    int           `envconfig:"RATE_LIMIT" default:"100"`
	RateWindow   time.Duration `envconfig:"RATE_WINDOW" default:"60s"`
}

type DatabaseConfig struct {
	Driver          string        `envconfig:"DRIVER" default:"mysql"` // mysql | postgres
	DSN             string        `envconfig:"DSN" default:"root:@tcp(localhost:3306)/socialpulse?charset=utf8mb4&parseTime=True&loc=Local"`
	MaxIdleConns    int           `envconfig:"MAX_IDLE_CONNS" default:"10"`
	MaxOpenConns    int           `envconfig:"MAX_OPEN_CONNS" default:"100"`
	ConnMaxLifetime time.Duration `envconfig:"CONN_MAX_LIFETIME" default:"1h"`
}

type JWTConfig struct {
	AccessSecret string        `envconfig:"ACCESS_SECRET" default:"change-me-in-production"`
	AccessExpiry time.Duration `envconfig:"ACCESS_EXPIRY" default:"15m"`
	Issuer       string        `envconfig:"ISSUER" default:"socialpulse"`
}

type FirebaseConfig struct {
	// Empty disables FCM push.
	ServiceAccountPath string `envconfig:"SERVICE_ACCOUNT_PATH"`
}

// HubConfig tunes the socket side of the server.
type HubConfig struct {
	SendBuffer        int           `envconfig:"SEND_BUFFER" default:"256"`
	WriteWait         time.Duration `envconfig:"WRITE_WAIT" default:"10s"`
	PongWait          time.Duration `envconfig:"PONG_WAIT" default:"60s"`
	InvitationTTL     time.Duration `envconfig:"INVITATION_TTL" default:"1m"`
	PurgeSchedule     string        `envconfig:"PURGE_SCHEDULE" default:"@every 1m"`
	NotificationsPage int           `envconfig:"NOTIFICATIONS_PAGE" default:"50"`
}

// ClientConfig configures the notification client runtime (cmd/notifytail).
type ClientConfig struct {
	BaseURL        string        `envconfig:"BASE_URL" default:"http://localhost:8099" validate:"required,url"`
	SocketURL      string        `envconfig:"SOCKET_URL" default:"ws://localhost:8099/ws" validate:"required,url"`
	Token          string        `envconfig:"TOKEN" validate:"required"`
	UserID         uint          `envconfig:"USER_ID" validate:"required"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"info"`
	PollInterval   time.Duration `envconfig:"POLL_INTERVAL" default:"10m" validate:"gt=0"`
	SweepInterval  time.Duration `envconfig:"SWEEP_INTERVAL" default:"10s" validate:"gt=0"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"5s" validate:"gt=0"`
	AckTimeout     time.Duration `envconfig:"ACK_TIMEOUT" default:"5s" validate:"gt=0"`
	ReconnectDelay time.Duration `envconfig:"RECONNECT_DELAY" default:"3s" validate:"gt=0"`
	// Zero keeps the fixed reconnect delay; a positive value switches to exponential
	// backoff capped at this duration.
	ReconnectMaxDelay time.Duration `envconfig:"RECONNECT_MAX_DELAY" default:"0s" validate:"gte=0"`
	DedupWindow       time.Duration `envconfig:"DEDUP_WINDOW" default:"5m" validate:"gt=0"`
	InvitationTTL     time.Duration `envconfig:"INVITATION_TTL" default:"1m" validate:"gt=0"`
}

// Load reads the server configuration from the environment, after loading an
// optional .env file.
func Load() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadClient reads NOTIFY_* variables into a validated ClientConfig.
func LoadClient() (*ClientConfig, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}
	var cfg ClientConfig
	if err := envconfig.Process("NOTIFY", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *ClientConfig) Validate() error {
	return validator.New().Struct(c)
}

func loadDotEnv() error {
	err := godotenv.Load()
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
