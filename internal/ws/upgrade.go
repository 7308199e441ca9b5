package ws

import (
	"net/http"
	"time"

	"socialpulse/config"
	"socialpulse/internal/auth"
	"socialpulse/internal/domain"
	"socialpulse/pkg/wire"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const maxInboundFrame = 4096

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// UpgradeNotificationsWS serves the per-user notification socket. Query: token.
// The socket only joins the registry after the client sends register_global for the
// user its token names; everything else the client sends is ignored.
func UpgradeNotificationsWS(jwtCfg *config.JWTConfig, hubCfg config.HubConfig, registry Registry, log *zap.Logger) gin.HandlerFunc {
	log = log.Named("ws")
	hubCfg = withDefaults(hubCfg)
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "token required"})
			return
		}
		claims, err := auth.ParseAccessToken(jwtCfg, token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Debug("upgrade failed", zap.Error(err))
			return
		}
		sock := newSocket(conn, hubCfg.SendBuffer, hubCfg.WriteWait, hubCfg.PongWait, log)
		go sock.writePump()

		userID := claims.UserID
		registered := false
		defer func() {
			if registered && registry.Unregister(userID, sock) {
				log.Info("connection unregistered", zap.Uint("user_id", userID), zap.String("conn_id", sock.ID()))
			}
			_ = sock.Close(ReasonGoingAway)
		}()

		conn.SetReadLimit(maxInboundFrame)
		_ = conn.SetReadDeadline(time.Now().Add(hubCfg.PongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(hubCfg.PongWait))
		})
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Debug("read failed", zap.Uint("user_id", userID), zap.Error(err))
				}
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(hubCfg.PongWait))
			evt, err := wire.Decode(raw)
			if err != nil {
				log.Warn("dropping inbound frame", zap.Uint("user_id", userID), zap.Error(err))
				continue
			}
			reg, ok := evt.(wire.RegisterGlobal)
			if !ok {
				log.Debug("ignoring inbound frame", zap.String("type", evt.EventType()))
				continue
			}
			if reg.UserID != userID {
				log.Warn("register_global for another user",
					zap.Uint("token_user_id", userID), zap.Uint("frame_user_id", reg.UserID))
				continue
			}
			registry.Register(userID, sock)
			registered = true
			log.Info("connection registered", zap.Uint("user_id", userID), zap.String("conn_id", sock.ID()))
			sendFrame(sock, wire.RegisteredGlobal{UserID: userID}, log)
			sendFrame(sock, wire.Connected{Status: domain.StatusReady}, log)
		}
	}
}

func withDefaults(cfg config.HubConfig) config.HubConfig {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 256
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = 10 * time.Second
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = 60 * time.Second
	}
	return cfg
}

func sendFrame(c Conn, e wire.Event, log *zap.Logger) {
	data, err := wire.Encode(e)
	if err != nil {
		log.Error("encode frame", zap.String("type", e.EventType()), zap.Error(err))
		return
	}
	if err := c.Send(data); err != nil {
		log.Debug("send frame", zap.String("type", e.EventType()), zap.Error(err))
	}
}
