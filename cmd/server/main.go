package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"socialpulse/config"
	"socialpulse/internal/database"
	"socialpulse/internal/middleware"
	"socialpulse/internal/router"
	"socialpulse/internal/service"
	"socialpulse/internal/ws"
	"socialpulse/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logger.New(logger.Config{
		Environment: cfg.Server.Env,
		Level:       cfg.Server.LogLevel,
		Service:     "socialpulse-hub",
	})
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		log.Fatal("database", zap.Error(err))
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var push service.Pusher
	fcmSvc, err := service.NewFCMService(ctx, cfg.Firebase.ServiceAccountPath, log)
	switch {
	case err != nil:
		log.Warn("push notifications disabled: failed to init firebase", zap.Error(err))
	case fcmSvc == nil:
		log.Info("push notifications disabled: set FIREBASE_SERVICE_ACCOUNT_PATH to enable")
	default:
		push = fcmSvc
		log.Info("push notifications enabled")
	}

	registry := ws.NewMemoryRegistry(log)
	services := router.NewServices(cfg, db, registry, push, log)

	expiry, err := service.NewExpiryJob(cfg.Hub.PurgeSchedule, services.Notifications, log)
	if err != nil {
		log.Fatal("expiry job", zap.Error(err))
	}
	expiry.Start()

	limiter := middleware.NewInMemoryRateLimiter(cfg.Server.RateLimit, cfg.Server.RateWindow)
	stopPruner := make(chan struct{})
	go limiter.RunPruner(time.Minute, stopPruner)

	engine := router.Setup(cfg, registry, router.Handlers{
		Notifications: services.Notifications,
		Activity:      services.Activity,
	}, limiter, log)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Hijacked sockets are not tracked by Shutdown.
	registry.CloseAll(ws.ReasonGoingAway)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", zap.Error(err))
	}
	expiry.Stop(shutdownCtx)
	close(stopPruner)
	log.Info("server stopped")
}
