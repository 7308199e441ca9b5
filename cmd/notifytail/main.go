// Command notifytail connects to the hub as one user and prints notifications as
// they arrive. Configure it with NOTIFY_* variables (see config.ClientConfig).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"socialpulse/config"
	"socialpulse/internal/agent"
	"socialpulse/internal/inbox"
	"socialpulse/internal/notifapi"
	"socialpulse/internal/session"
	"socialpulse/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Service: "notifytail"})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(2)
	}
	defer func() { _ = log.Sync() }()

	api := notifapi.New(cfg.BaseURL, cfg.Token, cfg.RequestTimeout)
	a, err := agent.New(cfg, api, session.WebsocketDialer{}, log)
	if err != nil {
		log.Fatal("agent", zap.Error(err))
	}

	seen := make(map[string]bool)
	a.Inbox().OnChange(func(snap inbox.Snapshot) {
		for i := len(snap.Records) - 1; i >= 0; i-- {
			r := snap.Records[i]
			if seen[r.ID] {
				continue
			}
			seen[r.ID] = true
			fmt.Printf("%s  %-14s from %-12s %s\n", r.CreatedAt.Format("15:04:05"), r.Type, senderLabel(r), r.Content)
		}
		fmt.Printf("-- unread: %d\n", snap.Unread)
	})
	a.Session().OnStateChange(func(_, to session.State) {
		log.Info("socket", zap.Stringer("state", to))
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := a.Run(ctx); err != nil {
		log.Error("stopped", zap.Error(err))
	}
}

func senderLabel(r inbox.Record) string {
	if r.Sender.Name != "" {
		return r.Sender.Name
	}
	return fmt.Sprintf("user %d", r.Sender.ID)
}
