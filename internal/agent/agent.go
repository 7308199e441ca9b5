// Package agent runs a signed-in user's notification client: the socket session,
// the backup poll and the invitation sweep, all feeding one inbox.
package agent

import (
	"context"
	"errors"
	"net/url"
	"time"

	"socialpulse/config"
	"socialpulse/internal/inbox"
	"socialpulse/internal/session"
	"socialpulse/pkg/wire"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrUnknownNotification = errors.New("agent: unknown notification")

// API is the REST surface the agent uses; notifapi.Client implements it.
type API interface {
	List(ctx context.Context, limit int) ([]wire.StoredNotification, error)
	MarkRead(ctx context.Context, id uint) error
	MarkAllRead(ctx context.Context) error
	CleanupExpired(ctx context.Context) (int64, error)
}

type Agent struct {
	api            API
	inbox          *inbox.State
	session        *session.Session
	pollInterval   time.Duration
	sweepInterval  time.Duration
	requestTimeout time.Duration
	now            func() time.Time
	log            *zap.Logger
}

func New(cfg *config.ClientConfig, api API, dialer session.Dialer, log *zap.Logger) (*Agent, error) {
	socketURL, err := SocketURL(cfg.SocketURL, cfg.Token)
	if err != nil {
		return nil, err
	}
	a := &Agent{
		api:            api,
		pollInterval:   orDefault(cfg.PollInterval, 10*time.Minute),
		sweepInterval:  orDefault(cfg.SweepInterval, 10*time.Second),
		requestTimeout: orDefault(cfg.RequestTimeout, 5*time.Second),
		now:            time.Now,
		log:            log.Named("agent"),
	}
	a.inbox = inbox.New(inbox.Config{
		UserID:        cfg.UserID,
		DedupWindow:   cfg.DedupWindow,
		InvitationTTL: cfg.InvitationTTL,
		Now:           func() time.Time { return a.now() },
	})
	a.session = session.New(session.Config{
		URL:               socketURL,
		UserID:            cfg.UserID,
		AckTimeout:        cfg.AckTimeout,
		ReconnectDelay:    cfg.ReconnectDelay,
		ReconnectMaxDelay: cfg.ReconnectMaxDelay,
	}, dialer, a.onPush, log)
	return a, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// SocketURL adds the access token to the socket endpoint.
func SocketURL(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (a *Agent) Inbox() *inbox.State { return a.inbox }

func (a *Agent) Session() *session.Session { return a.session }

func (a *Agent) onPush(e wire.Event) {
	rec, ok := a.inbox.ApplyPush(e, a.now())
	if !ok {
		return
	}
	a.log.Debug("notification pushed", zap.String("id", rec.ID), zap.String("type", rec.Type))
}

// Run blocks until ctx is cancelled. Cancelling closes the socket and stops every
// timer before Run returns.
func (a *Agent) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.session.Run(ctx)
	})
	g.Go(func() error {
		a.every(ctx, a.pollInterval, true, func() { _ = a.Refresh(ctx) })
		return nil
	})
	g.Go(func() error {
		a.every(ctx, a.sweepInterval, false, func() { a.sweep(ctx) })
		return nil
	})
	return g.Wait()
}

func (a *Agent) every(ctx context.Context, interval time.Duration, immediately bool, fn func()) {
	if immediately {
		fn()
	}
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			fn()
		}
	}
}

// Refresh polls the server and merges the result. A failed poll leaves the inbox
// as it was.
func (a *Agent) Refresh(ctx context.Context) error {
	reqCtx, cancel := context.WithTimeout(ctx, a.requestTimeout)
	defer cancel()
	page, err := a.api.List(reqCtx, 0)
	if err != nil {
		if ctx.Err() == nil {
			a.log.Warn("poll failed", zap.Error(err))
		}
		return err
	}
	for _, id := range a.inbox.ApplyPoll(page) {
		if err := a.markServerRead(ctx, id); err != nil {
			a.log.Debug("sync read state", zap.Uint("id", id), zap.Error(err))
		}
	}
	return nil
}

func (a *Agent) sweep(ctx context.Context) {
	removed := a.inbox.Sweep(a.now())
	if removed == 0 {
		return
	}
	reqCtx, cancel := context.WithTimeout(ctx, a.requestTimeout)
	defer cancel()
	if _, err := a.api.CleanupExpired(reqCtx); err != nil && ctx.Err() == nil {
		a.log.Debug("cleanup expired failed", zap.Error(err))
	}
}

// MarkRead marks a record read locally, then tells the server. The local change
// stands even if the server call fails.
func (a *Agent) MarkRead(ctx context.Context, id string) error {
	rec, ok := a.inbox.Lookup(id)
	if !ok {
		return ErrUnknownNotification
	}
	a.inbox.ApplyOptimistic(inbox.MarkRead{ID: id})
	if rec.Pushed() {
		// Synced once a poll pairs it with its server row.
		return nil
	}
	return a.markServerRead(ctx, rec.ServerID)
}

func (a *Agent) MarkAllRead(ctx context.Context) error {
	a.inbox.ApplyOptimistic(inbox.MarkAllRead{})
	reqCtx, cancel := context.WithTimeout(ctx, a.requestTimeout)
	defer cancel()
	if err := a.api.MarkAllRead(reqCtx); err != nil {
		a.log.Warn("mark all read failed", zap.Error(err))
		return err
	}
	return nil
}

func (a *Agent) markServerRead(ctx context.Context, serverID uint) error {
	reqCtx, cancel := context.WithTimeout(ctx, a.requestTimeout)
	defer cancel()
	if err := a.api.MarkRead(reqCtx, serverID); err != nil {
		a.log.Warn("mark read failed", zap.Uint("id", serverID), zap.Error(err))
		return err
	}
	return nil
}
