package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Purger deletes expired notifications across all users.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// ExpiryJob runs the purge on a cron schedule.
type ExpiryJob struct {
	cron    *cron.Cron
	purger  Purger
	timeout time.Duration
	log     *zap.Logger
}

func NewExpiryJob(schedule string, purger Purger, log *zap.Logger) (*ExpiryJob, error) {
	j := &ExpiryJob{
		cron:    cron.New(),
		purger:  purger,
		timeout: 30 * time.Second,
		log:     log.Named("expiry"),
	}
	if _, err := j.cron.AddFunc(schedule, j.RunOnce); err != nil {
		return nil, fmt.Errorf("schedule %q: %w", schedule, err)
	}
	return j, nil
}

func (j *ExpiryJob) Start() { j.cron.Start() }

// Stop waits for a running purge to finish or ctx to end.
func (j *ExpiryJob) Stop(ctx context.Context) {
	select {
	case <-j.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (j *ExpiryJob) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	n, err := j.purger.PurgeExpired(ctx)
	if err != nil {
		j.log.Error("purge expired notifications", zap.Error(err))
		return
	}
	if n > 0 {
		j.log.Info("purged expired notifications", zap.Int64("removed", n))
	}
}
