package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// TokenPurger removes expired or consumed one-time tokens.
type TokenPurger interface {
	PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

// Runner schedules background cleanup jobs. Specs use the six-field cron
// format with a leading seconds field.
type Runner struct {
	cron    *cron.Cron
	logger  *zap.Logger
	baseCtx context.Context
}

// New creates a runner whose jobs inherit baseCtx.
func New(logger *zap.Logger, baseCtx context.Context) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &Runner{
		cron:    cron.New(cron.WithSeconds()),
		logger:  logger,
		baseCtx: baseCtx,
	}
}

// SchedulePurge registers the expired-token sweep on the given spec.
func (r *Runner) SchedulePurge(spec string, purger TokenPurger) (cron.EntryID, error) {
	return r.cron.AddFunc(spec, func() {
		now := time.Now().UTC()
		purged, err := purger.PurgeExpiredTokens(r.baseCtx, now)
		if err != nil {
			r.logger.Error("Token purge failed", zap.Error(err))
			return
		}
		if purged > 0 {
			r.logger.Info("Purged expired tokens", zap.Int64("count", purged))
		}
	})
}

func (r *Runner) Start() {
	r.logger.Info("Maintenance runner started")
	r.cron.Start()
}

// Stop halts scheduling and waits for running jobs to finish.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.logger.Info("Maintenance runner stopped")
}
