package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/mora-interactive/prizevault-backend/pkg/logger"
)

type overrideExpirer interface {
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
}

// OverrideExpiryJobParams configure the programmed prize expiry sweep.
type OverrideExpiryJobParams struct {
	Logger    *logger.Logger
	Overrides overrideExpirer
}

// NewOverrideExpiryJob builds the cron job that expires stale programmed prizes.
func NewOverrideExpiryJob(params OverrideExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Overrides == nil {
		return nil, fmt.Errorf("overrides repository required")
	}
	return &overrideExpiryJob{
		logg:      params.Logger,
		overrides: params.Overrides,
		now:       time.Now,
	}, nil
}

type overrideExpiryJob struct {
	logg      *logger.Logger
	overrides overrideExpirer
	now       func() time.Time
}

func (j *overrideExpiryJob) Name() string { return "override-expiry" }

func (j *overrideExpiryJob) Run(ctx context.Context) error {
	expired, err := j.overrides.ExpireDue(ctx, j.now().UTC())
	if err != nil {
		return fmt.Errorf("expire programmed prizes: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"expired": expired})
	j.logg.Info(logCtx, "programmed prize expiry sweep complete")
	return nil
}
