package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/lavacar-app/lavacar/internal/api"
	"github.com/lavacar-app/lavacar/internal/session"
)

// ErrSessionEnded stops the refresh scheduler when there is nothing to refresh
var ErrSessionEnded = errors.New("session ended")

// Refresher renews the session token
type Refresher interface {
	Refresh(ctx context.Context) (api.Result[TokenResponse], error)
}

// RefreshScheduler renews the token on a cron schedule
type RefreshScheduler struct {
	refresher Refresher
	schedule  cron.Schedule
	logger    zerolog.Logger
	now       func() time.Time
}

// ParseSchedule accepts standard 5-field cron expressions and descriptors
// such as "@every 30m" or "@hourly"
func ParseSchedule(expr string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	return schedule, nil
}

// NewRefreshScheduler creates a scheduler for the given cron expression
func NewRefreshScheduler(refresher Refresher, expr string, logger zerolog.Logger) (*RefreshScheduler, error) {
	schedule, err := ParseSchedule(expr)
	if err != nil {
		return nil, err
	}
	return &RefreshScheduler{
		refresher: refresher,
		schedule:  schedule,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Next returns the next refresh time after from
func (s *RefreshScheduler) Next(from time.Time) time.Time {
	return s.schedule.Next(from)
}

// Run refreshes the token at every scheduled time until ctx is done or the
// backend stops accepting the session. Transient failures are logged and
// retried at the next scheduled time.
func (s *RefreshScheduler) Run(ctx context.Context) error {
	for {
		next := s.Next(s.now())
		s.logger.Debug().Time("next_refresh_at", next).Msg("Waiting for next token refresh")

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if err := s.RefreshOnce(ctx); err != nil {
			return err
		}
	}
}

// RefreshOnce performs one refresh. It returns ErrSessionEnded when the
// session is gone and nil on transient failures.
func (s *RefreshScheduler) RefreshOnce(ctx context.Context) error {
	res, err := s.refresher.Refresh(ctx)
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			return ErrSessionEnded
		}
		return err
	}

	switch {
	case res.Success:
		s.logger.Info().Msg("Token refreshed")
		return nil
	case res.Status == http.StatusUnauthorized:
		s.logger.Warn().Msg("Backend rejected the session during refresh")
		return ErrSessionEnded
	default:
		s.logger.Warn().
			Int("status", res.Status).
			Str("message", res.Message).
			Msg("Token refresh failed, will retry at next scheduled time")
		return nil
	}
}
