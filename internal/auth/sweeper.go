package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redmonkez12/lms-auth-api/internal/logging"
)

// SweepResult reports what one sweep removed.
type SweepResult struct {
	PendingSignups int64
	ResetOTPs      int64
}

// Sweeper purges expired pending signups and reset codes. Verification
// already rejects expired codes, so sweeping only keeps the tables small.
type Sweeper struct {
	users    UserStore
	pending  PendingSignupStore
	interval time.Duration
	logger   *logging.Logger
	now      func() time.Time
}

func NewSweeper(users UserStore, pending PendingSignupStore, interval time.Duration, logger *logging.Logger) *Sweeper {
	return &Sweeper{
		users:    users,
		pending:  pending,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// SweepOnce runs a single purge. Both stores are swept even if one fails.
func (s *Sweeper) SweepOnce(ctx context.Context) (SweepResult, error) {
	now := s.now()
	var res SweepResult
	var errs []error

	n, err := s.pending.DeleteExpired(ctx, now)
	if err != nil {
		errs = append(errs, fmt.Errorf("pending signups: %w", err))
	}
	res.PendingSignups = n

	n, err = s.users.ClearExpiredResetOTPs(ctx, now)
	if err != nil {
		errs = append(errs, fmt.Errorf("reset otps: %w", err))
	}
	res.ResetOTPs = n

	return res, errors.Join(errs...)
}

// Run sweeps on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("sweeper started", "interval", s.interval.String())
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return
		case <-ticker.C:
			res, err := s.SweepOnce(ctx)
			if err != nil {
				s.logger.Error("sweep failed", "error", err)
			}
			if res.PendingSignups > 0 || res.ResetOTPs > 0 {
				s.logger.Info("sweep completed",
					"pending_signups", res.PendingSignups,
					"reset_otps", res.ResetOTPs,
				)
			}
		}
	}
}
