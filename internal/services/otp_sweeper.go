package services

import (
	"context"
	"fmt"
	"time"

	"github.com/AnshRaj112/buildlog-backend/internal/repository"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// OTPSweeper periodically clears expired verification codes. The user record
// stays; only the stale challenge is removed.
type OTPSweeper struct {
	users repository.UserRepository
	cron  *cron.Cron
	now   func() time.Time
}

func NewOTPSweeper(users repository.UserRepository, schedule string) (*OTPSweeper, error) {
	s := &OTPSweeper{
		users: users,
		cron:  cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		now:   func() time.Time { return time.Now().UTC() },
	}
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("otp sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *OTPSweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := s.Sweep(ctx); err != nil {
		log.Error().Err(err).Msg("otp sweep failed")
	}
}

// Sweep clears every challenge that has expired by now and returns how many.
func (s *OTPSweeper) Sweep(ctx context.Context) (int64, error) {
	n, err := s.users.ClearExpiredOTPs(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Info().Int64("cleared", n).Msg("expired OTPs cleared")
	}
	return n, nil
}

func (s *OTPSweeper) Start() {
	s.cron.Start()
}

// Stop waits for a running sweep to finish or ctx to end.
func (s *OTPSweeper) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}
