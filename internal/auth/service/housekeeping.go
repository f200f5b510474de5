package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/aussiebroadwan/twostep/internal/auth/store"
)

// DefaultHousekeepingSchedule runs the sweep once a minute.
const DefaultHousekeepingSchedule = "@every 1m"

// HousekeepingService periodically removes expired challenges and refresh
// tokens so neither table grows without bound.
type HousekeepingService struct {
	Store      store.Store
	Challenges *ChallengeService
	Logger     *slog.Logger
	Schedule   string

	Now func() time.Time

	cron    *cron.Cron
	initial sync.WaitGroup
}

// NewHousekeepingService validates schedule (standard cron syntax or
// descriptors such as "@every 1m"). Empty means DefaultHousekeepingSchedule.
func NewHousekeepingService(
	st store.Store,
	challenges *ChallengeService,
	logger *slog.Logger,
	schedule string,
) (*HousekeepingService, error) {
	if schedule == "" {
		schedule = DefaultHousekeepingSchedule
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("housekeeping schedule %q: %w", schedule, err)
	}

	return &HousekeepingService{
		Store:      st,
		Challenges: challenges,
		Logger:     logger,
		Schedule:   schedule,
	}, nil
}

// Start runs one cleanup immediately and then on every tick of the
// schedule. It does not block.
func (s *HousekeepingService) Start() error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.Schedule, func() { s.Cleanup(context.Background()) }); err != nil {
		return fmt.Errorf("schedule housekeeping: %w", err)
	}

	s.initial.Add(1)
	go func() {
		defer s.initial.Done()
		s.Cleanup(context.Background())
	}()
	s.cron.Start()
	s.Logger.Info("housekeeping service started", "schedule", s.Schedule)
	return nil
}

// Stop waits for a running cleanup to finish.
func (s *HousekeepingService) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.initial.Wait()
	s.Logger.Info("housekeeping service stopped")
}

// Cleanup performs one pass. A failing task is logged and does not stop
// the others.
func (s *HousekeepingService) Cleanup(ctx context.Context) {
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}

	if s.Challenges != nil {
		if n, err := s.Challenges.Sweep(ctx); err != nil {
			s.Logger.Error("failed to sweep expired mfa challenges", "error", err)
		} else if n > 0 {
			s.Logger.Debug("swept expired mfa challenges", "deleted", n)
		}
	}

	if n, err := s.Store.RefreshTokens().DeleteExpiredRefreshTokens(ctx, now); err != nil {
		s.Logger.Error("failed to delete expired refresh tokens", "error", err)
	} else if n > 0 {
		s.Logger.Debug("deleted expired refresh tokens", "deleted", n)
	}
}
