package reconcile

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"auction-marketplace/utils"
)

// DefaultSchedule runs the orphan sweep every ten minutes
const DefaultSchedule = "@every 10m"

// OrphanCleaner removes bids whose auction item is gone
type OrphanCleaner interface {
	DeleteOrphanBids(ctx context.Context) (int, error)
}

// Sweeper periodically purges orphaned bids left by an interrupted delete
type Sweeper struct {
	cron     *cron.Cron
	store    OrphanCleaner
	schedule string

	mu      sync.Mutex
	running bool
}

func NewSweeper(store OrphanCleaner, schedule string) *Sweeper {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &Sweeper{
		cron:     cron.New(),
		store:    store,
		schedule: schedule,
	}
}

// Start registers the sweep job and starts the scheduler
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	if _, err := s.cron.AddFunc(s.schedule, func() {
		if _, err := s.Sweep(ctx); err != nil {
			utils.Error("Orphan bid sweep failed", map[string]any{"error": err.Error()})
		}
	}); err != nil {
		return fmt.Errorf("reconcile: invalid schedule %q: %w", s.schedule, err)
	}

	utils.Info("Starting orphan bid sweeper", map[string]any{"schedule": s.schedule})
	s.cron.Start()
	s.running = true
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	utils.Info("Stopping orphan bid sweeper", nil)
	<-s.cron.Stop().Done()
	s.running = false
}

// Sweep runs one pass and returns how many bids were removed
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	removed, err := s.store.DeleteOrphanBids(ctx)
	if err != nil {
		return 0, fmt.Errorf("reconcile: sweeping orphan bids: %w", err)
	}
	if removed > 0 {
		utils.Warn("Removed orphaned bids", map[string]any{"count": removed})
	} else {
		utils.Debug("No orphaned bids found", nil)
	}
	return removed, nil
}
