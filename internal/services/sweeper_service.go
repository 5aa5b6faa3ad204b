package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/uptwn/booking-backend/internal/database"
	"github.com/uptwn/booking-backend/internal/models"
	"github.com/uptwn/booking-backend/internal/utils"
)

// SweepStats reports what one sweep changed
type SweepStats struct {
	DeactivatedSlots int64 `json:"deactivated_slots"`
	ReleasedLocks    int64 `json:"released_locks"`
	PurgedHolds      int64 `json:"purged_holds"`
}

// ListingExpiryStats reports what one listing expiry pass changed
type ListingExpiryStats struct {
	ExpiredEventListings int64 `json:"expired_event_listings"`
	ExpiredEndedListings int64 `json:"expired_ended_listings"`
	DeactivatedSlots     int64 `json:"deactivated_slots"`
}

// SweeperService runs periodic storage hygiene. Expiry is already enforced
// lazily on every read and write, so a missed sweep changes no outcome.
type SweeperService struct {
	repo     *database.MaintenanceRepository
	interval time.Duration
	clock    utils.Clock
	logger   *logrus.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewSweeperService creates a new SweeperService
func NewSweeperService(repo *database.MaintenanceRepository, interval time.Duration, clock utils.Clock, logger *logrus.Logger) *SweeperService {
	return &SweeperService{
		repo:     repo,
		interval: interval,
		clock:    clock,
		logger:   logger,
	}
}

// Start sweeps once immediately and then on every interval
func (s *SweeperService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh != nil {
		return
	}
	s.stopCh = make(chan struct{})

	s.wg.Add(1)
	go s.loop(s.stopCh)

	s.logger.WithField("interval", s.interval.String()).Info("Sweeper started")
}

// Stop stops the loop and waits for an in-flight sweep
func (s *SweeperService) Stop() {
	s.mu.Lock()
	if s.stopCh == nil {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.stopCh = nil
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("Sweeper stopped")
}

func (s *SweeperService) loop(stop <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep()
	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-stop:
			return
		}
	}
}

func (s *SweeperService) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()
	s.RunOnce(ctx)
}

// RunOnce performs a single sweep. Each step runs even if an earlier one
// failed; errors are logged and swallowed.
func (s *SweeperService) RunOnce(ctx context.Context) SweepStats {
	now := s.clock.Now()
	var stats SweepStats
	var err error

	if stats.DeactivatedSlots, err = s.repo.DeactivatePastSlots(ctx, utils.DateOnly(now), utils.TimeOfDay(now)); err != nil {
		s.logger.WithError(err).Error("Sweeper: failed to deactivate past slots")
	}
	if stats.ReleasedLocks, err = s.repo.ReleaseExpiredLocks(ctx, now); err != nil {
		s.logger.WithError(err).Error("Sweeper: failed to release expired seat locks")
	}
	if stats.PurgedHolds, err = s.repo.PurgeExpiredHolds(ctx, now); err != nil {
		s.logger.WithError(err).Error("Sweeper: failed to purge expired holds")
	}

	if stats.DeactivatedSlots+stats.ReleasedLocks+stats.PurgedHolds > 0 {
		s.logger.WithFields(logrus.Fields{
			"deactivated_slots": stats.DeactivatedSlots,
			"released_locks":    stats.ReleasedLocks,
			"purged_holds":      stats.PurgedHolds,
		}).Info("Sweep completed")
	}
	return stats
}

// ============================================================================
// MAINTENANCE JOBS
// ============================================================================

// CleanupSeatAvailability deletes availability rows of past or inactive
// slots, then rows that merely say "available"
func (s *SweeperService) CleanupSeatAvailability(ctx context.Context) (*models.SeatAvailabilityCleanupResult, error) {
	today := utils.DateOnly(s.clock.Now())

	stale, err := s.repo.DeleteStaleAvailability(ctx, today)
	if err != nil {
		return nil, internalError("failed to clean up seat availability", err)
	}
	redundant, err := s.repo.DeleteRedundantAvailability(ctx)
	if err != nil {
		return nil, internalError("failed to clean up seat availability", err)
	}

	result := &models.SeatAvailabilityCleanupResult{
		DeletedStale:     stale,
		DeletedRedundant: redundant,
		TotalDeleted:     stale + redundant,
	}
	s.logger.WithFields(logrus.Fields{
		"deleted_stale":     stale,
		"deleted_redundant": redundant,
	}).Info("Seat availability cleanup completed")
	return result, nil
}

// SeatAvailabilityStats reports seat_availability row counts
func (s *SweeperService) SeatAvailabilityStats(ctx context.Context) (*models.SeatAvailabilityStats, error) {
	stats, err := s.repo.GetAvailabilityStats(ctx, utils.DateOnly(s.clock.Now()))
	if err != nil {
		return nil, internalError("failed to get seat availability stats", err)
	}
	return stats, nil
}

// ExpireListings expires events listings with no active slot left and any
// listing whose end_datetime has passed
func (s *SweeperService) ExpireListings(ctx context.Context) (*ListingExpiryStats, error) {
	var stats ListingExpiryStats
	var err error

	if stats.ExpiredEventListings, err = s.repo.ExpireSoldOutEventListings(ctx); err != nil {
		return nil, internalError("failed to expire event listings", err)
	}
	if stats.ExpiredEndedListings, stats.DeactivatedSlots, err = s.repo.ExpireEndedListings(ctx, s.clock.Now()); err != nil {
		return nil, internalError("failed to expire ended listings", err)
	}

	s.logger.WithFields(logrus.Fields{
		"expired_event_listings": stats.ExpiredEventListings,
		"expired_ended_listings": stats.ExpiredEndedListings,
		"deactivated_slots":      stats.DeactivatedSlots,
	}).Info("Listing expiry completed")
	return &stats, nil
}
