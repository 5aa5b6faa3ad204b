package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/uptwn/booking-backend/internal/config"
)

const cronJobTimeout = 5 * time.Minute

// CronService manages scheduled maintenance jobs
type CronService struct {
	cron    *cron.Cron
	sweeper *SweeperService
	config  config.SweeperConfig
	logger  *logrus.Logger
	jobs    map[cron.EntryID]string
}

// NewCronService creates a new CronService
func NewCronService(sweeper *SweeperService, cfg config.SweeperConfig, logger *logrus.Logger) *CronService {
	return &CronService{
		cron:    cron.New(cron.WithSeconds()),
		sweeper: sweeper,
		config:  cfg,
		logger:  logger,
		jobs:    make(map[cron.EntryID]string),
	}
}

// Start schedules all jobs and starts the scheduler
func (s *CronService) Start() error {
	// Cron format: second minute hour day month weekday
	if err := s.schedule("availability-cleanup", s.config.AvailabilityCleanupCron, s.availabilityCleanupJob); err != nil {
		return err
	}
	if err := s.schedule("listing-expiry", s.config.ListingExpiryCron, s.listingExpiryJob); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.WithField("job_count", len(s.jobs)).Info("Cron service started")
	return nil
}

func (s *CronService) schedule(name, spec string, job func()) error {
	id, err := s.cron.AddFunc(spec, job)
	if err != nil {
		return fmt.Errorf("failed to schedule %s job: %w", name, err)
	}
	s.jobs[id] = name
	s.logger.WithFields(logrus.Fields{"job": name, "spec": spec}).Info("Scheduled cron job")
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *CronService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Cron service stopped")
}

// availabilityCleanupJob trims seat_availability rows
func (s *CronService) availabilityCleanupJob() {
	ctx, cancel := context.WithTimeout(context.Background(), cronJobTimeout)
	defer cancel()

	start := time.Now()
	result, err := s.sweeper.CleanupSeatAvailability(ctx)
	if err != nil {
		s.logger.WithError(err).Error("[CRON] Seat availability cleanup failed")
		return
	}
	s.logger.WithFields(logrus.Fields{
		"total_deleted": result.TotalDeleted,
		"duration_ms":   time.Since(start).Milliseconds(),
	}).Info("[CRON] Seat availability cleanup finished")
}

// listingExpiryJob expires finished listings
func (s *CronService) listingExpiryJob() {
	ctx, cancel := context.WithTimeout(context.Background(), cronJobTimeout)
	defer cancel()

	start := time.Now()
	stats, err := s.sweeper.ExpireListings(ctx)
	if err != nil {
		s.logger.WithError(err).Error("[CRON] Listing expiry failed")
		return
	}
	s.logger.WithFields(logrus.Fields{
		"expired":     stats.ExpiredEventListings + stats.ExpiredEndedListings,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("[CRON] Listing expiry finished")
}

// GetJobStatus returns the status of scheduled jobs
func (s *CronService) GetJobStatus() map[string]interface{} {
	entries := s.cron.Entries()

	jobs := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		jobs = append(jobs, map[string]interface{}{
			"id":       entry.ID,
			"name":     s.jobs[entry.ID],
			"next_run": entry.Next,
			"prev_run": entry.Prev,
		})
	}

	return map[string]interface{}{
		"running":   len(entries) > 0,
		"job_count": len(entries),
		"jobs":      jobs,
	}
}
