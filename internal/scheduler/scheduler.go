// Package scheduler drives periodic reconciliation on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/tipwatch/internal/models"
	"github.com/yourusername/tipwatch/internal/reconcile"
)

// JobReconcileRecent is the name of the job reconciling yesterday and today.
const JobReconcileRecent = "reconcile-recent"

// DateReconciler reconciles one racing day.
type DateReconciler interface {
	ReconcileDate(ctx context.Context, date time.Time) (*reconcile.Report, error)
}

// Config holds scheduler settings.
type Config struct {
	Location   *time.Location
	JobTimeout time.Duration
	// OnReconciled runs after each reconciled day, e.g. to drop cached analytics.
	OnReconciled func(date time.Time, report *reconcile.Report)
}

// Scheduler manages scheduled reconciliation jobs
type Scheduler struct {
	cron            *cron.Cron
	reconciler      DateReconciler
	cfg             Config
	logger          *logrus.Entry
	mu              sync.RWMutex
	isRunning       bool
	jobIDs          map[string]cron.EntryID
	gracefulTimeout time.Duration
	now             func() time.Time
}

// NewScheduler creates a new scheduler
func NewScheduler(reconciler DateReconciler, cfg Config, log *logrus.Logger) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 10 * time.Minute
	}
	entry := log.WithField("component", "scheduler")
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(cfg.Location),
			cron.WithChain(cron.Recover(cron.PrintfLogger(entry)), cron.SkipIfStillRunning(cron.PrintfLogger(entry))),
		),
		reconciler:      reconciler,
		cfg:             cfg,
		logger:          entry,
		jobIDs:          make(map[string]cron.EntryID),
		gracefulTimeout: 30 * time.Second,
		now:             time.Now,
	}
}

// ScheduleReconcileRecent schedules reconciliation of yesterday and today.
func (s *Scheduler) ScheduleReconcileRecent(cronExpression string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cannot schedule job while scheduler is running")
	}
	if _, ok := s.jobIDs[JobReconcileRecent]; ok {
		return fmt.Errorf("job %s already scheduled", JobReconcileRecent)
	}

	entryID, err := s.cron.AddFunc(cronExpression, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*s.cfg.JobTimeout)
		defer cancel()
		if err := s.RunRecent(ctx); err != nil {
			s.logger.WithError(err).Error("Scheduled reconciliation failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add job: %w", err)
	}

	s.jobIDs[JobReconcileRecent] = entryID
	s.logger.WithFields(logrus.Fields{"job": JobReconcileRecent, "cron": cronExpression}).Info("Scheduled job")
	return nil
}

// RecentDates returns yesterday and today in the configured timezone.
func (s *Scheduler) RecentDates() []time.Time {
	today := models.TruncateDate(s.now().In(s.cfg.Location))
	return []time.Time{today.AddDate(0, 0, -1), today}
}

// RunRecent reconciles yesterday then today. A failing day does not stop the
// other; the failures are joined into the returned error.
func (s *Scheduler) RunRecent(ctx context.Context) error {
	var errs []error
	for _, day := range s.RecentDates() {
		if err := s.runDay(ctx, day); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Scheduler) runDay(ctx context.Context, day time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.JobTimeout)
	defer cancel()

	log := s.logger.WithFields(logrus.Fields{"job": JobReconcileRecent, "date": models.DateKey(day)})
	log.Info("Starting reconciliation")

	report, err := s.reconciler.ReconcileDate(ctx, day)
	if err != nil {
		return fmt.Errorf("failed to reconcile %s: %w", models.DateKey(day), err)
	}
	if s.cfg.OnReconciled != nil {
		s.cfg.OnReconciled(day, report)
	}
	log.WithField("partial", report.Partial()).Infof("Reconciliation completed: %s", report.String())
	return nil
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}
	if len(s.jobIDs) == 0 {
		return fmt.Errorf("no jobs scheduled")
	}

	s.cron.Start()
	s.isRunning = true
	s.logger.WithField("jobs", len(s.jobIDs)).Info("Scheduler started")
	return nil
}

// Stop waits for running jobs, up to the graceful timeout, and stops the scheduler.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.gracefulTimeout)
	defer cancel()

	s.isRunning = false
	select {
	case <-s.cron.Stop().Done():
		s.logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timed out waiting for running jobs: %w", ctx.Err())
	}
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetNextRun returns the time of the next scheduled job run
func (s *Scheduler) GetNextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning || len(s.jobIDs) == 0 {
		return time.Time{}
	}

	nextRun := time.Time{}
	for _, jobID := range s.jobIDs {
		entry := s.cron.Entry(jobID)
		if entry.Valid() && (nextRun.IsZero() || entry.Next.Before(nextRun)) {
			nextRun = entry.Next
		}
	}
	return nextRun
}
