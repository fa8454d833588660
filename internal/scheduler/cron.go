package scheduler

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Rescanner starts a background scan and reconcile cycle
type Rescanner interface {
	Identifier() string
	DownloadUncachedMedia()
}

// Scheduler manages scheduled tasks
type Scheduler struct {
	cron       *cron.Cron
	schedule   string
	rescanners []Rescanner
	logger     *logrus.Logger
}

// NewScheduler creates a new scheduler. An empty schedule disables periodic rescans.
func NewScheduler(schedule string, rescanners []Rescanner, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron:       cron.New(),
		schedule:   schedule,
		rescanners: rescanners,
		logger:     logger,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	if s.schedule == "" {
		s.logger.Info("Periodic rescans disabled")
		return nil
	}

	s.logger.WithField("schedule", s.schedule).Info("Starting scheduler")

	if _, err := s.cron.AddFunc(s.schedule, s.RunRescan); err != nil {
		return fmt.Errorf("failed to add rescan job: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Scheduler started")
	return nil
}

// Stop stops the scheduler and waits for a running job to return
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	<-s.cron.Stop().Done()
}

// RunRescan triggers a scan on every downloader
func (s *Scheduler) RunRescan() {
	s.logger.WithField("count", len(s.rescanners)).Info("Running scheduled rescan")
	for _, r := range s.rescanners {
		s.logger.WithField("session", r.Identifier()).Debug("Triggering media scan")
		r.DownloadUncachedMedia()
	}
}
