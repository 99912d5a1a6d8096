package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/agrosphere/awhere-gridded-weather/internal/survey"
)

// Scheduler periodically surveys the configured grid.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   *survey.Service
	interval  time.Duration
	timeout   time.Duration
}

// New creates a new Scheduler.
func New(service *survey.Service, interval, timeout time.Duration) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Scheduler{
		scheduler: s,
		service:   service,
		interval:  interval,
		timeout:   timeout,
	}
}

// Start schedules the periodic survey job and starts the underlying
// scheduler.
func (s *Scheduler) Start() error {
	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 60
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		report, err := s.service.RunSurvey(ctx)
		if err != nil {
			log.Printf("ERROR: scheduler: survey failed: %v", err)
			return
		}
		log.Printf("INFO: scheduler: survey %s stored %d of %d cells",
			report.RunID, report.Succeeded, report.Cells)
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
