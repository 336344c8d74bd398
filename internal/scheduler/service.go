package scheduler

import (
	"fmt"

	"github.com/harvestlab/reddit-harvester/internal/config"
	"github.com/harvestlab/reddit-harvester/internal/harvest"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Starter launches a run in the background
type Starter interface {
	StartRun(job *config.Job) (*harvest.Handle, error)
}

// Service runs the configured job file on a cron schedule
type Service struct {
	config  *config.Config
	starter Starter
	cron    *cron.Cron
}

// NewService creates a new scheduler service. Schedules accept an optional seconds field.
func NewService(cfg *config.Config, starter Starter) *Service {
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Service{
		config:  cfg,
		starter: starter,
		cron:    cron.New(cron.WithParser(parser)),
	}
}

// Start begins the scheduled runs. An empty schedule disables the scheduler.
func (s *Service) Start() error {
	if s.config.JobSchedule == "" {
		logrus.Info("No JOB_SCHEDULE set, scheduled runs disabled")
		return nil
	}
	if s.config.JobFile == "" {
		return fmt.Errorf("JOB_FILE is required when JOB_SCHEDULE is set")
	}

	if _, err := s.cron.AddFunc(s.config.JobSchedule, s.trigger); err != nil {
		return fmt.Errorf("invalid JOB_SCHEDULE %q: %w", s.config.JobSchedule, err)
	}

	s.cron.Start()
	logrus.Infof("Scheduler started: %s runs %s", s.config.JobSchedule, s.config.JobFile)
	return nil
}

// trigger loads the job file fresh and starts it
func (s *Service) trigger() {
	logrus.Infof("Starting scheduled run of %s", s.config.JobFile)

	job, err := config.LoadJob(s.config.JobFile)
	if err != nil {
		logrus.Errorf("Scheduled run skipped: %v", err)
		return
	}

	h, err := s.starter.StartRun(job)
	if err != nil {
		logrus.Errorf("Scheduled run failed to start: %v", err)
		return
	}
	logrus.Infof("Scheduled run %s started", h.RunID)
}

// Stop stops the scheduler
func (s *Service) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
		logrus.Info("Scheduler stopped")
	}
}
