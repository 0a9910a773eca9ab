package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/KathenZK/research-agent/internal/config"
	"github.com/KathenZK/research-agent/internal/research"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Runner performs one research run; *research.Service implements it
type Runner interface {
	Run(ctx context.Context) (*research.RunResult, error)
}

// Service handles scheduling of research runs
type Service struct {
	config *config.Config
	runner Runner
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

// NewService creates a new scheduler service
func NewService(cfg *config.Config, runner Runner) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		config: cfg,
		runner: runner,
		cron:   cron.New(cron.WithSeconds()),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start registers the research run on RESEARCH_SCHEDULE and starts the cron
func (s *Service) Start() error {
	cronExpression := s.config.ResearchSchedule
	if cronExpression == "" {
		// Daily at 9 AM
		cronExpression = "0 0 9 * * *"
	}

	_, err := s.cron.AddFunc(cronExpression, s.runScheduled)
	if err != nil {
		return fmt.Errorf("invalid research schedule %q: %w", cronExpression, err)
	}

	s.cron.Start()
	logrus.Infof("Scheduler started with schedule %q", cronExpression)
	return nil
}

func (s *Service) runScheduled() {
	logrus.Info("Starting scheduled research run")

	result, err := s.runner.Run(s.ctx)
	if errors.Is(err, research.ErrRunInProgress) {
		logrus.Warn("Skipping scheduled run: previous run still active")
		return
	}
	if err != nil {
		logrus.Errorf("Scheduled research run failed: %v", err)
		return
	}

	logrus.Infof("Scheduled research run found %d opportunities", len(result.Opportunities))
}

// Stop cancels an in-flight run and waits for the cron to stop
func (s *Service) Stop() {
	if s.cron != nil {
		s.cancel()
		<-s.cron.Stop().Done()
		logrus.Info("Scheduler stopped")
	}
}
