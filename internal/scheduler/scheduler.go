package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/i474232898/agri-risk-engine/internal/config"
	"github.com/i474232898/agri-risk-engine/internal/risk"
)

// Assessor runs one risk assessment.
type Assessor interface {
	Assess(ctx context.Context, req risk.Request) (risk.Assessment, error)
}

// LevelSink receives the outcome of each watch assessment.
type LevelSink interface {
	SetWatchLevel(target string, crop risk.Crop, level risk.Level)
	WatchFailed()
}

// Scheduler periodically re-assesses the configured watch targets over a
// trailing window ending yesterday.
type Scheduler struct {
	scheduler  *gocron.Scheduler
	assessor   Assessor
	sink       LevelSink
	targets    []config.WatchTarget
	interval   time.Duration
	windowDays int
	clock      clockwork.Clock
	logger     *zap.Logger
	jobTimeout time.Duration
}

// New creates a new Scheduler. sink may be nil.
func New(targets []config.WatchTarget, interval time.Duration, windowDays int, assessor Assessor, sink LevelSink, clock clockwork.Clock, logger *zap.Logger) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if windowDays < 1 {
		windowDays = 7
	}
	return &Scheduler{
		scheduler:  gocron.NewScheduler(time.UTC),
		assessor:   assessor,
		sink:       sink,
		targets:    targets,
		interval:   interval,
		windowDays: windowDays,
		clock:      clock,
		logger:     logger.Named("scheduler"),
		jobTimeout: 2 * time.Minute,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if len(s.targets) == 0 {
		s.logger.Info("no watch locations configured; nothing to schedule")
		return nil
	}

	interval := s.interval
	if interval < time.Minute {
		interval = 6 * time.Hour
	}

	_, err := s.scheduler.Every(interval).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
		defer cancel()
		s.RunOnce(ctx)
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

// Window returns the trailing period of windowDays ending yesterday.
func (s *Scheduler) Window() risk.Period {
	now := s.clock.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	end := today.AddDate(0, 0, -1)
	return risk.NewPeriod(end.AddDate(0, 0, -(s.windowDays-1)), end)
}

// RunOnce assesses every target concurrently and reports each level.
func (s *Scheduler) RunOnce(ctx context.Context) {
	period := s.Window()
	s.logger.Info("running watch job",
		zap.Int("targets", len(s.targets)),
		zap.String("period", period.Label()),
	)

	var wg sync.WaitGroup
	for _, t := range s.targets {
		t := t
		wg.Add(1)
		go func() {
			defer wg.Done()

			req := risk.Request{
				Latitude:  t.Location.Lat,
				Longitude: t.Location.Lon,
				Crop:      string(t.Crop),
				Start:     period.Start,
				End:       period.End,
			}
			a, err := s.assessor.Assess(ctx, req)
			if err != nil {
				s.logger.Warn("watch assessment failed", zap.String("target", t.Name), zap.Error(err))
				if s.sink != nil {
					s.sink.WatchFailed()
				}
				return
			}

			s.logger.Info("watch assessment",
				zap.String("target", t.Name),
				zap.String("crop", string(t.Crop)),
				zap.String("risk_level", string(a.RiskLevel)),
				zap.Int("alerts", len(a.Alerts)),
			)
			if s.sink != nil {
				s.sink.SetWatchLevel(t.Name, t.Crop, a.RiskLevel)
			}
		}()
	}
	wg.Wait()
}
