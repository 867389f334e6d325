package importer

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Runner runs one sheet type end to end
type Runner interface {
	Run(ctx context.Context, sheetType string, opts CopyOptions) (*RunResult, error)
}

// Scheduler runs the configured sheet types on a cron schedule. A run that
// is still going when the next tick fires causes that tick to be skipped.
type Scheduler struct {
	cron       *cron.Cron
	runner     Runner
	sheetTypes []string
	opts       CopyOptions
	logger     logrus.FieldLogger
}

// NewScheduler registers the import job under schedule, a standard 5-field
// cron expression
func NewScheduler(runner Runner, schedule string, sheetTypes []string, opts CopyOptions, logger logrus.FieldLogger) (*Scheduler, error) {
	if len(sheetTypes) == 0 {
		return nil, fmt.Errorf("no sheet types to schedule")
	}
	if logger == nil {
		logger = logrus.New()
	}

	s := &Scheduler{
		runner:     runner,
		sheetTypes: sheetTypes,
		opts:       opts,
		logger:     logger,
	}
	s.cron = cron.New(cron.WithChain(
		cron.Recover(cron.DefaultLogger),
		cron.SkipIfStillRunning(cron.DefaultLogger),
	))
	if _, err := s.cron.AddFunc(schedule, func() {
		if _, err := s.RunOnce(context.Background()); err != nil {
			s.logger.WithError(err).Error("scheduled import failed")
		}
	}); err != nil {
		return nil, fmt.Errorf("invalid import schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start starts the cron loop in the background
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.WithField("sheet_types", s.sheetTypes).Info("import scheduler started")
}

// Stop stops scheduling and waits for a running import or ctx, whichever
// ends first
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce runs every configured sheet type in order. A failing sheet type
// does not stop the others.
func (s *Scheduler) RunOnce(ctx context.Context) ([]*RunResult, error) {
	results := make([]*RunResult, 0, len(s.sheetTypes))
	var errs []error
	for _, sheetType := range s.sheetTypes {
		logger := s.logger.WithField("sheet_type", sheetType)
		logger.Info("starting import")

		result, err := s.runner.Run(ctx, sheetType, s.opts)
		if result != nil {
			results = append(results, result)
		}
		if err != nil {
			logger.WithError(err).Error("import failed")
			errs = append(errs, fmt.Errorf("%s: %w", sheetType, err))
			continue
		}
		logger.WithFields(logrus.Fields{
			"staged":  result.Stage.Copied,
			"copied":  result.Copy.Copied,
			"skipped": result.Copy.Skipped,
			"errors":  result.Stage.Errors + result.Copy.Errors,
		}).Info("import finished")
	}
	return results, errors.Join(errs...)
}
