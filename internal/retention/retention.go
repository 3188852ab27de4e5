package retention

import (
	"context"
	"time"

	"screenshot-service/internal/storage"

	"github.com/go-logr/logr"
	"github.com/robfig/cron/v3"
	"golang.org/x/xerrors"
)

type Repository interface {
	DeleteScreenshotsBefore(ctx context.Context, t time.Time) ([]string, error)
}

// Job deletes screenshots older than a maximum age together with their artifacts.
type Job struct {
	repository Repository
	storage    storage.Storage
	maxAge     time.Duration
	log        logr.Logger
	now        func() time.Time
}

func NewJob(repository Repository, s storage.Storage, maxAge time.Duration, logger logr.Logger) *Job {
	return &Job{
		repository: repository,
		storage:    s,
		maxAge:     maxAge,
		log:        logger.WithName("retention"),
		now:        time.Now,
	}
}

// Run performs one cleanup pass and returns how many records were deleted.
// Artifacts that cannot be removed are logged and skipped.
func (j *Job) Run(ctx context.Context) (int, error) {
	cutoff := j.now().Add(-j.maxAge)

	paths, err := j.repository.DeleteScreenshotsBefore(ctx, cutoff)
	if err != nil {
		return 0, xerrors.Errorf("failed to delete expired screenshots: %w", err)
	}

	for _, path := range paths {
		if err := j.storage.Delete(ctx, path); err != nil {
			j.log.Error(err, "failed to delete expired artifact", "path", path)
		}
	}

	j.log.Info("deleted expired screenshots", "cutoff", cutoff, "artifacts", len(paths))
	return len(paths), nil
}

// Start runs the job on schedule, a standard five field cron expression, until
// the returned stop function is called. Stop waits for a running pass to finish.
func (j *Job) Start(ctx context.Context, schedule string) (func(), error) {
	s, err := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow).Parse(schedule)
	if err != nil {
		return nil, xerrors.Errorf("failed to parse retention schedule %q: %w", schedule, err)
	}

	c := cron.New(cron.WithLogger(cronLogger{j.log}))
	c.Schedule(s, cron.FuncJob(func() {
		if _, err := j.Run(ctx); err != nil {
			j.log.Error(err, "retention pass failed")
		}
	}))
	c.Start()
	j.log.Info("scheduled retention", "schedule", schedule, "maxAge", j.maxAge.String(), "next", s.Next(j.now()))

	return func() {
		<-c.Stop().Done()
	}, nil
}

type cronLogger struct {
	logr.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.Logger.V(1).Info(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.Logger.Error(err, msg, keysAndValues...)
}
