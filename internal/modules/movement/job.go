package movement

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sbw-site/geotrack/internal/pkg/archive"
	"github.com/sbw-site/geotrack/internal/pkg/cron"
)

const (
	JobName        = "user_movement_hourly"
	jobDescription = "Analyze the last hour of pings for every active user"
	lockPrefix     = "geotrack:lock:movement:"
)

// Locker takes a best-effort lock so only one replica runs a scheduled slot.
type Locker interface {
	TryLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
}

// JobOptions configures the hourly job.
type JobOptions struct {
	Workers      int
	Lookback     time.Duration
	Locker       Locker
	Owner        string
	Archiver     archive.Archiver
	PathTemplate string
}

// Job analyzes every user with pings in the lookback window ending at the
// scheduled slot.
type Job struct {
	svc  *Service
	opts JobOptions
	log  *zap.Logger
}

func NewJob(svc *Service, opts JobOptions, log *zap.Logger) *Job {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Lookback <= 0 {
		opts.Lookback = time.Hour
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Job{svc: svc, opts: opts, log: log.Named("movement-job")}
}

// Definition returns the scheduler registration for the job.
func (j *Job) Definition() cron.Job {
	return cron.Job{
		Name:        JobName,
		Description: jobDescription,
		Interval:    time.Hour,
		Align:       true,
		Fn:          j.Run,
	}
}

// JobStats summarises one run.
type JobStats struct {
	Users    int
	Analyzed int
	Failed   int
	Archived int
}

// Run processes the window [run.At - Lookback, run.At]. Per-user failures are
// logged and counted; Run only fails when the user list cannot be loaded.
func (j *Job) Run(ctx context.Context, run cron.Run) error {
	_, err := j.run(ctx, run)
	return err
}

func (j *Job) run(ctx context.Context, run cron.Run) (JobStats, error) {
	var stats JobStats
	end := run.At
	start := end.Add(-j.opts.Lookback)

	if !run.Manual && j.opts.Locker != nil {
		key := lockPrefix + end.UTC().Format("2006010215")
		ok, err := j.opts.Locker.TryLock(ctx, key, j.opts.Owner, j.opts.Lookback)
		if err != nil {
			j.log.Warn("slot lock unavailable, running anyway", zap.Error(err))
		} else if !ok {
			j.log.Info("slot already claimed", zap.String("key", key))
			return stats, nil
		}
	}

	users, err := j.svc.pings.ActiveUsers(ctx, start, end)
	if err != nil {
		return stats, fmt.Errorf("list active users: %w", err)
	}
	stats.Users = len(users)
	if len(users) == 0 {
		j.log.Info("no active users", zap.Time("start", start), zap.Time("end", end))
		return stats, nil
	}

	// One upstream fetch per run.
	params := j.svc.params.Params(ctx)

	type outcome struct {
		analyzed, archived bool
	}
	results := make([]outcome, len(users))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.opts.Workers)
	for i, user := range users {
		g.Go(func() error {
			report, err := j.svc.analyze(gctx, user, start, end, params, true)
			if err != nil {
				j.log.Error("user analysis failed", zap.String("user", user), zap.Error(err))
				return nil
			}
			results[i].analyzed = true
			if j.archive(gctx, user, end, report) {
				results[i].archived = true
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		if r.analyzed {
			stats.Analyzed++
		} else {
			stats.Failed++
		}
		if r.archived {
			stats.Archived++
		}
	}
	j.log.Info("movement run finished",
		zap.Bool("manual", run.Manual),
		zap.Time("start", start),
		zap.Time("end", end),
		zap.Int("users", stats.Users),
		zap.Int("analyzed", stats.Analyzed),
		zap.Int("failed", stats.Failed),
		zap.Int("archived", stats.Archived),
	)
	return stats, nil
}

func (j *Job) archive(ctx context.Context, user string, end time.Time, report *Report) bool {
	if j.opts.Archiver == nil {
		return false
	}
	body, err := report.JSON()
	if err != nil {
		j.log.Error("encode report", zap.String("user", user), zap.Error(err))
		return false
	}
	key := archive.ObjectKey(j.opts.PathTemplate, user+".json", end)
	if err := j.opts.Archiver.Put(ctx, key, body, "application/json"); err != nil {
		j.log.Warn("archive report failed", zap.String("user", user), zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}
