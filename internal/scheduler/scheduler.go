// Package scheduler runs the batch stages (ingest, digest) on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ToffenYT/varsly/internal/logger"
)

// Job one scheduled stage
type Job struct {
	Name string
	// Spec standard 5-field cron expression or a descriptor such as @hourly
	Spec string
	// RunAtStart also runs the job once right after Start
	RunAtStart bool
	Run        func(ctx context.Context) error
}

// Scheduler wraps robfig/cron. A job still running when its next tick
// fires is skipped for that tick.
type Scheduler struct {
	cron *cron.Cron
	jobs []Job
	ids  map[string]cron.EntryID
	log  *zap.SugaredLogger
}

// New creates a Scheduler evaluating specs in loc
func New(loc *time.Location, jobs ...Job) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	log := logger.GetLogger("scheduler")
	cl := cronLogger{log}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		jobs: jobs,
		ids:  make(map[string]cron.EntryID, len(jobs)),
		log:  log,
	}
}

// Start registers every job and starts ticking. ctx is passed to each run.
func (s *Scheduler) Start(ctx context.Context) error {
	var startup []cron.EntryID
	for _, j := range s.jobs {
		id, err := s.cron.AddJob(j.Spec, s.wrap(ctx, j))
		if err != nil {
			return fmt.Errorf("schedule %s (%q): %w", j.Name, j.Spec, err)
		}
		s.ids[j.Name] = id
		if j.RunAtStart {
			startup = append(startup, id)
		}
		s.log.Infof("%s scheduled: %s", j.Name, j.Spec)
	}

	s.cron.Start()

	for _, id := range startup {
		// Entry.WrappedJob carries the chain, so a startup run and the first tick never overlap
		go s.cron.Entry(id).WrappedJob.Run()
	}
	return nil
}

// Stop stops ticking and waits for running jobs to finish or ctx to expire
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Entries scheduled jobs with their next fire time
func (s *Scheduler) Entries() map[string]time.Time {
	out := make(map[string]time.Time, len(s.ids))
	for name, id := range s.ids {
		out[name] = s.cron.Entry(id).Next
	}
	return out
}

func (s *Scheduler) wrap(ctx context.Context, j Job) cron.Job {
	return cron.FuncJob(func() {
		start := time.Now()
		s.log.Infof("%s started", j.Name)
		if err := j.Run(ctx); err != nil {
			s.log.Errorf("%s failed after %s: %v", j.Name, time.Since(start), err)
			return
		}
		s.log.Infof("%s finished in %s", j.Name, time.Since(start))
	})
}

// cronLogger adapts zap to cron.Logger
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
