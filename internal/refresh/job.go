// Package refresh drives schedule rebuilds: on a cron schedule, on demand,
// and when local sheet files change.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	appLog "schedbot/internal/log"
	"schedbot/internal/schedule"
)

// ErrRunning is returned by Run when another run is still in progress.
var ErrRunning = errors.New("refresh already running")

// Refresher rebuilds and publishes one snapshot.
type Refresher interface {
	Refresh(ctx context.Context) (*schedule.Snapshot, error)
}

// Job runs a Refresher with a timeout and never overlaps runs.
type Job struct {
	r       Refresher
	timeout time.Duration
	parser  cron.Parser

	running atomic.Bool

	mu sync.Mutex
	c  *cron.Cron
}

// NewJob returns a Job. A non-positive timeout means no limit.
func NewJob(r Refresher, timeout time.Duration) *Job {
	return &Job{
		r:       r,
		timeout: timeout,
		parser:  cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// Run performs one refresh and logs the outcome. It returns ErrRunning
// without doing anything when a run is already in progress.
func (j *Job) Run(ctx context.Context, trigger string) (*schedule.Snapshot, error) {
	if !j.running.CompareAndSwap(false, true) {
		appLog.Debug("refresh skipped; previous run still in progress", "trigger", trigger)
		return nil, ErrRunning
	}
	defer j.running.Store(false)

	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	start := time.Now()
	snap, err := j.r.Refresh(ctx)
	dur := time.Since(start)
	if err != nil {
		appLog.Error("refresh failed; keeping previous snapshot", err, "trigger", trigger, "duration", dur)
		return nil, err
	}
	appLog.Info("refresh completed",
		"trigger", trigger,
		"snapshot_id", snap.ID.String(),
		"ready", snap.Ready,
		"items", len(snap.Items),
		"row_errors", len(snap.RowErrors),
		"missing_subjects", len(snap.Missing),
		"duration", dur,
	)
	return snap, nil
}

// Start schedules Run on expr (standard 5-field cron, optional seconds, or
// descriptors such as "@every 10m") in loc. Runs stop when ctx is done.
func (j *Job) Start(ctx context.Context, expr string, loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}
	if _, err := j.parser.Parse(expr); err != nil {
		return fmt.Errorf("refresh schedule %q: %w", expr, err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.c != nil {
		return errors.New("refresh job already started")
	}

	c := cron.New(
		cron.WithParser(j.parser),
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cronLogger{})),
	)
	if _, err := c.AddFunc(expr, func() {
		_, _ = j.Run(ctx, "cron")
	}); err != nil {
		return fmt.Errorf("refresh schedule %q: %w", expr, err)
	}
	c.Start()
	j.c = c
	appLog.Info("refresh job started", "schedule", expr, "tz", loc.String())

	go func() {
		<-ctx.Done()
		j.Stop()
	}()
	return nil
}

// Stop halts the schedule and waits for a running job to return.
func (j *Job) Stop() {
	j.mu.Lock()
	c := j.c
	j.c = nil
	j.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
	appLog.Info("refresh job stopped")
}

// cronLogger routes cron's own messages to the application log.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}
