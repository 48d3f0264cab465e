package refresh

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schedbot/internal/schedule"
)

type stubRefresher struct {
	calls   atomic.Int32
	block   chan struct{}
	started chan struct{}
	err     error
}

func (s *stubRefresher) Refresh(ctx context.Context) (*schedule.Snapshot, error) {
	s.calls.Add(1)
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return &schedule.Snapshot{ID: uuid.New(), Ready: true}, nil
}

func TestRunSkipsOverlap(t *testing.T) {
	t.Parallel()
	r := &stubRefresher{block: make(chan struct{}), started: make(chan struct{}, 1)}
	j := NewJob(r, 0)

	done := make(chan error, 1)
	go func() {
		_, err := j.Run(context.Background(), "test")
		done <- err
	}()
	<-r.started

	_, err := j.Run(context.Background(), "test")
	assert.ErrorIs(t, err, ErrRunning)

	close(r.block)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), r.calls.Load())

	snap, err := j.Run(context.Background(), "test")
	require.NoError(t, err)
	assert.True(t, snap.Ready)
	assert.Equal(t, int32(2), r.calls.Load())
}

func TestRunAppliesTimeout(t *testing.T) {
	t.Parallel()
	r := &stubRefresher{block: make(chan struct{})}
	j := NewJob(r, 20*time.Millisecond)

	_, err := j.Run(context.Background(), "test")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunReturnsRefreshError(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	j := NewJob(&stubRefresher{err: boom}, time.Second)

	snap, err := j.Run(context.Background(), "test")
	assert.Nil(t, snap)
	assert.ErrorIs(t, err, boom)
}

func TestStartRunsOnSchedule(t *testing.T) {
	t.Parallel()
	r := &stubRefresher{}
	j := NewJob(r, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, j.Start(ctx, "@every 1s", time.UTC))
	assert.Error(t, j.Start(ctx, "@every 1s", time.UTC))

	assert.Eventually(t, func() bool { return r.calls.Load() >= 1 }, 5*time.Second, 50*time.Millisecond)
	j.Stop()
}

func TestStartRejectsBadSchedule(t *testing.T) {
	t.Parallel()
	j := NewJob(&stubRefresher{}, time.Second)
	err := j.Start(context.Background(), "every tuesday", time.UTC)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "every tuesday")
}

func TestWatchTriggersOnCSVChange(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var fired atomic.Int32
	errc := make(chan error, 1)
	go func() {
		errc <- Watch(ctx, dir, 50*time.Millisecond, func() { fired.Add(1) })
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))
	time.Sleep(200 * time.Millisecond)
	assert.Zero(t, fired.Load())

	path := filepath.Join(dir, "Schedule.csv")
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte("TRUE\n"), 0o600))
	}
	assert.Eventually(t, func() bool { return fired.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-errc)
}

func TestWatchMissingDir(t *testing.T) {
	t.Parallel()
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "absent"), 0, func() {})
	assert.Error(t, err)
}
