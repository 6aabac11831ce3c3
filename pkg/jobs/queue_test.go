package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRejectsBeforeStart(t *testing.T) {
	q := NewQueue("test", func(context.Context, Job) error { return nil }, QueueConfig{})
	assert.Error(t, q.Enqueue(Job{ID: "1"}))
}

func TestQueueProcessesJobs(t *testing.T) {
	done := make(chan Job, 1)
	q := NewQueue("test", func(_ context.Context, j Job) error {
		done <- j
		return nil
	}, QueueConfig{Workers: 2})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "1", Type: "calendar_sync"}))

	select {
	case j := <-done:
		assert.Equal(t, "calendar_sync", j.Type)
		assert.False(t, j.Enqueued.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("job not processed")
	}
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	var calls int32
	done := make(chan struct{})
	q := NewQueue("retry", func(_ context.Context, j Job) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}, QueueConfig{MaxRetries: 3, RetryDelay: 10 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "r"}))

	select {
	case <-done:
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	case <-time.After(2 * time.Second):
		t.Fatal("job never succeeded")
	}
}

func TestQueueStopIsIdempotent(t *testing.T) {
	q := NewQueue("stop", func(context.Context, Job) error { return nil }, QueueConfig{})
	q.Start(context.Background())
	q.Stop()
	q.Stop()
	assert.Error(t, q.Enqueue(Job{ID: "late"}))
}

func TestMuxDispatch(t *testing.T) {
	mux := NewMux()
	var hit string
	mux.Handle("exam_notification", func(_ context.Context, j Job) error {
		hit = j.ID
		return nil
	})

	require.NoError(t, mux.Dispatch(context.Background(), Job{ID: "n1", Type: "exam_notification"}))
	assert.Equal(t, "n1", hit)
	assert.Error(t, mux.Dispatch(context.Background(), Job{Type: "unknown"}))
}

func TestQueueCoalescesPendingTypes(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	q := NewQueue("coalesce", func(context.Context, Job) error {
		started <- struct{}{}
		<-release
		return nil
	}, QueueConfig{Coalesce: true})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "a", Type: "calendar_sync"}))
	<-started
	assert.ErrorIs(t, q.Enqueue(Job{ID: "b", Type: "calendar_sync"}), ErrCoalesced)
	assert.Equal(t, 1, q.Stats().Pending)

	close(release)
	require.Eventually(t, func() bool { return q.Stats().Processed == 1 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, q.Stats().Pending)
	assert.NoError(t, q.Enqueue(Job{ID: "c", Type: "calendar_sync"}))
}

func TestQueueCountsExhaustedJobs(t *testing.T) {
	var calls int32
	q := NewQueue("exhaust", func(context.Context, Job) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("permanent")
	}, QueueConfig{MaxRetries: 1, RetryDelay: 5 * time.Millisecond, Coalesce: true})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "x", Type: "exam_notification"}))
	require.Eventually(t, func() bool { return q.Stats().Failed == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Zero(t, q.Stats().Pending)
}

func TestQueueStopClearsJobsAwaitingRetry(t *testing.T) {
	failed := make(chan struct{}, 1)
	q := NewQueue("stop-retry", func(context.Context, Job) error {
		select {
		case failed <- struct{}{}:
		default:
		}
		return errors.New("calendar timeout")
	}, QueueConfig{MaxRetries: 3, RetryDelay: time.Hour, Coalesce: true})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Job{ID: "s1", Type: "calendar_sync"}))
	<-failed
	require.Eventually(t, func() bool { return q.Stats().Pending == 1 }, time.Second, 5*time.Millisecond)

	q.Stop()
	assert.Zero(t, q.Stats().Pending)

	q.Start(context.Background())
	defer q.Stop()
	assert.NoError(t, q.Enqueue(Job{ID: "s2", Type: "calendar_sync"}))
}

func TestQueueIgnoresSettlementsFromStoppedRun(t *testing.T) {
	q := NewQueue("stale", func(context.Context, Job) error { return nil }, QueueConfig{Coalesce: true})
	q.Start(context.Background())
	q.Stop()
	q.Start(context.Background())
	defer q.Stop()

	q.mu.Lock()
	q.pending["calendar_sync"] = 1
	staleGen := q.gen - 1
	q.mu.Unlock()

	q.settle(Job{Type: "calendar_sync"}, true, staleGen)
	stats := q.Stats()
	assert.Equal(t, 1, stats.Pending)
	assert.Zero(t, stats.Processed)
}
