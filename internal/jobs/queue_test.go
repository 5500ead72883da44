package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_RunsJobs(t *testing.T) {
	q := New(2, 10, time.Second)

	var n atomic.Int32
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Submit("count", func(ctx context.Context) error {
			n.Add(1)
			return nil
		}))
	}
	q.Close()

	assert.Equal(t, int32(5), n.Load())
}

func TestQueue_DropsWhenFull(t *testing.T) {
	q := New(1, 1, time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, q.Submit("block", func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started

	require.NoError(t, q.Submit("buffered", func(ctx context.Context) error { return nil }))
	err := q.Submit("overflow", func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrFull)

	close(release)
	q.Close()
}

func TestQueue_SubmitAfterClose(t *testing.T) {
	q := New(1, 1, time.Second)
	q.Close()
	q.Close()

	err := q.Submit("late", func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrClosed)
}

func TestQueue_JobContextIsDetached(t *testing.T) {
	q := New(1, 1, 50*time.Millisecond)

	reqCtx, cancel := context.WithCancel(context.Background())
	cancel()

	var gotErr error
	var hasDeadline bool
	done := make(chan struct{})
	require.NoError(t, q.Submit("detached", func(ctx context.Context) error {
		defer close(done)
		_, hasDeadline = ctx.Deadline()
		gotErr = ctx.Err()
		return reqCtx.Err()
	}))
	<-done
	q.Close()

	assert.True(t, hasDeadline, "job context should carry a timeout")
	assert.NoError(t, gotErr, "job context must not inherit request cancellation")
}

func TestQueue_TimeoutAndFailuresDoNotStopWorkers(t *testing.T) {
	q := New(1, 4, 20*time.Millisecond)

	var mu sync.Mutex
	var results []string

	require.NoError(t, q.Submit("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	require.NoError(t, q.Submit("fail", func(ctx context.Context) error {
		return errors.New("boom")
	}))
	require.NoError(t, q.Submit("panic", func(ctx context.Context) error {
		panic("oops")
	}))
	require.NoError(t, q.Submit("ok", func(ctx context.Context) error {
		mu.Lock()
		results = append(results, "ok")
		mu.Unlock()
		return nil
	}))
	q.Close()

	assert.Equal(t, []string{"ok"}, results)
}
