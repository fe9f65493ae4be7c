package background

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

func TestQueueRunsAllTasksBeforeClose(t *testing.T) {
	q := NewQueue(Config{Workers: 2, QueueDepth: 64})

	var n atomic.Int32
	for i := 0; i < 50; i++ {
		q.Schedule("count", func(ctx context.Context) error {
			time.Sleep(time.Millisecond)
			n.Add(1)
			return nil
		})
	}

	require.NoError(t, q.Close(context.Background()))
	assert.Equal(t, int32(50), n.Load())
}

func TestQueueDropsWhenFull(t *testing.T) {
	var mu sync.Mutex
	outcomes := map[string][]error{}
	q := NewQueue(Config{
		Workers:    1,
		QueueDepth: 1,
		Observer: func(name string, err error) {
			mu.Lock()
			outcomes[name] = append(outcomes[name], err)
			mu.Unlock()
		},
	})

	release := make(chan struct{})
	started := make(chan struct{})
	q.Schedule("blocker", func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started

	q.Schedule("queued", func(ctx context.Context) error { return nil })
	q.Schedule("dropped", func(ctx context.Context) error { return nil })

	close(release)
	require.NoError(t, q.Close(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []error{nil}, outcomes["blocker"])
	assert.Equal(t, []error{nil}, outcomes["queued"])
	require.Len(t, outcomes["dropped"], 1)
	assert.ErrorIs(t, outcomes["dropped"][0], ErrQueueFull)
}

func TestQueueScheduleAfterClose(t *testing.T) {
	var dropped atomic.Bool
	q := NewQueue(Config{Observer: func(name string, err error) {
		if errors.Is(err, ErrQueueFull) {
			dropped.Store(true)
		}
	}})
	require.NoError(t, q.Close(context.Background()))

	q.Schedule("late", func(ctx context.Context) error {
		t.Error("task must not run after close")
		return nil
	})
	assert.True(t, dropped.Load())
	require.NoError(t, q.Close(context.Background()), "second close is a no-op")
}

func TestQueueCloseHonorsContext(t *testing.T) {
	q := NewQueue(Config{Workers: 1, TaskTimeout: time.Minute})
	release := make(chan struct{})
	defer close(release)

	q.Schedule("slow", func(ctx context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Close(ctx), context.DeadlineExceeded)
}

func TestTaskContextHasTimeout(t *testing.T) {
	in := NewInline(Config{TaskTimeout: 10 * time.Millisecond})

	var got error
	in.Schedule("timeout", func(ctx context.Context) error {
		<-ctx.Done()
		got = ctx.Err()
		return got
	})
	assert.ErrorIs(t, got, context.DeadlineExceeded)
}

func TestInlineReportsFailures(t *testing.T) {
	boom := errors.New("boom")
	var seen error
	in := NewInline(Config{Observer: func(name string, err error) { seen = err }})

	in.Schedule("fail", func(ctx context.Context) error { return boom })
	assert.ErrorIs(t, seen, boom)

	in.Schedule("panic", func(ctx context.Context) error { panic("bad") })
	assert.Error(t, seen)
}
