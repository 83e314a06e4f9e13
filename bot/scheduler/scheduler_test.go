package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recorder struct {
	mu       sync.Mutex
	payloads []string
	fail     int // fail this many deliveries before succeeding
}

func (r *recorder) handle(ctx context.Context, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail > 0 {
		r.fail--
		return errors.New("simulated failure")
	}
	r.payloads = append(r.payloads, string(payload))
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payloads)
}

func testConfig() Config {
	return Config{
		MaxAttempts:  3,
		RetryBackoff: 20 * time.Millisecond,
		TickInterval: 10 * time.Millisecond,
	}
}

func TestRunAtDelivers(t *testing.T) {
	rec := &recorder{}
	s := New(testConfig(), zap.NewNop())
	s.Register("job", rec.handle)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	require.NoError(t, s.RunAt("job", "k1", map[string]string{"a": "b"}, time.Now().Add(30*time.Millisecond)))

	require.Eventually(t, func() bool { return rec.count() == 1 },
		time.Second, 10*time.Millisecond)
	assert.Contains(t, rec.payloads[0], `"a":"b"`)
}

func TestRunAtNotBeforeDue(t *testing.T) {
	rec := &recorder{}
	s := New(testConfig(), zap.NewNop())
	s.Register("job", rec.handle)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	require.NoError(t, s.RunAt("job", "k1", nil, time.Now().Add(300*time.Millisecond)))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, rec.count())
}

func TestRunAtDeduplicatesPending(t *testing.T) {
	rec := &recorder{}
	s := New(testConfig(), zap.NewNop())
	s.Register("job", rec.handle)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	due := time.Now().Add(50 * time.Millisecond)
	require.NoError(t, s.RunAt("job", "same", nil, due))
	require.NoError(t, s.RunAt("job", "same", nil, due))
	require.NoError(t, s.RunAt("job", "other", nil, due))

	require.Eventually(t, func() bool { return rec.count() == 2 },
		time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, rec.count())
}

func TestUnregisteredJobRejected(t *testing.T) {
	s := New(testConfig(), zap.NewNop())
	err := s.RunAt("ghost", "k", nil, time.Now())
	assert.Error(t, err)
}

func TestRedeliveryOnFailure(t *testing.T) {
	rec := &recorder{fail: 2}
	s := New(testConfig(), zap.NewNop())
	s.Register("flaky", rec.handle)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	require.NoError(t, s.RunAt("flaky", "k", nil, time.Now()))

	// Two failures then a success within the attempt cap.
	require.Eventually(t, func() bool { return rec.count() == 1 },
		2*time.Second, 10*time.Millisecond)
}

func TestRetriesExhausted(t *testing.T) {
	rec := &recorder{fail: 10}
	s := New(testConfig(), zap.NewNop())
	s.Register("doomed", rec.handle)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	require.NoError(t, s.RunAt("doomed", "k", nil, time.Now()))
	time.Sleep(500 * time.Millisecond)
	assert.Equal(t, 0, rec.count())

	// The pending slot is released after exhaustion, so the job can be
	// enqueued again.
	require.NoError(t, s.RunAt("doomed", "k", nil, time.Now()))
}

func TestHandlerPanicRecovered(t *testing.T) {
	rec := &recorder{}
	s := New(testConfig(), zap.NewNop())
	s.Register("panicky", func(ctx context.Context, payload []byte) error {
		panic("boom")
	})
	s.Register("job", rec.handle)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	require.NoError(t, s.RunAt("panicky", "k", nil, time.Now()))
	require.NoError(t, s.RunAt("job", "k", nil, time.Now().Add(50*time.Millisecond)))

	// The panic did not take the worker down.
	require.Eventually(t, func() bool { return rec.count() == 1 },
		time.Second, 10*time.Millisecond)
}

func TestDelayQueueOrdering(t *testing.T) {
	q := NewDelayQueue()
	now := time.Now()

	q.Push(&Job{Name: "later", RunAt: now.Add(time.Hour)})
	q.Push(&Job{Name: "sooner", RunAt: now.Add(-time.Minute)})

	job := q.PopDue(now)
	require.NotNil(t, job)
	assert.Equal(t, "sooner", job.Name)

	assert.Nil(t, q.PopDue(now), "future job must not pop")
	assert.Equal(t, 1, q.Len())
}

func TestRunEvery(t *testing.T) {
	s := New(testConfig(), zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	runs := 0
	s.RunEvery(ctx, "cron", 30*time.Millisecond, func(ctx context.Context) {
		mu.Lock()
		runs++
		mu.Unlock()
	})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return runs >= 2
	}, time.Second, 10*time.Millisecond)
}
