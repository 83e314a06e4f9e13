package scheduler

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"context"

	"go.uber.org/zap"

	"github.com/r-seattle-wa/hub-bot-9000/bot/observability"
)

// Scheduler owns the delay queue and the cron tickers. One worker goroutine
// drains due jobs; each delivery runs in its own goroutine with panic
// recovery.
type Scheduler struct {
	queue    *DelayQueue
	limiter  *TokenBucketLimiter
	config   Config
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.RWMutex
	handlers map[string]Handler
	pending  map[string]struct{}
}

func New(config Config, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		queue:    NewDelayQueue(),
		limiter:  NewTokenBucketLimiter(1, 3),
		config:   config,
		logger:   logger,
		now:      time.Now,
		handlers: make(map[string]Handler),
		pending:  make(map[string]struct{}),
	}
}

// SetClock overrides the time source for tests.
func (s *Scheduler) SetClock(now func() time.Time) { s.now = now }

// Register installs the handler for a job name. Registration after Start is
// not supported.
func (s *Scheduler) Register(name string, handler Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[name] = handler
}

// RunAt enqueues one delivery of the named job at the given time. Payload is
// JSON-encoded. A job with the same name and key already pending is not
// enqueued again.
func (s *Scheduler) RunAt(name string, key string, payload any, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.handlers[name]; !ok {
		return fmt.Errorf("scheduler: no handler registered for %q", name)
	}

	dedupe := name + ":" + key
	if _, ok := s.pending[dedupe]; ok {
		return nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("scheduler: marshal payload for %q: %w", name, err)
	}

	s.pending[dedupe] = struct{}{}
	s.queue.Push(&Job{
		Name:       name,
		Key:        key,
		Payload:    data,
		RunAt:      at,
		EnqueuedAt: s.now(),
	})
	observability.SchedulerQueueDepth.Set(float64(s.queue.Len()))
	return nil
}

// RunEvery starts a recurring job on a fixed interval until ctx ends.
// The first run happens after one full interval.
func (s *Scheduler) RunEvery(ctx context.Context, name string, every time.Duration, fn func(ctx context.Context)) {
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runProtected(ctx, name, fn)
			}
		}
	}()
}

func (s *Scheduler) runProtected(ctx context.Context, name string, fn func(ctx context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			observability.JobRuns.WithLabelValues(name, "panic").Inc()
			s.logger.Error("cron job panicked", zap.String("job", name), zap.Any("panic", r))
		}
	}()
	fn(ctx)
	observability.JobRuns.WithLabelValues(name, "ok").Inc()
}

// Start begins the delivery loop.
func (s *Scheduler) Start(ctx context.Context) {
	go s.worker(ctx)
}

func (s *Scheduler) worker(ctx context.Context) {
	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler worker stopping")
			return
		case <-ticker.C:
			for {
				job := s.queue.PopDue(s.now())
				if job == nil {
					break
				}
				s.dispatch(ctx, job)
			}
			observability.SchedulerQueueDepth.Set(float64(s.queue.Len()))
		}
	}
}

func (s *Scheduler) dispatch(ctx context.Context, job *Job) {
	// Pace per job name; a throttled job goes back on the queue.
	if !s.limiter.Allow(job.Name) {
		job.RunAt = s.now().Add(time.Second)
		s.queue.Push(job)
		return
	}

	s.mu.RLock()
	handler, ok := s.handlers[job.Name]
	s.mu.RUnlock()
	if !ok {
		s.logger.Error("no handler for job", zap.String("job", job.Name))
		s.clearPending(job)
		return
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				observability.JobRuns.WithLabelValues(job.Name, "panic").Inc()
				s.logger.Error("job handler panicked",
					zap.String("job", job.Name),
					zap.String("key", job.Key),
					zap.Any("panic", r))
				s.clearPending(job)
			}
		}()

		err := handler(ctx, job.Payload)
		if err == nil {
			observability.JobRuns.WithLabelValues(job.Name, "ok").Inc()
			s.clearPending(job)
			return
		}

		observability.JobRuns.WithLabelValues(job.Name, "error").Inc()
		job.Attempt++
		if job.Attempt >= s.config.MaxAttempts {
			s.logger.Error("job exhausted retries",
				zap.String("job", job.Name),
				zap.String("key", job.Key),
				zap.Int("attempts", job.Attempt),
				zap.Error(err))
			s.clearPending(job)
			return
		}

		// Exponential backoff on redelivery.
		delay := s.config.RetryBackoff * time.Duration(1<<(job.Attempt-1))
		job.RunAt = s.now().Add(delay)
		s.logger.Warn("job failed, redelivering",
			zap.String("job", job.Name),
			zap.String("key", job.Key),
			zap.Int("attempt", job.Attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
		s.queue.Push(job)
	}()
}

func (s *Scheduler) clearPending(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, job.Name+":"+job.Key)
}

// QueueDepth reports pending delayed jobs.
func (s *Scheduler) QueueDepth() int {
	return s.queue.Len()
}
