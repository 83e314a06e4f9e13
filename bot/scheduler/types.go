// Package scheduler delivers delayed and periodic jobs with at-least-once
// semantics. Handlers are registered by name and must be idempotent: they
// re-read their durable record and no-op when it is already terminal.
package scheduler

import (
	"context"
	"time"
)

// Handler executes one job delivery. Returning an error triggers redelivery
// with backoff up to the attempt cap.
type Handler func(ctx context.Context, payload []byte) error

// Job is one pending delayed delivery. Name selects the handler; Key dedupes
// concurrent enqueues of the same logical job.
type Job struct {
	Name       string
	Key        string
	Payload    []byte
	RunAt      time.Time
	Attempt    int
	EnqueuedAt time.Time
}

// Config bounds the scheduler's retry behavior.
type Config struct {
	MaxAttempts  int
	RetryBackoff time.Duration
	TickInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:  5,
		RetryBackoff: 30 * time.Second,
		TickInterval: 500 * time.Millisecond,
	}
}
