package store

import (
	"context"
	"time"
)

// KV defines the methods required for the ephemeral key-value backend.
// It abstracts over Redis (production) and an in-process map (tests, dev).
// All values are JSON or plain strings; TTL handling is the backend's job.
type KV interface {
	// Get returns the value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key. A zero ttl means no expiry.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error

	// SetNX stores value only if the key does not exist yet.
	// Returns true if this call created the key.
	SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)

	// Incr increments a counter, creating it with the given ttl on first use.
	// The ttl is NOT refreshed on subsequent increments so the counter stays
	// bound to its original window.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// TTL returns the remaining lifetime of a key, or zero when the key is
	// missing or has no expiry.
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// Documents defines the methods required for the durable JSON document
// backend. Pages hold whole documents (leaderboard, events feed, analyses)
// that are always read-modify-written as a unit.
type Documents interface {
	// Load unmarshals the page into v. Returns false if the page does not
	// exist yet; that is not an error.
	Load(ctx context.Context, page string, v any) (bool, error)

	// Save marshals v and overwrites the page.
	Save(ctx context.Context, page string, v any) error
}
