// Package idempotency guarantees at-most-one effect per discovered candidate
// and gates every external call behind named, windowed rate-limit buckets.
package idempotency

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/r-seattle-wa/hub-bot-9000/bot/observability"
	"github.com/r-seattle-wa/hub-bot-9000/bot/store"
)

// ProcessedTTL keeps the processed marker alive as long as the event record
// itself, so a retry storm after the notification delay cannot re-process a
// candidate.
const ProcessedTTL = 7 * 24 * time.Hour

// EventTTL bounds how long a brigade event survives.
const EventTTL = 7 * 24 * time.Hour

type Store struct {
	kv     store.KV
	logger *zap.Logger
}

func NewStore(kv store.KV, logger *zap.Logger) *Store {
	return &Store{kv: kv, logger: logger}
}

// MarkProcessed sets the processed marker for a candidate.
// Returns true when this call was the first to mark it.
func (s *Store) MarkProcessed(ctx context.Context, candidateID string) (bool, error) {
	return s.kv.SetNX(ctx, store.ProcessedKey(candidateID), "1", ProcessedTTL)
}

// PutEvent stores (or re-stores) a brigade event, refreshing its TTL.
func (s *Store) PutEvent(ctx context.Context, event *store.BrigadeEvent, ttl time.Duration) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal brigade event %s: %w", event.ID, err)
	}
	return s.kv.Set(ctx, store.EventKey(event.ID), string(data), ttl)
}

// GetEvent loads a brigade event. A missing or expired event returns nil.
func (s *Store) GetEvent(ctx context.Context, id string) (*store.BrigadeEvent, error) {
	val, ok, err := s.kv.Get(ctx, store.EventKey(id))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var event store.BrigadeEvent
	if err := json.Unmarshal([]byte(val), &event); err != nil {
		return nil, fmt.Errorf("unmarshal brigade event %s: %w", id, err)
	}
	return &event, nil
}

// LastScan returns the scan watermark for a community, or zero time if the
// community has never been scanned.
func (s *Store) LastScan(ctx context.Context, community string) (time.Time, error) {
	val, ok, err := s.kv.Get(ctx, store.LastScanKey(community))
	if err != nil || !ok {
		return time.Time{}, err
	}
	var ms int64
	if _, err := fmt.Sscanf(val, "%d", &ms); err != nil {
		return time.Time{}, nil
	}
	return time.UnixMilli(ms), nil
}

// SetLastScan advances the scan watermark.
func (s *Store) SetLastScan(ctx context.Context, community string, t time.Time) error {
	return s.kv.Set(ctx, store.LastScanKey(community), fmt.Sprintf("%d", t.UnixMilli()), 0)
}

// Allow checks a bucket without consuming from it. It returns whether another
// request fits in the current window, how many requests remain, and how long
// until the window resets.
func (s *Store) Allow(ctx context.Context, bucket Bucket, id string) (bool, int, time.Duration, error) {
	key := store.RateLimitKey(bucket.Name, id)

	val, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return false, 0, 0, err
	}
	used := 0
	if ok {
		fmt.Sscanf(val, "%d", &used)
	}

	remaining := bucket.MaxRequests - used
	if remaining < 0 {
		remaining = 0
	}

	resetIn := bucket.Window
	if ok {
		if ttl, err := s.kv.TTL(ctx, key); err == nil && ttl > 0 {
			resetIn = ttl
		}
	}

	if remaining == 0 {
		observability.RateLimitRejections.WithLabelValues(bucket.Name).Inc()
		return false, 0, resetIn, nil
	}
	return true, remaining, resetIn, nil
}

// Consume takes one request from the bucket's current window.
func (s *Store) Consume(ctx context.Context, bucket Bucket, id string) error {
	_, err := s.kv.Incr(ctx, store.RateLimitKey(bucket.Name, id), bucket.Window)
	if err != nil {
		s.logger.Warn("rate limit consume failed",
			zap.String("bucket", bucket.Name),
			zap.String("id", id),
			zap.Error(err))
	}
	return err
}
