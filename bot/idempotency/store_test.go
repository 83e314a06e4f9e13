package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/r-seattle-wa/hub-bot-9000/bot/store"
)

func newTestStore(t *testing.T) (*Store, *time.Time) {
	t.Helper()
	kv := store.NewMemoryKV()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &now
	kv.SetClock(func() time.Time { return *clock })
	return NewStore(kv, zap.NewNop()), clock
}

func TestMarkProcessedOnce(t *testing.T) {
	s, clock := newTestStore(t)
	ctx := context.Background()

	first, err := s.MarkProcessed(ctx, "cand1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := s.MarkProcessed(ctx, "cand1")
	require.NoError(t, err)
	assert.False(t, again)

	// Six days later the marker still holds (it lives seven days).
	*clock = clock.Add(6 * 24 * time.Hour)
	again, err = s.MarkProcessed(ctx, "cand1")
	require.NoError(t, err)
	assert.False(t, again)
}

func TestEventRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	missing, err := s.GetEvent(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	event := &store.BrigadeEvent{
		ID:              "p1-t3_abc123",
		TargetPostID:    "t3_abc123",
		SourceCommunity: "ExampleDrama",
		Classification:  store.Adversarial,
		DetectedAt:      time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.PutEvent(ctx, event, EventTTL))

	got, err := s.GetEvent(ctx, "p1-t3_abc123")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, event.SourceCommunity, got.SourceCommunity)
	assert.Equal(t, store.Adversarial, got.Classification)
	assert.Nil(t, got.NotifiedAt)
}

func TestEventExpires(t *testing.T) {
	s, clock := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutEvent(ctx, &store.BrigadeEvent{ID: "e"}, EventTTL))
	*clock = clock.Add(8 * 24 * time.Hour)

	got, err := s.GetEvent(ctx, "e")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRateLimitWindow(t *testing.T) {
	s, clock := newTestStore(t)
	ctx := context.Background()

	bucket := Bucket{Name: "test", MaxRequests: 2, Window: time.Minute}

	allowed, remaining, _, err := s.Allow(ctx, bucket, "c")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 2, remaining)

	require.NoError(t, s.Consume(ctx, bucket, "c"))
	require.NoError(t, s.Consume(ctx, bucket, "c"))

	allowed, remaining, resetIn, err := s.Allow(ctx, bucket, "c")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 0, remaining)
	assert.Greater(t, resetIn, time.Duration(0))

	// A fresh window opens after expiry.
	*clock = clock.Add(2 * time.Minute)
	allowed, _, _, err = s.Allow(ctx, bucket, "c")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRateLimitBucketsIndependent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	bucket := Bucket{Name: "test", MaxRequests: 1, Window: time.Minute}
	require.NoError(t, s.Consume(ctx, bucket, "one"))

	allowed, _, _, err := s.Allow(ctx, bucket, "two")
	require.NoError(t, err)
	assert.True(t, allowed, "ids must have independent windows")
}

func TestLastScanWatermark(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	zero, err := s.LastScan(ctx, "ExampleCity")
	require.NoError(t, err)
	assert.True(t, zero.IsZero())

	mark := time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)
	require.NoError(t, s.SetLastScan(ctx, "ExampleCity", mark))

	got, err := s.LastScan(ctx, "ExampleCity")
	require.NoError(t, err)
	assert.Equal(t, mark.UnixMilli(), got.UnixMilli())
}
