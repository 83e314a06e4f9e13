package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryKVTTL(t *testing.T) {
	kv := NewMemoryKV()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	kv.SetClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "k", "v", time.Hour))

	val, ok, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", val)

	ttl, err := kv.TTL(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, ttl)

	now = now.Add(2 * time.Hour)
	_, ok, err = kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryKVSetNX(t *testing.T) {
	kv := NewMemoryKV()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	kv.SetClock(func() time.Time { return now })
	ctx := context.Background()

	first, err := kv.SetNX(ctx, "marker", "1", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := kv.SetNX(ctx, "marker", "1", time.Hour)
	require.NoError(t, err)
	assert.False(t, second)

	// After expiry the marker can be taken again.
	now = now.Add(2 * time.Hour)
	third, err := kv.SetNX(ctx, "marker", "1", time.Hour)
	require.NoError(t, err)
	assert.True(t, third)
}

func TestMemoryKVIncrKeepsWindow(t *testing.T) {
	kv := NewMemoryKV()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	kv.SetClock(func() time.Time { return now })
	ctx := context.Background()

	n, err := kv.Incr(ctx, "counter", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// The second increment must not extend the window.
	now = now.Add(30 * time.Second)
	n, err = kv.Incr(ctx, "counter", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	now = now.Add(31 * time.Second)
	n, err = kv.Incr(ctx, "counter", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "counter should reset after its original window")
}

func TestMemoryDocumentsRoundTrip(t *testing.T) {
	docs := NewMemoryDocuments()
	ctx := context.Background()

	type doc struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	found, err := docs.Load(ctx, "missing", &doc{})
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, docs.Save(ctx, "page", &doc{Name: "x", Count: 3}))

	var out doc
	found, err = docs.Load(ctx, "page", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, doc{Name: "x", Count: 3}, out)
}

func TestClassificationOrderingAndJSON(t *testing.T) {
	assert.True(t, Friendly < Neutral && Neutral < Adversarial && Adversarial < Hateful)

	c, ok := ParseClassification("hateful")
	assert.True(t, ok)
	assert.Equal(t, Hateful, c)

	_, ok = ParseClassification("sarcastic")
	assert.False(t, ok)

	data, err := Hateful.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"hateful"`, string(data))

	var parsed Classification
	require.NoError(t, parsed.UnmarshalJSON([]byte(`"adversarial"`)))
	assert.Equal(t, Adversarial, parsed)
}
