package classify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/r-seattle-wa/hub-bot-9000/bot/gemini"
	"github.com/r-seattle-wa/hub-bot-9000/bot/hostapi"
	"github.com/r-seattle-wa/hub-bot-9000/bot/idempotency"
	"github.com/r-seattle-wa/hub-bot-9000/bot/store"
)

type fakeProvider struct {
	reply string
	err   error
	calls int
}

func (f *fakeProvider) Generate(ctx context.Context, prompt string, opts gemini.GenerateOptions) (string, error) {
	f.calls++
	return f.reply, f.err
}

func newToneClassifier(t *testing.T, provider Provider) (*Tone, *store.MemoryKV) {
	t.Helper()
	kv := store.NewMemoryKV()
	limits := idempotency.NewStore(kv, zap.NewNop())
	return NewTone(kv, provider, limits, "ExampleCity", zap.NewNop()), kv
}

func TestNoProviderReturnsNeutralWithoutCall(t *testing.T) {
	tone, _ := newToneClassifier(t, nil)
	c := tone.Classify(context.Background(), "any title", "")
	assert.Equal(t, store.Neutral, c)
}

func TestProviderReplyParsed(t *testing.T) {
	provider := &fakeProvider{reply: "adversarial"}
	tone, _ := newToneClassifier(t, provider)

	c := tone.Classify(context.Background(), "look at these idiots", "")
	assert.Equal(t, store.Adversarial, c)
	assert.Equal(t, 1, provider.calls)
}

func TestClassificationCached(t *testing.T) {
	provider := &fakeProvider{reply: "hateful"}
	tone, _ := newToneClassifier(t, provider)
	ctx := context.Background()

	first := tone.Classify(ctx, "same title", "")
	second := tone.Classify(ctx, "same title", "")
	assert.Equal(t, store.Hateful, first)
	assert.Equal(t, store.Hateful, second)
	assert.Equal(t, 1, provider.calls, "second call must come from cache")

	// A different title misses the cache.
	tone.Classify(ctx, "different title", "")
	assert.Equal(t, 2, provider.calls)
}

func TestFencedReplyParsed(t *testing.T) {
	provider := &fakeProvider{reply: "```\nadversarial\n```"}
	tone, _ := newToneClassifier(t, provider)
	c := tone.Classify(context.Background(), "t", "")
	assert.Equal(t, store.Adversarial, c)
}

func TestUnparseableReplyDefaultsNeutral(t *testing.T) {
	provider := &fakeProvider{reply: "I would say this is rather mean-spirited overall"}
	tone, _ := newToneClassifier(t, provider)
	c := tone.Classify(context.Background(), "t", "")
	assert.Equal(t, store.Neutral, c)
}

func TestProviderErrorDefaultsNeutral(t *testing.T) {
	provider := &fakeProvider{err: assert.AnError}
	tone, _ := newToneClassifier(t, provider)
	c := tone.Classify(context.Background(), "t", "")
	assert.Equal(t, store.Neutral, c)
}

func TestRateLimitShortCircuits(t *testing.T) {
	provider := &fakeProvider{reply: "hateful"}
	kv := store.NewMemoryKV()
	limits := idempotency.NewStore(kv, zap.NewNop())
	tone := NewTone(kv, provider, limits, "ExampleCity", zap.NewNop())
	ctx := context.Background()

	// Exhaust the gemini bucket up front.
	for i := 0; i < idempotency.SubGemini.MaxRequests; i++ {
		require.NoError(t, limits.Consume(ctx, idempotency.SubGemini, "ExampleCity"))
	}

	c := tone.Classify(ctx, "fresh title", "")
	assert.Equal(t, store.Neutral, c)
	assert.Equal(t, 0, provider.calls, "exhausted bucket must not reach the provider")
}

func TestCommunityListsOverrideProvider(t *testing.T) {
	provider := &fakeProvider{reply: "neutral"}
	kv := store.NewMemoryKV()
	limits := idempotency.NewStore(kv, zap.NewNop())
	com := NewCommunity(kv, provider, limits, stubReader{}, "ExampleCity",
		[]string{"FriendlyTown"}, []string{"HateHole"}, zap.NewNop())
	ctx := context.Background()

	assert.Equal(t, store.Friendly, com.Classify(ctx, "friendlytown"))
	assert.Equal(t, store.Hateful, com.Classify(ctx, "HATEHOLE"))
	assert.Equal(t, 0, provider.calls)
}

func TestCommunityClassifierCaches(t *testing.T) {
	provider := &fakeProvider{reply: "adversarial"}
	kv := store.NewMemoryKV()
	limits := idempotency.NewStore(kv, zap.NewNop())
	com := NewCommunity(kv, provider, limits, stubReader{}, "ExampleCity", nil, nil, zap.NewNop())
	ctx := context.Background()

	assert.Equal(t, store.Adversarial, com.Classify(ctx, "SomeDrama"))
	assert.Equal(t, store.Adversarial, com.Classify(ctx, "somedrama"))
	assert.Equal(t, 1, provider.calls)
}

type stubReader struct{}

func (stubReader) GetPost(ctx context.Context, postID string) (*hostapi.Post, error) {
	return nil, hostapi.ErrNotFound
}

func (stubReader) HotPosts(ctx context.Context, community string, limit int) ([]hostapi.Post, error) {
	return []hostapi.Post{{Title: "why that place is terrible"}}, nil
}

func (stubReader) FetchThread(ctx context.Context, url string) (*hostapi.Post, []hostapi.Comment, error) {
	return nil, nil, hostapi.ErrNotFound
}
