package sources

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/r-seattle-wa/hub-bot-9000/bot/gemini"
	"github.com/r-seattle-wa/hub-bot-9000/bot/hostapi"
	"github.com/r-seattle-wa/hub-bot-9000/bot/store"
)

type stubStrategy struct {
	name       string
	candidates []store.Candidate
	err        error
	calls      int
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Discover(ctx context.Context, target string, since time.Time) ([]store.Candidate, error) {
	s.calls++
	return s.candidates, s.err
}

func TestChainFirstNonEmptyWins(t *testing.T) {
	first := &stubStrategy{name: "native", candidates: []store.Candidate{{ID: "a"}}}
	second := &stubStrategy{name: "archive", candidates: []store.Candidate{{ID: "b"}}}
	chain := NewChain(zap.NewNop(), first, second)

	got := chain.Discover(context.Background(), "ExampleCity", time.Time{})
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, 0, second.calls, "chain must not merge sources")
}

func TestChainAdvancesOnEmptyAndFailure(t *testing.T) {
	empty := &stubStrategy{name: "native"}
	failing := &stubStrategy{name: "archive", err: hostapi.ErrTimeout}
	last := &stubStrategy{name: "ai", candidates: []store.Candidate{{ID: "c"}}}
	chain := NewChain(zap.NewNop(), empty, failing, last)

	got := chain.Discover(context.Background(), "ExampleCity", time.Time{})
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].ID)
}

func TestChainTotalFailureIsEmptyNotError(t *testing.T) {
	chain := NewChain(zap.NewNop(),
		&stubStrategy{name: "native", err: hostapi.ErrUnavailable},
		&stubStrategy{name: "archive", err: hostapi.ErrRateLimited})

	got := chain.Discover(context.Background(), "ExampleCity", time.Time{})
	assert.Empty(t, got)
}

type stubProvider struct {
	reply string
	err   error
}

func (s *stubProvider) Generate(ctx context.Context, prompt string, opts gemini.GenerateOptions) (string, error) {
	return s.reply, s.err
}

func TestAISearchSynthesizesCandidates(t *testing.T) {
	provider := &stubProvider{reply: "```json\n[{\"community\":\"ExampleDrama\",\"title\":\"lol\",\"url\":\"https://reddit.com/r/ExampleCity/comments/abc123/x\"}]\n```"}
	ai := NewAISearch(provider)

	got, err := ai.Discover(context.Background(), "ExampleCity", time.Time{})
	require.NoError(t, err)
	require.Len(t, got, 1)

	c := got[0]
	assert.Equal(t, SourceAI, c.Source)
	assert.Equal(t, "unknown", c.Author)
	assert.Equal(t, c.URL, c.Permalink)
	assert.Regexp(t, `^gem_\d+_`, c.ID)
}

func TestAISearchDropsSelfAndBadEntries(t *testing.T) {
	provider := &stubProvider{reply: `[{"community":"ExampleCity","title":"self","url":"u"},{"community":"Other","title":"no url","url":""}]`}
	ai := NewAISearch(provider)

	got, err := ai.Discover(context.Background(), "ExampleCity", time.Time{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAISearchNonJSONIsError(t *testing.T) {
	ai := NewAISearch(&stubProvider{reply: "I could not find anything, sorry."})
	_, err := ai.Discover(context.Background(), "ExampleCity", time.Time{})
	assert.Error(t, err)
}

type stubSearcher struct {
	posts []hostapi.Post
}

func (s *stubSearcher) Search(ctx context.Context, community string, query string, limit int) ([]hostapi.Post, error) {
	return s.posts, nil
}

func TestNativeFiltersByLinkAndAge(t *testing.T) {
	now := time.Now()
	searcher := &stubSearcher{posts: []hostapi.Post{
		{ID: "old", URL: "https://reddit.com/r/ExampleCity/comments/a/x", CreatedAt: now.Add(-48 * time.Hour)},
		{ID: "linked", Community: "Drama", URL: "https://reddit.com/r/ExampleCity/comments/b/x", CreatedAt: now},
		{ID: "unrelated", URL: "https://example.com", CreatedAt: now},
	}}
	native := NewNative(searcher, nil)

	got, err := native.Discover(context.Background(), "ExampleCity", now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "linked", got[0].ID)
	assert.Equal(t, SourceNative, got[0].Source)
}
