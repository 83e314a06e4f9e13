package analyzer

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/r-seattle-wa/hub-bot-9000/bot/achievements"
	"github.com/r-seattle-wa/hub-bot-9000/bot/hostapi"
	"github.com/r-seattle-wa/hub-bot-9000/bot/idempotency"
	"github.com/r-seattle-wa/hub-bot-9000/bot/leaderboard"
	"github.com/r-seattle-wa/hub-bot-9000/bot/store"
)

type fakeReader struct {
	post     *hostapi.Post
	comments []hostapi.Comment
	err      error
}

func (f *fakeReader) GetPost(ctx context.Context, postID string) (*hostapi.Post, error) {
	return nil, hostapi.ErrNotFound
}

func (f *fakeReader) HotPosts(ctx context.Context, community string, limit int) ([]hostapi.Post, error) {
	return nil, nil
}

func (f *fakeReader) FetchThread(ctx context.Context, url string) (*hostapi.Post, []hostapi.Comment, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.post, f.comments, nil
}

func newTestThread(t *testing.T, reader *fakeReader) (*Thread, *leaderboard.Actor, store.Documents, context.Context) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	kv := store.NewMemoryKV()
	docs := store.NewMemoryDocuments()
	board := leaderboard.NewActor(docs, nil, "ExampleCity", zap.NewNop())
	board.Start(ctx)
	engine := achievements.NewEngine(kv, zap.NewNop())
	points := NewTalkingPoints(kv, zap.NewNop())
	limits := idempotency.NewStore(kv, zap.NewNop())

	thread := NewThread(reader, board, engine, points, limits, docs, "ExampleCity", 24, zap.NewNop())
	return thread, board, docs, ctx
}

func TestParseThreadURL(t *testing.T) {
	community, postID, err := ParseThreadURL("https://reddit.com/r/ExampleDrama/comments/xyz789/some_title/")
	require.NoError(t, err)
	assert.Equal(t, "ExampleDrama", community)
	assert.Equal(t, "xyz789", postID)

	_, _, err = ParseThreadURL("https://example.com/nothing")
	assert.ErrorIs(t, err, ErrInvalidURL)
}

func TestFetchFailureMutatesNothing(t *testing.T) {
	thread, board, _, ctx := newTestThread(t, &fakeReader{err: hostapi.ErrTimeout})

	result, err := thread.AnalyzeAndRecord(ctx, "https://reddit.com/r/Drama/comments/abc/x")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "Could not fetch thread", result.Message)

	snapshot, err := board.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snapshot.Users)
}

func TestAnalyzeRanksAndRecords(t *testing.T) {
	reader := &fakeReader{
		post: &hostapi.Post{ID: "abc", Author: "opUser", Title: "ExampleCity bad", Score: 300},
		comments: []hostapi.Comment{
			{Author: "opUser", Body: "ExampleCity is an echo chamber", Score: 120, Permalink: "/c/1"},
			{Author: "bigScorer", Body: "totally unrelated joke", Score: 200, Permalink: "/c/2"},
			{Author: "bigScorer", Body: "r/ExampleCity deserves this", Score: 60, Permalink: "/c/3"},
			{Author: "smallFry", Body: "ExampleCity lol", Score: 5, Permalink: "/c/4"},
			{Author: "AutoModerator", Body: "I am a bot", Score: 500},
			{Author: "[deleted]", Body: "gone", Score: 90},
		},
	}
	thread, board, _, ctx := newTestThread(t, reader)

	result, err := thread.AnalyzeAndRecord(ctx, "https://reddit.com/r/ExampleDrama/comments/abc/x")
	require.NoError(t, err)
	require.True(t, result.Success)
	require.NotNil(t, result.Analysis)

	// smallFry scored below the floor, automod and deleted are excluded.
	require.Len(t, result.Analysis.Haters, 2)

	// opUser: score 120 -> 3 points, +2 as post author = 5.
	top := result.Analysis.Haters[0]
	assert.Equal(t, "opUser", top.Username)
	assert.Equal(t, 5, top.Points)
	assert.True(t, top.IsPostAuthor)

	// bigScorer's mentioning comment (60) beats the higher-scored
	// non-mentioning one: 2 points.
	second := result.Analysis.Haters[1]
	assert.Equal(t, "bigScorer", second.Username)
	assert.Equal(t, 2, second.Points)
	assert.Equal(t, 60, second.BestScore)

	// Both landed on the leaderboard under the source community.
	snapshot, err := board.Snapshot(ctx)
	require.NoError(t, err)
	assert.NotNil(t, snapshot.Users["opuser"])
	assert.NotNil(t, snapshot.Users["bigscorer"])
	assert.NotNil(t, snapshot.Communities["exampledrama"])

	entry := snapshot.Users["bigscorer"]
	assert.Contains(t, entry.HomeCommunities, "exampledrama")
	assert.Equal(t, "r/ExampleCity deserves this", entry.FeaturedQuote)
	assert.Equal(t, 60, entry.FeaturedQuoteScore)
}

func TestAnalysesRingAppendedAndBounded(t *testing.T) {
	reader := &fakeReader{
		post: &hostapi.Post{ID: "abc", Author: "a", Title: "t", Score: 1},
		comments: []hostapi.Comment{
			{Author: "userX", Body: "ExampleCity stuff", Score: 40, Permalink: "/c/1"},
		},
	}
	thread, _, docs, ctx := newTestThread(t, reader)

	for i := 0; i < 55; i++ {
		_, err := thread.AnalyzeAndRecord(ctx, fmt.Sprintf("https://reddit.com/r/Drama/comments/p%d/x", i))
		require.NoError(t, err)
	}

	var doc analysesDocument
	found, err := docs.Load(ctx, store.PageAnalyses, &doc)
	require.NoError(t, err)
	require.True(t, found)
	assert.Len(t, doc.Analyses, maxAnalyses)
}

func TestFlattenLimits(t *testing.T) {
	// Build a chain deeper than the depth cap.
	deep := hostapi.Comment{Author: "u0", Body: "b", Score: 1}
	node := &deep
	for i := 1; i < 15; i++ {
		child := hostapi.Comment{Author: fmt.Sprintf("u%d", i), Body: "b", Score: 1}
		node.Replies = []hostapi.Comment{child}
		node = &node.Replies[0]
	}

	flat := flatten([]hostapi.Comment{deep})
	assert.Len(t, flat, maxDepth+1)

	// Width cap.
	var wide []hostapi.Comment
	for i := 0; i < 600; i++ {
		wide = append(wide, hostapi.Comment{Author: fmt.Sprintf("w%d", i), Body: "b", Score: 1})
	}
	assert.Len(t, flatten(wide), maxComments)
}

func TestCleanQuote(t *testing.T) {
	body := "> quoted line\nactual   reply\n\n&gt; another quote\nwith  spaces"
	assert.Equal(t, "actual reply with spaces", cleanQuote(body))

	long := strings.Repeat("a ", 300)
	assert.LessOrEqual(t, len(cleanQuote(long)), quoteLimit)
}

func TestTalkingPointsDetection(t *testing.T) {
	kv := store.NewMemoryKV()
	tp := NewTalkingPoints(kv, zap.NewNop())
	ctx := context.Background()

	used, repeated := tp.Detect(ctx, "userA", "that place is a total echo chamber")
	assert.Equal(t, []string{"echo_chamber"}, used)
	assert.Empty(t, repeated)

	used, repeated = tp.Detect(ctx, "userA", "echo chamber again, touch grass")
	assert.Contains(t, used, "echo_chamber")
	assert.Contains(t, used, "touch_grass")
	assert.Equal(t, []string{"echo_chamber"}, repeated)

	all := tp.AllUsed(ctx, "userA")
	assert.ElementsMatch(t, []string{"echo_chamber", "touch_grass"}, all)
}

func TestTalkingPointsExamplesBounded(t *testing.T) {
	kv := store.NewMemoryKV()
	tp := NewTalkingPoints(kv, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		tp.Detect(ctx, "userB", "echo chamber take number "+fmt.Sprint(i))
	}

	val, ok, err := kv.Get(ctx, store.TalkingPointsKey("userb"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.LessOrEqual(t, strings.Count(val, "echo chamber take"), maxExamples)
}

func TestAchievementGrantsRecordedOnEntry(t *testing.T) {
	comments := make([]hostapi.Comment, 0, 1)
	comments = append(comments, hostapi.Comment{
		Author: "firstTimer", Body: "ExampleCity is a hellhole", Score: 150, Permalink: "/c/9",
	})
	reader := &fakeReader{
		post:     &hostapi.Post{ID: "abc", Author: "other", Title: "t", Score: 10},
		comments: comments,
	}
	thread, board, _, ctx := newTestThread(t, reader)

	result, err := thread.AnalyzeAndRecord(ctx, "https://reddit.com/r/Drama/comments/abc/x")
	require.NoError(t, err)
	require.True(t, result.Success)

	// A brand-new user qualifies for the first-offense achievement.
	require.NotEmpty(t, result.Achievements)

	snapshot, err := board.Snapshot(ctx)
	require.NoError(t, err)
	entry := snapshot.Users["firsttimer"]
	require.NotNil(t, entry)
	assert.NotEmpty(t, entry.UnlockedAchievements)
	assert.Greater(t, entry.AchievementXP, 0)
	assert.NotEmpty(t, entry.HighestTier)
}
