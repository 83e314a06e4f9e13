package hostapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSearchSubmissions(t *testing.T) {
	var gotPath, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"id":"p1","author":"userA","title":"look at these idiots","url":"https://reddit.com/r/ExampleCity/comments/abc123/x","permalink":"/r/ExampleDrama/comments/p1/y","created_utc":1748000000,"subreddit":"ExampleDrama"}]}`))
	}))
	defer server.Close()

	client := NewArchiveClient(server.URL, zap.NewNop())
	subs, err := client.SearchSubmissions(context.Background(), "reddit.com/r/ExampleCity", time.Unix(1747000000, 0), 50)
	require.NoError(t, err)
	require.Len(t, subs, 1)

	assert.Equal(t, "/reddit/search/submission/", gotPath)
	assert.Equal(t, "reddit.com/r/ExampleCity", gotQuery)
	assert.Equal(t, "p1", subs[0].ID)
	assert.Equal(t, "ExampleDrama", subs[0].Subreddit)
}

func TestCountDeletedComments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reddit/search/comment/", r.URL.Path)
		assert.Equal(t, "t3_abc123", r.URL.Query().Get("link_id"))
		w.Write([]byte(`{"data":[
			{"id":"c1","body":"[removed]"},
			{"id":"c2","body":"still here"},
			{"id":"c3","body":"[deleted]"},
			{"id":"c4","body":" [removed] "}
		]}`))
	}))
	defer server.Close()

	client := NewArchiveClient(server.URL, zap.NewNop())
	count, err := client.CountDeletedComments(context.Background(), "t3_abc123", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestArchiveErrorKinds(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   error
	}{
		{"rate limited", http.StatusTooManyRequests, ErrRateLimited},
		{"server error", http.StatusBadGateway, ErrUnavailable},
		{"client error", http.StatusBadRequest, ErrParse},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer server.Close()

			client := NewArchiveClient(server.URL, zap.NewNop())
			_, err := client.SearchSubmissions(context.Background(), "q", time.Time{}, 10)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestArchiveBadJSONIsParseError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	client := NewArchiveClient(server.URL, zap.NewNop())
	_, err := client.SearchSubmissions(context.Background(), "q", time.Time{}, 10)
	assert.ErrorIs(t, err, ErrParse)
}

func TestWikiDocumentsAdapter(t *testing.T) {
	wiki := &memoryWiki{pages: map[string]string{}}
	docs := NewWikiDocuments(wiki)
	ctx := context.Background()

	type doc struct {
		N int `json:"n"`
	}
	found, err := docs.Load(ctx, "missing", &doc{})
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, docs.Save(ctx, "page", &doc{N: 7}))
	var out doc
	found, err = docs.Load(ctx, "page", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 7, out.N)
}

type memoryWiki struct {
	pages map[string]string
}

func (m *memoryWiki) WikiRead(ctx context.Context, page string) (string, error) {
	content, ok := m.pages[page]
	if !ok {
		return "", ErrNotFound
	}
	return content, nil
}

func (m *memoryWiki) WikiWrite(ctx context.Context, page string, content string) error {
	m.pages[page] = content
	return nil
}
