package sources

import (
	"context"
	"strings"
	"time"

	"github.com/r-seattle-wa/hub-bot-9000/bot/hostapi"
	"github.com/r-seattle-wa/hub-bot-9000/bot/store"
)

const nativeSearchLimit = 25

// Native searches the host platform itself for posts mentioning the target
// community's URL token. When a curated drama set is configured the search
// is restricted to those communities; otherwise it runs platform-wide.
type Native struct {
	searcher hostapi.Searcher
	dramaSet []string
}

func NewNative(searcher hostapi.Searcher, dramaSet []string) *Native {
	return &Native{searcher: searcher, dramaSet: dramaSet}
}

func (n *Native) Name() string { return SourceNative }

func (n *Native) Discover(ctx context.Context, target string, since time.Time) ([]store.Candidate, error) {
	query := "r/" + target

	communities := n.dramaSet
	if len(communities) == 0 {
		// Empty community means a platform-wide search.
		communities = []string{""}
	}

	var candidates []store.Candidate
	for _, community := range communities {
		posts, err := n.searcher.Search(ctx, community, query, nativeSearchLimit)
		if err != nil {
			return nil, err
		}
		for _, p := range posts {
			if p.CreatedAt.Before(since) {
				continue
			}
			// The search matches titles too; only keep actual links.
			if !strings.Contains(strings.ToLower(p.URL), strings.ToLower("/r/"+target)) &&
				!strings.Contains(strings.ToLower(p.SelfText), strings.ToLower("r/"+target)) {
				continue
			}
			candidates = append(candidates, store.Candidate{
				ID:        p.ID,
				Community: p.Community,
				Title:     p.Title,
				Body:      p.SelfText,
				URL:       p.URL,
				Permalink: p.Permalink,
				Author:    p.Author,
				Source:    SourceNative,
				CreatedAt: p.CreatedAt,
			})
		}
	}
	return candidates, nil
}
