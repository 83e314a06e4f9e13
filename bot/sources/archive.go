package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/r-seattle-wa/hub-bot-9000/bot/hostapi"
	"github.com/r-seattle-wa/hub-bot-9000/bot/store"
)

const archiveSearchLimit = 50

// Archive queries the pullpush-style archive for submissions whose URL
// contains the target community.
type Archive struct {
	client *hostapi.ArchiveClient
}

func NewArchive(client *hostapi.ArchiveClient) *Archive {
	return &Archive{client: client}
}

func (a *Archive) Name() string { return SourceArchive }

func (a *Archive) Discover(ctx context.Context, target string, since time.Time) ([]store.Candidate, error) {
	query := fmt.Sprintf("reddit.com/r/%s", target)

	subs, err := a.client.SearchSubmissions(ctx, query, since, archiveSearchLimit)
	if err != nil {
		return nil, err
	}

	candidates := make([]store.Candidate, 0, len(subs))
	for _, s := range subs {
		candidates = append(candidates, store.Candidate{
			ID:        s.ID,
			Community: s.Subreddit,
			Title:     s.Title,
			Body:      s.SelfText,
			URL:       s.URL,
			Permalink: s.Permalink,
			Author:    s.Author,
			Source:    SourceArchive,
			CreatedAt: time.Unix(int64(s.CreatedUTC), 0).UTC(),
		})
	}
	return candidates, nil
}
