package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/r-seattle-wa/hub-bot-9000/bot/gemini"
	"github.com/r-seattle-wa/hub-bot-9000/bot/store"
)

// Provider generates a grounded completion. The gemini client satisfies it.
type Provider interface {
	Generate(ctx context.Context, prompt string, opts gemini.GenerateOptions) (string, error)
}

// AISearch is the last-resort strategy: a grounded web search through the AI
// provider. IDs are synthesized and the author is unknown, so downstream
// consumers treat these candidates as informational only.
type AISearch struct {
	provider Provider
	now      func() time.Time
}

func NewAISearch(provider Provider) *AISearch {
	return &AISearch{provider: provider, now: time.Now}
}

func (g *AISearch) Name() string { return SourceAI }

type aiResult struct {
	Community string `json:"community"`
	Title     string `json:"title"`
	URL       string `json:"url"`
}

func (g *AISearch) Discover(ctx context.Context, target string, since time.Time) ([]store.Candidate, error) {
	prompt := fmt.Sprintf(
		"Search the web for recent posts in reddit communities other than r/%s that link to reddit.com/r/%s. "+
			"Reply with a JSON array of objects with keys \"community\", \"title\", \"url\". "+
			"Reply with [] if you find none. No prose.",
		target, target)

	reply, err := g.provider.Generate(ctx, prompt, gemini.GenerateOptions{
		Temperature:     0.2,
		MaxOutputTokens: 2048,
		GroundedSearch:  true,
	})
	if err != nil {
		return nil, err
	}

	var results []aiResult
	if err := json.Unmarshal([]byte(gemini.StripFences(reply)), &results); err != nil {
		return nil, fmt.Errorf("ai search reply did not parse: %w", err)
	}

	now := g.now()
	candidates := make([]store.Candidate, 0, len(results))
	for _, r := range results {
		if r.URL == "" || strings.EqualFold(r.Community, target) {
			continue
		}
		id := fmt.Sprintf("gem_%d_%s", now.Unix(), uuid.NewString()[:8])
		candidates = append(candidates, store.Candidate{
			ID:        id,
			Community: r.Community,
			Title:     r.Title,
			URL:       r.URL,
			Permalink: r.URL,
			Author:    "unknown",
			Source:    SourceAI,
			CreatedAt: now,
		})
	}
	return candidates, nil
}
