// Package enrichment runs the daily deep-analysis pass over the top
// leaderboard users.
package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/r-seattle-wa/hub-bot-9000/bot/gemini"
	"github.com/r-seattle-wa/hub-bot-9000/bot/leaderboard"
	"github.com/r-seattle-wa/hub-bot-9000/bot/observability"
)

const (
	defaultBatchSize = 5
	staleAfter       = 7 * 24 * time.Hour
)

// Provider generates completions; the gemini client satisfies it.
type Provider interface {
	Generate(ctx context.Context, prompt string, opts gemini.GenerateOptions) (string, error)
}

// profile is the JSON shape the provider is asked to produce.
type profile struct {
	BehavioralProfile string `json:"behavioral_profile"`
	EngagementStyle   string `json:"engagement_style"`
	BehaviorSummary   string `json:"behavior_summary"`
}

// deletedContent is the second analysis: a summary of the user's removed
// content plus the items themselves.
type deletedContent struct {
	Summary        string   `json:"summary"`
	FlaggedContent []string `json:"flagged_content"`
}

// Job selects stale top users and fills their behavioral fields.
type Job struct {
	board     *leaderboard.Actor
	provider  Provider
	batchSize int
	logger    *zap.Logger
	now       func() time.Time
}

func NewJob(board *leaderboard.Actor, provider Provider, logger *zap.Logger) *Job {
	return &Job{
		board:     board,
		provider:  provider,
		batchSize: defaultBatchSize,
		logger:    logger,
		now:       time.Now,
	}
}

// Run enriches up to batchSize non-alt top users whose previous enrichment
// is older than a week. Flagged-content counts feed the score, so the top
// list is recomputed at the end.
func (j *Job) Run(ctx context.Context) {
	if j.provider == nil {
		return
	}

	snapshot, err := j.board.Snapshot(ctx)
	if err != nil {
		j.logger.Warn("enrichment snapshot failed", zap.Error(err))
		return
	}

	targets := j.selectTargets(snapshot)
	if len(targets) == 0 {
		return
	}

	type enriched struct {
		user    string
		profile profile
		deleted deletedContent
	}
	results := make([]*enriched, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(2)
	for i, user := range targets {
		g.Go(func() error {
			p, err := j.fetchProfile(gctx, user)
			if err != nil {
				j.logger.Warn("profile enrichment failed", zap.String("user", user), zap.Error(err))
				return nil
			}
			d, err := j.fetchDeletedContent(gctx, user)
			if err != nil {
				j.logger.Warn("deleted-content analysis failed", zap.String("user", user), zap.Error(err))
				d = deletedContent{}
			}
			results[i] = &enriched{user: user, profile: p, deleted: d}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		j.logger.Warn("enrichment batch aborted", zap.Error(err))
		return
	}

	now := j.now()
	err = j.board.Mutate(ctx, func(b *leaderboard.Board) error {
		for _, r := range results {
			if r == nil {
				continue
			}
			entry := b.Users[b.ResolveUser(r.user)]
			if entry == nil {
				continue
			}
			entry.BehavioralProfile = r.profile.BehavioralProfile
			entry.EngagementStyle = r.profile.EngagementStyle
			entry.BehaviorSummary = r.profile.BehaviorSummary
			if r.deleted.Summary != "" {
				entry.BehaviorSummary = strings.TrimSpace(entry.BehaviorSummary + "\n" + r.deleted.Summary)
			}
			entry.FlaggedContentCount = len(r.deleted.FlaggedContent)
			t := now
			entry.EnrichedAt = &t
			observability.EnrichedUsers.Inc()
		}
		b.RecomputeTops()
		return nil
	})
	if err != nil {
		j.logger.Warn("enrichment write failed", zap.Error(err))
	}
}

// selectTargets returns top non-alt users whose enrichment is stale, in
// top-list order.
func (j *Job) selectTargets(b *leaderboard.Board) []string {
	cutoff := j.now().Add(-staleAfter)
	var targets []string
	for _, name := range b.TopUsers {
		entry := b.Users[name]
		if entry == nil || entry.IsAltOf != "" {
			continue
		}
		if entry.EnrichedAt != nil && entry.EnrichedAt.After(cutoff) {
			continue
		}
		targets = append(targets, name)
		if len(targets) >= j.batchSize {
			break
		}
	}
	return targets
}

func (j *Job) fetchProfile(ctx context.Context, user string) (profile, error) {
	prompt := fmt.Sprintf(
		"Analyze the public posting behavior of reddit user u/%s. "+
			"Reply with a JSON object with keys \"behavioral_profile\", "+
			"\"engagement_style\", \"behavior_summary\". No prose.", user)
	reply, err := j.provider.Generate(ctx, prompt, gemini.GenerateOptions{
		Temperature:     0.3,
		MaxOutputTokens: 1024,
		GroundedSearch:  true,
	})
	observability.GeminiCalls.WithLabelValues("enrichment_profile").Inc()
	if err != nil {
		return profile{}, err
	}
	var p profile
	if err := json.Unmarshal([]byte(gemini.StripFences(reply)), &p); err != nil {
		return profile{}, fmt.Errorf("profile reply did not parse: %w", err)
	}
	return p, nil
}

func (j *Job) fetchDeletedContent(ctx context.Context, user string) (deletedContent, error) {
	prompt := fmt.Sprintf(
		"Summarize removed or deleted public content attributed to reddit user u/%s. "+
			"Reply with a JSON object with keys \"summary\" and \"flagged_content\" "+
			"(an array of short strings). Reply with an empty array if nothing is found. No prose.", user)
	reply, err := j.provider.Generate(ctx, prompt, gemini.GenerateOptions{
		Temperature:     0.2,
		MaxOutputTokens: 1024,
		GroundedSearch:  true,
	})
	observability.GeminiCalls.WithLabelValues("enrichment_deleted").Inc()
	if err != nil {
		return deletedContent{}, err
	}
	var d deletedContent
	if err := json.Unmarshal([]byte(gemini.StripFences(reply)), &d); err != nil {
		return deletedContent{}, fmt.Errorf("deleted-content reply did not parse: %w", err)
	}
	return d, nil
}
