package classify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/r-seattle-wa/hub-bot-9000/bot/gemini"
	"github.com/r-seattle-wa/hub-bot-9000/bot/hostapi"
	"github.com/r-seattle-wa/hub-bot-9000/bot/idempotency"
	"github.com/r-seattle-wa/hub-bot-9000/bot/store"
)

// Community classifies a whole community's posture toward the protected one,
// enriched with its hot-post titles. Mod-curated allow/block lists override
// all AI output.
type Community struct {
	kv       store.KV
	provider Provider
	limits   Limiter
	reader   hostapi.Reader
	target   string
	logger   *zap.Logger

	allow map[string]struct{}
	block map[string]struct{}
}

func NewCommunity(kv store.KV, provider Provider, limits Limiter, reader hostapi.Reader, targetCommunity string, allow []string, block []string, logger *zap.Logger) *Community {
	c := &Community{
		kv:       kv,
		provider: provider,
		limits:   limits,
		reader:   reader,
		target:   targetCommunity,
		logger:   logger,
		allow:    make(map[string]struct{}, len(allow)),
		block:    make(map[string]struct{}, len(block)),
	}
	for _, name := range allow {
		c.allow[strings.ToLower(name)] = struct{}{}
	}
	for _, name := range block {
		c.block[strings.ToLower(name)] = struct{}{}
	}
	return c
}

// Classify returns the community's tone. The curated lists win over both the
// cache and the provider.
func (c *Community) Classify(ctx context.Context, community string) store.Classification {
	name := strings.ToLower(community)
	if _, ok := c.allow[name]; ok {
		return store.Friendly
	}
	if _, ok := c.block[name]; ok {
		return store.Hateful
	}

	if c.provider == nil {
		return store.Neutral
	}

	key := store.ClassificationKey(name)
	if val, ok, err := c.kv.Get(ctx, key); err == nil && ok {
		if parsed, pok := store.ParseClassification(val); pok {
			return parsed
		}
	}

	allowed, _, _, err := c.limits.Allow(ctx, idempotency.SubGemini, c.target)
	if err != nil || !allowed {
		return store.Neutral
	}

	titles := c.hotTitles(ctx, community)
	reply, err := c.provider.Generate(ctx, c.buildPrompt(community, titles), gemini.GenerateOptions{
		Temperature:     0.1,
		MaxOutputTokens: 8,
	})
	if consumeErr := c.limits.Consume(ctx, idempotency.SubGemini, c.target); consumeErr != nil {
		c.logger.Warn("failed to consume gemini bucket", zap.Error(consumeErr))
	}
	if err != nil {
		c.logger.Warn("community classification failed",
			zap.String("community", community), zap.Error(err))
		return store.Neutral
	}

	parsed, ok := parseReply(reply)
	if !ok {
		return store.Neutral
	}
	if err := c.kv.Set(ctx, key, parsed.String(), cacheTTL); err != nil {
		c.logger.Warn("failed to cache community classification", zap.Error(err))
	}
	return parsed
}

func (c *Community) hotTitles(ctx context.Context, community string) []string {
	posts, err := c.reader.HotPosts(ctx, community, 10)
	if err != nil {
		c.logger.Debug("hot posts unavailable",
			zap.String("community", community), zap.Error(err))
		return nil
	}
	titles := make([]string, 0, len(posts))
	for _, p := range posts {
		titles = append(titles, p.Title)
	}
	return titles
}

func (c *Community) buildPrompt(community string, titles []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Community r/%s regularly links to r/%s.\n", community, c.target)
	if len(titles) > 0 {
		b.WriteString("Recent hot post titles:\n")
		for _, title := range titles {
			fmt.Fprintf(&b, "- %s\n", truncate(title, 120))
		}
	}
	b.WriteString("Classify the community's overall posture toward the linked community. ")
	b.WriteString("Reply with exactly one word: friendly, neutral, adversarial, or hateful.")
	return b.String()
}
