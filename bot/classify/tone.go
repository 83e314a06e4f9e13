// Package classify maps posts and communities to a tone classification.
package classify

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/r-seattle-wa/hub-bot-9000/bot/gemini"
	"github.com/r-seattle-wa/hub-bot-9000/bot/idempotency"
	"github.com/r-seattle-wa/hub-bot-9000/bot/observability"
	"github.com/r-seattle-wa/hub-bot-9000/bot/store"
)

const cacheTTL = 7 * 24 * time.Hour

// Provider generates a completion for a prompt. The gemini client satisfies
// this; a nil provider disables AI classification entirely.
type Provider interface {
	Generate(ctx context.Context, prompt string, opts gemini.GenerateOptions) (string, error)
}

// Limiter is the rate-limit surface the classifier needs.
type Limiter interface {
	Allow(ctx context.Context, bucket idempotency.Bucket, id string) (bool, int, time.Duration, error)
	Consume(ctx context.Context, bucket idempotency.Bucket, id string) error
}

// Tone classifies a single post's tone toward the protected community.
// Pure over (title, body) plus provider config; results are cached for seven
// days so repeated sightings of the same post cost nothing.
type Tone struct {
	kv       store.KV
	provider Provider
	limits   Limiter
	target   string
	logger   *zap.Logger
}

func NewTone(kv store.KV, provider Provider, limits Limiter, targetCommunity string, logger *zap.Logger) *Tone {
	return &Tone{
		kv:       kv,
		provider: provider,
		limits:   limits,
		target:   targetCommunity,
		logger:   logger,
	}
}

// Classify returns the tone of a post. With no provider configured it
// returns Neutral without any outbound call. Provider errors, parse failures
// and exhausted rate limits all collapse to Neutral.
func (t *Tone) Classify(ctx context.Context, title string, body string) store.Classification {
	if t.provider == nil {
		observability.Classifications.WithLabelValues(store.Neutral.String(), "default").Inc()
		return store.Neutral
	}

	key := postCacheKey(title, body)
	if val, ok, err := t.kv.Get(ctx, key); err == nil && ok {
		if c, parsed := store.ParseClassification(val); parsed {
			observability.Classifications.WithLabelValues(c.String(), "cache").Inc()
			return c
		}
	}

	allowed, _, _, err := t.limits.Allow(ctx, idempotency.SubGemini, t.target)
	if err != nil || !allowed {
		observability.Classifications.WithLabelValues(store.Neutral.String(), "default").Inc()
		return store.Neutral
	}

	prompt := t.buildPrompt(title, body)
	reply, err := t.provider.Generate(ctx, prompt, gemini.GenerateOptions{
		Temperature:     0.1,
		MaxOutputTokens: 8,
	})
	observability.GeminiCalls.WithLabelValues("tone").Inc()
	if consumeErr := t.limits.Consume(ctx, idempotency.SubGemini, t.target); consumeErr != nil {
		t.logger.Warn("failed to consume gemini bucket", zap.Error(consumeErr))
	}
	if err != nil {
		t.logger.Warn("tone classification failed", zap.Error(err))
		observability.Classifications.WithLabelValues(store.Neutral.String(), "default").Inc()
		return store.Neutral
	}

	c, ok := parseReply(reply)
	if !ok {
		t.logger.Warn("unparseable tone reply", zap.String("reply", truncate(reply, 60)))
		observability.Classifications.WithLabelValues(store.Neutral.String(), "default").Inc()
		return store.Neutral
	}

	if err := t.kv.Set(ctx, key, c.String(), cacheTTL); err != nil {
		t.logger.Warn("failed to cache classification", zap.Error(err))
	}
	observability.Classifications.WithLabelValues(c.String(), "provider").Inc()
	return c
}

func (t *Tone) buildPrompt(title string, body string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A post in another community links to r/%s.\n", t.target)
	fmt.Fprintf(&b, "Title: %s\n", title)
	if body != "" {
		fmt.Fprintf(&b, "Body: %s\n", truncate(body, 500))
	}
	b.WriteString("Classify the tone toward the linked community. ")
	b.WriteString("Reply with exactly one word: friendly, neutral, adversarial, or hateful.")
	return b.String()
}

func parseReply(reply string) (store.Classification, bool) {
	reply = gemini.StripFences(reply)
	reply = strings.ToLower(strings.TrimSpace(reply))
	if idx := strings.IndexAny(reply, " \t\n.,!"); idx > 0 {
		reply = reply[:idx]
	}
	return store.ParseClassification(reply)
}

func postCacheKey(title string, body string) string {
	h := fnv.New64a()
	h.Write([]byte(title))
	h.Write([]byte("||"))
	h.Write([]byte(body))
	return fmt.Sprintf("classification:post:%x", h.Sum64())
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
