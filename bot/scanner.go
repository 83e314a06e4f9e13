package main

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/r-seattle-wa/hub-bot-9000/bot/achievements"
	"github.com/r-seattle-wa/hub-bot-9000/bot/analyzer"
	"github.com/r-seattle-wa/hub-bot-9000/bot/idempotency"
	"github.com/r-seattle-wa/hub-bot-9000/bot/observability"
	"github.com/r-seattle-wa/hub-bot-9000/bot/sources"
	"github.com/r-seattle-wa/hub-bot-9000/bot/store"
)

const achievementCommentLag = 30 * time.Second

// Scanner runs the periodic discovery tick: find cross-link candidates,
// classify them, persist brigade events and schedule notifications.
type Scanner struct {
	app       *App
	targetRe  *regexp.Regexp
	now       func() time.Time
}

func NewScanner(app *App) *Scanner {
	// Anchored on the protected community's URL segment so links to other
	// communities never parse.
	pattern := `(?i)/r/` + regexp.QuoteMeta(app.Settings.Community) + `/comments/([a-z0-9]+)`
	return &Scanner{
		app:      app,
		targetRe: regexp.MustCompile(pattern),
		now:      time.Now,
	}
}

// Tick runs one scan. Errors never escape; a failed tick is retried by the
// next cron firing.
func (s *Scanner) Tick(ctx context.Context) {
	cfg := s.app.Settings
	community := cfg.Community

	allowed, _, _, err := s.app.Idem.Allow(ctx, idempotency.SubPullpush, community)
	if err != nil {
		observability.ScanTicks.WithLabelValues("error").Inc()
		s.app.Logger.Warn("scan rate check failed", zap.Error(err))
		return
	}
	if !allowed {
		observability.ScanTicks.WithLabelValues("rate_limited").Inc()
		return
	}

	tickStart := s.now()
	since, err := s.app.Idem.LastScan(ctx, community)
	if err != nil {
		s.app.Logger.Warn("last scan read failed", zap.Error(err))
	}
	if since.IsZero() {
		since = tickStart.Add(-24 * time.Hour)
	}

	candidates := s.app.Chain.Discover(ctx, community, since)
	for _, cand := range candidates {
		s.process(ctx, cand)
	}

	if err := s.app.Idem.Consume(ctx, idempotency.SubPullpush, community); err != nil {
		s.app.Logger.Warn("pullpush consume failed", zap.Error(err))
	}
	if err := s.app.Idem.SetLastScan(ctx, community, tickStart); err != nil {
		s.app.Logger.Warn("last scan write failed", zap.Error(err))
	}
	observability.ScanTicks.WithLabelValues("completed").Inc()
}

func (s *Scanner) process(ctx context.Context, cand store.Candidate) {
	cfg := s.app.Settings
	logger := s.app.Logger.With(zap.String("candidate", cand.ID), zap.String("source", cand.Source))

	// Self-links are the community talking about itself.
	if strings.EqualFold(cand.Community, cfg.Community) {
		return
	}

	first, err := s.app.Idem.MarkProcessed(ctx, cand.ID)
	if err != nil {
		logger.Warn("processed marker failed", zap.Error(err))
		return
	}
	if !first {
		return
	}

	targetPostID, ok := s.parseTargetPost(cand.URL)
	if !ok {
		targetPostID, ok = s.parseTargetPost(cand.Body)
	}
	if !ok {
		logger.Debug("candidate url does not resolve to a target post",
			zap.String("url", cand.URL))
		return
	}

	tone := s.app.Tone.Classify(ctx, cand.Title, cand.Body)

	// A community the mods vouch for (or the classifier reads as friendly)
	// still gets a notice, but never feeds the leaderboard.
	communityTone := store.Neutral
	if s.app.ComTone != nil {
		communityTone = s.app.ComTone.Classify(ctx, cand.Community)
	}

	event := &store.BrigadeEvent{
		ID:              cand.ID + "-" + targetPostID,
		TargetPostID:    targetPostID,
		SourceCommunity: cand.Community,
		SourcePostID:    cand.ID,
		SourcePostURL:   cand.URL,
		SourcePostTitle: cand.Title,
		SourceAuthor:    cand.Author,
		Source:          cand.Source,
		DetectedAt:      s.now(),
		Classification:  tone,
	}

	// AI-sourced candidates carry synthesized authorship, so they produce an
	// event and a notification but never leaderboard writes.
	if cand.Source != sources.SourceAI && communityTone != store.Friendly {
		_, created, err := s.app.Board.RecordHater(ctx, cand.Community, cand.Author, tone, cand.Title)
		if err != nil {
			logger.Warn("leaderboard record failed", zap.Error(err))
		}

		if cand.Permalink != "" {
			if result, err := s.app.Analyzer.AnalyzeAndRecord(ctx, cand.Permalink); err == nil && result.Success {
				event.Analysis = result.Analysis
				s.scheduleAchievements(event.ID, result.Achievements)
			} else if err != nil {
				logger.Debug("thread analysis skipped", zap.Error(err))
			}
		}

		if cfg.EnableAchievements && tone >= store.Adversarial && cand.Author != "" {
			s.evaluateAuthor(ctx, event.ID, cand.Author, created)
		}
	}

	if err := s.app.Idem.PutEvent(ctx, event, idempotency.EventTTL); err != nil {
		logger.Warn("event write failed", zap.Error(err))
		return
	}

	delay := time.Duration(cfg.MinimumLinkAgeMinutes) * time.Minute
	if err := s.app.Sched.RunAt(jobNotifyBrigade, event.ID,
		notifyPayload{EventID: event.ID}, s.now().Add(delay)); err != nil {
		logger.Warn("notify schedule failed", zap.Error(err))
	}
}

// evaluateAuthor runs the achievement engine for the crosspost author and
// schedules a callout for the highest new notifiable unlock.
func (s *Scanner) evaluateAuthor(ctx context.Context, eventID string, author string, firstOffense bool) {
	snapshot, err := s.app.Board.Snapshot(ctx)
	if err != nil {
		s.app.Logger.Warn("achievement snapshot failed", zap.Error(err))
		return
	}
	entry := snapshot.Users[snapshot.ResolveUser(author)]
	if entry == nil {
		return
	}

	unlocks, err := s.app.Engine.Evaluate(ctx, author, entry, snapshot, achievements.Context{
		IsFirstOffense: firstOffense,
		CooldownHours:  s.app.Settings.AchievementCooldownHours,
	})
	if err != nil {
		s.app.Logger.Warn("achievement evaluation failed", zap.String("user", author), zap.Error(err))
		return
	}

	if highest := achievements.GetHighestNew(unlocks); highest != nil {
		s.scheduleAchievements(eventID, []analyzer.UserAchievement{{
			User:        author,
			Achievement: highest.Definition.ID,
			Tier:        highest.Definition.Tier.String(),
		}})
	}
}

func (s *Scanner) scheduleAchievements(eventID string, grants []analyzer.UserAchievement) {
	cfg := s.app.Settings
	if !cfg.EnableAchievements {
		return
	}
	delay := time.Duration(cfg.MinimumLinkAgeMinutes)*time.Minute + achievementCommentLag
	for _, g := range grants {
		payload := achievementPayload{
			EventID:       eventID,
			User:          g.User,
			AchievementID: g.Achievement,
		}
		key := eventID + ":" + g.User + ":" + g.Achievement
		if err := s.app.Sched.RunAt(jobPostAchievement, key, payload, s.now().Add(delay)); err != nil {
			s.app.Logger.Warn("achievement schedule failed",
				zap.String("user", g.User), zap.Error(err))
		}
	}
}

func (s *Scanner) parseTargetPost(text string) (string, bool) {
	m := s.targetRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return "t3_" + strings.ToLower(m[1]), true
}
