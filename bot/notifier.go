package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/r-seattle-wa/hub-bot-9000/bot/achievements"
	"github.com/r-seattle-wa/hub-bot-9000/bot/feed"
	"github.com/r-seattle-wa/hub-bot-9000/bot/hostapi"
	"github.com/r-seattle-wa/hub-bot-9000/bot/idempotency"
	"github.com/r-seattle-wa/hub-bot-9000/bot/observability"
	"github.com/r-seattle-wa/hub-bot-9000/bot/store"
)

// errRetryLater triggers a scheduler redelivery without marking anything
// terminal.
var errRetryLater = errors.New("retry on next delivery")

// optOutDocument is the mod-maintained exclusion list.
type optOutDocument struct {
	Users []string `json:"users"`
}

// Notifier executes the delayed handlers: the brigade notification and the
// achievement callout. Both no-op once the stored brigade event is gone;
// the brigade notice also no-ops once notifiedAt is set, the callout once the
// achievement is marked notified.
type Notifier struct {
	app *App
	now func() time.Time
}

func NewNotifier(app *App) *Notifier {
	return &Notifier{app: app, now: time.Now}
}

// NotifyBrigade posts the brigade notice on the targeted post. The notifiedAt
// check absorbs duplicate deliveries; everything before the comment submits
// may fail and retry, everything after is best effort so the comment can
// never double-post.
func (n *Notifier) NotifyBrigade(ctx context.Context, payload []byte) error {
	var p notifyPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("notifyBrigade: bad payload: %w", err)
	}
	if p.EventID == "" {
		return fmt.Errorf("notifyBrigade: missing event id")
	}

	cfg := n.app.Settings
	logger := n.app.Logger.With(zap.String("event", p.EventID))

	event, err := n.app.Idem.GetEvent(ctx, p.EventID)
	if err != nil {
		return err
	}
	if event == nil || event.NotifiedAt != nil {
		return nil
	}

	allowed, _, _, err := n.app.Idem.Allow(ctx, idempotency.SubComment, cfg.Community)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("%w: subComment bucket exhausted", errRetryLater)
	}

	post, err := n.app.Host.GetPost(ctx, event.TargetPostID)
	if errors.Is(err, hostapi.ErrNotFound) || post == nil && err == nil {
		logger.Info("target post gone, dropping notification")
		return nil
	}
	if err != nil {
		return err
	}

	deletedCount := 0
	if cfg.IncludeDeletedContent {
		count, err := n.app.Archive.CountDeletedComments(ctx, event.TargetPostID,
			event.DetectedAt.Add(-time.Hour))
		if err != nil {
			logger.Debug("deleted-content check unavailable", zap.Error(err))
		} else {
			deletedCount = count
		}
	}

	if cfg.PublicComment {
		body := n.buildCommentBody(ctx, event)
		commentID, err := n.app.Host.SubmitComment(ctx, event.TargetPostID, body)
		if err != nil {
			return err
		}
		if cfg.StickyComment {
			if err := n.app.Host.Distinguish(ctx, commentID, true); err != nil &&
				!errors.Is(err, hostapi.ErrPermissionDenied) {
				logger.Debug("distinguish failed", zap.Error(err))
			}
		}
	}

	// The comment is out; from here every failure is logged, not retried.
	if cfg.ModmailNotify && event.Classification >= store.Adversarial {
		if err := n.app.Host.SendModmail(ctx, n.modmailSubject(event),
			n.modmailBody(event, deletedCount)); err != nil {
			logger.Warn("brigade modmail failed", zap.Error(err))
		}
	}

	notifiedAt := n.now()
	event.NotifiedAt = &notifiedAt
	if err := n.app.Idem.PutEvent(ctx, event, idempotency.EventTTL); err != nil {
		logger.Error("failed to mark event notified", zap.Error(err))
	}

	if err := n.app.Idem.Consume(ctx, idempotency.SubComment, cfg.Community); err != nil {
		logger.Warn("subComment consume failed", zap.Error(err))
	}

	haterCount := 0
	if event.Analysis != nil {
		haterCount = len(event.Analysis.Haters)
	}
	if err := n.app.Feed.Emit(ctx, feed.TypeBrigadeAlert, cfg.Community, feed.BrigadeAlertPayload{
		TargetPostID:    event.TargetPostID,
		SourceCommunity: event.SourceCommunity,
		SourcePostURL:   event.SourcePostURL,
		Classification:  event.Classification.String(),
		HaterCount:      haterCount,
	}); err != nil {
		logger.Warn("feed emit failed", zap.Error(err))
	}

	observability.Notifications.WithLabelValues(event.Classification.String()).Inc()
	return nil
}

// PostAchievement posts the achievement callout scheduled by the scanner.
// A missing event record means the pipeline moved on: the job cancels
// itself by no-opping.
func (n *Notifier) PostAchievement(ctx context.Context, payload []byte) error {
	var p achievementPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("postAchievement: bad payload: %w", err)
	}
	if p.EventID == "" || p.User == "" || p.AchievementID == "" {
		return fmt.Errorf("postAchievement: incomplete payload")
	}

	event, err := n.app.Idem.GetEvent(ctx, p.EventID)
	if err != nil {
		return err
	}
	if event == nil {
		return nil
	}

	def, ok := achievements.DefinitionByID(p.AchievementID)
	if !ok {
		return nil
	}

	if rec, err := n.app.Engine.GetRecord(ctx, p.User); err == nil && rec != nil &&
		slices.Contains(rec.Notified, p.AchievementID) {
		return nil
	}

	if n.optedOut(ctx, p.User) {
		return nil
	}

	allowed, _, _, err := n.app.Idem.Allow(ctx, idempotency.UserComment, p.User)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("%w: userComment bucket exhausted", errRetryLater)
	}

	body := fmt.Sprintf("**Achievement unlocked**: u/%s earned *%s* (%s tier).",
		p.User, def.Name, def.Tier)
	if _, err := n.app.Host.SubmitComment(ctx, event.TargetPostID, body); err != nil {
		return err
	}

	if err := n.app.Engine.MarkNotified(ctx, p.User, p.AchievementID); err != nil {
		n.app.Logger.Warn("mark notified failed", zap.String("user", p.User), zap.Error(err))
	}
	return n.app.Idem.Consume(ctx, idempotency.UserComment, p.User)
}

func (n *Notifier) optedOut(ctx context.Context, user string) bool {
	var doc optOutDocument
	if _, err := n.app.Docs.Load(ctx, store.PageOptOut, &doc); err != nil {
		return false
	}
	for _, u := range doc.Users {
		if strings.EqualFold(u, user) {
			return true
		}
	}
	return false
}

// buildCommentBody renders either the rich sticky variant (when the thread
// analysis extracted haters) or the generic per-classification notice.
func (n *Notifier) buildCommentBody(ctx context.Context, event *store.BrigadeEvent) string {
	var b strings.Builder

	if event.Analysis != nil && len(event.Analysis.Haters) > 0 {
		fmt.Fprintf(&b, "This post is being discussed in r/%s: [%s](%s)\n\n",
			event.SourceCommunity, event.SourcePostTitle, event.SourcePostURL)
		b.WriteString("| User | Points | Top comment |\n|---|---|---|\n")
		haters := event.Analysis.Haters
		if len(haters) > 10 {
			haters = haters[:10]
		}
		for _, h := range haters {
			if n.optedOut(ctx, h.Username) {
				continue
			}
			fmt.Fprintf(&b, "| u/%s | %d | %s |\n", h.Username, h.Points, truncateCell(h.Quote, 120))
		}
		b.WriteString("\nAchievements and the full leaderboard live on the community hub wiki.\n")
		return b.String()
	}

	switch event.Classification {
	case store.Hateful:
		fmt.Fprintf(&b, "Heads up: this post is receiving hostile attention from r/%s.", event.SourceCommunity)
	case store.Adversarial:
		fmt.Fprintf(&b, "This post has been linked from r/%s and may see outside traffic.", event.SourceCommunity)
	case store.Friendly:
		fmt.Fprintf(&b, "This post was shared in r/%s.", event.SourceCommunity)
	default:
		fmt.Fprintf(&b, "This post has been linked from r/%s.", event.SourceCommunity)
	}
	return b.String()
}

func (n *Notifier) modmailSubject(event *store.BrigadeEvent) string {
	return fmt.Sprintf("Brigade alert: %s link from r/%s",
		event.Classification, event.SourceCommunity)
}

func (n *Notifier) modmailBody(event *store.BrigadeEvent, deletedCount int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Source: r/%s\nPost: %s\nTitle: %s\nClassification: %s\n",
		event.SourceCommunity, event.SourcePostURL, event.SourcePostTitle, event.Classification)
	if deletedCount >= n.app.Settings.DeletedContentThreshold {
		fmt.Fprintf(&b, "Deleted comments since detection: %d\n", deletedCount)
	}
	return b.String()
}

func truncateCell(s string, limit int) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "…"
}
