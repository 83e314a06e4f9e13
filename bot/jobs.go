package main

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/r-seattle-wa/hub-bot-9000/bot/idempotency"
	"github.com/r-seattle-wa/hub-bot-9000/bot/leaderboard"
)

// Job and cron names. Handlers are looked up by these.
const (
	jobScan            = "scanBrigades"
	jobNotifyBrigade   = "notifyBrigade"
	jobPostAchievement = "postAchievement"
	jobEnrich          = "enrichTopHaters"
)

// notifyPayload is the notifyBrigade job body.
type notifyPayload struct {
	EventID string `json:"event_id"`
}

// achievementPayload is the postAchievement job body.
type achievementPayload struct {
	EventID       string `json:"event_id"`
	User          string `json:"user"`
	AchievementID string `json:"achievement_id"`
}

// commentCreatePayload is the CommentCreate trigger body.
type commentCreatePayload struct {
	PostID string `json:"post_id"`
}

// modmailPayload is the ModMail trigger body.
type modmailPayload struct {
	From    string `json:"from"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// onModMail handles the two mod-driven commands that arrive as modmail:
//
//	tribute: <user>        counts a tribute request against the user
//	alt: <alt> <main>      links an alt account to its main
//
// Both are bucket-gated per sender so a single mod cannot flood the
// registers. A conflicting alt registration is reported back to the mods,
// never applied partially.
func (a *App) onModMail(ctx context.Context, payload []byte) error {
	var p modmailPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return err
	}
	subject := strings.TrimSpace(p.Subject)

	switch {
	case strings.HasPrefix(strings.ToLower(subject), "tribute:"):
		target := strings.TrimSpace(subject[len("tribute:"):])
		if target == "" || p.From == "" {
			return nil
		}
		if ok, _, _, _ := a.Idem.Allow(ctx, idempotency.UserTribute, p.From); !ok {
			return nil
		}
		if ok, _, _, _ := a.Idem.Allow(ctx, idempotency.SubTribute, a.Settings.Community); !ok {
			return nil
		}
		if err := a.Board.RecordTribute(ctx, target, ""); err != nil {
			return err
		}
		a.Idem.Consume(ctx, idempotency.UserTribute, p.From)
		a.Idem.Consume(ctx, idempotency.SubTribute, a.Settings.Community)

	case strings.HasPrefix(strings.ToLower(subject), "alt:"):
		fields := strings.Fields(subject[len("alt:"):])
		if len(fields) != 2 || p.From == "" {
			return nil
		}
		if ok, _, _, _ := a.Idem.Allow(ctx, idempotency.AltReport, p.From); !ok {
			return nil
		}
		if err := a.Board.RegisterUserAlt(ctx, fields[0], fields[1]); err != nil {
			if errors.Is(err, leaderboard.ErrConflictingAlt) {
				if mailErr := a.Host.SendModmail(ctx, "Alt registration rejected", err.Error()); mailErr != nil {
					a.Logger.Warn("alt rejection reply failed", zap.Error(mailErr))
				}
				return nil
			}
			return err
		}
		a.Idem.Consume(ctx, idempotency.AltReport, p.From)
	}
	return nil
}

// onCommentCreate feeds the velocity detector from the comment stream.
func (a *App) onCommentCreate(ctx context.Context, payload []byte) error {
	if !a.Settings.DetectTrafficSpikes {
		return nil
	}
	var p commentCreatePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return err
	}
	if p.PostID == "" {
		return nil
	}
	if err := a.Velocity.OnComment(ctx, p.PostID); err != nil {
		a.Logger.Warn("velocity update failed", zap.String("post", p.PostID), zap.Error(err))
	}
	return nil
}
