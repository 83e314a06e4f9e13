// Package analyzer fetches linked threads, extracts their most salient
// hostile participants and feeds the leaderboard and achievement engine.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/r-seattle-wa/hub-bot-9000/bot/achievements"
	"github.com/r-seattle-wa/hub-bot-9000/bot/hostapi"
	"github.com/r-seattle-wa/hub-bot-9000/bot/idempotency"
	"github.com/r-seattle-wa/hub-bot-9000/bot/leaderboard"
	"github.com/r-seattle-wa/hub-bot-9000/bot/observability"
	"github.com/r-seattle-wa/hub-bot-9000/bot/store"
)

// ErrInvalidURL reports a thread URL the analyzer cannot parse.
var ErrInvalidURL = errors.New("analyzer: invalid thread url")

const (
	maxComments   = 500
	maxDepth      = 10
	minBestScore  = 10
	maxHaters     = 15
	quoteLimit    = 400
	maxAnalyses   = 50
	automoderator = "automoderator"
)

var threadURLPattern = regexp.MustCompile(`(?i)/r/([A-Za-z0-9_]+)/comments/([a-z0-9]+)`)

// UserAchievement pairs a user with their highest newly notifiable unlock.
type UserAchievement struct {
	User        string `json:"user"`
	Achievement string `json:"achievement"`
	Tier        string `json:"tier"`
}

// Result is what AnalyzeAndRecord hands back to the scanner.
type Result struct {
	Success      bool                  `json:"success"`
	Message      string                `json:"message,omitempty"`
	Analysis     *store.ThreadAnalysis `json:"analysis,omitempty"`
	Achievements []UserAchievement     `json:"achievements,omitempty"`
	AddedCount   int                   `json:"added_count"`
}

type analysesDocument struct {
	SchemaVersion int                    `json:"schema_version"`
	Analyses      []store.ThreadAnalysis `json:"analyses"`
}

// Limiter is the rate-limit surface talking-point detection is gated on.
type Limiter interface {
	Allow(ctx context.Context, bucket idempotency.Bucket, id string) (bool, int, time.Duration, error)
	Consume(ctx context.Context, bucket idempotency.Bucket, id string) error
}

// Thread analyzes linked threads end to end.
type Thread struct {
	reader        hostapi.Reader
	board         *leaderboard.Actor
	engine        *achievements.Engine
	points        *TalkingPoints
	limits        Limiter
	docs          store.Documents
	target        string
	cooldownHours int
	logger        *zap.Logger
	now           func() time.Time
}

func NewThread(reader hostapi.Reader, board *leaderboard.Actor, engine *achievements.Engine, points *TalkingPoints, limits Limiter, docs store.Documents, targetCommunity string, cooldownHours int, logger *zap.Logger) *Thread {
	return &Thread{
		reader:        reader,
		board:         board,
		engine:        engine,
		points:        points,
		limits:        limits,
		docs:          docs,
		target:        targetCommunity,
		cooldownHours: cooldownHours,
		logger:        logger,
		now:           time.Now,
	}
}

// ParseThreadURL extracts the source community and post id from a permalink.
func ParseThreadURL(url string) (community string, postID string, err error) {
	m := threadURLPattern.FindStringSubmatch(url)
	if m == nil {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidURL, url)
	}
	return m[1], m[2], nil
}

// AnalyzeAndRecord fetches the thread, ranks its participants, records every
// hater on the leaderboard and evaluates achievements. A fetch failure
// returns an unsuccessful result without mutating any state.
func (t *Thread) AnalyzeAndRecord(ctx context.Context, postURL string) (*Result, error) {
	sourceCommunity, _, err := ParseThreadURL(postURL)
	if err != nil {
		observability.ThreadsAnalyzed.WithLabelValues("bad_url").Inc()
		return nil, err
	}

	post, comments, err := t.reader.FetchThread(ctx, postURL)
	if err != nil || post == nil {
		observability.ThreadsAnalyzed.WithLabelValues("fetch_error").Inc()
		t.logger.Warn("thread fetch failed", zap.String("url", postURL), zap.Error(err))
		return &Result{Success: false, Message: "Could not fetch thread"}, nil
	}

	flat := flatten(comments)
	haters, targetMentions := t.rankParticipants(post, flat)

	analysis := &store.ThreadAnalysis{
		Haters:         haters,
		CommentCount:   len(flat),
		TargetMentions: targetMentions,
		PostTitle:      post.Title,
		PostAuthor:     post.Author,
		PostScore:      post.Score,
		AnalyzedAt:     t.now(),
	}

	detectPoints := true
	if allowed, _, _, err := t.limits.Allow(ctx, idempotency.MemeDetection, sourceCommunity); err != nil || !allowed {
		detectPoints = false
	}

	type haterState struct {
		hater    store.Hater
		created  bool
		used     []string
		repeated []string
	}
	states := make([]haterState, 0, len(haters))

	for _, h := range haters {
		_, created, err := t.board.RecordHater(ctx, sourceCommunity, h.Username, store.Adversarial, post.Title)
		if err != nil {
			t.logger.Warn("leaderboard record failed", zap.String("user", h.Username), zap.Error(err))
			continue
		}

		quote, score, link := h.Quote, h.BestScore, h.QuoteLink
		if err := t.board.Mutate(ctx, func(b *leaderboard.Board) error {
			b.RecordFeaturedQuote(h.Username, quote, score, link)
			return nil
		}); err != nil {
			t.logger.Warn("featured quote update failed", zap.Error(err))
		}

		var used, repeated []string
		if detectPoints {
			used, repeated = t.points.Detect(ctx, h.Username, h.Quote)
		}
		states = append(states, haterState{hater: h, created: created, used: used, repeated: repeated})
	}

	if detectPoints {
		if err := t.limits.Consume(ctx, idempotency.MemeDetection, sourceCommunity); err != nil {
			t.logger.Warn("meme detection consume failed", zap.Error(err))
		}
	}

	snapshot, err := t.board.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	var notifiable []UserAchievement
	type grant struct {
		user string
		defs []achievements.Definition
	}
	var grants []grant

	for _, st := range states {
		entry := snapshot.Users[snapshot.ResolveUser(st.hater.Username)]
		if entry == nil {
			continue
		}
		allUsed := t.points.AllUsed(ctx, st.hater.Username)
		unlocks, err := t.engine.Evaluate(ctx, st.hater.Username, entry, snapshot, achievements.Context{
			IsFirstOffense:  st.created,
			UniqueMemesUsed: allUsed,
			RepeatedMemes:   st.repeated,
			CooldownHours:   t.cooldownHours,
		})
		if err != nil {
			t.logger.Warn("achievement evaluation failed", zap.String("user", st.hater.Username), zap.Error(err))
			continue
		}

		var newDefs []achievements.Definition
		for _, u := range unlocks {
			if u.IsNew {
				newDefs = append(newDefs, u.Definition)
			}
		}
		if len(newDefs) > 0 {
			grants = append(grants, grant{user: st.hater.Username, defs: newDefs})
		}
		if highest := achievements.GetHighestNew(unlocks); highest != nil {
			notifiable = append(notifiable, UserAchievement{
				User:        st.hater.Username,
				Achievement: highest.Definition.ID,
				Tier:        highest.Definition.Tier.String(),
			})
		}
	}

	if len(grants) > 0 {
		now := t.now()
		if err := t.board.Mutate(ctx, func(b *leaderboard.Board) error {
			for _, g := range grants {
				entry := b.Users[b.ResolveUser(g.user)]
				if entry == nil {
					continue
				}
				if entry.UnlockedAchievements == nil {
					entry.UnlockedAchievements = make(map[string]time.Time)
				}
				for _, def := range g.defs {
					if _, ok := entry.UnlockedAchievements[def.ID]; ok {
						continue
					}
					entry.UnlockedAchievements[def.ID] = now
					entry.AchievementXP += def.Tier.XP()
					if def.Tier > achievements.ParseTier(entry.HighestTier) {
						entry.HighestTier = def.Tier.String()
					}
				}
			}
			return nil
		}); err != nil {
			t.logger.Warn("achievement grant write failed", zap.Error(err))
		}
	}

	t.appendAnalysis(ctx, analysis)
	observability.ThreadsAnalyzed.WithLabelValues("ok").Inc()

	return &Result{
		Success:      true,
		Analysis:     analysis,
		Achievements: notifiable,
		AddedCount:   len(states),
	}, nil
}

// flatten walks the comment tree breadth-limited by maxDepth and maxComments,
// dropping deleted comments and the platform automoderator.
func flatten(comments []hostapi.Comment) []hostapi.Comment {
	var out []hostapi.Comment
	var walk func(cs []hostapi.Comment, depth int)
	walk = func(cs []hostapi.Comment, depth int) {
		if depth > maxDepth {
			return
		}
		for _, c := range cs {
			if len(out) >= maxComments {
				return
			}
			author := strings.ToLower(c.Author)
			body := strings.TrimSpace(c.Body)
			if author != "" && author != "[deleted]" && author != automoderator &&
				body != "[deleted]" && body != "[removed]" {
				node := c
				node.Replies = nil
				out = append(out, node)
			}
			walk(c.Replies, depth+1)
		}
	}
	walk(comments, 0)
	return out
}

// rankParticipants picks each author's best comment and scores it into hater
// points.
func (t *Thread) rankParticipants(post *hostapi.Post, comments []hostapi.Comment) ([]store.Hater, int) {
	type authorBest struct {
		comment  hostapi.Comment
		mentions bool
	}
	best := make(map[string]authorBest)
	targetMentions := 0

	for _, c := range comments {
		author := strings.ToLower(c.Author)
		mentions := t.mentionsTarget(c.Body)
		if mentions {
			targetMentions++
		}

		cur, ok := best[author]
		if !ok {
			best[author] = authorBest{comment: c, mentions: mentions}
			continue
		}
		// A comment engaging the target community always beats one that
		// does not; within the same class the higher score wins.
		switch {
		case mentions && !cur.mentions:
			best[author] = authorBest{comment: c, mentions: true}
		case mentions == cur.mentions && c.Score > cur.comment.Score:
			best[author] = authorBest{comment: c, mentions: mentions}
		}
	}

	postAuthor := strings.ToLower(post.Author)
	var haters []store.Hater
	for author, b := range best {
		if b.comment.Score < minBestScore {
			continue
		}
		points := 1
		if b.comment.Score >= 100 {
			points = 3
		} else if b.comment.Score >= 50 {
			points = 2
		}
		isOP := author == postAuthor && postAuthor != "" && postAuthor != "[deleted]"
		if isOP {
			points += 2
		}
		haters = append(haters, store.Hater{
			Username:     b.comment.Author,
			Points:       points,
			BestScore:    b.comment.Score,
			Quote:        cleanQuote(b.comment.Body),
			QuoteLink:    b.comment.Permalink,
			IsPostAuthor: isOP,
		})
	}

	sort.Slice(haters, func(i, j int) bool {
		if haters[i].Points != haters[j].Points {
			return haters[i].Points > haters[j].Points
		}
		return haters[i].BestScore > haters[j].BestScore
	})
	if len(haters) > maxHaters {
		haters = haters[:maxHaters]
	}
	return haters, targetMentions
}

func (t *Thread) mentionsTarget(body string) bool {
	lower := strings.ToLower(body)
	name := strings.ToLower(t.target)
	return strings.Contains(lower, "r/"+name) || strings.Contains(lower, name)
}

// cleanQuote collapses quoted lines and whitespace, then truncates.
func cleanQuote(body string) string {
	lines := strings.Split(body, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, ">") || strings.HasPrefix(line, "&gt;") {
			continue
		}
		kept = append(kept, line)
	}
	collapsed := strings.Join(kept, " ")
	collapsed = strings.Join(strings.Fields(collapsed), " ")
	return truncate(collapsed, quoteLimit)
}

func (t *Thread) appendAnalysis(ctx context.Context, analysis *store.ThreadAnalysis) {
	var doc analysesDocument
	if _, err := t.docs.Load(ctx, store.PageAnalyses, &doc); err != nil {
		t.logger.Warn("analyses ring load failed", zap.Error(err))
		return
	}
	doc.SchemaVersion = 1
	doc.Analyses = append([]store.ThreadAnalysis{*analysis}, doc.Analyses...)
	if len(doc.Analyses) > maxAnalyses {
		doc.Analyses = doc.Analyses[:maxAnalyses]
	}
	if err := t.docs.Save(ctx, store.PageAnalyses, &doc); err != nil {
		t.logger.Warn("analyses ring save failed", zap.Error(err))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
