package analyzer

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/r-seattle-wa/hub-bot-9000/bot/store"
)

const (
	talkingPointTTL = 365 * 24 * time.Hour
	maxExamples     = 3
)

// talkingPoint is one recognizable recycled line of attack.
type talkingPoint struct {
	id      string
	pattern *regexp.Regexp
}

var talkingPoints = []talkingPoint{
	{"echo_chamber", regexp.MustCompile(`(?i)echo\s*chamber`)},
	{"circlejerk", regexp.MustCompile(`(?i)circle\s*jerk`)},
	{"touch_grass", regexp.MustCompile(`(?i)touch(ed|ing)?\s+grass`)},
	{"hellhole", regexp.MustCompile(`(?i)hell\s*hole`)},
	{"dying_city", regexp.MustCompile(`(?i)(dying|dead|failed)\s+(city|town|community)`)},
	{"crime_ridden", regexp.MustCompile(`(?i)crime[\s-]*(ridden|infested)`)},
	{"taxes", regexp.MustCompile(`(?i)tax(es)?\s+(hell|nightmare)`)},
	{"power_mods", regexp.MustCompile(`(?i)power[\s-]*(tripping\s+)?mod`)},
	{"censorship", regexp.MustCompile(`(?i)censor(ship|ed|ing)`)},
	{"banned_for_nothing", regexp.MustCompile(`(?i)banned\s+(me\s+)?for\s+(nothing|no\s+reason)`)},
	{"moved_away", regexp.MustCompile(`(?i)(glad|happy)\s+i\s+(left|moved)`)},
	{"bubble", regexp.MustCompile(`(?i)living\s+in\s+a\s+bubble`)},
}

// pointStat tracks one talking point's usage by one user.
type pointStat struct {
	Count    int       `json:"count"`
	LastSeen time.Time `json:"last_seen"`
	Examples []string  `json:"examples,omitempty"`
}

// pointRecord is the durable per-user detection record.
type pointRecord struct {
	UserName string               `json:"user_name"`
	Points   map[string]pointStat `json:"points"`
}

// TalkingPoints detects recycled attack lines in quotes and tracks per-user
// usage so the achievement engine can reward repetition.
type TalkingPoints struct {
	kv     store.KV
	logger *zap.Logger
	now    func() time.Time
}

func NewTalkingPoints(kv store.KV, logger *zap.Logger) *TalkingPoints {
	return &TalkingPoints{kv: kv, logger: logger, now: time.Now}
}

// Detect matches the quote against the static table, updates the user's
// record, and returns the ids used this time plus the ids the user has now
// used more than once.
func (t *TalkingPoints) Detect(ctx context.Context, user string, quote string) (used []string, repeated []string) {
	for _, tp := range talkingPoints {
		if tp.pattern.MatchString(quote) {
			used = append(used, tp.id)
		}
	}
	if len(used) == 0 {
		return nil, nil
	}

	key := store.TalkingPointsKey(strings.ToLower(user))
	record := pointRecord{UserName: strings.ToLower(user), Points: make(map[string]pointStat)}
	if val, ok, err := t.kv.Get(ctx, key); err == nil && ok {
		if err := json.Unmarshal([]byte(val), &record); err != nil {
			t.logger.Warn("corrupt talking-point record, resetting",
				zap.String("user", user), zap.Error(err))
			record.Points = make(map[string]pointStat)
		}
	}
	if record.Points == nil {
		record.Points = make(map[string]pointStat)
	}

	now := t.now()
	for _, id := range used {
		stat := record.Points[id]
		stat.Count++
		stat.LastSeen = now
		if len(stat.Examples) < maxExamples {
			stat.Examples = append(stat.Examples, truncate(quote, 200))
		}
		record.Points[id] = stat
		if stat.Count > 1 {
			repeated = append(repeated, id)
		}
	}

	if data, err := json.Marshal(record); err == nil {
		if err := t.kv.Set(ctx, key, string(data), talkingPointTTL); err != nil {
			t.logger.Warn("failed to save talking-point record", zap.Error(err))
		}
	}
	return used, repeated
}

// AllUsed returns every talking point the user has ever used.
func (t *TalkingPoints) AllUsed(ctx context.Context, user string) []string {
	val, ok, err := t.kv.Get(ctx, store.TalkingPointsKey(strings.ToLower(user)))
	if err != nil || !ok {
		return nil
	}
	var record pointRecord
	if err := json.Unmarshal([]byte(val), &record); err != nil {
		return nil
	}
	ids := make([]string, 0, len(record.Points))
	for id := range record.Points {
		ids = append(ids, id)
	}
	return ids
}
