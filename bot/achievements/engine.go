package achievements

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/r-seattle-wa/hub-bot-9000/bot/leaderboard"
	"github.com/r-seattle-wa/hub-bot-9000/bot/observability"
	"github.com/r-seattle-wa/hub-bot-9000/bot/store"
)

// RecordTTL keeps achievement records for a year.
const RecordTTL = 365 * 24 * time.Hour

// Record is a user's durable achievement state.
// Unlocked and Notified only grow; notification timestamps are the one
// exception to append-only.
type Record struct {
	Unlocked           []string   `json:"unlocked"`
	Notified           []string   `json:"notified"`
	LastAchievementAt  *time.Time `json:"last_achievement_at,omitempty"`
	LastNotificationAt *time.Time `json:"last_notification_at,omitempty"`
	TotalAchievements  int        `json:"total_achievements"`
	HighestTier        string     `json:"highest_tier,omitempty"`
}

// Context carries the situational flags evaluation switches on. Zero values
// mean "condition absent".
type Context struct {
	IsFirstOffense      bool
	IsAltExposed        bool
	RepeatedMemes       []string
	UniqueMemesUsed     []string
	ConsecutiveDays     int
	IsDramaticExit      bool
	FarewellCount       int
	IsLurkerLeaver      bool
	IsHostileTone       bool
	HomeSubCount        int
	DeletedContentCount int
	TrollingRisk        float64
	DeceptionIndicators int
	CooldownHours       int
}

// Unlock is the evaluation result for one definition the user qualifies for.
type Unlock struct {
	Definition   Definition
	IsNew        bool
	ShouldNotify bool
	Rank         int
}

// Engine evaluates the definitions table against a user's leaderboard entry
// and persists the durable record.
type Engine struct {
	kv     store.KV
	logger *zap.Logger
	now    func() time.Time
}

func NewEngine(kv store.KV, logger *zap.Logger) *Engine {
	return &Engine{kv: kv, logger: logger, now: time.Now}
}

// SetClock overrides the time source for tests.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// Evaluate returns every definition the user currently qualifies for, marking
// which are new and which may notify. New unlocks are appended to the durable
// record; the record is persisted only when something new unlocked.
func (e *Engine) Evaluate(ctx context.Context, user string, entry *leaderboard.UserEntry, board *leaderboard.Board, evalCtx Context) ([]Unlock, error) {
	if entry == nil {
		return nil, nil
	}

	record, err := e.loadRecord(ctx, user)
	if err != nil {
		return nil, err
	}

	score := leaderboard.UserScore(entry)
	rank := board.UserRank(user)
	now := e.now()

	cooldown := time.Duration(evalCtx.CooldownHours) * time.Hour
	if cooldown <= 0 {
		cooldown = 24 * time.Hour
	}

	var unlocks []Unlock
	anyNew := false
	for _, def := range Definitions {
		if !meets(def, score, rank, evalCtx, entry) {
			continue
		}

		isNew := !contains(record.Unlocked, def.ID)
		// The notification timestamp is shared across achievements: one
		// recent notification suppresses every further one until the
		// cooldown elapses.
		canNotify := !contains(record.Notified, def.ID) &&
			(record.LastNotificationAt == nil || now.Sub(*record.LastNotificationAt) > cooldown)
		shouldNotify := isNew && canNotify

		unlocks = append(unlocks, Unlock{
			Definition:   def,
			IsNew:        isNew,
			ShouldNotify: shouldNotify,
			Rank:         rank,
		})

		if isNew {
			anyNew = true
			record.Unlocked = append(record.Unlocked, def.ID)
			record.TotalAchievements++
			t := now
			record.LastAchievementAt = &t
			if def.Tier > ParseTier(record.HighestTier) {
				record.HighestTier = def.Tier.String()
			}
			observability.AchievementsUnlocked.WithLabelValues(def.Tier.String()).Inc()
		}
	}

	if anyNew {
		if err := e.saveRecord(ctx, user, record); err != nil {
			return unlocks, err
		}
	}
	return unlocks, nil
}

func meets(def Definition, score float64, rank int, evalCtx Context, entry *leaderboard.UserEntry) bool {
	if def.ScoreThreshold > 0 && score >= def.ScoreThreshold {
		return true
	}
	if def.RankThreshold > 0 && rank > 0 && rank <= def.RankThreshold {
		return true
	}
	if def.Special != "" {
		return meetsSpecial(def.Special, evalCtx, entry)
	}
	return false
}

func meetsSpecial(special string, evalCtx Context, entry *leaderboard.UserEntry) bool {
	switch special {
	case SpecialFirstOffense:
		return evalCtx.IsFirstOffense
	case SpecialAltExposed:
		return evalCtx.IsAltExposed || len(entry.KnownAlts) > 0
	case SpecialMemeRepeater:
		return len(evalCtx.RepeatedMemes) > 0
	case SpecialMemeCollector:
		return len(evalCtx.UniqueMemesUsed) >= 3
	case SpecialStreak:
		return evalCtx.ConsecutiveDays >= 3
	case SpecialDramaticExit:
		return evalCtx.IsDramaticExit
	case SpecialSerialFarewell:
		return evalCtx.FarewellCount >= 3
	case SpecialLurkerLeaver:
		return evalCtx.IsLurkerLeaver
	case SpecialHostileTone:
		return evalCtx.IsHostileTone
	case SpecialMultiCommunity:
		return evalCtx.HomeSubCount >= 3 || len(entry.HomeCommunities) >= 3
	case SpecialHistoryScrubber:
		return evalCtx.DeletedContentCount >= 5
	case SpecialTrollingRisk:
		return evalCtx.TrollingRisk >= 0.7
	case SpecialDeception:
		return evalCtx.DeceptionIndicators >= 2
	default:
		return false
	}
}

// GetHighestNew returns the single notifiable unlock of highest tier, or nil.
// Ties break on definition order, which the evaluation loop preserves.
func GetHighestNew(unlocks []Unlock) *Unlock {
	var best *Unlock
	for i := range unlocks {
		u := &unlocks[i]
		if !u.IsNew || !u.ShouldNotify {
			continue
		}
		if best == nil || u.Definition.Tier > best.Definition.Tier {
			best = u
		}
	}
	return best
}

// MarkNotified transitions an unlock to the notified state. Called after the
// scheduled achievement comment actually posted.
func (e *Engine) MarkNotified(ctx context.Context, user string, achievementID string) error {
	record, err := e.loadRecord(ctx, user)
	if err != nil {
		return err
	}
	if !contains(record.Notified, achievementID) {
		record.Notified = append(record.Notified, achievementID)
	}
	t := e.now()
	record.LastNotificationAt = &t
	return e.saveRecord(ctx, user, record)
}

// GetRecord returns a user's durable record; a user with no history gets an
// empty record.
func (e *Engine) GetRecord(ctx context.Context, user string) (*Record, error) {
	return e.loadRecord(ctx, user)
}

func (e *Engine) loadRecord(ctx context.Context, user string) (*Record, error) {
	val, ok, err := e.kv.Get(ctx, store.AchievementsKey(user))
	if err != nil {
		return nil, err
	}
	record := &Record{}
	if ok {
		if err := json.Unmarshal([]byte(val), record); err != nil {
			e.logger.Warn("corrupt achievement record, resetting",
				zap.String("user", user), zap.Error(err))
			return &Record{}, nil
		}
	}
	return record, nil
}

func (e *Engine) saveRecord(ctx context.Context, user string, record *Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return e.kv.Set(ctx, store.AchievementsKey(user), string(data), RecordTTL)
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
