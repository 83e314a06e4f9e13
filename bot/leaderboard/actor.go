package leaderboard

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/r-seattle-wa/hub-bot-9000/bot/hostapi"
	"github.com/r-seattle-wa/hub-bot-9000/bot/store"
)

// Actor owns the leaderboard document and serializes every mutation. The
// document is re-read from the backend immediately before each write, so a
// lost update across replicas is bounded by a single change set. External
// lookups (mod log) happen before a request enters the actor, never inside
// the critical section.
type Actor struct {
	docs     store.Documents
	modlog   hostapi.ModLogReader
	target   string
	logger   *zap.Logger
	requests chan request
	now      func() time.Time
}

type request struct {
	fn    func(b *Board) error
	view  bool
	reply chan error
}

func NewActor(docs store.Documents, modlog hostapi.ModLogReader, targetCommunity string, logger *zap.Logger) *Actor {
	return &Actor{
		docs:     docs,
		modlog:   modlog,
		target:   targetCommunity,
		logger:   logger,
		requests: make(chan request, 32),
		now:      time.Now,
	}
}

// SetClock overrides the time source for tests.
func (a *Actor) SetClock(now func() time.Time) { a.now = now }

// Start runs the actor loop until ctx ends.
func (a *Actor) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case req := <-a.requests:
				req.reply <- a.handle(ctx, req)
			}
		}
	}()
}

func (a *Actor) handle(ctx context.Context, req request) error {
	board := NewBoard()
	if _, err := a.docs.Load(ctx, store.PageLeaderboard, board); err != nil {
		return err
	}
	if board.Communities == nil {
		board = NewBoard()
	}

	if err := req.fn(board); err != nil {
		return err
	}
	if req.view {
		return nil
	}
	board.SchemaVersion = schemaV
	return a.docs.Save(ctx, store.PageLeaderboard, board)
}

func (a *Actor) send(ctx context.Context, view bool, fn func(b *Board) error) error {
	req := request{fn: fn, view: view, reply: make(chan error, 1)}
	select {
	case a.requests <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Mutate applies fn to the freshly loaded board and persists the result.
func (a *Actor) Mutate(ctx context.Context, fn func(b *Board) error) error {
	return a.send(ctx, false, fn)
}

// View runs fn against the freshly loaded board without writing. The closure
// must copy out anything it keeps.
func (a *Actor) View(ctx context.Context, fn func(b *Board) error) error {
	return a.send(ctx, true, fn)
}

// Snapshot returns a deep copy of the current board.
func (a *Actor) Snapshot(ctx context.Context) (*Board, error) {
	var raw []byte
	err := a.View(ctx, func(b *Board) error {
		var err error
		raw, err = json.Marshal(b)
		return err
	})
	if err != nil {
		return nil, err
	}
	snapshot := NewBoard()
	if err := json.Unmarshal(raw, snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// RecordHater registers a hostile link, then refreshes the user's mod-log
// spam count from the last 30 days of moderation actions. The mod-log query
// runs before the mutation enters the actor.
func (a *Actor) RecordHater(ctx context.Context, sourceCommunity string, userName string, tone store.Classification, title string) (UserEntry, bool, error) {
	if tone < store.Adversarial {
		return UserEntry{}, false, nil
	}

	spamCount := -1
	if userName != "" && a.modlog != nil {
		if count, err := a.modLogSpamCount(ctx, userName); err == nil {
			spamCount = count
		} else {
			a.logger.Debug("mod log unavailable", zap.String("user", userName), zap.Error(err))
		}
	}

	var snapshot UserEntry
	var created bool
	err := a.Mutate(ctx, func(b *Board) error {
		entry, isNew := b.RecordHater(sourceCommunity, userName, tone, title, a.now())
		if entry != nil {
			if spamCount >= 0 {
				entry.ModLogSpamCount = spamCount
				b.recomputeTops()
			}
			snapshot = *entry
			created = isNew
		}
		return nil
	})
	return snapshot, created, err
}

// modLogSpamCount weighs removals once and bans triple.
func (a *Actor) modLogSpamCount(ctx context.Context, userName string) (int, error) {
	since := a.now().Add(-30 * 24 * time.Hour)
	entries, err := a.modlog.ModLog(ctx, a.target, since)
	if err != nil {
		return 0, err
	}
	removals, bans := 0, 0
	target := normalize(userName)
	for _, e := range entries {
		if normalize(e.TargetUser) != target {
			continue
		}
		switch e.Action {
		case hostapi.ActionRemoveComment, hostapi.ActionRemoveLink:
			removals++
		case hostapi.ActionBanUser:
			bans++
		}
	}
	return removals + 3*bans, nil
}

// RecordTribute counts one tribute request against a user.
func (a *Actor) RecordTribute(ctx context.Context, userName string, sourceCommunity string) error {
	return a.Mutate(ctx, func(b *Board) error {
		b.RecordTribute(userName, sourceCommunity, a.now())
		return nil
	})
}

// RegisterUserAlt links a user alt to its main.
func (a *Actor) RegisterUserAlt(ctx context.Context, alt string, main string) error {
	return a.Mutate(ctx, func(b *Board) error {
		return b.RegisterUserAlt(alt, main, a.now())
	})
}

// RegisterCommunityAlt links a community alt to its main.
func (a *Actor) RegisterCommunityAlt(ctx context.Context, alt string, main string) error {
	return a.Mutate(ctx, func(b *Board) error {
		return b.RegisterCommunityAlt(alt, main, a.now())
	})
}
