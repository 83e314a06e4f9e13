// Package feed maintains the shared hub events feed: an append-only, bounded
// ring of structured events persisted as a single JSON document.
package feed

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/r-seattle-wa/hub-bot-9000/bot/observability"
	"github.com/r-seattle-wa/hub-bot-9000/bot/store"
)

// Event types carried in the feed.
const (
	TypeBrigadeAlert         = "BrigadeAlert"
	TypeTrafficSpike         = "TrafficSpike"
	TypeFarewellAnnouncement = "FarewellAnnouncement"
	TypeHaikuDetection       = "HaikuDetection"
	TypeCommunityEvent       = "CommunityEvent"
	TypeSystem               = "System"
)

const (
	maxEvents  = 100
	defaultTTL = 7 * 24 * time.Hour
	schemaV    = 1
)

// HubEvent is one entry in the feed. Payload carries the type-specific body.
type HubEvent struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Community string          `json:"community"`
	SourceApp string          `json:"source_app"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// BrigadeAlertPayload is the body of a TypeBrigadeAlert event.
type BrigadeAlertPayload struct {
	TargetPostID    string `json:"target_post_id"`
	SourceCommunity string `json:"source_community"`
	SourcePostURL   string `json:"source_post_url"`
	Classification  string `json:"classification"`
	HaterCount      int    `json:"hater_count,omitempty"`
}

// TrafficSpikePayload is the body of a TypeTrafficSpike event.
type TrafficSpikePayload struct {
	PostID           string `json:"post_id"`
	Title            string `json:"title,omitempty"`
	WindowMinutes    int    `json:"window_minutes"`
	CommentsInWindow int    `json:"comments_in_window"`
	Threshold        int    `json:"threshold"`
}

type document struct {
	SchemaVersion int        `json:"schema_version"`
	Events        []HubEvent `json:"events"`
}

// Subscriber receives every appended event. The websocket hub implements it.
type Subscriber interface {
	Notify(event HubEvent)
}

// Feed serializes all mutations of the events document through a single
// owner goroutine-free mutex: the document is re-read immediately before
// every write so a concurrent writer on another replica loses at most one
// append.
type Feed struct {
	docs      store.Documents
	sourceApp string
	logger    *zap.Logger

	mu   sync.Mutex
	subs []Subscriber

	now func() time.Time
}

func New(docs store.Documents, sourceApp string, logger *zap.Logger) *Feed {
	return &Feed{
		docs:      docs,
		sourceApp: sourceApp,
		logger:    logger,
		now:       time.Now,
	}
}

// SetClock overrides the time source for tests.
func (f *Feed) SetClock(now func() time.Time) { f.now = now }

// Subscribe registers a live listener for appended events.
func (f *Feed) Subscribe(sub Subscriber) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, sub)
}

// Emit builds and appends an event with the default TTL.
func (f *Feed) Emit(ctx context.Context, eventType string, community string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	now := f.now()
	return f.Append(ctx, HubEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Community: community,
		SourceApp: f.sourceApp,
		CreatedAt: now,
		ExpiresAt: now.Add(defaultTTL),
		Payload:   body,
	})
}

// Append prepends the event, prunes expired entries and trims the ring to
// its bound before persisting.
func (f *Feed) Append(ctx context.Context, event HubEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var doc document
	if _, err := f.docs.Load(ctx, store.PageEventsFeed, &doc); err != nil {
		return err
	}
	doc.SchemaVersion = schemaV

	now := f.now()
	kept := make([]HubEvent, 0, len(doc.Events)+1)
	kept = append(kept, event)
	for _, e := range doc.Events {
		if e.ExpiresAt.After(now) {
			kept = append(kept, e)
		}
	}
	if len(kept) > maxEvents {
		kept = kept[:maxEvents]
	}
	doc.Events = kept

	if err := f.docs.Save(ctx, store.PageEventsFeed, &doc); err != nil {
		return err
	}
	observability.FeedSize.Set(float64(len(doc.Events)))

	for _, sub := range f.subs {
		sub.Notify(event)
	}
	return nil
}

// Read returns all live events, newest first.
func (f *Feed) Read(ctx context.Context) ([]HubEvent, error) {
	var doc document
	if _, err := f.docs.Load(ctx, store.PageEventsFeed, &doc); err != nil {
		return nil, err
	}
	now := f.now()
	events := make([]HubEvent, 0, len(doc.Events))
	for _, e := range doc.Events {
		if e.ExpiresAt.After(now) {
			events = append(events, e)
		}
	}
	return events, nil
}

// GetByType returns live events of one type, newest first.
func (f *Feed) GetByType(ctx context.Context, eventType string) ([]HubEvent, error) {
	all, err := f.Read(ctx)
	if err != nil {
		return nil, err
	}
	var events []HubEvent
	for _, e := range all {
		if e.Type == eventType {
			events = append(events, e)
		}
	}
	return events, nil
}

// GetRecent returns the newest limit events.
func (f *Feed) GetRecent(ctx context.Context, limit int) ([]HubEvent, error) {
	all, err := f.Read(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}
