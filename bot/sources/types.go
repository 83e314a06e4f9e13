// Package sources discovers candidate cross-link posts through an ordered
// fallback chain of search strategies.
package sources

import (
	"context"
	"time"

	"github.com/r-seattle-wa/hub-bot-9000/bot/store"
)

// Source names stamped onto candidates.
const (
	SourceNative  = "native"
	SourceArchive = "archive"
	SourceAI      = "ai"
)

// Strategy yields candidate posts in other communities that link back to the
// target community.
type Strategy interface {
	// Name identifies the strategy in logs and metrics.
	Name() string

	// Discover returns candidates created after since. An empty result with
	// nil error means the strategy ran and found nothing.
	Discover(ctx context.Context, target string, since time.Time) ([]store.Candidate, error)
}
