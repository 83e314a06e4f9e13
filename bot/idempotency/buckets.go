package idempotency

import "time"

// Bucket is a named rate-limit window: at most MaxRequests per Window.
// Counters live in the KV store keyed by bucket name plus a caller-chosen id
// (usually the community or user the calls are made on behalf of).
type Bucket struct {
	Name        string
	MaxRequests int
	Window      time.Duration
}

// The named buckets gating external calls. Community-scoped buckets use the
// community name as id, user-scoped ones the user name.
var (
	// SubComment limits brigade notification comments per community.
	SubComment = Bucket{Name: "subComment", MaxRequests: 5, Window: 10 * time.Minute}

	// SubPullpush limits archive search sweeps per community.
	SubPullpush = Bucket{Name: "subPullpush", MaxRequests: 15, Window: time.Hour}

	// SubGemini limits AI provider calls per community.
	SubGemini = Bucket{Name: "subGemini", MaxRequests: 30, Window: time.Hour}

	// AltReport limits alt-account registrations per reporter.
	AltReport = Bucket{Name: "altReport", MaxRequests: 10, Window: 24 * time.Hour}

	// MemeDetection limits talking-point detection passes per community.
	MemeDetection = Bucket{Name: "memeDetection", MaxRequests: 20, Window: time.Hour}

	// UserComment limits per-user reply comments.
	UserComment = Bucket{Name: "userComment", MaxRequests: 3, Window: time.Hour}

	// UserHaiku limits haiku callouts per user.
	UserHaiku = Bucket{Name: "userHaiku", MaxRequests: 2, Window: 24 * time.Hour}

	// UserTribute limits tribute requests per requesting user.
	UserTribute = Bucket{Name: "userTribute", MaxRequests: 1, Window: 24 * time.Hour}

	// SubTribute limits tribute requests per community.
	SubTribute = Bucket{Name: "subTribute", MaxRequests: 5, Window: 24 * time.Hour}
)
