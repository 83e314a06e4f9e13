// Package leaderboard maintains the durable, alt-consolidated registers of
// hostile communities and users.
package leaderboard

import (
	"strings"
	"time"
)

const (
	schemaV    = 1
	topSize    = 10
	titleLimit = 100
)

// CommunityEntry is one community's register row.
type CommunityEntry struct {
	Name             string     `json:"name"`
	DisplayName      string     `json:"display_name,omitempty"`
	HostileLinks     int        `json:"hostile_links"`
	AdversarialCount int        `json:"adversarial_count"`
	HatefulCount     int        `json:"hateful_count"`
	LastSeen         time.Time  `json:"last_seen"`
	WorstTitle       string     `json:"worst_title,omitempty"`
	KnownAlts        []string   `json:"known_alts,omitempty"`
	IsAltOf          string     `json:"is_alt_of,omitempty"`
}

// UserEntry is one user's register row. It carries everything the community
// row does plus per-user behavior fields.
type UserEntry struct {
	Name             string    `json:"name"`
	DisplayName      string    `json:"display_name,omitempty"`
	HostileLinks     int       `json:"hostile_links"`
	AdversarialCount int       `json:"adversarial_count"`
	HatefulCount     int       `json:"hateful_count"`
	LastSeen         time.Time `json:"last_seen"`
	WorstTitle       string    `json:"worst_title,omitempty"`
	KnownAlts        []string  `json:"known_alts,omitempty"`
	IsAltOf          string    `json:"is_alt_of,omitempty"`

	ModLogSpamCount     int      `json:"mod_log_spam_count"`
	TributeRequestCount int      `json:"tribute_request_count"`
	HomeCommunities     []string `json:"home_communities,omitempty"`

	FeaturedQuote      string `json:"featured_quote,omitempty"`
	FeaturedQuoteScore int    `json:"featured_quote_score,omitempty"`
	FeaturedQuoteLink  string `json:"featured_quote_link,omitempty"`

	FlaggedContentCount int        `json:"flagged_content_count,omitempty"`
	BehavioralProfile   string     `json:"behavioral_profile,omitempty"`
	EngagementStyle     string     `json:"engagement_style,omitempty"`
	BehaviorSummary     string     `json:"behavior_summary,omitempty"`
	EnrichedAt          *time.Time `json:"enriched_at,omitempty"`

	// UnlockedAchievements maps achievement id to unlock time.
	UnlockedAchievements map[string]time.Time `json:"unlocked_achievements,omitempty"`
	AchievementXP        int                  `json:"achievement_xp,omitempty"`
	HighestTier          string               `json:"highest_tier,omitempty"`
}

// Board is the whole leaderboard document for one protected community.
type Board struct {
	SchemaVersion     int                        `json:"schema_version"`
	UpdatedAt         time.Time                  `json:"updated_at"`
	TotalHostileLinks int                        `json:"total_hostile_links"`
	Communities       map[string]*CommunityEntry `json:"communities"`
	Users             map[string]*UserEntry      `json:"users"`
	CommunityAltMap   map[string]string          `json:"community_alt_map"`
	UserAltMap        map[string]string          `json:"user_alt_map"`
	TopCommunities    []string                   `json:"top_communities"`
	TopUsers          []string                   `json:"top_users"`
}

// NewBoard returns an empty board ready for mutation.
func NewBoard() *Board {
	return &Board{
		SchemaVersion:   schemaV,
		Communities:     make(map[string]*CommunityEntry),
		Users:           make(map[string]*UserEntry),
		CommunityAltMap: make(map[string]string),
		UserAltMap:      make(map[string]string),
	}
}

// normalize lowers a name for keying. Display case is preserved separately.
func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
