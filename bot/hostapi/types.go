package hostapi

import "time"

// Post is a submission on the host platform.
type Post struct {
	ID          string    `json:"id"`
	Community   string    `json:"subreddit"`
	Title       string    `json:"title"`
	SelfText    string    `json:"selftext,omitempty"`
	Author      string    `json:"author"`
	URL         string    `json:"url,omitempty"`
	Permalink   string    `json:"permalink"`
	Score       int       `json:"score"`
	NumComments int       `json:"num_comments"`
	CreatedAt   time.Time `json:"created_at"`
	Deleted     bool      `json:"deleted,omitempty"`
}

// Comment is one node of a thread tree. Replies nest recursively.
type Comment struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	Score     int       `json:"score"`
	LinkID    string    `json:"link_id"`
	ParentID  string    `json:"parent_id,omitempty"`
	Permalink string    `json:"permalink"`
	CreatedAt time.Time `json:"created_at"`
	Replies   []Comment `json:"replies,omitempty"`
}

// Mod log action kinds consumed by the spam-count query.
const (
	ActionRemoveComment = "removecomment"
	ActionRemoveLink    = "removelink"
	ActionBanUser       = "banuser"
)

// ModLogEntry is one moderation action from the host mod log.
type ModLogEntry struct {
	Action     string    `json:"action"`
	TargetUser string    `json:"target_user"`
	CreatedAt  time.Time `json:"created_at"`
}
