package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// Classification is the tone attached to a discovered cross-link.
// The ordering matters: higher values are more severe.
type Classification int

const (
	Friendly Classification = iota
	Neutral
	Adversarial
	Hateful
)

var classificationNames = [...]string{"friendly", "neutral", "adversarial", "hateful"}

func (c Classification) String() string {
	if c < Friendly || c > Hateful {
		return "neutral"
	}
	return classificationNames[c]
}

// ParseClassification maps a label back to its Classification.
// Unknown labels report ok=false so call sites can fall back to Neutral.
func ParseClassification(s string) (Classification, bool) {
	for i, name := range classificationNames {
		if name == s {
			return Classification(i), true
		}
	}
	return Neutral, false
}

func (c Classification) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Classification) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, ok := ParseClassification(s)
	if !ok {
		return fmt.Errorf("unknown classification %q", s)
	}
	*c = parsed
	return nil
}

// Candidate is a post discovered in another community that may link back to
// the protected one. Source identifies which strategy produced it.
type Candidate struct {
	ID        string    `json:"id"`
	Community string    `json:"community"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	URL       string    `json:"url"`
	Permalink string    `json:"permalink"`
	Author    string    `json:"author"`
	Source    string    `json:"source"` // "native", "archive", "ai"
	CreatedAt time.Time `json:"created_at"`
}

// Hater is one ranked participant extracted from an analyzed thread.
type Hater struct {
	Username     string `json:"username"`
	Points       int    `json:"points"`
	BestScore    int    `json:"best_score"`
	Quote        string `json:"quote"`
	QuoteLink    string `json:"quote_link,omitempty"`
	IsPostAuthor bool   `json:"is_post_author,omitempty"`
}

// ThreadAnalysis is the result of analyzing a linked thread.
type ThreadAnalysis struct {
	Haters         []Hater   `json:"haters"`
	CommentCount   int       `json:"comment_count"`
	TargetMentions int       `json:"target_mentions"`
	PostTitle      string    `json:"post_title"`
	PostAuthor     string    `json:"post_author"`
	PostScore      int       `json:"post_score"`
	AnalyzedAt     time.Time `json:"analyzed_at"`
}

// BrigadeEvent is the durable record of one detected cross-link.
// The ID is candidateID + "-" + targetPostID. Once NotifiedAt is set the
// record is terminal and must not be mutated again.
type BrigadeEvent struct {
	ID              string          `json:"id"`
	TargetPostID    string          `json:"target_post_id"`
	SourceCommunity string          `json:"source_community"`
	SourcePostID    string          `json:"source_post_id"`
	SourcePostURL   string          `json:"source_post_url"`
	SourcePostTitle string          `json:"source_post_title"`
	SourceAuthor    string          `json:"source_author"`
	Source          string          `json:"source"`
	DetectedAt      time.Time       `json:"detected_at"`
	NotifiedAt      *time.Time      `json:"notified_at,omitempty"`
	Classification  Classification  `json:"classification"`
	Analysis        *ThreadAnalysis `json:"analysis,omitempty"`
}
