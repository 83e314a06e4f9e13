package store

import "fmt"

// Durable document pages. These mirror the wiki pages the host platform
// exposes, so the postgres and wiki backends stay interchangeable.
const (
	PageLeaderboard  = "hub-bot-9000/hater-leaderboard"
	PageEventsFeed   = "hub-bot-9000/events-feed"
	PageAchievements = "hub-bot-9000/user-achievements"
	PageAnalyses     = "hub-bot-9000/thread-analyses"
	PageOptOut       = "hub-bot-9000/opt-out"
)

// EventKey is the KV key for a stored brigade event.
func EventKey(id string) string {
	return "brigade:event:" + id
}

// ProcessedKey marks a candidate as already handled by the scanner.
func ProcessedKey(candidateID string) string {
	return "brigade:processed:" + candidateID
}

// LastScanKey holds the epoch-millisecond watermark of the last scan.
func LastScanKey(community string) string {
	return "brigade:lastScan:" + community
}

// VelocityKey holds the comment timestamp series for a post.
func VelocityKey(postID string) string {
	return "brigade:velocity:" + postID
}

// SpikeAlertKey marks that a traffic-spike alert already fired for a post.
func SpikeAlertKey(postID string) string {
	return "brigade:spikeAlert:" + postID
}

// AchievementsKey holds a user's durable achievement record.
func AchievementsKey(user string) string {
	return "brigade:achievements:" + user
}

// TalkingPointsKey holds a user's talking-point detection record.
func TalkingPointsKey(user string) string {
	return "brigade:talkingpoints:" + user
}

// RateLimitKey holds a windowed request counter for a bucket.
func RateLimitKey(bucket string, id string) string {
	return fmt.Sprintf("ratelimit:%s:%s", bucket, id)
}

// ClassificationKey caches a community-level classification result.
func ClassificationKey(community string) string {
	return "classification:" + community
}
