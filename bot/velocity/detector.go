// Package velocity watches per-post comment rates and alerts on spikes.
package velocity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/r-seattle-wa/hub-bot-9000/bot/feed"
	"github.com/r-seattle-wa/hub-bot-9000/bot/hostapi"
	"github.com/r-seattle-wa/hub-bot-9000/bot/observability"
	"github.com/r-seattle-wa/hub-bot-9000/bot/store"
)

const (
	seriesRetention = time.Hour
	seriesTTL       = 2 * time.Hour
	window          = 5 * time.Minute
	alertCooldown   = time.Hour
)

// Detector tracks a bounded timestamp series per post and fires at most one
// alert per post per hour.
type Detector struct {
	kv        store.KV
	reader    hostapi.Reader
	modmail   hostapi.Modmailer
	events    *feed.Feed
	community string
	threshold int
	logger    *zap.Logger
	now       func() time.Time
}

func NewDetector(kv store.KV, reader hostapi.Reader, modmail hostapi.Modmailer, events *feed.Feed, community string, threshold int, logger *zap.Logger) *Detector {
	return &Detector{
		kv:        kv,
		reader:    reader,
		modmail:   modmail,
		events:    events,
		community: community,
		threshold: threshold,
		logger:    logger,
		now:       time.Now,
	}
}

// SetClock overrides the time source for tests.
func (d *Detector) SetClock(now func() time.Time) { d.now = now }

// OnComment records one comment event for the post and fires a spike alert
// when the rolling five-minute window crosses the threshold.
func (d *Detector) OnComment(ctx context.Context, postID string) error {
	now := d.now()

	series, err := d.loadSeries(ctx, postID)
	if err != nil {
		return err
	}

	// Drop timestamps outside the retention horizon, then append.
	cutoff := now.Add(-seriesRetention).UnixMilli()
	kept := series[:0]
	for _, ts := range series {
		if ts >= cutoff {
			kept = append(kept, ts)
		}
	}
	kept = append(kept, now.UnixMilli())

	if err := d.saveSeries(ctx, postID, kept); err != nil {
		return err
	}

	windowStart := now.Add(-window).UnixMilli()
	count := 0
	for _, ts := range kept {
		if ts > windowStart {
			count++
		}
	}
	if count < d.threshold {
		return nil
	}

	// One alert per post per hour: the marker is the gate.
	first, err := d.kv.SetNX(ctx, store.SpikeAlertKey(postID), "1", alertCooldown)
	if err != nil || !first {
		return err
	}

	d.alert(ctx, postID, count)
	return nil
}

func (d *Detector) alert(ctx context.Context, postID string, count int) {
	observability.SpikeAlerts.Inc()

	// The post may already be deleted; the alert goes out regardless.
	title := ""
	if post, err := d.reader.GetPost(ctx, postID); err == nil && post != nil {
		title = post.Title
	}

	subject := fmt.Sprintf("Traffic spike on %s", postID)
	body := fmt.Sprintf("Unusual comment activity detected.\n\nPost: %s\n", postID)
	if title != "" {
		body += fmt.Sprintf("Title: %s\n", title)
	}
	body += fmt.Sprintf("Comments in last 5 min: %d (threshold: %d)", count, d.threshold)

	if err := d.modmail.SendModmail(ctx, subject, body); err != nil {
		d.logger.Warn("spike modmail failed", zap.String("post", postID), zap.Error(err))
	}

	if err := d.events.Emit(ctx, feed.TypeTrafficSpike, d.community, feed.TrafficSpikePayload{
		PostID:           postID,
		Title:            title,
		WindowMinutes:    int(window / time.Minute),
		CommentsInWindow: count,
		Threshold:        d.threshold,
	}); err != nil {
		d.logger.Warn("spike feed emit failed", zap.Error(err))
	}

	d.logger.Info("traffic spike detected",
		zap.String("post", postID),
		zap.Int("comments_in_window", count),
		zap.Int("threshold", d.threshold))
}

func (d *Detector) loadSeries(ctx context.Context, postID string) ([]int64, error) {
	val, ok, err := d.kv.Get(ctx, store.VelocityKey(postID))
	if err != nil || !ok {
		return nil, err
	}
	var series []int64
	if err := json.Unmarshal([]byte(val), &series); err != nil {
		// A corrupt series starts over rather than wedging the detector.
		d.logger.Warn("corrupt velocity series, resetting", zap.String("post", postID))
		return nil, nil
	}
	return series, nil
}

func (d *Detector) saveSeries(ctx context.Context, postID string, series []int64) error {
	data, err := json.Marshal(series)
	if err != nil {
		return err
	}
	return d.kv.Set(ctx, store.VelocityKey(postID), string(data), seriesTTL)
}
