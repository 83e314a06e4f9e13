package hostapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Error kinds every outbound search call collapses to. Callers log and move
// on; none of these propagate past a handler boundary.
var (
	ErrTimeout     = errors.New("hostapi: timeout")
	ErrRateLimited = errors.New("hostapi: rate limited")
	ErrUnavailable = errors.New("hostapi: unavailable")
	ErrParse       = errors.New("hostapi: parse error")
)

const archiveTimeout = 10 * time.Second

// ArchiveSubmission is the archive API's submission shape.
type ArchiveSubmission struct {
	ID          string  `json:"id"`
	Author      string  `json:"author"`
	Title       string  `json:"title"`
	SelfText    string  `json:"selftext,omitempty"`
	URL         string  `json:"url,omitempty"`
	Permalink   string  `json:"permalink"`
	CreatedUTC  float64 `json:"created_utc"`
	Subreddit   string  `json:"subreddit"`
	Score       int     `json:"score,omitempty"`
	NumComments int     `json:"num_comments,omitempty"`
}

// ArchiveComment is the archive API's comment shape.
type ArchiveComment struct {
	ID         string  `json:"id"`
	Author     string  `json:"author"`
	Body       string  `json:"body"`
	LinkID     string  `json:"link_id"`
	ParentID   string  `json:"parent_id,omitempty"`
	Permalink  string  `json:"permalink"`
	CreatedUTC float64 `json:"created_utc"`
	Score      int     `json:"score,omitempty"`
}

// ArchiveClient talks to the pullpush-style archive search API.
type ArchiveClient struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

func NewArchiveClient(baseURL string, logger *zap.Logger) *ArchiveClient {
	c := &ArchiveClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: archiveTimeout},
		logger:  logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "archive",
		Timeout: 2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return c
}

// SearchSubmissions finds archived posts whose URL or text contains q.
func (c *ArchiveClient) SearchSubmissions(ctx context.Context, q string, after time.Time, limit int) ([]ArchiveSubmission, error) {
	params := url.Values{}
	params.Set("q", q)
	if !after.IsZero() {
		params.Set("after", strconv.FormatInt(after.Unix(), 10))
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var out struct {
		Data []ArchiveSubmission `json:"data"`
	}
	if err := c.get(ctx, "/reddit/search/submission/", params, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// SearchComments returns archived comments of one post.
func (c *ArchiveClient) SearchComments(ctx context.Context, linkID string, after time.Time) ([]ArchiveComment, error) {
	params := url.Values{}
	params.Set("link_id", linkID)
	if !after.IsZero() {
		params.Set("after", strconv.FormatInt(after.Unix(), 10))
	}

	var out struct {
		Data []ArchiveComment `json:"data"`
	}
	if err := c.get(ctx, "/reddit/search/comment/", params, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// CountDeletedComments counts archived comments of a post whose live body was
// since removed or deleted.
func (c *ArchiveClient) CountDeletedComments(ctx context.Context, linkID string, after time.Time) (int, error) {
	comments, err := c.SearchComments(ctx, linkID, after)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, cm := range comments {
		body := strings.TrimSpace(cm.Body)
		if body == "[removed]" || body == "[deleted]" {
			count++
		}
	}
	return count, nil
}

func (c *ArchiveClient) get(ctx context.Context, path string, params url.Values, v any) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.getOnce(ctx, path, params, v)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrUnavailable
	}
	return err
}

func (c *ArchiveClient) getOnce(ctx context.Context, path string, params url.Values, v any) error {
	reqURL := c.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("User-Agent", "hub-bot-9000/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return ErrTimeout
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: HTTP %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: HTTP %d", ErrParse, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", ErrParse, err)
	}
	return nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
