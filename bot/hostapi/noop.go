package hostapi

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// NoopClient is a stand-in host binding for local runs without a platform
// connection: writes are logged instead of performed, reads report nothing.
// The real binding is injected by the host runtime.
type NoopClient struct {
	logger *zap.Logger
}

func NewNoopClient(logger *zap.Logger) *NoopClient {
	return &NoopClient{logger: logger}
}

func (c *NoopClient) Search(ctx context.Context, community string, query string, limit int) ([]Post, error) {
	c.logger.Debug("noop host: search", zap.String("community", community), zap.String("query", query))
	return nil, nil
}

func (c *NoopClient) GetPost(ctx context.Context, postID string) (*Post, error) {
	return nil, ErrNotFound
}

func (c *NoopClient) HotPosts(ctx context.Context, community string, limit int) ([]Post, error) {
	return nil, nil
}

func (c *NoopClient) FetchThread(ctx context.Context, url string) (*Post, []Comment, error) {
	return nil, nil, ErrNotFound
}

func (c *NoopClient) SubmitComment(ctx context.Context, postID string, body string) (string, error) {
	c.logger.Info("noop host: submit comment", zap.String("post", postID), zap.Int("bytes", len(body)))
	return "noop-comment", nil
}

func (c *NoopClient) Distinguish(ctx context.Context, commentID string, sticky bool) error {
	c.logger.Info("noop host: distinguish", zap.String("comment", commentID), zap.Bool("sticky", sticky))
	return nil
}

func (c *NoopClient) SendModmail(ctx context.Context, subject string, body string) error {
	c.logger.Info("noop host: modmail", zap.String("subject", subject))
	return nil
}

func (c *NoopClient) ModLog(ctx context.Context, community string, since time.Time) ([]ModLogEntry, error) {
	return nil, nil
}

func (c *NoopClient) WikiRead(ctx context.Context, page string) (string, error) {
	return "", ErrNotFound
}

func (c *NoopClient) WikiWrite(ctx context.Context, page string, content string) error {
	c.logger.Info("noop host: wiki write", zap.String("page", page), zap.Int("bytes", len(content)))
	return nil
}
