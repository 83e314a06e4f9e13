// Package hostapi holds the narrow interfaces through which the pipeline
// talks to the host platform, plus the archive search client. The core never
// assumes transactional guarantees across two host calls.
package hostapi

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrPermissionDenied is returned when an operation needs mod privileges the
// bot account does not hold. Call sites swallow it.
var ErrPermissionDenied = errors.New("hostapi: permission denied")

// ErrNotFound is returned for missing posts and wiki pages.
var ErrNotFound = errors.New("hostapi: not found")

// Searcher finds posts on the host platform itself.
type Searcher interface {
	// Search runs a keyword search restricted to one community. A window of
	// one week back from now is applied server-side.
	Search(ctx context.Context, community string, query string, limit int) ([]Post, error)
}

// Reader fetches posts and threads.
type Reader interface {
	GetPost(ctx context.Context, postID string) (*Post, error)
	HotPosts(ctx context.Context, community string, limit int) ([]Post, error)
	// FetchThread loads a post and its full comment tree from a permalink URL.
	FetchThread(ctx context.Context, url string) (*Post, []Comment, error)
}

// Commenter submits and promotes comments.
type Commenter interface {
	// SubmitComment returns the new comment's id.
	SubmitComment(ctx context.Context, postID string, body string) (string, error)
	// Distinguish marks a comment as a mod sticky. Returns
	// ErrPermissionDenied when the account lacks privileges.
	Distinguish(ctx context.Context, commentID string, sticky bool) error
}

// Modmailer sends mail to the community's moderators.
type Modmailer interface {
	SendModmail(ctx context.Context, subject string, body string) error
}

// ModLogReader queries moderation actions.
type ModLogReader interface {
	// ModLog returns actions taken in the community since the given time.
	ModLog(ctx context.Context, community string, since time.Time) ([]ModLogEntry, error)
}

// Wiki reads and writes plaintext wiki pages.
type Wiki interface {
	WikiRead(ctx context.Context, page string) (string, error)
	WikiWrite(ctx context.Context, page string, content string) error
}

// Client is the full host surface the pipeline consumes.
type Client interface {
	Searcher
	Reader
	Commenter
	Modmailer
	ModLogReader
	Wiki
}

// WikiDocuments adapts the wiki surface to the store.Documents interface so
// durable documents can live on host wiki pages when no postgres backend is
// configured.
type WikiDocuments struct {
	wiki Wiki
}

func NewWikiDocuments(wiki Wiki) *WikiDocuments {
	return &WikiDocuments{wiki: wiki}
}

func (w *WikiDocuments) Load(ctx context.Context, page string, v any) (bool, error) {
	content, err := w.wiki.WikiRead(ctx, page)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if content == "" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(content), v); err != nil {
		return false, err
	}
	return true, nil
}

func (w *WikiDocuments) Save(ctx context.Context, page string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return w.wiki.WikiWrite(ctx, page, string(data))
}
