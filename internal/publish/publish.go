package publish

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/deusflow/autopost/internal/logger"
)

var (
	// ErrRateLimited means the posting API refused the request because of
	// its rate limit. Callers stop the run instead of waiting.
	ErrRateLimited = errors.New("rate limited by posting API")
	// ErrDuplicate means the API rejected the post as duplicate content.
	ErrDuplicate = errors.New("duplicate content rejected by posting API")
)

// Image is an attachment uploaded with a post. Either Data or URL is set.
type Image struct {
	Data        []byte
	ContentType string
	Name        string
	URL         string
}

type Post struct {
	Text    string
	Image   *Image
	ReplyTo string
}

// Publisher posts statuses to one social network.
type Publisher interface {
	Name() string
	// Verify authenticates and returns the account handle.
	Verify(ctx context.Context) (string, error)
	// Publish sends post and returns the new status id.
	Publish(ctx context.Context, post Post) (string, error)
}

// ImageFromFile reads a local image attachment.
func ImageFromFile(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image %s: %w", path, err)
	}
	return &Image{Data: data, ContentType: contentTypeOf(path), Name: filepath.Base(path)}, nil
}

func contentTypeOf(path string) string {
	switch filepath.Ext(path) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	}
	return "image/jpeg"
}

// Dry logs posts instead of sending them.
type Dry struct {
	Target string
	n      atomic.Int64
}

func (d *Dry) Name() string { return "dry:" + d.Target }

func (d *Dry) Verify(ctx context.Context) (string, error) {
	return "dry-run", nil
}

func (d *Dry) Publish(ctx context.Context, post Post) (string, error) {
	id := fmt.Sprintf("dry-%d", d.n.Add(1))
	args := []any{"target", d.Target, "id", id, "chars", len([]rune(post.Text)), "text", post.Text}
	if post.Image != nil {
		args = append(args, "image", post.Image.Name)
	}
	if post.ReplyTo != "" {
		args = append(args, "reply_to", post.ReplyTo)
	}
	logger.Info("DRY RUN: would post", args...)
	return id, nil
}
