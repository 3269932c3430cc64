// Package storage persists lesson media: the video a teacher uploads and
// the audio track extracted from it for listening practice.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/snarg/speakdrill/internal/config"
)

// MediaStore is the blob backend for lesson media. Keys are opaque to the
// store; LessonKeys defines their layout.
type MediaStore interface {
	Save(ctx context.Context, key string, data []byte, contentType string) error

	// Open returns a reader for the object, for streaming through the API.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// URL returns a presigned link for direct playback, or "" when the
	// backend has none and the API must serve the object itself.
	URL(ctx context.Context, key string) (string, error)

	// Type returns "local" or "s3".
	Type() string
}

// LessonKeys are the paired object keys for one lesson upload: the original
// video and the mp3 sibling the extraction step writes next to it.
type LessonKeys struct {
	Video string
	Audio string
}

// NewLessonKeys derives the key pair under the uploading student's prefix:
// {student}/{YYYY-MM-DD}/{uuid}{ext}. The student prefix is what the media
// endpoint checks ownership against, so it must come first.
func NewLessonKeys(studentID, filename string) LessonKeys {
	ext := strings.ToLower(path.Ext(filename))
	if ext == "" {
		ext = ".mp4"
	}
	base := path.Join(studentID, time.Now().UTC().Format("2006-01-02"), uuid.NewString())
	return LessonKeys{
		Video: base + ext,
		Audio: base + ".mp3",
	}
}

// New creates a MediaStore based on config. Returns an error if S3 is
// configured but unreachable.
func New(cfg config.S3Config, mediaDir string, log zerolog.Logger) (MediaStore, error) {
	if !cfg.Enabled() {
		return NewLocalStore(mediaDir), nil
	}

	s3store, err := NewS3Store(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("S3 init failed: %w", err)
	}

	// Startup validation: verify credentials and bucket access
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s3store.HeadBucket(ctx); err != nil {
		return nil, fmt.Errorf("S3 startup check failed (bucket=%q endpoint=%q): %w",
			cfg.Bucket, cfg.Endpoint, err)
	}
	log.Info().Str("bucket", cfg.Bucket).Str("endpoint", cfg.Endpoint).Msg("S3 connection verified")

	return s3store, nil
}
