// Package storage keeps answer recordings on local disk or in S3.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/snarg/mockprep/internal/config"
)

// ErrInvalidKey is returned for keys that are empty, absolute or escape the store root.
var ErrInvalidKey = errors.New("invalid storage key")

// RecordingStore abstracts recording storage backends.
type RecordingStore interface {
	// Save stores recording data. key format: {user_id}/{interview_id}/{answer_id}.{ext}
	Save(ctx context.Context, key string, data []byte, contentType string) error

	// URL returns a presigned URL for the recording.
	// Returns "" for local-only backends.
	URL(ctx context.Context, key string) (string, error)

	// Open returns a reader for the recording.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists checks if a recording exists.
	Exists(ctx context.Context, key string) bool

	// Type returns "local" or "s3".
	Type() string
}

// New creates a RecordingStore based on config. Returns an error if S3 is
// configured but unreachable.
func New(cfg config.S3Config, dir string, log zerolog.Logger) (RecordingStore, error) {
	log = log.With().Str("component", "storage").Logger()
	if !cfg.Enabled() {
		log.Info().Str("dir", dir).Msg("recordings stored locally")
		return NewLocalStore(dir), nil
	}

	s3store, err := NewS3Store(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("S3 init failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s3store.HeadBucket(ctx); err != nil {
		return nil, fmt.Errorf("S3 startup check failed (bucket=%q endpoint=%q): %w",
			cfg.Bucket, cfg.Endpoint, err)
	}
	log.Info().Str("bucket", cfg.Bucket).Str("endpoint", cfg.Endpoint).Msg("S3 connection verified")
	return s3store, nil
}

// cleanKey validates a slash-separated key and returns it in canonical form.
func cleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	c := path.Clean(key)
	if c == "." || c == ".." || strings.HasPrefix(c, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return c, nil
}

// ContentTypeForKey guesses a recording's content type from its extension.
func ContentTypeForKey(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".webm":
		return "audio/webm"
	case ".ogg", ".oga":
		return "audio/ogg"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".m4a":
		return "audio/mp4"
	case ".mp4":
		return "video/mp4"
	}
	return "application/octet-stream"
}

// ExtensionForContentType is the inverse of ContentTypeForKey. Unknown audio
// and video types map to "bin"; ok is false for anything else.
func ExtensionForContentType(contentType string) (ext string, ok bool) {
	base, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(contentType)), ";")
	base = strings.TrimSpace(base)
	switch base {
	case "audio/webm", "video/webm":
		return "webm", true
	case "audio/ogg":
		return "ogg", true
	case "audio/mpeg", "audio/mp3":
		return "mp3", true
	case "audio/wav", "audio/x-wav", "audio/wave":
		return "wav", true
	case "audio/mp4", "audio/x-m4a":
		return "m4a", true
	case "video/mp4":
		return "mp4", true
	}
	if strings.HasPrefix(base, "audio/") || strings.HasPrefix(base, "video/") {
		return "bin", true
	}
	return "", false
}
