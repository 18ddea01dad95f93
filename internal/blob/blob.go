// Package blob stores uploaded documents and hands out download URLs.
package blob

import (
	"context"
	"io"
	"mime"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/hl-compare/hl-compare/internal/config"
)

// Object describes a stored upload.
type Object struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

// Store keeps uploads and resolves their download URLs.
type Store interface {
	Put(ctx context.Context, name string, r io.Reader, size int64) (Object, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	URL(ctx context.Context, key string) (string, error)
}

// New creates a Store based on config.
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Provider {
	case "local", "":
		return NewLocal(cfg.Dir, cfg.BaseURL)
	case "minio":
		return NewMinIO(ctx, cfg.MinIO)
	default:
		return nil, eris.Errorf("blob: unknown provider %q", cfg.Provider)
	}
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

const maxNameLen = 100

// SanitizeName reduces a client filename to a safe base name.
func SanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.TrimLeft(name, "._")
	if len(name) > maxNameLen {
		ext := filepath.Ext(name)
		if len(ext) > 10 {
			ext = ""
		}
		name = name[:maxNameLen-len(ext)] + ext
	}
	if name == "" {
		return "file"
	}
	return name
}

// NewKey returns a unique storage key for name. Keys never collide, so two
// uploads with the same filename never overwrite each other.
func NewKey(name string) string {
	return uuid.NewString() + "_" + SanitizeName(name)
}

// ValidKey reports whether key is a single path element this package could
// have produced.
func ValidKey(key string) bool {
	return key != "" && key != "." && key != ".." &&
		!strings.ContainsAny(key, `/\`) && SanitizeName(key) == key
}

func contentType(name string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
