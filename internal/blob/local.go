package blob

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Local stores uploads in a directory served under a base URL.
type Local struct {
	dir     string
	baseURL string
}

// NewLocal creates the directory if needed.
func NewLocal(dir, baseURL string) (*Local, error) {
	if dir == "" {
		return nil, eris.New("blob: local dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "blob: create dir %s", dir)
	}
	if baseURL == "" {
		baseURL = "/files"
	}
	return &Local{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Dir returns the storage directory.
func (l *Local) Dir() string { return l.dir }

// Put writes r to a new file.
func (l *Local) Put(_ context.Context, name string, r io.Reader, _ int64) (Object, error) {
	key := NewKey(name)
	f, err := os.OpenFile(filepath.Join(l.dir, key), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return Object{}, eris.Wrap(err, "blob: create file")
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(f.Name()) //nolint:errcheck
		return Object{}, eris.Wrap(err, "blob: write file")
	}
	return Object{Key: key, Name: name, Size: n, URL: l.urlFor(key)}, nil
}

// Open returns the stored file.
func (l *Local) Open(_ context.Context, key string) (io.ReadCloser, error) {
	if !ValidKey(key) {
		return nil, eris.Errorf("blob: invalid key %q", key)
	}
	f, err := os.Open(filepath.Join(l.dir, key))
	if err != nil {
		return nil, eris.Wrapf(err, "blob: open %s", key)
	}
	return f, nil
}

// URL returns the public path of key.
func (l *Local) URL(_ context.Context, key string) (string, error) {
	if !ValidKey(key) {
		return "", eris.Errorf("blob: invalid key %q", key)
	}
	return l.urlFor(key), nil
}

func (l *Local) urlFor(key string) string {
	return l.baseURL + "/" + url.PathEscape(key)
}
