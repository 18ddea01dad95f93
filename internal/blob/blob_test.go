package blob

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hl-compare/hl-compare/internal/config"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"report.pdf", "report.pdf"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\me\Q3 results (final).xlsx`, "Q3_results_final_.xlsx"},
		{".hidden", "hidden"},
		{"", "file"},
		{"///", "file"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeName(tt.in))
		})
	}

	long := strings.Repeat("a", 150) + ".pdf"
	got := SanitizeName(long)
	assert.Len(t, got, maxNameLen)
	assert.True(t, strings.HasSuffix(got, ".pdf"))
}

func TestNewKey_Unique(t *testing.T) {
	a, b := NewKey("report.pdf"), NewKey("report.pdf")
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasSuffix(a, "_report.pdf"))
	assert.True(t, ValidKey(a))
}

func TestValidKey(t *testing.T) {
	assert.False(t, ValidKey(""))
	assert.False(t, ValidKey(".."))
	assert.False(t, ValidKey("a/b"))
	assert.False(t, ValidKey(`a\b`))
	assert.False(t, ValidKey("a b.pdf"))
	assert.True(t, ValidKey("abc_report.pdf"))
}

func TestNew_Providers(t *testing.T) {
	s, err := New(context.Background(), config.StorageConfig{Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &Local{}, s)

	_, err = New(context.Background(), config.StorageConfig{Provider: "ftp"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown provider "ftp"`)
}

func TestLocal_PutOpenURL(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	l, err := NewLocal(dir, "/files/")
	require.NoError(t, err)
	ctx := context.Background()

	obj, err := l.Put(ctx, "../Apple 10-K.pdf", bytes.NewReader([]byte("pdf bytes")), 9)
	require.NoError(t, err)
	assert.Equal(t, "../Apple 10-K.pdf", obj.Name)
	assert.Equal(t, int64(9), obj.Size)
	assert.True(t, strings.HasSuffix(obj.Key, "_Apple_10-K.pdf"))
	assert.Equal(t, "/files/"+obj.Key, obj.URL)

	_, err = os.Stat(filepath.Join(dir, obj.Key))
	require.NoError(t, err, "file stays inside the storage dir")

	rc, err := l.Open(ctx, obj.Key)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "pdf bytes", string(body))

	u, err := l.URL(ctx, obj.Key)
	require.NoError(t, err)
	assert.Equal(t, obj.URL, u)
}

func TestLocal_SameNameDoesNotOverwrite(t *testing.T) {
	l, err := NewLocal(t.TempDir(), "")
	require.NoError(t, err)
	ctx := context.Background()

	a, err := l.Put(ctx, "notes.txt", strings.NewReader("one"), 3)
	require.NoError(t, err)
	b, err := l.Put(ctx, "notes.txt", strings.NewReader("two"), 3)
	require.NoError(t, err)
	assert.NotEqual(t, a.Key, b.Key)

	rc, err := l.Open(ctx, a.Key)
	require.NoError(t, err)
	defer rc.Close() //nolint:errcheck
	body, _ := io.ReadAll(rc)
	assert.Equal(t, "one", string(body))
}

func TestLocal_RejectsTraversal(t *testing.T) {
	l, err := NewLocal(t.TempDir(), "/files")
	require.NoError(t, err)

	_, err = l.Open(context.Background(), "../secret")
	assert.Error(t, err)
	_, err = l.URL(context.Background(), "a/b")
	assert.Error(t, err)
}

func TestNewLocal_RequiresDir(t *testing.T) {
	_, err := NewLocal("", "/files")
	assert.Error(t, err)
}

func TestMinIO_PresignedURL(t *testing.T) {
	cli, err := minio.New("localhost:9000", &minio.Options{
		Creds:  credentials.NewStaticV4("access", "secret", ""),
		Region: "us-east-1",
	})
	require.NoError(t, err)

	m := newMinIO(cli, "hl-compare", 0)
	assert.Equal(t, time.Hour, m.ttl)

	u, err := m.URL(context.Background(), "abc_report.pdf")
	require.NoError(t, err)
	assert.Contains(t, u, "/hl-compare/abc_report.pdf")
	assert.Contains(t, u, "X-Amz-Signature=")
	assert.Contains(t, u, "X-Amz-Expires=3600")

	_, err = m.URL(context.Background(), "../x")
	assert.Error(t, err)
}

func TestNewMinIO_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewMinIO(ctx, config.MinIOConfig{
		Endpoint:  "127.0.0.1:1",
		Region:    "us-east-1",
		Bucket:    "hl-compare",
		AccessKey: "a",
		SecretKey: "b",
	})
	assert.Error(t, err)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/pdf", contentType("a.PDF"))
	assert.Equal(t, "application/octet-stream", contentType("a.unknownext"))
}
