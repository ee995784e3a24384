package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/consultation-extract/internal/common"
)

type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	opts    map[string]PutObjectOptions
	err     error
}

func (m *memStorage) Put(_ context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	if m.err != nil {
		return ObjectInfo{}, m.err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return ObjectInfo{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = map[string][]byte{}
		m.opts = map[string]PutObjectOptions{}
	}
	m.objects[key] = b
	m.opts[key] = opt
	return ObjectInfo{Key: key, Size: int64(len(b))}, nil
}

func TestArchiveReport(t *testing.T) {
	p := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, os.WriteFile(p, []byte("workbook"), 0o644))

	st := &memStorage{}
	info, err := ArchiveReport(context.Background(), st, "run-1", p)
	require.NoError(t, err)
	assert.Equal(t, "reports/run-1.xlsx", info.Key)
	assert.Equal(t, []byte("workbook"), st.objects["reports/run-1.xlsx"])
	assert.Equal(t, XLSXContentType, st.opts["reports/run-1.xlsx"].ContentType)
	assert.EqualValues(t, 8, st.opts["reports/run-1.xlsx"].Size)
}

func TestArchiveReport_Errors(t *testing.T) {
	_, err := ArchiveReport(context.Background(), &memStorage{}, "run-1", filepath.Join(t.TempDir(), "missing.xlsx"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	p := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	boom := errors.New("boom")
	_, err = ArchiveReport(context.Background(), &memStorage{err: boom}, "run-1", p)
	assert.ErrorIs(t, err, boom)
}

func TestNewMinIO_Validation(t *testing.T) {
	ctx := context.Background()
	_, err := NewMinIO(ctx, common.ArchiveConfig{})
	assert.ErrorContains(t, err, "endpoint")
	_, err = NewMinIO(ctx, common.ArchiveConfig{Endpoint: "localhost:9000", Bucket: "b"})
	assert.ErrorContains(t, err, "credentials")
	_, err = NewMinIO(ctx, common.ArchiveConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s"})
	assert.ErrorContains(t, err, "bucket")
}

// fakeS3 answers just enough of the S3 API for bucket checks and single-part uploads.
func fakeS3(t *testing.T) (*httptest.Server, *bytes.Buffer) {
	t.Helper()
	var body bytes.Buffer
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(http.StatusOK)
		case http.MethodPut:
			_, _ = io.Copy(&body, r.Body)
			w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &body
}

func TestMinIO_Put(t *testing.T) {
	srv, body := fakeS3(t)
	st, err := NewMinIO(context.Background(), common.ArchiveConfig{
		Endpoint:  strings.TrimPrefix(srv.URL, "http://"),
		AccessKey: "access",
		SecretKey: "secret",
		Bucket:    "reports",
	})
	require.NoError(t, err)

	info, err := st.Put(context.Background(), "reports/run-1.xlsx", strings.NewReader("data"), PutObjectOptions{Size: 4, ContentType: XLSXContentType})
	require.NoError(t, err)
	assert.Equal(t, "reports/run-1.xlsx", info.Key)
	assert.Contains(t, body.String(), "data")
}
