package archive

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openvital/smartva-bridge/internal/config"
)

type recordingServer struct {
	*httptest.Server
	mu     sync.Mutex
	puts   []string
	bodies map[string]string
}

func newRecordingServer(t *testing.T) *recordingServer {
	t.Helper()
	rs := &recordingServer{bodies: map[string]string{}}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		rs.mu.Lock()
		rs.puts = append(rs.puts, r.Method+" "+r.URL.Path)
		rs.bodies[r.URL.Path] = string(body)
		rs.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(rs.Close)
	return rs
}

func newTestArchiver(t *testing.T, endpoint string) *S3Archiver {
	t.Helper()
	a, err := NewS3Archiver(context.Background(), config.ArchiveConfig{
		Enabled:   true,
		Bucket:    "va-archive",
		Region:    "eu-west-1",
		Endpoint:  endpoint,
		AccessKey: "test",
		SecretKey: "test",
	})
	require.NoError(t, err)
	require.NotNil(t, a)
	a.now = func() time.Time {
		return time.Date(2026, 2, 20, 10, 0, 0, 0, time.UTC)
	}
	return a
}

func TestNewS3ArchiverDisabled(t *testing.T) {
	a, err := NewS3Archiver(context.Background(), config.ArchiveConfig{})
	require.NoError(t, err)
	assert.Nil(t, a)
}

func TestStoreUploadsArtifacts(t *testing.T) {
	server := newRecordingServer(t)
	a := newTestArchiver(t, server.URL)

	dir := t.TempDir()
	raw := filepath.Join(dir, "briefcase_20260220T100000Z.csv")
	classified := filepath.Join(dir, "individual-cause-of-death.csv")
	require.NoError(t, os.WriteFile(raw, []byte("meta,sid\nu1,VA_1\n"), 0o644))
	require.NoError(t, os.WriteFile(classified, []byte("sid,cause\nVA_1,Stroke\n"), 0o644))

	a.Store(context.Background(), "ab12cd34", raw, classified)

	server.mu.Lock()
	defer server.mu.Unlock()
	require.Len(t, server.puts, 2)
	assert.Equal(t, "PUT /va-archive/runs/2026/02/20/ab12cd34/briefcase_20260220T100000Z.csv", server.puts[0])
	assert.Equal(t, "PUT /va-archive/runs/2026/02/20/ab12cd34/individual-cause-of-death.csv", server.puts[1])
	assert.Contains(t, server.bodies["/va-archive/runs/2026/02/20/ab12cd34/individual-cause-of-death.csv"], "VA_1")
}

func TestStoreAppliesPrefix(t *testing.T) {
	server := newRecordingServer(t)
	a := newTestArchiver(t, server.URL)
	a.prefix = "smartva"

	file := filepath.Join(t.TempDir(), "raw.csv")
	require.NoError(t, os.WriteFile(file, []byte("sid\nVA_1\n"), 0o644))

	a.Store(context.Background(), "run1", file)

	server.mu.Lock()
	defer server.mu.Unlock()
	require.Len(t, server.puts, 1)
	assert.Equal(t, "PUT /va-archive/smartva/runs/2026/02/20/run1/raw.csv", server.puts[0])
}

func TestStoreMissingFileDoesNotUpload(t *testing.T) {
	server := newRecordingServer(t)
	a := newTestArchiver(t, server.URL)

	a.Store(context.Background(), "run1", filepath.Join(t.TempDir(), "missing.csv"), "")

	server.mu.Lock()
	defer server.mu.Unlock()
	assert.Empty(t, server.puts)
}
