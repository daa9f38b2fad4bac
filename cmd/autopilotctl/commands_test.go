package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	method string
	path   string
	body   map[string]string
}

type fakeAPI struct {
	mu       sync.Mutex
	requests []recordedRequest
	reject   string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	_ = json.NewDecoder(r.Body).Decode(&body)
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{method: r.Method, path: r.URL.Path, body: body})
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case f.reject != "" && body["videoUrl"] == f.reject:
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"videoUrl is required"}`))
	case r.URL.Path == "/status":
		_, _ = w.Write([]byte(`{"monitoring":[{"url":"https://example.com/v1","addedAt":"2026-01-01T00:00:00Z"}],` +
			`"uploading":[{"path":"/tmp/a.mp4","caption":"hi","addedAt":"2026-01-01T00:00:00Z"}],"running":true}`))
	case r.URL.Path == "/login" && r.Method == http.MethodDelete:
		http.Error(w, "no login in progress", http.StatusNotFound)
	default:
		_, _ = w.Write([]byte(`{"success":true}`))
	}
}

func (f *fakeAPI) recorded() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

func runCmd(t *testing.T, api *fakeAPI, args ...string) (string, error) {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	root := newRootCmd(srv.Client())
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--api", srv.URL}, args...))
	err := root.Execute()
	return out.String(), err
}

func writeBatch(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestEnqueueSubmitsEveryVideo(t *testing.T) {
	api := &fakeAPI{}
	batch := writeBatch(t, "batch.json", `{"videosToMonitor": ["https://example.com/v1", "https://example.com/v2"], `+
		`"videosToPost": [{"file": "/tmp/a.mp4", "caption": "hi"}]}`)

	out, err := runCmd(t, api, "enqueue", batch)
	require.NoError(t, err)
	assert.Contains(t, out, "submitted 3 of 3 videos")

	var paths []string
	for _, r := range api.recorded() {
		assert.Equal(t, http.MethodPost, r.method)
		paths = append(paths, r.path)
		if r.path == "/upload" {
			assert.Equal(t, "/tmp/a.mp4", r.body["videoPath"])
			assert.Equal(t, "hi", r.body["caption"])
		}
	}
	sort.Strings(paths)
	assert.Equal(t, []string{"/monitor", "/monitor", "/upload"}, paths)
}

func TestEnqueueYAMLAndPartialFailure(t *testing.T) {
	api := &fakeAPI{reject: "https://example.com/bad"}
	batch := writeBatch(t, "batch.yaml", "videosToMonitor:\n  - https://example.com/ok\n  - https://example.com/bad\n")

	out, err := runCmd(t, api, "enqueue", batch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 submissions failed")
	assert.Contains(t, out, "videoUrl is required")
	assert.Contains(t, out, "submitted 1 of 2 videos")
}

func TestEnqueueEmptyBatch(t *testing.T) {
	api := &fakeAPI{}
	batch := writeBatch(t, "empty.json", `{"videosToMonitor": []}`)

	_, err := runCmd(t, api, "enqueue", batch)
	assert.ErrorIs(t, err, errEmptyBatch)
	assert.Empty(t, api.recorded())
}

func TestStatusPrintsQueues(t *testing.T) {
	out, err := runCmd(t, &fakeAPI{}, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "running: true")
	assert.Contains(t, out, "monitoring (1):\n  https://example.com/v1")
	assert.Contains(t, out, `/tmp/a.mp4 ("hi")`)
}

func TestLoginCommands(t *testing.T) {
	api := &fakeAPI{}
	_, err := runCmd(t, api, "login")
	require.NoError(t, err)

	_, err = runCmd(t, api, "cancel-login")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "status 404"), err.Error())

	reqs := api.recorded()
	require.Len(t, reqs, 2)
	assert.Equal(t, http.MethodGet, reqs[0].method)
	assert.Equal(t, http.MethodDelete, reqs[1].method)
}

func TestInvalidAPIFlag(t *testing.T) {
	root := newRootCmd(nil)
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"--api", "not a url", "status"})
	assert.Error(t, root.Execute())
}
