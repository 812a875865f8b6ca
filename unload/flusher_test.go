package unload

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-presence/pkg/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type capturedRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   map[string]any
}

type recordingServer struct {
	mu       sync.Mutex
	requests []capturedRequest
	status   int
}

func (s *recordingServer) handler(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	body := map[string]any{}
	_ = json.Unmarshal(raw, &body)
	s.mu.Lock()
	s.requests = append(s.requests, capturedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Header: r.Header.Clone(),
		Body:   body,
	})
	status := s.status
	s.mu.Unlock()
	if status == 0 {
		status = http.StatusNoContent
	}
	w.WriteHeader(status)
}

func (s *recordingServer) captured() []capturedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]capturedRequest(nil), s.requests...)
}

var testCreds = StaticCredentials{AccessToken: "access-token-123", APIKey: "anon-key-456"}

func TestFlushFallsBackToSyncWhenKeepaliveFails(t *testing.T) {
	rec := &recordingServer{}
	srv := httptest.NewServer(http.HandlerFunc(rec.handler))
	defer srv.Close()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	keepaliveCalls := 0
	flusher, err := New(Config{
		BaseURL:     srv.URL,
		Credentials: testCreds,
		Keepalive: KeepaliveFunc(func(*http.Request) error {
			keepaliveCalls++
			return errors.New("refused")
		}),
		Clock: fixedClock{t: now},
	})
	require.NoError(t, err)

	userID := uuid.New()
	require.NoError(t, flusher.Flush(userID))
	assert.Equal(t, 1, keepaliveCalls)

	reqs := rec.captured()
	require.Len(t, reqs, 1)
	got := reqs[0]
	assert.Equal(t, http.MethodPatch, got.Method)
	assert.Equal(t, "/rest/v1/user_profiles", got.Path)
	assert.Equal(t, "id=eq."+userID.String(), got.Query)
	assert.Equal(t, "Bearer access-token-123", got.Header.Get("Authorization"))
	assert.Equal(t, "anon-key-456", got.Header.Get("apikey"))
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.Equal(t, "return=minimal", got.Header.Get("Prefer"))
	assert.Equal(t, "offline", got.Body["status"])
	assert.Equal(t, now.Format(time.RFC3339Nano), got.Body["last_seen_at"])
	assert.Equal(t, got.Body["last_seen_at"], got.Body["status_updated_at"])
}

func TestFlushUsesKeepaliveWhenAccepted(t *testing.T) {
	rec := &recordingServer{}
	srv := httptest.NewServer(http.HandlerFunc(rec.handler))
	defer srv.Close()

	var dispatched *http.Request
	flusher, err := New(Config{
		BaseURL:     srv.URL,
		Credentials: testCreds,
		Keepalive: KeepaliveFunc(func(req *http.Request) error {
			dispatched = req
			return nil
		}),
	})
	require.NoError(t, err)

	require.NoError(t, flusher.Flush(uuid.New()))
	require.NotNil(t, dispatched)
	assert.Equal(t, http.MethodPatch, dispatched.Method)
	assert.Empty(t, rec.captured(), "sync fallback must not run when keepalive accepts")
}

func TestAsyncKeepaliveDeliversRequest(t *testing.T) {
	rec := &recordingServer{}
	srv := httptest.NewServer(http.HandlerFunc(rec.handler))
	defer srv.Close()

	flusher, err := New(Config{
		BaseURL:     srv.URL,
		Credentials: testCreds,
		Keepalive:   NewAsyncKeepalive(KeepaliveConfig{Client: srv.Client()}),
	})
	require.NoError(t, err)

	require.NoError(t, flusher.Flush(uuid.New()))
	require.Eventually(t, func() bool {
		return len(rec.captured()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "offline", rec.captured()[0].Body["status"])
}

func TestFlushReportsRejectedStatus(t *testing.T) {
	rec := &recordingServer{status: http.StatusUnauthorized}
	srv := httptest.NewServer(http.HandlerFunc(rec.handler))
	defer srv.Close()

	flusher, err := New(Config{BaseURL: srv.URL, Credentials: testCreds})
	require.NoError(t, err)

	err = flusher.Flush(uuid.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Len(t, rec.captured(), 1, "no retries")
}

func TestFlushRequiresCredentials(t *testing.T) {
	flusher, err := New(Config{
		BaseURL:     "http://127.0.0.1:1",
		Credentials: &MemoryCredentials{},
	})
	require.NoError(t, err)
	require.ErrorIs(t, flusher.Flush(uuid.New()), ErrMissingCredentials)
	require.ErrorIs(t, flusher.Flush(uuid.Nil), types.ErrUserIDRequired)
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{Credentials: testCreds})
	require.Error(t, err)
	_, err = New(Config{BaseURL: "http://example.com"})
	require.Error(t, err)
}

func TestFileCredentialsReadsSessionFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"currentSession":{"access_token":"tok"}}`), 0o600))

	creds, err := FileCredentials{Path: path, APIKey: "key"}.Credentials()
	require.NoError(t, err)
	assert.Equal(t, Credentials{AccessToken: "tok", APIKey: "key"}, creds)

	_, err = FileCredentials{Path: filepath.Join(dir, "missing.json")}.Credentials()
	require.Error(t, err)
}

func TestMemoryCredentialsSet(t *testing.T) {
	store := &MemoryCredentials{}
	store.Set(Credentials{AccessToken: "a", APIKey: "b"})
	creds, err := store.Credentials()
	require.NoError(t, err)
	assert.True(t, creds.valid())
}

func TestDescribeMasksCredentials(t *testing.T) {
	flusher, err := New(Config{BaseURL: "http://example.com", Credentials: testCreds})
	require.NoError(t, err)
	req, err := flusher.newRequest(t.Context(), uuid.New(), Credentials(testCreds), []byte(`{}`))
	require.NoError(t, err)

	out := flusher.describe(req, Credentials(testCreds))
	assert.Equal(t, http.MethodPatch, out["method"])
	assert.NotEqual(t, "access-token-123", out["access_token"])
	assert.NotEqual(t, "anon-key-456", out["api_key"])
}
