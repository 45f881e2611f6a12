package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"milesfare-backend/internal/components/telemetry"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	mu       sync.Mutex
	requests []map[string]any
	paths    []string
	sessions map[string]Session
}

func (f *fakeProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.Header.Get("X-BB-API-Key") != "key" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	body := map[string]any{}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	f.paths = append(f.paths, r.Method+" "+r.URL.Path)
	f.requests = append(f.requests, body)

	w.Header().Set("content-type", "application/json")
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/v1/contexts":
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "ctx-1"})
	case r.Method == http.MethodPost && r.URL.Path == "/v1/sessions":
		session := Session{ID: "sess-1", ConnectURL: "wss://connect/sess-1", Status: StatusRunning}
		f.sessions[session.ID] = session
		_ = json.NewEncoder(w).Encode(session)
	case r.Method == http.MethodGet && r.URL.Path == "/v1/sessions/sess-1/debug":
		_ = json.NewEncoder(w).Encode(map[string]any{"debuggerFullscreenUrl": "https://debug/sess-1"})
	case r.Method == http.MethodGet && r.URL.Path == "/v1/sessions/sess-1":
		_ = json.NewEncoder(w).Encode(f.sessions["sess-1"])
	case r.Method == http.MethodPost && r.URL.Path == "/v1/sessions/sess-1":
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "sess-1", "status": "COMPLETED"})
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not found"}`))
	}
}

func newTestClient(t *testing.T) (*Client, *fakeProvider) {
	fake := &fakeProvider{sessions: map[string]Session{}}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	client := NewClient(Config{
		BaseURL:   server.URL,
		APIKey:    "key",
		ProjectID: "proj",
	}, &telemetry.Recorder{}, nil)
	return client, fake
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	client, fake := newTestClient(t)

	contextID, err := client.CreateContext(ctx)
	require.Nil(t, err)
	require.Equal(t, "ctx-1", contextID)

	session, err := client.CreateSession(ctx, SessionOptions{
		ContextID: contextID,
		Persist:   true,
		BlockAds:  true,
		KeepAlive: true,
	})
	require.Nil(t, err)
	require.Equal(t, "wss://connect/sess-1", session.ConnectURL)

	diff := cmp.Diff(map[string]any{
		"projectId": "proj",
		"keepAlive": true,
		"browserSettings": map[string]any{
			"blockAds": true,
			"context":  map[string]any{"id": "ctx-1", "persist": true},
		},
	}, fake.requests[1])
	require.Empty(t, diff)

	debugURL, err := client.DebugURL(ctx, session.ID)
	require.Nil(t, err)
	require.Equal(t, "https://debug/sess-1", debugURL)

	got, err := client.GetSession(ctx, session.ID)
	require.Nil(t, err)
	require.Equal(t, StatusRunning, got.Status)

	err = client.ReleaseSession(ctx, session.ID)
	require.Nil(t, err)
	require.Equal(t, "REQUEST_RELEASE", fake.requests[len(fake.requests)-1]["status"])
}

func TestGetSessionNotFound(t *testing.T) {
	client, _ := newTestClient(t)
	_, err := client.GetSession(context.Background(), "missing")
	require.True(t, errors.Is(err, ErrSessionNotFound))
}

func TestDebugURLFallback(t *testing.T) {
	client, _ := newTestClient(t)
	url, err := client.DebugURL(context.Background(), "missing")
	require.NotNil(t, err)
	require.Equal(t, "https://browserbase.com/sessions/missing", url)
}
