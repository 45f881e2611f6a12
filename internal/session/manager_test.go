package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"milesfare-backend/internal/airfare"
	"milesfare-backend/internal/browser/browsertest"
	"milesfare-backend/internal/browser/provider"
	"milesfare-backend/internal/components/chrono"
	"milesfare-backend/internal/components/telemetry"
	"milesfare-backend/internal/sessionstore"

	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	mu            sync.Mutex
	contexts      int
	sessions      map[string]provider.Session
	created       []provider.SessionOptions
	released      []string
	createCtxErr  error
	debugURLError error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{sessions: map[string]provider.Session{}}
}

func (f *fakeProvider) CreateContext(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createCtxErr != nil {
		return "", f.createCtxErr
	}
	f.contexts++
	return fmt.Sprintf("ctx-%d", f.contexts), nil
}

func (f *fakeProvider) CreateSession(ctx context.Context, opts provider.SessionOptions) (provider.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, opts)
	id := fmt.Sprintf("sess-%d", len(f.created))
	s := provider.Session{ID: id, ConnectURL: "wss://connect/" + id, Status: provider.StatusRunning}
	f.sessions[id] = s
	return s, nil
}

func (f *fakeProvider) GetSession(ctx context.Context, id string) (provider.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return provider.Session{}, fmt.Errorf("get %s: %w", id, provider.ErrSessionNotFound)
	}
	return s, nil
}

func (f *fakeProvider) DebugURL(ctx context.Context, id string) (string, error) {
	if f.debugURLError != nil {
		return provider.FallbackDebugURL(id), f.debugURLError
	}
	return "https://debug/" + id, nil
}

func (f *fakeProvider) ReleaseSession(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, id)
	return nil
}

type fixture struct {
	manager  *Manager
	provider *fakeProvider
	dialer   *browsertest.Dialer
	clock    *chrono.Manual
}

func setup(t testing.TB, cfg Config, store Store) fixture {
	if cfg.Name == "" {
		cfg.Name = "award"
	}
	prov := newFakeProvider()
	dialer := &browsertest.Dialer{}
	clock := chrono.NewManual(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	manager := NewManager(cfg, prov, dialer, store, clock, &telemetry.Recorder{})
	return fixture{manager: manager, provider: prov, dialer: dialer, clock: clock}
}

func TestGetOrCreateContext(t *testing.T) {
	ctx := context.Background()

	{
		f := setup(t, Config{}, nil)
		first, err := f.manager.GetOrCreateContext(ctx)
		require.Nil(t, err)
		second, err := f.manager.GetOrCreateContext(ctx)
		require.Nil(t, err)
		require.Equal(t, "ctx-1", first)
		require.Equal(t, first, second)
		require.Equal(t, 1, f.provider.contexts)
	}
	{
		f := setup(t, Config{ContextID: "configured"}, nil)
		id, err := f.manager.GetOrCreateContext(ctx)
		require.Nil(t, err)
		require.Equal(t, "configured", id)
		require.Equal(t, 0, f.provider.contexts)
	}
	{
		clock := chrono.NewManual(time.Now())
		store, err := sessionstore.Open(ctx, ":memory:", time.Hour, clock)
		require.Nil(t, err)
		defer store.Close()
		require.Nil(t, store.Save(ctx, "award", sessionstore.Profile{ContextID: "stored"}))

		f := setup(t, Config{}, store)
		id, err := f.manager.GetOrCreateContext(ctx)
		require.Nil(t, err)
		require.Equal(t, "stored", id)
	}
	{
		f := setup(t, Config{}, nil)
		f.provider.createCtxErr = fmt.Errorf("quota exceeded")
		_, err := f.manager.GetOrCreateContext(ctx)
		require.Equal(t, airfare.KindSessionError, airfare.KindOf(err))
	}
}

func TestCreateSessionTwiceFails(t *testing.T) {
	ctx := context.Background()
	f := setup(t, Config{BlockAds: true}, nil)

	session, err := f.manager.CreateSession(ctx)
	require.Nil(t, err)
	require.Equal(t, "sess-1", session.ID)
	require.Equal(t, "https://debug/sess-1", session.DebugURL)
	require.Equal(t, "page-1", session.Page.ID())
	require.Equal(t, []string{"wss://connect/sess-1"}, f.dialer.Dialed)
	require.True(t, f.provider.created[0].Persist)
	require.True(t, f.provider.created[0].BlockAds)
	require.Equal(t, "ctx-1", f.provider.created[0].ContextID)

	_, err = f.manager.CreateSession(ctx)
	require.Equal(t, airfare.KindSessionError, airfare.KindOf(err))
	require.Len(t, f.provider.created, 1)
	require.Same(t, session, f.manager.Active())
}

func TestCloseReleasesAndWaitsForContextSync(t *testing.T) {
	ctx := context.Background()
	f := setup(t, Config{ContextSync: 5 * time.Second}, nil)

	_, err := f.manager.CreateSession(ctx)
	require.Nil(t, err)

	err = f.manager.Close(ctx)
	require.Nil(t, err)
	require.Nil(t, f.manager.Active())
	require.Equal(t, []string{"sess-1"}, f.provider.released)
	require.Equal(t, 1, f.dialer.Handle.Detached)
	require.Equal(t, []time.Duration{5 * time.Second}, f.clock.Sleeps())

	_, err = f.manager.CreateSession(ctx)
	require.Nil(t, err)
}

func TestDisconnectKeepsRemoteSession(t *testing.T) {
	ctx := context.Background()
	f := setup(t, Config{KeepAlive: true}, nil)

	session, err := f.manager.CreateSession(ctx)
	require.Nil(t, err)
	f.manager.Disconnect()
	require.Nil(t, f.manager.Active())
	require.Empty(t, f.provider.released)

	again, err := f.manager.ReconnectToSession(ctx, session.ID)
	require.Nil(t, err)
	require.Equal(t, session.ID, again.ID)
	require.Len(t, f.provider.created, 1)
}

func TestReconnectFailures(t *testing.T) {
	ctx := context.Background()
	f := setup(t, Config{KeepAlive: true}, nil)

	f.provider.sessions["old"] = provider.Session{ID: "old", ConnectURL: "wss://old", Status: "COMPLETED"}
	_, err := f.manager.ReconnectToSession(ctx, "old")
	require.Equal(t, airfare.KindAuthExpired, airfare.KindOf(err))
	require.Nil(t, f.manager.Active())

	_, err = f.manager.ReconnectToSession(ctx, "missing")
	require.Equal(t, airfare.KindAuthRequired, airfare.KindOf(err))

	// failed reconnects must not hold the active slot
	_, err = f.manager.CreateSession(ctx)
	require.Nil(t, err)
}

func TestAcquire(t *testing.T) {
	ctx := context.Background()

	{
		f := setup(t, Config{KeepAlive: true}, nil)
		f.provider.sessions["old"] = provider.Session{ID: "old", ConnectURL: "wss://old", Status: "TIMED_OUT"}

		session, release, err := f.manager.Acquire(ctx, "old")
		require.Nil(t, err)
		require.Equal(t, "sess-1", session.ID)
		release()
		require.Nil(t, f.manager.Active())
		require.Empty(t, f.provider.released)
	}
	{
		f := setup(t, Config{KeepAlive: true}, nil)

		session, release, err := f.manager.Acquire(ctx, "missing")
		require.Nil(t, err)
		require.Equal(t, "sess-1", session.ID)
		release()
	}
	{
		f := setup(t, Config{}, nil)
		_, release, err := f.manager.Acquire(ctx, "ignored")
		require.Nil(t, err)
		release()
		require.Equal(t, []string{"sess-1"}, f.provider.released)
	}
}

func TestDialFailureReleasesRemoteSession(t *testing.T) {
	ctx := context.Background()
	f := setup(t, Config{}, nil)
	f.dialer.Err = fmt.Errorf("websocket closed")

	_, err := f.manager.CreateSession(ctx)
	require.Equal(t, airfare.KindSessionError, airfare.KindOf(err))
	require.Equal(t, []string{"sess-1"}, f.provider.released)
	require.Nil(t, f.manager.Active())
}

func TestAcquireWaitsForHolder(t *testing.T) {
	ctx := context.Background()
	f := setup(t, Config{KeepAlive: true}, nil)

	first, release, err := f.manager.Acquire(ctx, "")
	require.Nil(t, err)

	type acquired struct {
		session *Session
		err     error
	}
	second := make(chan acquired, 1)
	var secondRelease func()
	go func() {
		session, release, err := f.manager.Acquire(ctx, first.ID)
		secondRelease = release
		second <- acquired{session: session, err: err}
	}()

	select {
	case <-second:
		t.Fatal("second acquire returned while the first session was held")
	case <-time.After(50 * time.Millisecond):
	}

	release()
	got := <-second
	require.Nil(t, got.err)
	require.Equal(t, first.ID, got.session.ID)
	require.Len(t, f.provider.created, 1)
	secondRelease()
	require.Nil(t, f.manager.Active())
}

func TestLeaseHonorsContext(t *testing.T) {
	f := setup(t, Config{}, nil)
	unlock, err := f.manager.Lease(context.Background())
	require.Nil(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, _, err = f.manager.Acquire(ctx, "")
	require.Equal(t, airfare.KindTimeout, airfare.KindOf(err))
	require.Empty(t, f.provider.created)
}

func TestAcquireConcurrentSearches(t *testing.T) {
	ctx := context.Background()
	f := setup(t, Config{}, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, release, err := f.manager.Acquire(ctx, "")
			if err != nil {
				errs <- err
				return
			}
			release()
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.Nil(t, err)
	}
	require.Len(t, f.provider.created, 4)
	require.Len(t, f.provider.released, 4)
}
