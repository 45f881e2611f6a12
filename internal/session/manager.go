// Package session hands out one live remote-browser session per target site
// and guarantees its cleanup.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"milesfare-backend/internal/airfare"
	"milesfare-backend/internal/browser"
	"milesfare-backend/internal/browser/provider"
	"milesfare-backend/internal/components/assert"
	"milesfare-backend/internal/components/chrono"
	"milesfare-backend/internal/components/telemetry"
	"milesfare-backend/internal/sessionstore"

	"golang.org/x/sync/semaphore"
)

const (
	report_manager_get_context = "manager.get-or-create-context"
	report_manager_create      = "manager.create-session"
	report_manager_close       = "manager.close"
	report_manager_reconnect   = "manager.reconnect"
	report_manager_acquire     = "manager.acquire"
)

const releaseTimeout = 15 * time.Second

type Provider interface {
	CreateContext(ctx context.Context) (string, error)
	CreateSession(ctx context.Context, opts provider.SessionOptions) (provider.Session, error)
	GetSession(ctx context.Context, id string) (provider.Session, error)
	DebugURL(ctx context.Context, id string) (string, error)
	ReleaseSession(ctx context.Context, id string) error
}

// Store persists profile ids between process runs, it is optional.
type Store interface {
	Get(ctx context.Context, source string) (sessionstore.Profile, bool, error)
	Save(ctx context.Context, source string, profile sessionstore.Profile) error
}

type Config struct {
	// Name identifies the target site, it is the key used in the Store.
	Name string
	// ContextID is an externally supplied persisted profile id.
	ContextID string
	// KeepAlive sessions are disconnected rather than closed after use.
	KeepAlive   bool
	BlockAds    bool
	ContextSync time.Duration
}

type Session struct {
	ID        string
	ContextID string
	DebugURL  string
	Handle    browser.Handle
	Page      browser.Page
}

// Manager enforces at most one active session, a second CreateSession while
// one is active fails. Acquire and Lease queue callers behind the current
// holder instead.
type Manager struct {
	cfg      Config
	provider Provider
	dialer   browser.Dialer
	store    Store
	clock    chrono.API
	tel      telemetry.API

	ctxMu     sync.Mutex
	contextID string

	mu       sync.Mutex
	active   *Session
	reserved bool

	lease *semaphore.Weighted
}

func NewManager(
	cfg Config,
	prov Provider,
	dialer browser.Dialer,
	store Store,
	clock chrono.API,
	tel telemetry.API,
) *Manager {
	assert.NotEmptyStr(cfg.Name)
	assert.NotNil(prov)
	assert.NotNil(dialer)
	assert.NotNil(clock)
	assert.NotNil(tel)

	return &Manager{
		cfg:      cfg,
		provider: prov,
		dialer:   dialer,
		store:    store,
		clock:    clock,
		tel:      telemetry.NewScopedAPI(fmt.Sprintf("session_manager(%s)", cfg.Name), tel),
		lease:    semaphore.NewWeighted(1),
	}
}

// Lease waits until no other caller holds the manager and returns the func
// that hands it back. The func may be called more than once.
func (m *Manager) Lease(ctx context.Context) (func(), error) {
	err := m.lease.Acquire(ctx, 1)
	if err != nil {
		return nil, airfare.Wrap(airfare.KindTimeout, fmt.Sprintf("wait for the %s session", m.cfg.Name), err)
	}
	var once sync.Once
	return func() { once.Do(func() { m.lease.Release(1) }) }, nil
}

func (m *Manager) Name() string {
	return m.cfg.Name
}

func (m *Manager) KeepAlive() bool {
	return m.cfg.KeepAlive
}

// GetOrCreateContext returns the persisted profile id: the one cached in
// memory, else the configured one, else a stored one, else a new one from
// the provider.
func (m *Manager) GetOrCreateContext(ctx context.Context) (string, error) {
	m.ctxMu.Lock()
	defer m.ctxMu.Unlock()

	if m.contextID != "" {
		return m.contextID, nil
	}
	if m.cfg.ContextID != "" {
		m.contextID = m.cfg.ContextID
		return m.contextID, nil
	}
	if m.store != nil {
		profile, ok, err := m.store.Get(ctx, m.cfg.Name)
		if err != nil {
			m.tel.ReportWarning(report_manager_get_context, err)
		}
		if ok && profile.ContextID != "" {
			m.contextID = profile.ContextID
			return m.contextID, nil
		}
	}

	id, err := m.provider.CreateContext(ctx)
	if err != nil {
		m.tel.ReportBroken(report_manager_get_context, err)
		return "", airfare.Wrap(airfare.KindSessionError, "create browser context", err)
	}
	m.tel.ReportDebug("created browser context", id)
	m.contextID = id

	if m.store != nil {
		err = m.store.Save(ctx, m.cfg.Name, sessionstore.Profile{ContextID: id})
		if err != nil {
			m.tel.ReportWarning(report_manager_get_context, err)
		}
	}
	return id, nil
}

func (m *Manager) reserve() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil || m.reserved {
		return airfare.Errorf(
			airfare.KindSessionError,
			"a %s session is already active, close it before creating a new one",
			m.cfg.Name,
		)
	}
	m.reserved = true
	return nil
}

func (m *Manager) commit(session *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reserved = false
	m.active = session
}

func (m *Manager) CreateSession(ctx context.Context) (*Session, error) {
	err := m.reserve()
	if err != nil {
		return nil, err
	}
	var session *Session
	defer func() { m.commit(session) }()

	contextID, err := m.GetOrCreateContext(ctx)
	if err != nil {
		return nil, err
	}

	remote, err := m.provider.CreateSession(ctx, provider.SessionOptions{
		ContextID: contextID,
		Persist:   true,
		BlockAds:  m.cfg.BlockAds,
		KeepAlive: m.cfg.KeepAlive,
	})
	if err != nil {
		m.tel.ReportBroken(report_manager_create, err)
		return nil, airfare.Wrap(airfare.KindSessionError, "create remote session", err)
	}
	m.tel.ReportDebug("created remote session", remote.ID)

	attached, err := m.attach(ctx, remote, contextID)
	if err != nil {
		releaseErr := m.provider.ReleaseSession(context.WithoutCancel(ctx), remote.ID)
		if releaseErr != nil {
			m.tel.ReportWarning(report_manager_create, releaseErr)
		}
		return nil, err
	}
	session = attached
	return session, nil
}

func (m *Manager) attach(ctx context.Context, remote provider.Session, contextID string) (*Session, error) {
	debugURL, err := m.provider.DebugURL(ctx, remote.ID)
	if err != nil {
		m.tel.ReportWarning(report_manager_create, "debug url unavailable", err)
	}

	handle, err := m.dialer.Dial(ctx, remote.ConnectURL)
	if err != nil {
		m.tel.ReportBroken(report_manager_create, err)
		return nil, airfare.Wrap(airfare.KindSessionError, "connect automation handle", err)
	}

	page, err := firstPage(ctx, handle)
	if err != nil {
		_ = handle.Detach()
		m.tel.ReportBroken(report_manager_create, err)
		return nil, airfare.Wrap(airfare.KindSessionError, "select page", err)
	}

	return &Session{
		ID:        remote.ID,
		ContextID: contextID,
		DebugURL:  debugURL,
		Handle:    handle,
		Page:      page,
	}, nil
}

func firstPage(ctx context.Context, handle browser.Handle) (browser.Page, error) {
	pages, err := handle.Pages(ctx)
	if err != nil {
		return nil, err
	}
	if len(pages) > 0 {
		return pages[0], nil
	}
	return handle.NewPage(ctx)
}

func (m *Manager) takeActive() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	session := m.active
	m.active = nil
	return session
}

// Close ends the active remote session: it detaches, asks the provider to
// release the session and waits for the profile to be persisted.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	session := m.active
	m.mu.Unlock()
	if session == nil {
		return nil
	}
	defer m.takeActive()

	err := session.Handle.Detach()
	if err != nil {
		m.tel.ReportWarning(report_manager_close, "detach", err)
	}
	err = m.provider.ReleaseSession(ctx, session.ID)
	if err != nil {
		m.tel.ReportWarning(report_manager_close, "release", err)
	}
	sleepErr := m.clock.Sleep(ctx, m.cfg.ContextSync)
	if sleepErr != nil {
		m.tel.ReportWarning(report_manager_close, "context sync interrupted", sleepErr)
	}
	return err
}

// Disconnect detaches the local handle and leaves the remote session alive
// for a later ReconnectToSession.
func (m *Manager) Disconnect() {
	session := m.takeActive()
	if session == nil {
		return
	}
	err := session.Handle.Detach()
	if err != nil {
		m.tel.ReportWarning(report_manager_close, "detach", err)
	}
}

func (m *Manager) ReconnectToSession(ctx context.Context, sessionID string) (*Session, error) {
	err := m.reserve()
	if err != nil {
		return nil, err
	}
	var session *Session
	defer func() { m.commit(session) }()

	remote, err := m.provider.GetSession(ctx, sessionID)
	if errors.Is(err, provider.ErrSessionNotFound) {
		return nil, airfare.Wrap(airfare.KindAuthRequired, fmt.Sprintf("session %s does not exist, log in again", sessionID), err)
	}
	if err != nil {
		m.tel.ReportBroken(report_manager_reconnect, err)
		return nil, airfare.Wrap(airfare.KindSessionError, "look up session", err)
	}
	if remote.Status != provider.StatusRunning {
		return nil, airfare.Errorf(
			airfare.KindAuthExpired,
			"session %s is %s, log in again",
			sessionID, remote.Status,
		)
	}

	contextID, err := m.GetOrCreateContext(ctx)
	if err != nil {
		return nil, err
	}
	attached, err := m.attach(ctx, remote, contextID)
	if err != nil {
		return nil, err
	}
	session = attached
	return session, nil
}

func (m *Manager) ReleaseSession(ctx context.Context, sessionID string) error {
	err := m.provider.ReleaseSession(ctx, sessionID)
	if err != nil {
		return airfare.Wrap(airfare.KindSessionError, "release session", err)
	}
	return nil
}

// Acquire holds the manager's lease and returns a session for one search
// attempt and the func that releases both. With keep-alive on and a session
// id given it reconnects, falling back to a new session (bound to the same
// persisted profile) when the old one expired or no longer exists. Release
// disconnects keep-alive sessions and closes the others, it never depends on
// the attempt's context.
func (m *Manager) Acquire(ctx context.Context, sessionID string) (*Session, func(), error) {
	unlock, err := m.Lease(ctx)
	if err != nil {
		return nil, nil, err
	}
	var session *Session

	if sessionID != "" && m.cfg.KeepAlive {
		session, err = m.ReconnectToSession(ctx, sessionID)
		switch airfare.KindOf(err) {
		case airfare.KindAuthExpired, airfare.KindAuthRequired:
			m.tel.ReportWarning(report_manager_acquire, "stored session unusable, creating a new one", err)
			session, err = m.CreateSession(ctx)
		}
	} else {
		session, err = m.CreateSession(ctx)
	}
	if err != nil {
		unlock()
		return nil, nil, err
	}

	release := func() {
		defer unlock()
		if m.cfg.KeepAlive {
			m.Disconnect()
			return
		}
		releaseCtx, cancel := context.WithTimeout(context.Background(), releaseTimeout+m.cfg.ContextSync)
		defer cancel()
		_ = m.Close(releaseCtx)
	}
	return session, release, nil
}

// Active returns the live session or nil.
func (m *Manager) Active() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}
