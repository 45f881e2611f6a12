package award

import (
	"context"
	"fmt"
	"strings"
	"time"

	"milesfare-backend/internal/airfare"
	"milesfare-backend/internal/browser"
	"milesfare-backend/internal/components/assert"
	"milesfare-backend/internal/components/chrono"
	"milesfare-backend/internal/components/telemetry"
	"milesfare-backend/internal/formdrive"
	"milesfare-backend/internal/session"
	"milesfare-backend/internal/sessionstore"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("milesfare.internal.scrapers.award")

const (
	report_login_start = "login.start"
	report_login_poll  = "login.poll"
	report_login_save  = "login.save"
)

const releaseTimeout = 30 * time.Second

type LoginState string

const (
	StateNavigatingToLogin LoginState = "NAVIGATING_TO_LOGIN"
	StateWaitingForUser    LoginState = "WAITING_FOR_USER"
	StateAuthenticated     LoginState = "AUTHENTICATED"
	StateTimedOut          LoginState = "TIMED_OUT"
)

type LoginResult struct {
	Success   bool   `json:"success"`
	DebugURL  string `json:"debugUrl,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	ContextID string `json:"contextId,omitempty"`
	Message   string `json:"message"`
}

// LoginSessions is the part of session.Manager the login flow uses.
type LoginSessions interface {
	Lease(ctx context.Context) (func(), error)
	GetOrCreateContext(ctx context.Context) (string, error)
	CreateSession(ctx context.Context) (*session.Session, error)
	Close(ctx context.Context) error
	Disconnect()
	KeepAlive() bool
}

type Profiles interface {
	Get(ctx context.Context, source string) (sessionstore.Profile, bool, error)
	Save(ctx context.Context, source string, profile sessionstore.Profile) error
}

// LoginFlow opens the loyalty-program login page in a remote browser and
// waits for a person to finish logging in through the session's live view.
type LoginFlow struct {
	cfg      Config
	sessions LoginSessions
	profiles Profiles
	driver   *formdrive.Driver
	clock    chrono.API
	tel      telemetry.API

	// OnState is called on every state change, debugURL is the live view
	// the person logs in through.
	OnState func(state LoginState, debugURL string)
}

func NewLoginFlow(
	cfg Config,
	sessions LoginSessions,
	profiles Profiles,
	driver *formdrive.Driver,
	clock chrono.API,
	tel telemetry.API,
) *LoginFlow {
	assert.NotNil(sessions)
	assert.NotNil(driver)
	assert.NotNil(clock)
	assert.NotNil(tel)
	return &LoginFlow{
		cfg:      cfg,
		sessions: sessions,
		profiles: profiles,
		driver:   driver,
		clock:    clock,
		tel:      telemetry.NewScopedAPI("award_login", tel),
	}
}

func (l *LoginFlow) setState(state LoginState, debugURL string) {
	l.tel.ReportDebug("login state", string(state), debugURL)
	if l.OnState != nil {
		l.OnState(state, debugURL)
	}
}

// StartLoginSession opens a session on the persisted profile and navigates
// it to the login page.
func (l *LoginFlow) StartLoginSession(ctx context.Context) (*session.Session, error) {
	_, err := l.sessions.GetOrCreateContext(ctx)
	if err != nil {
		return nil, err
	}
	sess, err := l.sessions.CreateSession(ctx)
	if err != nil {
		return nil, err
	}
	l.setState(StateNavigatingToLogin, sess.DebugURL)

	err = sess.Page.Navigate(ctx, l.cfg.LoginURL)
	if err != nil {
		l.tel.ReportWarning(report_login_start, err)
		return sess, airfare.Wrap(airfare.KindNavigationFailed, "open login page", err)
	}
	return sess, l.driver.Settle(ctx, l.cfg.LoginSettle)
}

// PollForLoginCompletion watches page until it shows a logged-in member and
// returns the member name. It only reads the page, the person logging in
// may be on an email or OTP step that a navigation would break.
func (l *LoginFlow) PollForLoginCompletion(ctx context.Context, page browser.Page, timeout time.Duration) (string, error) {
	ctx, span := tracer.Start(ctx, "PollForLoginCompletion")
	defer span.End()

	start := l.clock.Now()
	for l.clock.Now().Sub(start) < timeout {
		err := l.clock.Sleep(ctx, l.cfg.PollInterval)
		if err != nil {
			return "", err
		}
		elapsed := l.clock.Now().Sub(start)

		url, err := page.URL(ctx)
		if err != nil {
			l.tel.ReportWarning(report_login_poll, err)
			continue
		}

		if authDomainRegex.MatchString(url) {
			l.tel.ReportDebug("still on auth flow", url, elapsed.String())
			continue
		}
		if mainSiteRegex.MatchString(url) {
			err = l.driver.Settle(ctx, l.cfg.LoginSettle)
			if err != nil {
				return "", err
			}
		}

		member, ok := l.CheckAuthStatus(ctx, page)
		if ok {
			span.SetAttributes(attribute.String("elapsed", elapsed.String()))
			return member, nil
		}
		l.tel.ReportDebug("no member indicator yet", url, elapsed.String())
	}

	err := airfare.Errorf(
		airfare.KindLoginTimeout,
		"Login was not completed within %d seconds. Please try again.",
		int(timeout.Seconds()),
	)
	span.RecordError(err)
	span.SetStatus(codes.Error, "login timed out")
	return "", err
}

// CheckAuthStatus looks for a logged-in member on whatever page is showing.
func (l *LoginFlow) CheckAuthStatus(ctx context.Context, page browser.Page) (string, bool) {
	match, ok := l.driver.Find(ctx, page, loggedInIndicators...)
	if ok {
		return memberName(match.Text), true
	}

	for _, trigger := range memberMenuTriggers {
		match, ok := l.driver.Find(ctx, page, trigger)
		if !ok || match.Text == "" || notLoggedIn.MatchString(match.Text) {
			continue
		}
		return memberName(match.Text), true
	}
	return "", false
}

func memberName(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = strings.TrimSpace(text[:i])
	}
	return text
}

// Login runs the whole flow while holding the manager's lease, searches on
// the same site wait for it. The session is left alive for later searches
// when the manager keeps sessions alive and closed otherwise.
func (l *LoginFlow) Login(ctx context.Context) LoginResult {
	unlock, err := l.sessions.Lease(ctx)
	if err != nil {
		return failed(nil, err)
	}
	defer unlock()

	sess, err := l.StartLoginSession(ctx)
	if sess != nil {
		defer l.release()
	}
	if err != nil {
		l.tel.ReportWarning(report_login_start, err)
		return failed(sess, err)
	}

	l.setState(StateWaitingForUser, sess.DebugURL)
	member, err := l.PollForLoginCompletion(ctx, sess.Page, l.cfg.LoginTimeout)
	if err != nil {
		if airfare.KindOf(err) == airfare.KindLoginTimeout {
			l.setState(StateTimedOut, sess.DebugURL)
		}
		return failed(sess, err)
	}
	l.setState(StateAuthenticated, sess.DebugURL)
	l.tel.ReportDebug("logged in", member)

	if l.profiles != nil {
		err = l.profiles.Save(ctx, SourceName, sessionstore.Profile{
			ContextID: sess.ContextID,
			SessionID: sess.ID,
		})
		if err != nil {
			l.tel.ReportWarning(report_login_save, err)
		}
	}

	return LoginResult{
		Success:   true,
		DebugURL:  sess.DebugURL,
		SessionID: sess.ID,
		ContextID: sess.ContextID,
		Message: fmt.Sprintf(
			"Login successful! Set DYNASTY_FLYER_CONTEXT_ID=%s in your .env to persist this session.",
			sess.ContextID,
		),
	}
}

func (l *LoginFlow) release() {
	if l.sessions.KeepAlive() {
		l.sessions.Disconnect()
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	err := l.sessions.Close(ctx)
	if err != nil {
		l.tel.ReportWarning(report_login_start, "close login session", err)
	}
}

func failed(sess *session.Session, err error) LoginResult {
	result := LoginResult{Message: "Login failed: " + airfare.MessageOf(err)}
	if sess != nil {
		result.DebugURL = sess.DebugURL
		result.SessionID = sess.ID
	}
	return result
}
