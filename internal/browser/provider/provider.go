// Package provider is a client for the remote-browser provider's REST API:
// persisted browser contexts, sessions, debug urls and release.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"milesfare-backend/internal/components/assert"
	"milesfare-backend/internal/components/telemetry"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const DefaultBaseURL = "https://api.browserbase.com"

const (
	report_client_create_context = "client.create-context"
	report_client_create_session = "client.create-session"
	report_client_get_session    = "client.get-session"
	report_client_debug_url      = "client.debug-url"
	report_client_release        = "client.release-session"
)

const StatusRunning = "RUNNING"

var ErrSessionNotFound = errors.New("session not found")

type Config struct {
	BaseURL   string `json:"base_url"`
	APIKey    string `json:"api_key"`
	ProjectID string `json:"project_id"`
}

type Session struct {
	ID         string `json:"id"`
	ConnectURL string `json:"connectUrl"`
	Status     string `json:"status"`
}

type SessionOptions struct {
	ContextID string
	Persist   bool
	BlockAds  bool
	KeepAlive bool
}

type Client struct {
	http      *resty.Client
	projectID string
	tel       telemetry.API
}

func NewClient(cfg Config, tel telemetry.API, output telemetry.MessageOutput) *Client {
	assert.NotNil(tel)
	assert.NotEmptyStr(cfg.APIKey)
	assert.NotEmptyStr(cfg.ProjectID)

	tel = telemetry.NewScopedAPI("browser_provider", tel)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := resty.New()
	httpClient.SetTimeout(30 * time.Second)
	httpClient.SetBaseURL(baseURL)
	httpClient.SetHeader("X-BB-API-Key", cfg.APIKey)
	httpClient.SetHeader("content-type", "application/json")

	rateLimiter := rate.NewLimiter(2, 2)
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})
	telemetry.InstrumentResty(httpClient, tel, output)

	return &Client{http: httpClient, projectID: cfg.ProjectID, tel: tel}
}

func checkStatus(res *resty.Response) error {
	if res.IsSuccess() {
		return nil
	}
	return fmt.Errorf("status %d: %s", res.StatusCode(), res.String())
}

func (c *Client) CreateContext(ctx context.Context) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"projectId": c.projectID}).
		SetResult(&out).
		Post("/v1/contexts")
	if err == nil {
		err = checkStatus(res)
	}
	if err != nil {
		c.tel.ReportBroken(report_client_create_context, err)
		return "", fmt.Errorf("create context: %w", err)
	}
	if out.ID == "" {
		err = fmt.Errorf("create context: empty id in response")
		c.tel.ReportBroken(report_client_create_context, err)
		return "", err
	}
	return out.ID, nil
}

type browserSettings struct {
	Context  *contextSettings `json:"context,omitempty"`
	BlockAds bool             `json:"blockAds"`
}

type contextSettings struct {
	ID      string `json:"id"`
	Persist bool   `json:"persist"`
}

type createSessionRequest struct {
	ProjectID       string          `json:"projectId"`
	BrowserSettings browserSettings `json:"browserSettings"`
	KeepAlive       bool            `json:"keepAlive,omitempty"`
}

func (c *Client) CreateSession(ctx context.Context, opts SessionOptions) (Session, error) {
	body := createSessionRequest{
		ProjectID:       c.projectID,
		BrowserSettings: browserSettings{BlockAds: opts.BlockAds},
		KeepAlive:       opts.KeepAlive,
	}
	if opts.ContextID != "" {
		body.BrowserSettings.Context = &contextSettings{
			ID:      opts.ContextID,
			Persist: opts.Persist,
		}
	}

	var out Session
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post("/v1/sessions")
	if err == nil {
		err = checkStatus(res)
	}
	if err != nil {
		c.tel.ReportBroken(report_client_create_session, err)
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	if out.ID == "" || out.ConnectURL == "" {
		err = fmt.Errorf("create session: missing id or connect url in response")
		c.tel.ReportBroken(report_client_create_session, err)
		return Session{}, err
	}
	return out, nil
}

// GetSession returns ErrSessionNotFound (wrapped) when the provider has no
// record of the session.
func (c *Client) GetSession(ctx context.Context, id string) (Session, error) {
	var out Session
	res, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetResult(&out).
		Get("/v1/sessions/{id}")
	if err != nil {
		c.tel.ReportBroken(report_client_get_session, err)
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	if res.StatusCode() == http.StatusNotFound {
		return Session{}, fmt.Errorf("get session %s: %w", id, ErrSessionNotFound)
	}
	err = checkStatus(res)
	if err != nil {
		c.tel.ReportBroken(report_client_get_session, err)
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	return out, nil
}

func FallbackDebugURL(sessionID string) string {
	return fmt.Sprintf("https://browserbase.com/sessions/%s", sessionID)
}

// DebugURL returns the human-viewable live view of a session, falling back
// to the dashboard url when the provider does not return one.
func (c *Client) DebugURL(ctx context.Context, sessionID string) (string, error) {
	var out struct {
		DebuggerFullscreenURL string `json:"debuggerFullscreenUrl"`
		DebuggerURL           string `json:"debuggerUrl"`
	}
	res, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", sessionID).
		SetResult(&out).
		Get("/v1/sessions/{id}/debug")
	if err == nil {
		err = checkStatus(res)
	}
	if err != nil {
		c.tel.ReportWarning(report_client_debug_url, err)
		return FallbackDebugURL(sessionID), err
	}
	if out.DebuggerFullscreenURL != "" {
		return out.DebuggerFullscreenURL, nil
	}
	if out.DebuggerURL != "" {
		return out.DebuggerURL, nil
	}
	return FallbackDebugURL(sessionID), nil
}

func (c *Client) ReleaseSession(ctx context.Context, sessionID string) error {
	res, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", sessionID).
		SetBody(map[string]any{
			"projectId": c.projectID,
			"status":    "REQUEST_RELEASE",
		}).
		Post("/v1/sessions/{id}")
	if err == nil {
		err = checkStatus(res)
	}
	if err != nil {
		c.tel.ReportWarning(report_client_release, sessionID, err)
		return fmt.Errorf("release session: %w", err)
	}
	return nil
}
