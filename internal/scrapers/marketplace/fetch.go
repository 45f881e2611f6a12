package marketplace

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"milesfare-backend/internal/airfare"
	"milesfare-backend/internal/components/assert"
	"milesfare-backend/internal/components/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	report_fetch_extraction = "fetch.extraction"
	report_fetch_direct     = "fetch.direct"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// ScrapedPage is a rendered marketplace page, either format may be empty.
type ScrapedPage struct {
	Markdown string
	HTML     string
}

type Fetcher interface {
	Fetch(ctx context.Context, url string) (ScrapedPage, error)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// ExtractionClient renders pages through a hosted content-extraction
// service with a Firecrawl-compatible scrape endpoint.
type ExtractionClient struct {
	http   *resty.Client
	apiKey string
	tel    telemetry.API
}

func NewExtractionClient(cfg Config, tel telemetry.API, output telemetry.MessageOutput) *ExtractionClient {
	assert.NotNil(tel)
	tel = telemetry.NewScopedAPI("extraction_client", tel)

	baseURL := cfg.ExtractionURL
	if baseURL == "" {
		baseURL = DefaultExtractionURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultConfig().Timeout
	}

	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(timeout)
	client.SetHeader("content-type", "application/json")
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}

	rateLimiter := rate.NewLimiter(1, 1)
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})
	telemetry.InstrumentResty(client, tel, output)

	return &ExtractionClient{http: client, apiKey: cfg.APIKey, tel: tel}
}

type scrapeAction struct {
	Type         string `json:"type"`
	Milliseconds int64  `json:"milliseconds"`
}

type scrapeRequest struct {
	URL     string         `json:"url"`
	Formats []string       `json:"formats"`
	Actions []scrapeAction `json:"actions"`
}

type scrapeResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    struct {
		Markdown string         `json:"markdown"`
		HTML     string         `json:"html"`
		Metadata map[string]any `json:"metadata"`
	} `json:"data"`
}

func (c *ExtractionClient) Fetch(ctx context.Context, url string) (ScrapedPage, error) {
	if c.apiKey == "" {
		return ScrapedPage{}, airfare.Errorf(airfare.KindAPIError, "FIRECRAWL_API_KEY environment variable is not set")
	}

	var out scrapeResponse
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(scrapeRequest{
			URL:     url,
			Formats: []string{"markdown", "html"},
			Actions: []scrapeAction{{Type: "wait", Milliseconds: ExtractionWait.Milliseconds()}},
		}).
		SetResult(&out).
		SetError(&out).
		Post("/v1/scrape")
	if err != nil {
		c.tel.ReportWarning(report_fetch_extraction, err)
		if isTimeout(err) {
			return ScrapedPage{}, airfare.Wrap(airfare.KindTimeout, "extraction request timed out", err)
		}
		return ScrapedPage{}, airfare.Wrap(airfare.KindAPIError, "extraction request", err)
	}

	switch {
	case res.StatusCode() == http.StatusRequestTimeout || res.StatusCode() == http.StatusGatewayTimeout:
		return ScrapedPage{}, airfare.Errorf(airfare.KindTimeout, "extraction service timed out with status %d", res.StatusCode())
	case res.IsError():
		c.tel.ReportWarning(report_fetch_extraction, res.StatusCode(), out.Error)
		return ScrapedPage{}, airfare.Errorf(airfare.KindAPIError, "extraction service status %d: %s", res.StatusCode(), out.Error)
	case !out.Success:
		return ScrapedPage{}, airfare.Errorf(airfare.KindAPIError, "extraction service failed: %s", out.Error)
	}

	c.tel.ReportDebug("scraped", url, len(out.Data.Markdown), len(out.Data.HTML))
	return ScrapedPage{Markdown: out.Data.Markdown, HTML: out.Data.HTML}, nil
}

// DirectFetcher downloads the listing page itself. It only gets server
// rendered html, used when no extraction key is configured.
type DirectFetcher struct {
	http *resty.Client
	tel  telemetry.API
}

func NewDirectFetcher(tel telemetry.API, output telemetry.MessageOutput) *DirectFetcher {
	assert.NotNil(tel)
	tel = telemetry.NewScopedAPI("direct_fetcher", tel)

	client := resty.New()
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	client.SetHeader("user-agent", userAgent)
	client.SetTimeout(30 * time.Second)

	rateLimiter := rate.NewLimiter(1, 1)
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})
	telemetry.InstrumentResty(client, tel, output)

	return &DirectFetcher{http: client, tel: tel}
}

func (f *DirectFetcher) Fetch(ctx context.Context, url string) (ScrapedPage, error) {
	res, err := f.http.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		f.tel.ReportWarning(report_fetch_direct, err)
		if isTimeout(err) {
			return ScrapedPage{}, airfare.Wrap(airfare.KindTimeout, "fetch listing page", err)
		}
		return ScrapedPage{}, airfare.Wrap(airfare.KindAPIError, "fetch listing page", err)
	}
	if res.IsError() {
		return ScrapedPage{}, airfare.Errorf(airfare.KindAPIError, "listing page status %d", res.StatusCode())
	}
	return ScrapedPage{HTML: res.String()}, nil
}
