package commands

import (
	"os"
	"strings"

	"milesfare-backend/internal/browser/provider"
	"milesfare-backend/internal/scrapers/marketplace"
	"milesfare-backend/lib/configutil"
)

const (
	DataModeMock = "mock"
	DataModeLive = "live"
)

type BrowserSiteConfig struct {
	ContextID string `json:"context_id"`
	KeepAlive bool   `json:"keep_alive"`
}

type AwardConfig struct {
	BrowserSiteConfig
	SessionID           string `json:"session_id"`
	LoginTimeoutSeconds int    `json:"login_timeout_seconds"`
}

type MarketplaceConfig struct {
	marketplace.Config
	// Direct fetches listing pages without the extraction service.
	Direct bool `json:"direct"`
}

type DebugConfig struct {
	Dir string `json:"dir"`
}

type StateDBConfig struct {
	Path            string `json:"path"`
	SessionTTLHours int    `json:"session_ttl_hours"`
}

type ServerConfig struct {
	Port int `json:"port"`
}

type Config struct {
	DataMode    string            `json:"data_mode"`
	Browser     provider.Config   `json:"browser"`
	Cash        BrowserSiteConfig `json:"cash"`
	Award       AwardConfig       `json:"award"`
	Marketplace MarketplaceConfig `json:"marketplace"`
	Debug       DebugConfig       `json:"debug"`
	StateDB     StateDBConfig     `json:"state_db"`
	Server      ServerConfig      `json:"server"`
}

func defaultConfig() Config {
	return Config{
		DataMode: DataModeMock,
		Award: AwardConfig{
			BrowserSiteConfig:   BrowserSiteConfig{KeepAlive: true},
			LoginTimeoutSeconds: 300,
		},
		Marketplace: MarketplaceConfig{Config: marketplace.DefaultConfig()},
		StateDB: StateDBConfig{
			Path:            "milesfare.db",
			SessionTTLHours: 6,
		},
		Server: ServerConfig{Port: 8080},
	}
}

// loadConfig reads path (plus its .local override) over the defaults, then
// applies the environment. A missing file is not an error.
func loadConfig(path string) (Config, error) {
	err := configutil.LoadDotenv()
	if err != nil {
		return Config{}, err
	}

	cfg, err := configutil.ReadOver(path, defaultConfig())
	if err != nil && !os.IsNotExist(err) {
		return Config{}, err
	}

	configutil.OverrideFromEnv(&cfg.DataMode, "DATA_MODE")
	configutil.OverrideFromEnv(&cfg.Browser.APIKey, "BROWSERBASE_API_KEY")
	configutil.OverrideFromEnv(&cfg.Browser.ProjectID, "BROWSERBASE_PROJECT_ID")
	configutil.OverrideFromEnv(&cfg.Marketplace.APIKey, "FIRECRAWL_API_KEY")
	configutil.OverrideFromEnv(&cfg.Award.ContextID, "DYNASTY_FLYER_CONTEXT_ID")
	configutil.OverrideFromEnv(&cfg.Award.SessionID, "DYNASTY_FLYER_SESSION_ID")
	configutil.OverrideFromEnv(&cfg.Cash.ContextID, "CHINA_AIRLINES_CONTEXT_ID")
	cfg.DataMode = strings.ToLower(strings.TrimSpace(cfg.DataMode))

	return cfg, nil
}
