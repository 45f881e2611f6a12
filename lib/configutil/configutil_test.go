package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	DataMode string `json:"data_mode"`
	Cache    struct {
		FlightsMinutes int `json:"flights_minutes"`
	} `json:"cache"`
	Marketplace struct {
		APIKey string `json:"api_key"`
	} `json:"marketplace"`
}

func TestReadConfigMergesLocal(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "milesfare.json5"), []byte(`{
		// defaults
		data_mode: "mock",
		cache: { flights_minutes: 10 },
	}`), 0600)
	require.Nil(t, err)
	err = os.WriteFile(filepath.Join(dir, "milesfare.local.json5"), []byte(`{
		data_mode: "live",
		marketplace: { api_key: "fc-123" },
	}`), 0600)
	require.Nil(t, err)

	cfg, err := ReadConfig[testConfig](filepath.Join(dir, "milesfare.json5"))
	require.Nil(t, err)
	require.Equal(t, "live", cfg.DataMode)
	require.Equal(t, 10, cfg.Cache.FlightsMinutes)
	require.Equal(t, "fc-123", cfg.Marketplace.APIKey)
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "milesfare.json5"))
	require.True(t, os.IsNotExist(err))
}

func TestLocalName(t *testing.T) {
	table := []struct {
		input string
		local string
	}{
		{input: "milesfare.json5", local: "milesfare.local.json5"},
		{input: "conf/telemetry.json5", local: "conf/telemetry.local.json5"},
		{input: "noext", local: "noext.local"},
	}
	for _, row := range table {
		require.Equal(t, row.local, LocalName(row.input))
	}
}

func TestReadOverKeepsBase(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "milesfare.local.json5"), []byte(`{
		marketplace: { api_key: "fc-123" },
	}`), 0600)
	require.Nil(t, err)

	base := testConfig{DataMode: "mock"}
	base.Cache.FlightsMinutes = 10

	cfg, err := ReadOver(filepath.Join(dir, "milesfare.json5"), base)
	require.Nil(t, err)
	require.Equal(t, "mock", cfg.DataMode)
	require.Equal(t, 10, cfg.Cache.FlightsMinutes)
	require.Equal(t, "fc-123", cfg.Marketplace.APIKey)

	cfg, err = ReadOver(filepath.Join(dir, "missing.json5"), base)
	require.True(t, os.IsNotExist(err))
	require.Equal(t, base, cfg)
}

func TestOverrideFromEnv(t *testing.T) {
	t.Setenv("MILESFARE_TEST_KEY", "from-env")
	value := "from-file"
	OverrideFromEnv(&value, "MILESFARE_TEST_KEY")
	require.Equal(t, "from-env", value)

	other := "kept"
	OverrideFromEnv(&other, "MILESFARE_TEST_UNSET")
	require.Equal(t, "kept", other)
}

func TestLoadDotenv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	err := os.WriteFile(path, []byte("MILESFARE_DOTENV_VALUE=abc\n"), 0600)
	require.Nil(t, err)
	t.Setenv("MILESFARE_DOTENV_VALUE", "")
	os.Unsetenv("MILESFARE_DOTENV_VALUE")

	require.Nil(t, LoadDotenv(path, filepath.Join(dir, "missing.env")))
	require.Equal(t, "abc", os.Getenv("MILESFARE_DOTENV_VALUE"))
}
