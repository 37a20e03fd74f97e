package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/ledger-reconcile/internal/domain/matcher"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	t.Setenv("TEST_GEMINI_KEY", "from-env")
	path := writeConfig(t, `
server:
  port: 9000
matching:
  vendor_threshold: 0.7
  date_window_days: 5
decision:
  provider: gemini
  api_key: ${TEST_GEMINI_KEY}
  timeout: 10s
storage:
  archive_path: archive.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 0.7, cfg.Matching.VendorThreshold)
	assert.Equal(t, 5, cfg.Matching.DateWindowDays)
	assert.Equal(t, 0.01, cfg.Matching.AmountTolerance, "unset fields keep defaults")
	assert.Equal(t, matcher.DefaultTopK, cfg.Matching.TopK)
	assert.Equal(t, "from-env", cfg.Decision.APIKey)
	assert.Equal(t, 10*time.Second, cfg.Decision.Timeout)
	assert.Equal(t, "archive.db", cfg.Storage.ArchivePath)
}

func TestLoad_RejectsInvalidThresholds(t *testing.T) {
	path := writeConfig(t, `
matching:
  vendor_threshold: 1.5
`)

	_, err := Load(path)

	assert.ErrorIs(t, err, matcher.ErrInvalidConfig)
}

func TestLoad_RejectsUnknownProvider(t *testing.T) {
	path := writeConfig(t, `
decision:
  provider: carrier-pigeon
`)

	_, err := Load(path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "carrier-pigeon")
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("RECONCILE_PORT", "9100")
	t.Setenv("RECONCILE_VENDOR_THRESHOLD", "0.65")
	t.Setenv("RECONCILE_REQUIRE_REFERENCE", "true")
	t.Setenv("RECONCILE_ALLOWED_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("RECONCILE_DECISION_PROVIDER", "openai")
	t.Setenv("RECONCILE_DECISION_TIMEOUT", "5s")
	t.Setenv("OPENAI_API_KEY", "test-key")

	cfg := LoadFromEnv()

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 0.65, cfg.Matching.VendorThreshold)
	assert.True(t, cfg.Matching.RequireReference)
	assert.Equal(t, ProviderOpenAI, cfg.Decision.Provider)
	assert.Equal(t, 5*time.Second, cfg.Decision.Timeout)
	assert.Equal(t, "test-key", cfg.DecisionAPIKey())
}

func TestLoadOrEnv_WithPath_FallsBack(t *testing.T) {
	t.Setenv("RECONCILE_PORT", "9200")

	cfg := LoadOrEnv_WithPath(filepath.Join(t.TempDir(), "missing.yaml"))

	assert.Equal(t, 9200, cfg.Server.Port)
}

func TestGetAPIKey_Precedence(t *testing.T) {
	t.Setenv("SECOND_KEY", "env-second")
	cfg := Default()

	assert.Equal(t, "from-config", cfg.GetAPIKey("from-config", "SECOND_KEY"))
	assert.Equal(t, "env-second", cfg.GetAPIKey("", "FIRST_KEY_UNSET", "SECOND_KEY"))
	assert.Equal(t, "", cfg.GetAPIKey("", "FIRST_KEY_UNSET"))
}

func TestMatchingConfig_MatcherConfig(t *testing.T) {
	assert.Equal(t, matcher.DefaultConfig(), Default().Matching.MatcherConfig())
}
