// Package config provides centralized configuration management.
//
// Configuration can be loaded from:
//  1. A .env file (optional, loaded into the environment first)
//  2. YAML file (config.yaml), with ${VAR} expansion
//  3. Environment variables (fallback)
//
// Example usage:
//
//	cfg := config.LoadOrEnv()
//	port := cfg.Server.Port
//	matchCfg := cfg.Matching.MatcherConfig()
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/eshaffer321/ledger-reconcile/internal/domain/matcher"
)

// Config represents the entire application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Matching      MatchingConfig      `yaml:"matching"`
	Decision      DecisionConfig      `yaml:"decision"`
	Storage       StorageConfig       `yaml:"storage"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// MatchingConfig holds the default matching thresholds
type MatchingConfig struct {
	VendorThreshold  float64 `yaml:"vendor_threshold"`
	AmountTolerance  float64 `yaml:"amount_tolerance"`
	DateWindowDays   int     `yaml:"date_window_days"`
	RequireReference bool    `yaml:"require_reference"`
	TopK             int     `yaml:"top_k"`
	MinScore         float64 `yaml:"min_score"`
}

// MatcherConfig converts to the matcher's threshold set
func (m MatchingConfig) MatcherConfig() matcher.Config {
	return matcher.Config{
		VendorThreshold:  m.VendorThreshold,
		AmountTolerance:  m.AmountTolerance,
		DateWindowDays:   m.DateWindowDays,
		RequireReference: m.RequireReference,
	}
}

// Decision providers
const (
	ProviderNone   = "none"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// DecisionConfig holds the optional decision service settings
type DecisionConfig struct {
	Provider          string        `yaml:"provider"` // none, openai, gemini
	APIKey            string        `yaml:"api_key"`
	Model             string        `yaml:"model"`
	BaseURL           string        `yaml:"base_url"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	CacheTTL          time.Duration `yaml:"cache_ttl"`
}

// StorageConfig holds the archive database settings. An empty path disables archiving.
type StorageConfig struct {
	ArchivePath string `yaml:"archive_path"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text (Maven-style) or json
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	m := matcher.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			Port:           8085,
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Matching: MatchingConfig{
			VendorThreshold:  m.VendorThreshold,
			AmountTolerance:  m.AmountTolerance,
			DateWindowDays:   m.DateWindowDays,
			RequireReference: m.RequireReference,
			TopK:             matcher.DefaultTopK,
			MinScore:         matcher.DefaultMinScore,
		},
		Decision: DecisionConfig{
			Provider:          ProviderNone,
			Timeout:           30 * time.Second,
			RequestsPerMinute: 60,
			CacheTTL:          time.Hour,
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{Level: "info", Format: "text"},
		},
	}
}

// Load reads and parses the config file. Unset fields keep their defaults.
func Load(path string) (*Config, error) {
	loadDotEnv()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${OPENAI_API_KEY})
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only
func LoadFromEnv() *Config {
	loadDotEnv()

	d := Default()
	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnvInt("RECONCILE_PORT", d.Server.Port),
			AllowedOrigins: getEnvList("RECONCILE_ALLOWED_ORIGINS", d.Server.AllowedOrigins),
		},
		Matching: MatchingConfig{
			VendorThreshold:  getEnvFloat("RECONCILE_VENDOR_THRESHOLD", d.Matching.VendorThreshold),
			AmountTolerance:  getEnvFloat("RECONCILE_AMOUNT_TOLERANCE", d.Matching.AmountTolerance),
			DateWindowDays:   getEnvInt("RECONCILE_DATE_WINDOW_DAYS", d.Matching.DateWindowDays),
			RequireReference: getEnvBool("RECONCILE_REQUIRE_REFERENCE", d.Matching.RequireReference),
			TopK:             getEnvInt("RECONCILE_TOP_K", d.Matching.TopK),
			MinScore:         getEnvFloat("RECONCILE_MIN_SCORE", d.Matching.MinScore),
		},
		Decision: DecisionConfig{
			Provider:          getEnv("RECONCILE_DECISION_PROVIDER", detectProvider()),
			Model:             os.Getenv("RECONCILE_DECISION_MODEL"),
			BaseURL:           os.Getenv("RECONCILE_DECISION_BASE_URL"),
			Timeout:           getEnvDuration("RECONCILE_DECISION_TIMEOUT", d.Decision.Timeout),
			RequestsPerMinute: getEnvInt("RECONCILE_DECISION_RPM", d.Decision.RequestsPerMinute),
			CacheTTL:          getEnvDuration("RECONCILE_DECISION_CACHE_TTL", d.Decision.CacheTTL),
		},
		Storage: StorageConfig{
			ArchivePath: os.Getenv("RECONCILE_ARCHIVE_PATH"),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "text"),
			},
		},
	}
	return cfg
}

// LoadOrEnv tries to load from config.yaml, falls back to environment variables
func LoadOrEnv() *Config {
	return LoadOrEnv_WithPath("config.yaml")
}

// LoadOrEnv_WithPath tries to load from specified path, falls back to environment variables
func LoadOrEnv_WithPath(path string) *Config {
	if cfg, err := Load(path); err == nil {
		return cfg
	}
	return LoadFromEnv()
}

// Validate checks settings that would otherwise fail later at run time
func (c *Config) Validate() error {
	var errs []error
	if err := c.Matching.MatcherConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Matching.TopK < 1 {
		errs = append(errs, fmt.Errorf("matching.top_k must be >= 1, got %d", c.Matching.TopK))
	}
	if c.Matching.MinScore < 0 || c.Matching.MinScore > 1 {
		errs = append(errs, fmt.Errorf("matching.min_score must be within [0, 1], got %v", c.Matching.MinScore))
	}
	switch c.Decision.Provider {
	case "", ProviderNone, ProviderOpenAI, ProviderGemini:
	default:
		errs = append(errs, fmt.Errorf("decision.provider %q is not one of none, openai, gemini", c.Decision.Provider))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	return errors.Join(errs...)
}

// DecisionAPIKey returns the decision service key from config, then the provider's environment variables
func (c *Config) DecisionAPIKey() string {
	switch c.Decision.Provider {
	case ProviderOpenAI:
		return c.GetAPIKey(c.Decision.APIKey, "OPENAI_API_KEY", "OPENAI_APIKEY")
	case ProviderGemini:
		return c.GetAPIKey(c.Decision.APIKey, "GEMINI_API_KEY", "GOOGLE_API_KEY")
	default:
		return c.Decision.APIKey
	}
}

// GetAPIKey retrieves an API key from config first, then tries multiple environment variable names
// Usage: GetAPIKey(cfg.Decision.APIKey, "OPENAI_API_KEY", "OPENAI_APIKEY")
func (c *Config) GetAPIKey(configValue string, envVarNames ...string) string {
	// First, try the config value
	if configValue != "" {
		return configValue
	}

	// Then try each environment variable in order
	for _, envVar := range envVarNames {
		if val := os.Getenv(envVar); val != "" {
			return val
		}
	}

	return ""
}

// detectProvider picks a provider from whichever API key is present
func detectProvider() string {
	switch {
	case os.Getenv("GEMINI_API_KEY") != "":
		return ProviderGemini
	case os.Getenv("OPENAI_API_KEY") != "":
		return ProviderOpenAI
	default:
		return ProviderNone
	}
}

// loadDotEnv loads .env into the environment without overriding set variables
func loadDotEnv() {
	_ = godotenv.Load()
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable with a fallback default
func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if result, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return result
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if result, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return result
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if result, err := strconv.ParseBool(strings.TrimSpace(val)); err == nil {
			return result
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if result, err := time.ParseDuration(strings.TrimSpace(val)); err == nil {
			return result
		}
	}
	return fallback
}

// getEnvList splits a comma-separated variable
func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
