package gateway

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines approval gateway settings.
type Config struct {
	TestPG TestPGConfig `yaml:"testpg"`
}

// TestPGConfig configures the primary TestPG provider.
type TestPGConfig struct {
	APIURL  string        `yaml:"api_url"`
	APIKey  string        `yaml:"api_key"`
	APIIV   string        `yaml:"api_iv"`
	Timeout time.Duration `yaml:"timeout"`
	// FallbackEnabled chains the simulator behind TestPG and lets TestPG
	// substitute a mock approval when its endpoint is unreachable.
	FallbackEnabled bool `yaml:"fallback_enabled"`
}

// LoadConfig loads gateway config from the GATEWAY_CONFIG yaml file, then env overrides.
func LoadConfig() (Config, error) {
	cfg := Config{
		TestPG: TestPGConfig{
			APIURL:          "https://api-test-pg.bigs.im",
			Timeout:         60 * time.Second,
			FallbackEnabled: true,
		},
	}

	if path := os.Getenv("GATEWAY_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if value := os.Getenv("PG_TEST_API_URL"); value != "" {
		cfg.TestPG.APIURL = value
	}
	if value := os.Getenv("PG_TEST_API_KEY"); value != "" {
		cfg.TestPG.APIKey = value
	}
	if value := os.Getenv("PG_TEST_API_IV"); value != "" {
		cfg.TestPG.APIIV = value
	}
	if value := os.Getenv("PG_TEST_TIMEOUT"); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			cfg.TestPG.Timeout = parsed
		}
	}
	if value := os.Getenv("PG_TEST_FALLBACK_ENABLED"); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			cfg.TestPG.FallbackEnabled = parsed
		}
	}
	cfg.TestPG.APIURL = strings.TrimRight(cfg.TestPG.APIURL, "/")
	if cfg.TestPG.Timeout <= 0 {
		cfg.TestPG.Timeout = 60 * time.Second
	}
	return cfg, nil
}
