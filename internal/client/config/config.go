package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/failseed/internal/flagx"
)

// Config holds runtime settings for the FailSeed terminal client.
//
// Fields:
//   - ServerURL: base URL of the FailSeed HTTP API.
//   - CredentialsFile: where tokens are kept between runs.
//   - RequestTimeout: bound for one API call; generation calls can take a while.
type Config struct {
	ServerURL       string
	CredentialsFile string
	RequestTimeout  time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.CredentialsFile = defaultCredentialsFile()
	c.RequestTimeout = 90 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and the FAILSEED_SERVER environment variable. Command-line
// flags are applied later by the cobra commands.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	flagx.StringFromEnv(&cfg.ServerURL, "FAILSEED_SERVER")
	return cfg
}

func defaultCredentialsFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "failseed", "credentials.json")
}
