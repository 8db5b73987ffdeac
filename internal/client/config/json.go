package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/failseed/internal/flagx"
	"github.com/dmitrijs2005/failseed/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// It relies on timex.Duration so JSON can specify the timeout either as
// a string like "90s" or as integer nanoseconds.
type JsonConfig struct {
	ServerURL       string          `json:"server_url"`
	CredentialsFile string          `json:"credentials_file"`
	RequestTimeout  *timex.Duration `json:"request_timeout"`
}

// parseJson overlays Config with values loaded from the JSON file named by
// -c or -config. Fields missing from the file keep their current value.
// Panics on read or unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerURL != "" {
		cfg.ServerURL = jc.ServerURL
	}
	if jc.CredentialsFile != "" {
		cfg.CredentialsFile = jc.CredentialsFile
	}
	if jc.RequestTimeout != nil {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
}
