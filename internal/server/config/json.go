package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/failseed/internal/flagx"
	"github.com/dmitrijs2005/failseed/internal/timex"
)

// JsonConfig is the on-disk shape of the server config file. Only fields
// present in the file override the defaults.
type JsonConfig struct {
	EndpointAddrHTTP             string          `json:"endpoint_addr_http"`
	EndpointAddrGRPC             string          `json:"endpoint_addr_grpc"`
	LogLevel                     string          `json:"log_level"`
	StorageDriver                string          `json:"storage_driver"`
	DatabaseDSN                  string          `json:"database_dsn"`
	SecretKey                    string          `json:"secret_key"`
	AccessTokenValidityDuration  *timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration *timex.Duration `json:"refresh_token_validity_duration"`
	GuestTokenValidityDuration   *timex.Duration `json:"guest_token_validity_duration"`
	LLMProvider                  string          `json:"llm_provider"`
	LLMModel                     string          `json:"llm_model"`
	LLMAPIKey                    string          `json:"llm_api_key"`
	LLMBaseURL                   string          `json:"llm_base_url"`
	LLMTimeout                   *timex.Duration `json:"llm_timeout"`
	LLMTemperature               *float64        `json:"llm_temperature"`
	PromptPolicyFile             string          `json:"prompt_policy_file"`
	MaxInputChars                int             `json:"max_input_chars"`
	MaxTurns                     int             `json:"max_turns"`
	S3AccessKey                  string          `json:"s3_access_key"`
	S3SecretKey                  string          `json:"s3_secret_key"`
	S3Bucket                     string          `json:"s3_bucket"`
	S3Region                     string          `json:"s3_region"`
	S3BaseEndpoint               string          `json:"s3_base_endpoint"`
}

// parseJson overlays config with the JSON file named by -c/-config.
// Nothing happens when no file is given; an unreadable or invalid file panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	if err := loadJsonFile(jsonConfigFile, config); err != nil {
		panic(err)
	}
}

func loadJsonFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var c JsonConfig
	if err := json.Unmarshal(data, &c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.StorageDriver, c.StorageDriver)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setDuration(&config.RefreshTokenValidityDuration, c.RefreshTokenValidityDuration)
	setDuration(&config.GuestTokenValidityDuration, c.GuestTokenValidityDuration)
	setString(&config.LLMProvider, c.LLMProvider)
	setString(&config.LLMModel, c.LLMModel)
	setString(&config.LLMAPIKey, c.LLMAPIKey)
	setString(&config.LLMBaseURL, c.LLMBaseURL)
	setDuration(&config.LLMTimeout, c.LLMTimeout)
	if c.LLMTemperature != nil {
		config.LLMTemperature = *c.LLMTemperature
	}
	setString(&config.PromptPolicyFile, c.PromptPolicyFile)
	if c.MaxInputChars > 0 {
		config.MaxInputChars = c.MaxInputChars
	}
	if c.MaxTurns > 0 {
		config.MaxTurns = c.MaxTurns
	}
	setString(&config.S3AccessKey, c.S3AccessKey)
	setString(&config.S3SecretKey, c.S3SecretKey)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
