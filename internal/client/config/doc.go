// Package config loads runtime configuration for the FailSeed terminal client
// and persists its credentials between runs.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. FAILSEED_SERVER environment variable for the server URL.
//  4. Command-line flags of the cobra commands, which override earlier values.
//
// # JSON schema
//
//	{
//	  "server_url": "http://127.0.0.1:8080",
//	  "credentials_file": "/home/me/.config/failseed/credentials.json",
//	  "request_timeout": "90s"
//	}
//
// Credentials are stored as JSON with 0600 permissions; see LoadCredentials
// and SaveCredentials.
package config
