package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/dmitrijs2005/failseed/internal/filex"
)

// ErrNoCredentials is returned when the client has not logged in yet.
var ErrNoCredentials = errors.New("not logged in")

// Credentials are the tokens the client keeps between runs.
type Credentials struct {
	ServerURL    string `json:"server_url"`
	Email        string `json:"email,omitempty"`
	Guest        bool   `json:"guest,omitempty"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// LoadCredentials reads the credentials file. A missing file yields
// ErrNoCredentials.
func LoadCredentials(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoCredentials
		}
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	var c Credentials
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse credentials %s: %w", path, err)
	}
	if c.AccessToken == "" {
		return nil, ErrNoCredentials
	}
	return &c, nil
}

// SaveCredentials writes c to path, creating the parent directory.
func SaveCredentials(path string, c *Credentials) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return filex.WriteFilePrivate(path, data)
}

// RemoveCredentials deletes the credentials file; a missing file is not an error.
func RemoveCredentials(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
