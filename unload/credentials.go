package unload

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// ErrMissingCredentials indicates no access token was available for the
// flush request.
var ErrMissingCredentials = errors.New("unload: access token and api key required")

// Credentials are the values the REST surface needs to authorize a write.
type Credentials struct {
	AccessToken string `json:"access_token"`
	APIKey      string `json:"api_key"`
}

func (c Credentials) valid() bool {
	return strings.TrimSpace(c.AccessToken) != "" && strings.TrimSpace(c.APIKey) != ""
}

// CredentialStore returns credentials synchronously, without any auth
// round trip, so it can be used while the session is being torn down.
type CredentialStore interface {
	Credentials() (Credentials, error)
}

// StaticCredentials always returns the same values.
type StaticCredentials Credentials

// Credentials implements CredentialStore.
func (s StaticCredentials) Credentials() (Credentials, error) {
	return Credentials(s), nil
}

// MemoryCredentials holds the values the auth client last persisted.
type MemoryCredentials struct {
	mu    sync.RWMutex
	creds Credentials
}

// Set replaces the stored credentials, e.g. after a token refresh.
func (m *MemoryCredentials) Set(creds Credentials) {
	m.mu.Lock()
	m.creds = creds
	m.mu.Unlock()
}

// Credentials implements CredentialStore.
func (m *MemoryCredentials) Credentials() (Credentials, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creds, nil
}

// FileCredentials reads the persisted session file written by the auth
// client. The API key may come from the file or from APIKey.
type FileCredentials struct {
	Path   string
	APIKey string
}

type sessionFile struct {
	AccessToken    string `json:"access_token"`
	APIKey         string `json:"api_key"`
	CurrentSession *struct {
		AccessToken string `json:"access_token"`
	} `json:"currentSession"`
}

// Credentials implements CredentialStore.
func (f FileCredentials) Credentials() (Credentials, error) {
	raw, err := os.ReadFile(f.Path)
	if err != nil {
		return Credentials{}, fmt.Errorf("unload: read session file: %w", err)
	}
	var payload sessionFile
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Credentials{}, fmt.Errorf("unload: parse session file: %w", err)
	}
	creds := Credentials{
		AccessToken: payload.AccessToken,
		APIKey:      payload.APIKey,
	}
	if creds.AccessToken == "" && payload.CurrentSession != nil {
		creds.AccessToken = payload.CurrentSession.AccessToken
	}
	if creds.APIKey == "" {
		creds.APIKey = f.APIKey
	}
	return creds, nil
}
