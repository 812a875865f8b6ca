// Package unload records the offline transition while a session is being
// torn down. It prefers an asynchronous keepalive request and falls back to
// a synchronous PATCH against the REST surface.
package unload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-masker"
	"github.com/goliatone/go-presence/pkg/types"
	"github.com/google/uuid"
)

const (
	DefaultTable       = "user_profiles"
	DefaultSyncTimeout = 2 * time.Second
)

// Config wires the unload flusher.
type Config struct {
	// BaseURL is the REST host, e.g. https://db.example.com.
	BaseURL     string
	Table       string
	Credentials CredentialStore
	Keepalive   KeepaliveTransport
	// Client performs the synchronous fallback. Its Timeout is replaced by
	// SyncTimeout when unset.
	Client      *http.Client
	SyncTimeout time.Duration
	Clock       types.Clock
	Logger      types.Logger
	Masker      *masker.Masker
}

// Flusher implements writer.UnloadFlusher.
type Flusher struct {
	baseURL     string
	table       string
	credentials CredentialStore
	keepalive   KeepaliveTransport
	client      *http.Client
	clock       types.Clock
	logger      types.Logger
	mask        *masker.Masker
}

// New validates the configuration and builds a flusher.
func New(cfg Config) (*Flusher, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("unload: base url required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("unload: invalid base url: %w", err)
	}
	if cfg.Credentials == nil {
		return nil, errors.New("unload: credential store required")
	}
	table := cfg.Table
	if table == "" {
		table = DefaultTable
	}
	timeout := cfg.SyncTimeout
	if timeout <= 0 {
		timeout = DefaultSyncTimeout
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	} else if client.Timeout == 0 {
		clone := *client
		clone.Timeout = timeout
		client = &clone
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.SystemClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = types.NopLogger{}
	}
	mask := cfg.Masker
	if mask == nil {
		mask = DefaultMasker()
	}
	return &Flusher{
		baseURL:     base,
		table:       table,
		credentials: cfg.Credentials,
		keepalive:   cfg.Keepalive,
		client:      client,
		clock:       clock,
		logger:      logger,
		mask:        mask,
	}, nil
}

type patchBody struct {
	Status          types.PresenceStatus `json:"status"`
	LastSeenAt      time.Time            `json:"last_seen_at"`
	StatusUpdatedAt time.Time            `json:"status_updated_at"`
}

// Flush writes offline for the user. The keepalive path is tried first; the
// synchronous PATCH runs only when it is missing or refuses the request.
// There are no retries.
func (f *Flusher) Flush(userID uuid.UUID) error {
	if userID == uuid.Nil {
		return types.ErrUserIDRequired
	}
	creds, err := f.credentials.Credentials()
	if err != nil {
		return err
	}
	if !creds.valid() {
		return ErrMissingCredentials
	}

	ts := f.clock.Now()
	body, err := json.Marshal(patchBody{
		Status:          types.PresenceStatusOffline,
		LastSeenAt:      ts,
		StatusUpdatedAt: ts,
	})
	if err != nil {
		return err
	}

	if f.keepalive != nil {
		req, err := f.newRequest(context.Background(), userID, creds, body)
		if err != nil {
			return err
		}
		err = f.keepalive.Dispatch(req)
		if err == nil {
			f.logger.Debug("presence offline queued via keepalive", "user_id", userID)
			return nil
		}
		f.logger.Debug("presence keepalive unavailable, using sync fallback",
			"user_id", userID,
			"reason", err.Error())
	}

	return f.flushSync(userID, creds, body)
}

func (f *Flusher) flushSync(userID uuid.UUID, creds Credentials, body []byte) error {
	req, err := f.newRequest(context.Background(), userID, creds, body)
	if err != nil {
		return err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Error("presence sync flush failed", err, "request", f.describe(req, creds))
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		err := fmt.Errorf("unload: sync flush rejected with status %d", resp.StatusCode)
		f.logger.Error("presence sync flush rejected", err, "request", f.describe(req, creds))
		return err
	}
	return nil
}

func (f *Flusher) newRequest(ctx context.Context, userID uuid.UUID, creds Credentials, body []byte) (*http.Request, error) {
	endpoint := fmt.Sprintf("%s/rest/v1/%s?id=eq.%s", f.baseURL, url.PathEscape(f.table), userID.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	req.Header.Set("apikey", creds.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=minimal")
	return req, nil
}

// describe renders the request for logs with credentials masked.
func (f *Flusher) describe(req *http.Request, creds Credentials) map[string]any {
	out := map[string]any{
		"method":       req.Method,
		"url":          req.URL.String(),
		"access_token": creds.AccessToken,
		"api_key":      creds.APIKey,
	}
	if f.mask == nil {
		delete(out, "access_token")
		delete(out, "api_key")
		return out
	}
	masked, err := f.mask.Mask(out)
	if err != nil {
		return map[string]any{"method": req.Method, "url": req.URL.String()}
	}
	if m, ok := masked.(map[string]any); ok {
		return m
	}
	return map[string]any{"method": req.Method, "url": req.URL.String()}
}
