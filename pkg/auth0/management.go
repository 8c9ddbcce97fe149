// Package auth0 talks to the Auth0 Management API for the operations the
// identity provider must mirror, currently just account removal.
package auth0

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Management deletes provider-side user records via the Management API. A
// client-credentials token is fetched on demand and cached until shortly
// before expiry.
type Management struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// Config configures Management API access. All three values come from a
// machine-to-machine application on the tenant.
type Config struct {
	Domain       string
	ClientID     string
	ClientSecret string
	HTTPClient   *http.Client
}

// NewManagement creates a Management API client.
func NewManagement(cfg Config) (*Management, error) {
	domain := strings.TrimRight(strings.TrimSpace(cfg.Domain), "/")
	if domain == "" {
		return nil, errors.New("auth0 management requires domain")
	}
	baseURL := domain
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "https://" + baseURL
	}
	clientID := strings.TrimSpace(cfg.ClientID)
	clientSecret := strings.TrimSpace(cfg.ClientSecret)
	if clientID == "" || clientSecret == "" {
		return nil, errors.New("auth0 management requires client credentials")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Management{
		baseURL:      baseURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   httpClient,
	}, nil
}

// DeleteUser removes the provider-side record for a subject. Deleting an
// already-deleted subject succeeds.
func (m *Management) DeleteUser(ctx context.Context, subject string) error {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return errors.New("subject required")
	}
	token, err := m.managementToken(ctx)
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/api/v2/users/%s", m.baseURL, url.PathEscape(subject))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete provider user: %w", err)
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusOK, http.StatusNotFound:
		return nil
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("delete provider user: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
}

func (m *Management) managementToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token != "" && time.Now().Before(m.tokenExpiry) {
		return m.token, nil
	}

	payload, err := json.Marshal(map[string]string{
		"grant_type":    "client_credentials",
		"client_id":     m.clientID,
		"client_secret": m.clientSecret,
		"audience":      m.baseURL + "/api/v2/",
	})
	if err != nil {
		return "", err
	}
	endpoint := m.baseURL + "/oauth/token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(payload)))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch management token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("fetch management token: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode management token: %w", err)
	}
	if decoded.AccessToken == "" {
		return "", errors.New("management token missing in response")
	}
	ttl := time.Duration(decoded.ExpiresIn) * time.Second
	if ttl > time.Minute {
		ttl -= time.Minute
	}
	m.token = decoded.AccessToken
	m.tokenExpiry = time.Now().Add(ttl)
	return m.token, nil
}
