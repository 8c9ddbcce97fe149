// Package transcript fetches YouTube transcripts from the external
// transcript API.
package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "https://transcriptapi.com/api/v2"

// APIError reports a non-200 answer from the transcript provider. The
// status code is forwarded to callers so proxy endpoints can mirror it.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("transcript api: status %d: %s", e.StatusCode, e.Message)
}

// Result is a normalized transcript. Text is always plain text; Raw holds
// the provider's segment array as JSON when segments were returned, so
// timestamps are not lost.
type Result struct {
	Text     string
	Raw      string
	Title    string
	Duration float64
}

// Client calls the transcript provider with bearer-key auth.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Config configures the transcript client.
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// NewClient creates a transcript client.
func NewClient(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("transcript client requires api key")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{baseURL: baseURL, apiKey: apiKey, httpClient: httpClient}, nil
}

type transcriptSegment struct {
	Text string `json:"text"`
}

type transcriptResponse struct {
	Transcript json.RawMessage `json:"transcript"`
	Metadata   struct {
		VideoTitle string  `json:"video_title"`
		Duration   float64 `json:"duration"`
	} `json:"metadata"`
}

// Fetch retrieves and normalizes the transcript for a video URL.
func (c *Client) Fetch(ctx context.Context, videoURL string) (Result, error) {
	endpoint := c.baseURL + "/youtube/transcript?video_url=" + url.QueryEscape(videoURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("fetch transcript: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Result{}, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	var payload transcriptResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Result{}, fmt.Errorf("decode transcript: %w", err)
	}
	result := Result{
		Title:    payload.Metadata.VideoTitle,
		Duration: payload.Metadata.Duration,
	}
	result.Text, result.Raw, err = normalizeTranscript(payload.Transcript)
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

// normalizeTranscript flattens a segment array into plain text joined by
// spaces, keeping the original array as Raw. A plain string passes through.
func normalizeTranscript(raw json.RawMessage) (text string, rawJSON string, err error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return "", "", errors.New("transcript missing in response")
	}
	if strings.HasPrefix(trimmed, "[") {
		var segments []transcriptSegment
		if err := json.Unmarshal(raw, &segments); err != nil {
			return "", "", fmt.Errorf("decode transcript segments: %w", err)
		}
		parts := make([]string, 0, len(segments))
		for _, segment := range segments {
			parts = append(parts, segment.Text)
		}
		return strings.Join(parts, " "), trimmed, nil
	}
	var plain string
	if err := json.Unmarshal(raw, &plain); err != nil {
		return "", "", fmt.Errorf("decode transcript text: %w", err)
	}
	return plain, "", nil
}
