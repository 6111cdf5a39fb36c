// Package calendar publishes completed focus sessions to an external calendar.
package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client creates one event and returns its external id.
type Client interface {
	CreateEvent(ctx context.Context, title string, start, end time.Time) (string, error)
}

var ErrNotConfigured = errors.New("calendar endpoint not configured")

type HTTPClient struct {
	endpoint string
	token    string
	client   *http.Client
}

func NewHTTPClient(endpoint, token string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		endpoint: strings.TrimSpace(endpoint),
		token:    token,
		client:   &http.Client{Timeout: timeout},
	}
}

type eventTime struct {
	DateTime string `json:"dateTime"`
}

type eventRequest struct {
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	Start       eventTime `json:"start"`
	End         eventTime `json:"end"`
}

type eventResponse struct {
	ID string `json:"id"`
}

func (c *HTTPClient) CreateEvent(ctx context.Context, title string, start, end time.Time) (string, error) {
	if c.endpoint == "" {
		return "", ErrNotConfigured
	}

	body, err := json.Marshal(eventRequest{
		Summary:     title,
		Description: "Completed focus session",
		Start:       eventTime{DateTime: start.Format(time.RFC3339)},
		End:         eventTime{DateTime: end.Format(time.RFC3339)},
	})
	if err != nil {
		return "", fmt.Errorf("encode event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build event request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("create event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("create event: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var created eventResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("decode event: %w", err)
	}
	if created.ID == "" {
		return "", errors.New("create event: response carried no id")
	}
	return created.ID, nil
}
