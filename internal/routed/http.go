package routed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// =============================================================================
// HTTP ROUTER
// =============================================================================

// HTTPRouter posts classification requests to a self-hosted endpoint that
// speaks the shared reply schema. Useful for offline or air-gapped setups
// running their own router service.
//
//	POST {endpoint}
//	{"input": "...", "commands": [{"id": "...", "description": "..."}]}
//	-> {"candidates": [{"id": "...", "score": 0.8}]}
type HTTPRouter struct {
	endpoint string
	client   *http.Client
}

// NewHTTPRouter creates a router for the given endpoint URL.
func NewHTTPRouter(endpoint string) (*HTTPRouter, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("http router: endpoint is required")
	}
	return &HTTPRouter{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (r *HTTPRouter) Name() string {
	return "http:" + r.endpoint
}

type httpRouteRequest struct {
	Input    string    `json:"input"`
	Commands []Listing `json:"commands"`
}

// Route sends one classification request.
func (r *HTTPRouter) Route(ctx context.Context, input string, catalog []Listing) ([]Scored, error) {
	body, err := json.Marshal(httpRouteRequest{Input: input, Commands: catalog})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("router request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("router returned status %d: %s", resp.StatusCode, string(raw))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return ParseReply(string(raw))
}
