package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/akinokuni/renderbridge/pkg/config"
)

// NetworkStrategy posts the document to a remote HTML-to-image render
// service and returns the URL the service answers with.
type NetworkStrategy struct {
	apiURL string
	client *http.Client
}

func NewNetworkStrategy(cfg config.RenderConfig) *NetworkStrategy {
	timeout := time.Duration(cfg.APITimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &NetworkStrategy{
		apiURL: cfg.APIURL,
		client: &http.Client{Timeout: timeout},
	}
}

func (s *NetworkStrategy) Name() string { return "network" }

func (s *NetworkStrategy) Render(ctx context.Context, doc string) (Artifact, error) {
	if s.apiURL == "" {
		return Artifact{}, fmt.Errorf("render api_url not configured")
	}

	payload, err := json.Marshal(map[string]string{"html": doc})
	if err != nil {
		return Artifact{}, fmt.Errorf("marshal render request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewReader(payload))
	if err != nil {
		return Artifact{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return Artifact{}, fmt.Errorf("render service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Artifact{}, fmt.Errorf("render service returned status %d", resp.StatusCode)
	}

	var result struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Artifact{}, fmt.Errorf("decode render service response: %w", err)
	}
	if result.URL == "" {
		return Artifact{}, fmt.Errorf("render service returned empty url")
	}

	return Artifact{URL: result.URL}, nil
}
