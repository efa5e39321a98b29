package qrcode

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/akinokuni/renderbridge/pkg/config"
	"github.com/akinokuni/renderbridge/pkg/logger"
)

// Fetcher retrieves externally generated QR-code images. Every failure mode
// collapses to a nil result; a missing QR code degrades the render, it never
// fails the request.
type Fetcher struct {
	endpoint string
	client   *http.Client
}

func NewFetcher(cfg config.QRCodeConfig) *Fetcher {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Fetcher{
		endpoint: cfg.Endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Fetch returns the QR-code image bytes for target, or nil when the code
// could not be generated.
func (f *Fetcher) Fetch(ctx context.Context, target string) []byte {
	if f.endpoint == "" || target == "" {
		return nil
	}

	apiURL := f.endpoint + "?data=" + url.QueryEscape(target)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		logger.ErrorCF("qrcode", "Failed to build QR request", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}

	resp, err := f.client.Do(req)
	if err != nil {
		logger.ErrorCF("qrcode", "QR code fetch failed", map[string]interface{}{
			"target": target,
			"error":  err.Error(),
		})
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.ErrorCF("qrcode", "QR code endpoint returned non-success status", map[string]interface{}{
			"target": target,
			"status": resp.StatusCode,
		})
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.ErrorCF("qrcode", "Failed to read QR code response", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}

	logger.InfoCF("qrcode", "QR code fetched", map[string]interface{}{
		"bytes": len(data),
	})
	return data
}
