// Package compress wraps the external PDF compression sidecar. The
// algorithm itself is opaque to this service; the adapter only moves bytes
// and reports the size ratio.
package compress

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

type Result struct {
	Data  []byte
	Ratio float64
}

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// Compress sends the raw PDF to the sidecar and returns the processed bytes
// with the compressed/original size ratio. Any failure is returned to the
// caller; nothing may be persisted on error. A ratio >= 1.0 (compression
// made the file larger) is reported as-is, not rejected.
func (c *Client) Compress(ctx context.Context, data []byte) (Result, error) {
	if len(data) == 0 {
		return Result{}, fmt.Errorf("compress: empty input")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/compress", bytes.NewReader(data))
	if err != nil {
		return Result{}, fmt.Errorf("compress request: %w", err)
	}
	req.Header.Set("Content-Type", "application/pdf")

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("compressor unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Result{}, fmt.Errorf("compressor returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	compressed, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("read compressed body: %w", err)
	}
	if len(compressed) == 0 {
		return Result{}, fmt.Errorf("compressor returned empty body")
	}

	return Result{
		Data:  compressed,
		Ratio: float64(len(compressed)) / float64(len(data)),
	}, nil
}
