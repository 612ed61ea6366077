package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/corvid-aero/groundstation/internal/httputil"
)

// HTTPSource polls a camera's HTTP endpoints: one frame per GET on the frame
// URL, and a JSON status document on the status URL for health probes. It
// implements both FrameSource and HealthProber.
type HTTPSource struct {
	client    httputil.HTTPClient
	frameURL  string
	statusURL string

	mu   sync.Mutex
	open bool
}

// cameraStatus is the shape of the camera's status document.
type cameraStatus struct {
	Streaming bool `json:"streaming"`
}

// NewHTTPSource creates a source for the given endpoints. A nil client uses
// the default HTTP client. statusURL may be empty, in which case Open skips
// the reachability probe and the source cannot serve as a HealthProber.
func NewHTTPSource(client httputil.HTTPClient, frameURL, statusURL string) *HTTPSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSource{
		client:    client,
		frameURL:  frameURL,
		statusURL: statusURL,
	}
}

// Open verifies the camera answers before declaring the polling path up.
func (h *HTTPSource) Open(ctx context.Context) error {
	if h.statusURL != "" {
		if _, err := h.Streaming(ctx); err != nil {
			return err
		}
	}
	h.mu.Lock()
	h.open = true
	h.mu.Unlock()
	return nil
}

// Close marks the polling path down. Idempotent.
func (h *HTTPSource) Close() error {
	h.mu.Lock()
	h.open = false
	h.mu.Unlock()
	return nil
}

// IsOpen reports whether Open has succeeded since the last Close.
func (h *HTTPSource) IsOpen() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.open
}

// ReadFrame fetches one frame payload.
func (h *HTTPSource) ReadFrame(ctx context.Context) (Frame, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.frameURL, nil)
	if err != nil {
		return Frame{}, fmt.Errorf("build frame request: %w", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return Frame{}, fmt.Errorf("fetch frame: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Frame{}, fmt.Errorf("fetch frame: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Frame{}, fmt.Errorf("read frame body: %w", err)
	}
	return Frame{Data: data, At: time.Now()}, nil
}

// Streaming queries the camera status endpoint.
func (h *HTTPSource) Streaming(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.statusURL, nil)
	if err != nil {
		return false, fmt.Errorf("build status request: %w", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("camera status: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("camera status: unexpected status %d", resp.StatusCode)
	}
	var st cameraStatus
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return false, fmt.Errorf("decode camera status: %w", err)
	}
	return st.Streaming, nil
}
