package musicgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sonicmuse/muse-engine/internal/audio"
)

// HTTPClient calls a MusicGen-style inference endpoint: JSON request in,
// WAV bytes out. The endpoint nominally renders at 32 kHz; the mixer
// resamples if the dialogue disagrees.
type HTTPClient struct {
	url     string
	apiKey  string
	timeout time.Duration
	client  *http.Client
}

// NewHTTPClient creates a generation client.
func NewHTTPClient(url, apiKey string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		url:     url,
		apiKey:  apiKey,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

// Name returns the backend name.
func (c *HTTPClient) Name() string { return "musicgen" }

// Generate posts the params and decodes the returned WAV into a waveform.
func (c *HTTPClient) Generate(ctx context.Context, p Params) (audio.Waveform, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return audio.Waveform{}, fmt.Errorf("marshal params: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return audio.Waveform{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/wav")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return audio.Waveform{}, fmt.Errorf("musicgen request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return audio.Waveform{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		detail := string(body)
		if len(detail) > 200 {
			detail = detail[:200] + "..."
		}
		return audio.Waveform{}, fmt.Errorf("musicgen returned %d: %s", resp.StatusCode, detail)
	}

	w, err := audio.DecodeWAV(body)
	if err != nil {
		return audio.Waveform{}, fmt.Errorf("decode generated audio: %w", err)
	}
	return w, nil
}
