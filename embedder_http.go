package fakecheck

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	defaultEmbedTimeout = 30 * time.Second
	embedMaxResponse    = 4 << 20
)

var errEmbedStatus = errors.New("embedding service returned non-2xx status")

// HTTPEmbedder calls an embedding service over HTTP. Each image is sent as a
// PNG data URL in {"image": "..."} and the service answers with
// {"embedding": [...]}. The zero value is not usable; URL must be set.
type HTTPEmbedder struct {
	URL     string
	Model   string            // optional, forwarded as "model"
	Headers map[string]string // e.g. Authorization
	Client  *http.Client      // default http.DefaultClient
	Timeout time.Duration     // per request, default 30s
}

type embedRequest struct {
	Image string `json:"image"`
	Model string `json:"model,omitempty"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed implements Embedder.
func (e *HTTPEmbedder) Embed(ctx context.Context, img image.Image) ([]float32, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	body, err := json.Marshal(embedRequest{
		Image: EncodeDataURL(buf.Bytes(), "image/png"),
		Model: e.Model,
	})
	if err != nil {
		return nil, err
	}

	timeout := e.Timeout
	if timeout <= 0 {
		timeout = defaultEmbedTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range e.Headers {
		req.Header.Set(k, v)
	}

	client := e.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Debug("fakecheck: embedding service error", "url", e.URL, "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: %d", errEmbedStatus, resp.StatusCode)
	}

	var out embedResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, embedMaxResponse)).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode embedding: %w", err)
	}
	if len(out.Embedding) == 0 {
		return nil, errEmptyEmbedding
	}
	return out.Embedding, nil
}
