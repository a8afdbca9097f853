package fakecheck

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DownloadOpts configures an image download.
type DownloadOpts struct {
	MaxBytes  int64         // max response body size (default: Config.MaxImageBytes)
	MinBytes  int           // reject if smaller (default: 0)
	Timeout   time.Duration // per-request timeout (default: Config.LoadTimeout)
	UserAgent string        // override config user agent
}

const (
	defaultLoadMaxBytes = 10 << 20 // 10MiB
	defaultTimeout      = 10 * time.Second
	maxRedirects        = 3
)

// DownloadResult holds downloaded image data.
type DownloadResult struct {
	Data     []byte
	MIMEType string
}

// errDownload wraps every fetch rejection.
var errDownload = errors.New("download failed")

// Download fetches an image from url, trying cfg.StealthClient first when set
// and cfg.HTTPClient after it. Rejected responses (non-200, non-image,
// too small) and transport errors yield a nil result and a nil error.
func (cfg *Config) Download(ctx context.Context, url string, opts DownloadOpts) (*DownloadResult, error) {
	r, err := cfg.download(ctx, url, opts)
	if err != nil {
		slog.Debug("fakecheck: download rejected", "url", url, "error", err.Error())
		return nil, nil
	}
	return r, nil
}

// download is Download with the rejection cause kept, wrapping errDownload.
func (cfg *Config) download(ctx context.Context, url string, opts DownloadOpts) (*DownloadResult, error) {
	cfg.defaults()

	if opts.MaxBytes <= 0 {
		opts.MaxBytes = cfg.MaxImageBytes
	}
	if opts.Timeout <= 0 {
		opts.Timeout = cfg.LoadTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = cfg.UserAgent
	}

	var stealthErr error
	if cfg.StealthClient != nil {
		r, err := fetch(ctx, cfg.StealthClient, url, opts)
		if err == nil {
			return r, nil
		}
		stealthErr = err
	}
	r, err := fetch(ctx, cfg.HTTPClient, url, opts)
	if err != nil {
		return nil, errors.Join(stealthErr, err)
	}
	return r, nil
}

func fetch(ctx context.Context, client *http.Client, url string, opts DownloadOpts) (*DownloadResult, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errDownload, err)
	}
	req.Header.Set("User-Agent", opts.UserAgent)

	resp, err := limitRedirects(client).Do(req) //nolint:gosec // G704: listing and catalog URLs come from the caller
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errDownload, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", errDownload, resp.StatusCode)
	}

	mimeType, _, _ := strings.Cut(resp.Header.Get("Content-Type"), ";")
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	// Some CDNs serve product photos as octet-stream; the decoder decides.
	if !strings.HasPrefix(mimeType, "image/") && mimeType != "application/octet-stream" {
		return nil, fmt.Errorf("%w: content type %q", errDownload, mimeType)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, opts.MaxBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", errDownload, err)
	}
	if len(data) < opts.MinBytes {
		return nil, fmt.Errorf("%w: %d bytes, want at least %d", errDownload, len(data), opts.MinBytes)
	}
	return &DownloadResult{Data: data, MIMEType: mimeType}, nil
}

// limitRedirects returns a shallow copy of client that stops after maxRedirects
// hops, unless the caller already installed a redirect policy.
func limitRedirects(client *http.Client) *http.Client {
	if client.CheckRedirect != nil {
		return client
	}
	c := *client
	c.CheckRedirect = func(_ *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("%w: more than %d redirects", errDownload, maxRedirects)
		}
		return nil
	}
	return &c
}
