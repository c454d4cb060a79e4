package utils

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"github.com/klauver/snatch/internal/config"
)

// HTTPDoer is the request surface the engine needs from a client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPClient wraps http.Client with the engine's transport policy:
// user agent and custom headers injected on every request, redirects
// surfaced to the caller instead of being followed, and timeouts split
// into connect and header phases.
type HTTPClient struct {
	client *http.Client
	cfg    config.Config
}

func NewHTTPClient(cfg config.Config) *HTTPClient {
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout == 0 {
		connectTimeout = 30 * time.Second
	}
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ResponseHeaderTimeout: cfg.ReadTimeout,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
		DisableCompression:    true,
	}
	if !cfg.VerifyTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &HTTPClient{
		client: &http.Client{
			Transport: transport,
			// The engine walks redirects itself so it can bound them and
			// keep the Range header under its own control.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		cfg: cfg,
	}
}

func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", c.cfg.EffectiveUserAgent())
	for _, h := range c.cfg.Headers {
		// Add, not Set: the configured list is ordered and may carry
		// duplicate names.
		req.Header.Add(h.Name, h.Value)
	}
	return c.client.Do(req)
}
