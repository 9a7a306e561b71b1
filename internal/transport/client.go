// Package transport posts JSON to the remote collaboration endpoint.
package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"
)

// maxErrorBody caps how much of a failed response body is kept in StatusError.
const maxErrorBody = 4096

// StatusError reports a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("POST %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("POST %s: HTTP %d: %s", e.URL, e.StatusCode, e.Body)
}

// IsStatusError reports whether err is a StatusError, returning it.
func IsStatusError(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// Options configures BuildClient.
type Options struct {
	// Timeout bounds one request including reading the body. Zero means none.
	Timeout time.Duration

	// HTTP2 forces an HTTP/2 transport.
	HTTP2 bool

	// Cleartext selects h2c (HTTP/2 over TCP with prior knowledge) when HTTP2
	// is set, for http:// endpoints.
	Cleartext bool

	// TLS configures the HTTP/2 transport for https:// endpoints.
	TLS *tls.Config
}

// Client posts JSON bodies and decodes JSON responses.
type Client struct {
	http *http.Client
}

// New wraps an existing http.Client. A nil client uses http.DefaultClient.
func New(hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{http: hc}
}

// BuildClient creates a Client from Options.
func BuildClient(opts Options) *Client {
	hc := &http.Client{Timeout: opts.Timeout}
	if opts.HTTP2 {
		hc.Transport = buildHTTP2Transport(opts)
	}
	return &Client{http: hc}
}

func buildHTTP2Transport(opts Options) *http2.Transport {
	if !opts.Cleartext {
		return &http2.Transport{TLSClientConfig: opts.TLS}
	}
	return &http2.Transport{
		AllowHTTP: true,
		DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, addr)
		},
	}
}

// PostJSON marshals body, POSTs it to url and decodes the response into out.
// A nil out discards the response body. Non-2xx responses return *StatusError.
func (c *Client) PostJSON(ctx context.Context, url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{URL: url, StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(snippet))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", url, err)
	}
	return nil
}
