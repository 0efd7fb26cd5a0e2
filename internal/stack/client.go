// Package stack is a thin HTTP client for the remote model-serving stack:
// providers, models, memory banks, agents, sessions and streamed turns.
package stack

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrNoProvider is returned when the stack exposes no provider for an API.
var ErrNoProvider = errors.New("stack: no provider available") //nolint:gochecknoglobals // sentinel error

// APIError is a non-2xx response from the stack.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("stack %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Options configures a Client.
type Options struct {
	Host     string
	Port     int
	UseTLS   bool
	CertPath string // PEM root bundle, only used with UseTLS
	Timeout  time.Duration

	// HTTPClient overrides the transport entirely (tests).
	HTTPClient *http.Client
}

// BaseURL returns the scheme://host:port the options point at.
func (o Options) BaseURL() string {
	scheme := "http"
	if o.UseTLS {
		scheme = "https"
	}
	return scheme + "://" + net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

// Client talks to one stack server.
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a client. When UseTLS and CertPath are set, the PEM file at
// CertPath becomes the only trusted root.
func New(opts Options) (*Client, error) {
	if opts.Host == "" {
		return nil, errors.New("stack.New: host is required")
	}
	if opts.Port < 1 || opts.Port > 65535 {
		return nil, fmt.Errorf("stack.New: port must be 1-65535, got %d", opts.Port)
	}

	hc := opts.HTTPClient
	if hc == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert // stdlib default
		if opts.UseTLS && opts.CertPath != "" {
			pem, err := os.ReadFile(opts.CertPath)
			if err != nil {
				return nil, fmt.Errorf("stack.New: read cert: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(pem) {
				return nil, fmt.Errorf("stack.New: no certificates in %s", opts.CertPath)
			}
			transport.TLSClientConfig = &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
		}
		hc = &http.Client{Transport: transport, Timeout: opts.Timeout}
	}

	return &Client{baseURL: opts.BaseURL(), http: hc}, nil
}

// NewWithBaseURL builds a client against an explicit base URL.
func NewWithBaseURL(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

func (c *Client) BaseURL() string { return c.baseURL }

// do sends a JSON request and returns the raw response. The caller closes the
// body. Non-2xx responses are turned into *APIError.
func (c *Client) do(ctx context.Context, op, method, path string, in any, accept string) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", accept)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err //nolint:wrapcheck // wrapped by caller with op name
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	return resp, nil
}

// doJSON sends in and decodes the response into out (when non-nil).
func (c *Client) doJSON(ctx context.Context, op, method, path string, in, out any) error {
	resp, err := c.do(ctx, op, method, path, in, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
