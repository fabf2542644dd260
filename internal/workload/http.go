package workload

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// StatusError is returned for responses with a status code of 400 or above.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %s", e.Status)
}

// HTTP issues one request per invocation. Transport errors and responses
// with a status of 400 or above fail the invocation.
type HTTP struct {
	client  *http.Client
	method  string
	url     string
	headers map[string]string
	body    string
}

// HTTPOption configures an HTTP workload.
type HTTPOption func(*HTTP)

// WithMethod sets the request method. Defaults to GET.
func WithMethod(method string) HTTPOption {
	return func(h *HTTP) {
		if method != "" {
			h.method = strings.ToUpper(method)
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) HTTPOption {
	return func(h *HTTP) {
		if timeout > 0 {
			h.client.Timeout = timeout
		}
	}
}

// WithHeader adds a request header.
func WithHeader(key, value string) HTTPOption {
	return func(h *HTTP) {
		h.headers[key] = value
	}
}

// WithBody sets the request body.
func WithBody(body string) HTTPOption {
	return func(h *HTTP) {
		h.body = body
	}
}

// WithHTTPClient replaces the client used for requests.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(h *HTTP) {
		if client != nil {
			h.client = client
		}
	}
}

// NewHTTP creates an HTTP workload for url. The default client keeps idle
// connections so that workers reuse them across invocations.
func NewHTTP(url string, options ...HTTPOption) *HTTP {
	h := &HTTP{
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		method:  http.MethodGet,
		url:     url,
		headers: make(map[string]string),
	}
	for _, option := range options {
		option(h)
	}
	return h
}

// Invoke sends the request and reads the response body to completion.
func (h *HTTP) Invoke(ctx context.Context) error {
	var body io.Reader
	if h.body != "" {
		body = strings.NewReader(h.body)
	}

	req, err := http.NewRequestWithContext(ctx, h.method, h.url, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	for key, value := range h.headers {
		req.Header.Set(key, value)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// the body is part of the measured latency
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}
	return nil
}
