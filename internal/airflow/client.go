// Package airflow is a thin client for the stable Airflow REST API (v1),
// covering the handful of endpoints the verification suite needs: dag runs,
// task instances, connections, and deployment probes.
package airflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/flightcheck-systems/flightcheck/pkg/types"
	"github.com/sony/gobreaker"
)

const apiPrefix = "/api/v1"

// APIError is a non-2xx response from the Airflow API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Body)
}

// IsNotFound reports whether err wraps an APIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client talks to one Airflow deployment. All methods are safe for concurrent
// use; the embedded circuit breaker is shared so dozens of concurrent pollers
// back off together when the webserver goes down.
type Client struct {
	baseURL    string
	username   string
	password   string
	token      string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client, primarily for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBreaker overrides the transport circuit breaker.
func WithBreaker(cb *gobreaker.CircuitBreaker) Option {
	return func(c *Client) { c.breaker = cb }
}

// NewClient builds a client for the deployment described by cfg.
func NewClient(cfg types.AirflowConfig, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("airflow: baseUrl is required")
	}
	timeout := 30 * time.Second
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("airflow: invalid timeout: %w", err)
		}
		timeout = d
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		username:   cfg.Username,
		password:   cfg.Password,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = newTransportBreaker()
	}
	return c, nil
}

// BaseURL returns the deployment's webserver base URL, without trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// newTransportBreaker trips after a sustained stretch of transport errors or
// 5xx responses. 4xx responses are valid API answers and never count.
func newTransportBreaker() *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "airflow-api",
		MaxRequests: 3,
		Interval:    2 * time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 8
		},
	})
}

// do performs one API call. in (when non-nil) is marshaled as the JSON body;
// out (when non-nil) receives the unmarshaled response.
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader = http.NoBody
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("airflow: marshaling request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, body)
	if err != nil {
		return fmt.Errorf("airflow: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	switch {
	case c.token != "":
		req.Header.Set("Authorization", "Bearer "+c.token)
	case c.username != "":
		req.SetBasicAuth(c.username, c.password)
	}

	res, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			respBody, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
		}
		return resp, nil
	})
	if err != nil {
		return fmt.Errorf("airflow: %s %s: %w", method, path, err)
	}

	resp := res.(*http.Response)
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("airflow: reading response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("airflow: %s %s: %w", method, path,
			&APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))})
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("airflow: parsing response: %w", err)
		}
	}
	return nil
}
