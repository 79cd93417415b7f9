// Package client talks to a running amrviz server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aretw0/amrviz/pkg/domain"
	"github.com/aretw0/amrviz/pkg/service"
)

// DefaultTimeout bounds one request, solves included.
const DefaultTimeout = 10 * time.Minute

// APIError is a non-2xx reply of the server.
type APIError struct {
	Status  int
	Message string `json:"error"`
	Details string `json:"details"`
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, e.Message, e.Details)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

// Unwrap maps the status onto the domain errors.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusBadRequest:
		return domain.ErrInvalidParams
	case http.StatusNotFound:
		return domain.ErrFileNotFound
	}
	return nil
}

// Client calls the REST API on behalf of one session.
type Client struct {
	baseURL   string
	sessionID string
	http      *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithSession selects the session sent in the X-Session-ID header.
func WithSession(id string) Option {
	return func(c *Client) {
		c.sessionID = id
	}
}

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// New creates a Client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported server URL %q", baseURL)
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.sessionID != "" {
		req.Header.Set("X-Session-ID", c.sessionID)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSolverUnavailable, err)
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		apiErr := &APIError{Status: resp.StatusCode}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		if json.Unmarshal(data, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return nil, apiErr
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, method, path string, body []byte, out any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// Solve posts params to /solve.
func (c *Client) Solve(ctx context.Context, params domain.SolveParams) (*domain.SolveResult, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	var res domain.SolveResult
	if err := c.getJSON(ctx, http.MethodPost, "/solve", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) session() string {
	if c.sessionID == "" {
		return domain.DefaultSessionID
	}
	return c.sessionID
}

// Download copies one stored file of the session into w.
func (c *Client) Download(ctx context.Context, name string, w io.Writer) error {
	if name == "" || strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q", domain.ErrFileNotFound, name)
	}
	resp, err := c.do(ctx, http.MethodGet, "/sessions/"+url.PathEscape(c.session())+"/data/"+name, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, err = io.Copy(w, resp.Body)
	return err
}

// Geometry fetches the decoded geometry of one file.
func (c *Client) Geometry(ctx context.Context, name, scalar string) (*service.Geometry, error) {
	q := url.Values{"file": {name}}
	if scalar != "" {
		q.Set("scalar", scalar)
	}
	var geo service.Geometry
	path := "/sessions/" + url.PathEscape(c.session()) + "/geometry?" + q.Encode()
	if err := c.getJSON(ctx, http.MethodGet, path, nil, &geo); err != nil {
		return nil, err
	}
	return &geo, nil
}

// Health reports whether the server answers /health.
func (c *Client) Health(ctx context.Context) error {
	var out map[string]string
	if err := c.getJSON(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return err
	}
	if out["status"] != "ok" {
		return errors.New("server is not healthy")
	}
	return nil
}
