// Package folderclient talks to a folder service over its REST contract.
package folderclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/starford/arbor/internal/models"
)

const folderPath = "/api/folders/"

// StatusError reports a non-2xx response from the folder service.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("folder service: status %d", e.StatusCode)
	}
	return fmt.Sprintf("folder service: status %d: %s", e.StatusCode, e.Message)
}

// Client is an HTTP client for the folder service.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithToken sends "Authorization: Bearer <token>" on every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// New creates a client for the service rooted at baseURL (e.g. http://localhost:8080).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List fetches the flat folder list.
func (c *Client) List(ctx context.Context) ([]models.Record, error) {
	var out []models.Record
	if err := c.do(ctx, http.MethodGet, folderPath, nil, &out); err != nil {
		return nil, fmt.Errorf("folderclient: list: %w", err)
	}
	if out == nil {
		out = []models.Record{}
	}
	return out, nil
}

// Create asks the service to create a folder and returns the assigned record.
func (c *Client) Create(ctx context.Context, name string, parentID *string) (models.Record, error) {
	payload := struct {
		Name     string  `json:"name"`
		ParentID *string `json:"parentId"`
	}{Name: name, ParentID: parentID}

	var rec models.Record
	if err := c.do(ctx, http.MethodPost, folderPath, payload, &rec); err != nil {
		return models.Record{}, fmt.Errorf("folderclient: create: %w", err)
	}
	if rec.ID == "" {
		return models.Record{}, fmt.Errorf("folderclient: create: response has no folder id")
	}
	return rec, nil
}

// Delete asks the service to delete a folder; the service cascades to descendants.
func (c *Client) Delete(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, folderPath+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("folderclient: delete %s: %w", id, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	var body struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(data))
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		msg = body.Error
	}
	return &StatusError{StatusCode: resp.StatusCode, Message: msg}
}
