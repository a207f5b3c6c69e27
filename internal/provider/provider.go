// Package provider holds the concrete collaborator adapters: the interval
// ranking source, the market overview / limit-up / anomaly feeds, and the
// trading-calendar source. Everything upstream speaks JSON over HTTP;
// everything downstream sees only the narrow interfaces the consuming
// packages declare.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"poolwatch/internal/fetch"
)

// Error wraps any transport or payload failure from an upstream source so
// the pipeline can tell provider trouble from its own bugs.
type Error struct {
	Source string
	Err    error
}

func (e *Error) Error() string { return fmt.Sprintf("%s provider: %v", e.Source, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

func wrapErr(source string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Source: source, Err: err}
}

// Client is the shared HTTP plumbing for all adapters.
type Client struct {
	baseURL string
	token   string
	doer    *fetch.Doer
}

func NewClient(baseURL, token string, doer *fetch.Doer) *Client {
	return &Client{baseURL: baseURL, token: token, doer: doer}
}

func (c *Client) getJSON(ctx context.Context, source, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return wrapErr(source, err)
	}
	return c.roundTrip(source, req, out)
}

func (c *Client) postJSON(ctx context.Context, source, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return wrapErr(source, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return wrapErr(source, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.roundTrip(source, req, out)
}

func (c *Client) roundTrip(source string, req *http.Request, out interface{}) error {
	if c.token != "" {
		req.Header.Set("token", c.token)
		req.Header.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return wrapErr(source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return wrapErr(source, fmt.Errorf("status %d", resp.StatusCode))
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return wrapErr(source, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return wrapErr(source, fmt.Errorf("malformed payload: %w", err))
	}
	return nil
}
