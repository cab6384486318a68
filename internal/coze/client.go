// Package coze is the upstream client for the Coze stream_run endpoint.
package coze

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// ErrMissingToken is returned before any network call when no bearer
// credential is configured.
var ErrMissingToken = errors.New("COZE_API_TOKEN is not configured")

// StatusError reports an upstream call that failed before streaming began.
// Status is the upstream HTTP status, or 502 when no response was received.
type StatusError struct {
	Status int
	Body   string
	Err    error
}

func (e *StatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("coze: status %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("coze: status %d: %s", e.Status, e.Body)
}

func (e *StatusError) Unwrap() error { return e.Err }

type Config struct {
	URL       string
	Token     string
	ProjectID int64
}

type Client struct {
	cfg    Config
	log    *slog.Logger
	client *http.Client
}

type Option func(*Client)

// WithHTTPClient overrides the transport, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

func NewClient(cfg Config, log *slog.Logger, opts ...Option) *Client {
	c := &Client{
		cfg: cfg,
		log: log,
		// no overall timeout: a stream lives as long as the answer takes,
		// the relay's idle timeout bounds stalls
		client: &http.Client{Timeout: 0},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Check is the configuration pre-flight.
func (c *Client) Check() error {
	if c.cfg.Token == "" {
		return ErrMissingToken
	}
	return nil
}

type textContent struct {
	Text string `json:"text"`
}

type promptPart struct {
	Type    string      `json:"type"`
	Content textContent `json:"content"`
}

type queryBody struct {
	Prompt []promptPart `json:"prompt"`
}

type queryContent struct {
	Query queryBody `json:"query"`
}

// Request is the stream_run envelope.
type Request struct {
	Content   queryContent `json:"content"`
	Type      string       `json:"type"`
	SessionID string       `json:"session_id"`
	ProjectID int64        `json:"project_id"`
}

func NewRequest(query, sessionID string, projectID int64) Request {
	return Request{
		Content: queryContent{Query: queryBody{Prompt: []promptPart{
			{Type: "text", Content: textContent{Text: query}},
		}}},
		Type:      "query",
		SessionID: sessionID,
		ProjectID: projectID,
	}
}

// Open starts a streaming query and returns the raw event-stream body. The
// caller must close it. Cancelling ctx aborts the upstream request.
func (c *Client) Open(ctx context.Context, query, sessionID string) (io.ReadCloser, error) {
	if err := c.Check(); err != nil {
		return nil, err
	}

	b, err := json.Marshal(NewRequest(query, sessionID, c.cfg.ProjectID))
	if err != nil {
		return nil, fmt.Errorf("coze: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("coze: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	res, err := c.client.Do(req)
	if err != nil {
		return nil, &StatusError{Status: http.StatusBadGateway, Body: err.Error(), Err: err}
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 64<<10))
		res.Body.Close()
		c.log.Error("coze api error", "status", res.StatusCode, "body", string(body))
		return nil, &StatusError{Status: res.StatusCode, Body: string(body)}
	}
	c.log.Debug("coze stream opened", "session_id", sessionID, "status", res.StatusCode)
	return res.Body, nil
}
