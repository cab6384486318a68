package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/varsilias/carmatch/internal/sse"
	"github.com/varsilias/carmatch/pkg/types"
)

var (
	ErrEmptyMessage = errors.New("chat: empty message")
	// ErrConnectionLost means the reply stream ended before [DONE]. The
	// partial reply is kept in the conversation with ConnectionLostNotice.
	ErrConnectionLost = errors.New("chat: connection lost before the reply finished")
)

const (
	ConnectionLostNotice = "（连接中断，回复可能不完整）"
	fallbackReason       = "请稍后重试"
)

// ErrorMessage is the assistant text shown in place of a failed reply.
func ErrorMessage(reason string) string {
	if reason == "" {
		reason = fallbackReason
	}
	return "抱歉，发生了错误：" + reason
}

// ResponseError is a non-2xx answer from the relay.
type ResponseError struct {
	Status  int
	Message string
}

func (e *ResponseError) Error() string { return e.Message }

type Client struct {
	baseURL string
	log     *slog.Logger
	client  *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

func NewClient(baseURL string, log *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log,
		client:  &http.Client{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type request struct {
	Messages  []types.ChatMessage `json:"messages"`
	SessionID string              `json:"session_id"`
}

type event struct {
	Content   string `json:"content"`
	SessionID string `json:"session_id"`
}

// Send runs one turn: it appends the user message, posts the whole history,
// and streams the reply into a new assistant message, calling onFragment (if
// non-nil) after each piece. Failures still leave an assistant message in
// conv describing them.
func (c *Client) Send(ctx context.Context, conv *Conversation, text string, onFragment func(string)) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}
	if err := conv.Append(types.ChatMessage{Role: types.RoleUser, Content: text}); err != nil {
		return err
	}

	res, err := c.post(ctx, conv)
	if err != nil {
		_ = conv.Append(types.ChatMessage{Role: types.RoleAssistant, Content: ErrorMessage(err.Error())})
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		rerr := readError(res)
		c.log.Warn("chat: relay refused turn", "status", rerr.Status, "error", rerr.Message)
		_ = conv.Append(types.ChatMessage{Role: types.RoleAssistant, Content: ErrorMessage(rerr.Message)})
		return rerr
	}

	if id := res.Header.Get("X-Session-ID"); id != "" && id != conv.SessionID() {
		conv.SetSessionID(id)
	}

	if err := conv.Begin(); err != nil {
		return err
	}
	defer conv.Finish()

	done, err := c.consume(res.Body, conv, onFragment)
	if err == nil && done {
		return nil
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	c.log.Warn("chat: reply stream broke off", "err", err)
	notice := "\n\n" + ConnectionLostNotice
	if conv.Last().Content == "" {
		notice = ConnectionLostNotice
	}
	_ = conv.Extend(notice)
	if onFragment != nil {
		onFragment(notice)
	}
	return fmt.Errorf("%w: %v", ErrConnectionLost, err)
}

func (c *Client) post(ctx context.Context, conv *Conversation) (*http.Response, error) {
	b, err := json.Marshal(request{Messages: conv.Messages(), SessionID: conv.SessionID()})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	return c.client.Do(req)
}

// consume reports whether the [DONE] sentinel was seen before the body ended.
func (c *Client) consume(body io.Reader, conv *Conversation, onFragment func(string)) (bool, error) {
	r := sse.NewReader(body)
	done := false
	for {
		payload, err := r.Next()
		if errors.Is(err, io.EOF) {
			return done, nil
		}
		if err != nil {
			return false, err
		}
		if sse.IsDone(payload) {
			done = true
			continue
		}

		var ev event
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			continue
		}
		if ev.SessionID != "" && ev.SessionID != conv.SessionID() {
			conv.SetSessionID(ev.SessionID)
		}
		if ev.Content != "" {
			_ = conv.Extend(ev.Content)
			if onFragment != nil {
				onFragment(ev.Content)
			}
		}
	}
}

func readError(res *http.Response) *ResponseError {
	var body struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	msg := "Failed to get response"
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		msg = body.Error
	}
	return &ResponseError{Status: res.StatusCode, Message: msg}
}
