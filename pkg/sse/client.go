// Package sse streams replies from the RAG backend's /chat/stream endpoint.
package sse

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

	"github.com/tidwall/gjson"

	"github.com/BryanTheLai/stackrag/pkg/chat"
	"github.com/BryanTheLai/stackrag/pkg/logger"
	"github.com/BryanTheLai/stackrag/pkg/stream"
)

const (
	streamPath = "/chat/stream"

	eventEnd   = "stream_end"
	eventError = "stream_error"

	unparsableErrorDetails = "Could not parse error details."
	maxErrorBody           = 4 << 10
)

// ErrTruncated reports a stream that closed without an end event.
var ErrTruncated = errors.New("stream closed before stream_end")

// HTTPError is a non-200 answer from the backend.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend returned %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Body)
}

// Client talks to one backend.
type Client struct {
	baseURL    string
	token      string
	timeout    time.Duration
	httpClient *http.Client
}

type Option func(*Client)

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout bounds a whole reply, including the time spent streaming it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type streamRequest struct {
	History []chat.ChatMessage `json:"history"`
}

// Stream implements stream.Source.
func (c *Client) Stream(ctx context.Context, history []stream.Message, h stream.Handler) error {
	msgs := make([]chat.ChatMessage, len(history))
	for i, m := range history {
		msgs[i] = chat.FromStreamMessage(m)
	}
	return c.StreamHistory(ctx, msgs, h)
}

// StreamHistory posts history and feeds the reply to h. Exactly one of
// h.OnComplete or h.OnError is called.
func (c *Client) StreamHistory(ctx context.Context, history []chat.ChatMessage, h stream.Handler) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	fail := func(err error) error {
		h.OnError(err)
		return err
	}

	if history == nil {
		history = []chat.ChatMessage{}
	}
	body, err := json.Marshal(streamRequest{History: history})
	if err != nil {
		return fail(fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+streamPath, bytes.NewReader(body))
	if err != nil {
		return fail(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	log := logger.WithComponent("sse")
	log.Debug("Posting history", "url", req.URL.String(), "messages", len(history))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fail(ctx.Err())
		}
		return fail(fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fail(&HTTPError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))})
	}

	return c.consume(ctx, resp.Body, h)
}

func (c *Client) consume(ctx context.Context, body io.Reader, h stream.Handler) error {
	log := logger.WithComponent("sse")
	reader := NewReader(body)
	var content strings.Builder

	for {
		ev, err := reader.ReadEvent()
		if err != nil {
			if ctx.Err() != nil {
				h.OnError(ctx.Err())
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				log.Warn("Stream ended without end event", "content_length", content.Len())
				h.OnError(ErrTruncated)
				return ErrTruncated
			}
			err = fmt.Errorf("read stream: %w", err)
			h.OnError(err)
			return err
		}

		switch ev.Type {
		case eventEnd:
			log.Debug("Stream complete", "content_length", content.Len())
			return h.OnComplete(content.String())

		case eventError:
			serr := &stream.ServerError{Message: errorDetails(ev.Data)}
			log.Warn("Backend reported stream error", "message", serr.Message)
			h.OnError(serr)
			return serr

		default:
			text, ok := textChunk(ev.Data)
			if !ok {
				log.Debug("Skipping frame", "event", ev.Type, "data", string(ev.Data))
				continue
			}
			content.WriteString(text)
			if err := h.OnChunk([]byte(text)); err != nil {
				h.OnError(err)
				return err
			}
		}
	}
}

// textChunk extracts the text fragment carried by a data frame.
func textChunk(data []byte) (string, bool) {
	if !gjson.ValidBytes(data) {
		return "", false
	}
	chunk := gjson.GetBytes(data, "text_chunk")
	if chunk.Type != gjson.String {
		return "", false
	}
	return chunk.String(), true
}

func errorDetails(data []byte) string {
	if !gjson.ValidBytes(data) {
		return unparsableErrorDetails
	}
	// A missing message is reported as an unknown error.
	return gjson.GetBytes(data, "error").String()
}

var _ stream.Source = (*Client)(nil)
