package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// Recorder captures raw fragments exactly as delivered so a reply can be
// replayed through a demultiplexer later. It writes one JSON string per line.
type Recorder struct {
	mu        sync.Mutex
	w         io.Writer
	fragments []string
	err       error
}

func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{w: w}
}

// OnChunk records the fragment
func (r *Recorder) OnChunk(chunk []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	frag := string(chunk)
	r.fragments = append(r.fragments, frag)
	if r.w == nil {
		return nil
	}
	line, err := json.Marshal(frag)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(r.w, "%s\n", line); err != nil {
		return fmt.Errorf("failed to record fragment: %w", err)
	}
	return nil
}

func (r *Recorder) OnComplete(string) error { return nil }

func (r *Recorder) OnError(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

// Fragments returns the recorded fragments in arrival order.
func (r *Recorder) Fragments() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.fragments))
	copy(out, r.fragments)
	return out
}

// Err returns the error the stream terminated with, if any.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// ReadRecording parses the line format written by Recorder.
func ReadRecording(rd io.Reader) ([]string, error) {
	dec := json.NewDecoder(rd)
	var out []string
	for {
		var frag string
		if err := dec.Decode(&frag); err == io.EOF {
			return out, nil
		} else if err != nil {
			return nil, fmt.Errorf("failed to read recording: %w", err)
		}
		out = append(out, frag)
	}
}

// MultiHandler broadcasts chunks to multiple handlers.
// Similar to io.MultiWriter but for our Handler interface.
type MultiHandler struct {
	handlers []Handler
}

// NewMultiHandler creates a handler that forwards to multiple handlers
func NewMultiHandler(handlers ...Handler) *MultiHandler {
	return &MultiHandler{
		handlers: handlers,
	}
}

// OnChunk forwards the chunk to all handlers
func (m *MultiHandler) OnChunk(chunk []byte) error {
	for _, h := range m.handlers {
		if err := h.OnChunk(chunk); err != nil {
			return err
		}
	}
	return nil
}

// OnComplete forwards completion to all handlers. Every handler is
// notified; the first error is returned.
func (m *MultiHandler) OnComplete(finalContent string) error {
	var first error
	for _, h := range m.handlers {
		if err := h.OnComplete(finalContent); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// OnError forwards errors to all handlers
func (m *MultiHandler) OnError(err error) {
	for _, h := range m.handlers {
		h.OnError(err)
	}
}

var (
	_ Handler = (*Recorder)(nil)
	_ Handler = (*MultiHandler)(nil)
)
