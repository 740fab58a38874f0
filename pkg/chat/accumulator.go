package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/BryanTheLai/stackrag/pkg/logger"
	"github.com/BryanTheLai/stackrag/pkg/stream"
	"github.com/BryanTheLai/stackrag/pkg/tags"
)

// EmptyTurnText is shown for a reply that finished without any text.
const EmptyTurnText = "(Model stream ended without text)"

type TurnStatus int

const (
	StatusStreaming TurnStatus = iota
	StatusComplete
	StatusErrored
	StatusCancelled
)

func (s TurnStatus) String() string {
	switch s {
	case StatusStreaming:
		return "streaming"
	case StatusComplete:
		return "complete"
	case StatusErrored:
		return "errored"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// StreamStats provides statistics about a streaming turn
type StreamStats struct {
	StreamID      string
	ChunkCount    int
	ContentLength int
	StartTime     time.Time
	LastUpdate    time.Time
	Duration      time.Duration
	IsComplete    bool
}

// TurnView is an immutable snapshot of a turn handed to renderers.
type TurnView struct {
	ID       string
	Model    string
	Segments []stream.Segment
	Status   TurnStatus
	Err      error
	Stats    StreamStats
	// Empty is set when the turn finished without producing any text.
	Empty bool
}

// Raw returns the visible content with block markers in place.
func (v TurnView) Raw() string {
	return stream.Concat(v.Segments)
}

// Prose returns the plain text segments only.
func (v TurnView) Prose() string {
	var b strings.Builder
	for _, s := range v.Segments {
		if !s.IsBlock() {
			b.WriteString(s.Content)
		}
	}
	return b.String()
}

// Turn accumulates one assistant reply. It owns the demultiplexer state for
// the reply, applies emitted segments to the visible content and asks for a
// refresh whenever that content changes. Turn implements stream.Handler.
type Turn struct {
	mu sync.Mutex

	id    string
	model string
	demux *stream.Demultiplexer

	segments []stream.Segment
	carry    []byte // incomplete UTF-8 sequence from the previous chunk

	status    TurnStatus
	err       error
	finalized bool
	stats     StreamStats

	refresh  func(TurnView)
	finalize func(TurnView) error
}

type TurnOption func(*Turn)

// WithRefresh registers the re-render callback. It runs after every chunk
// that produced at least one segment and once after the turn is flushed.
func WithRefresh(fn func(TurnView)) TurnOption {
	return func(t *Turn) { t.refresh = fn }
}

// WithFinalize registers a hook that runs once the turn has ended, after the
// final refresh. Persistence belongs here.
func WithFinalize(fn func(TurnView) error) TurnOption {
	return func(t *Turn) { t.finalize = fn }
}

func WithModel(name string) TurnOption {
	return func(t *Turn) { t.model = name }
}

func WithID(id string) TurnOption {
	return func(t *Turn) { t.id = id }
}

func NewTurn(reg *tags.Registry, opts ...TurnOption) *Turn {
	now := time.Now()
	t := &Turn{
		id:    uuid.NewString(),
		demux: stream.NewDemultiplexer(reg),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.stats = StreamStats{StreamID: t.id, StartTime: now, LastUpdate: now}
	return t
}

func (t *Turn) ID() string {
	return t.id
}

// OnChunk feeds one fragment. Fragments arriving after the turn ended are dropped.
func (t *Turn) OnChunk(chunk []byte) error {
	t.mu.Lock()
	if t.finalized {
		t.mu.Unlock()
		logger.WithComponent("turn").Debug("Chunk after end dropped", "turn_id", t.id, "chunk_length", len(chunk))
		return nil
	}

	t.stats.ChunkCount++
	t.stats.LastUpdate = time.Now()

	text := t.decode(chunk)
	segs := t.demux.Feed(text)
	if len(segs) == 0 {
		t.mu.Unlock()
		return nil
	}
	t.apply(segs)
	view := t.snapshot()
	t.mu.Unlock()

	t.notify(view)
	return nil
}

// OnComplete ends the turn normally. The finalize hook's error is returned.
func (t *Turn) OnComplete(finalContent string) error {
	view, ok := t.finish(StatusComplete, nil)
	if !ok {
		return nil
	}
	if finalContent != "" && finalContent != view.Raw() {
		logger.WithComponent("turn").Debug("Final content differs from streamed content",
			"turn_id", t.id, "final_length", len(finalContent), "streamed_length", len(view.Raw()))
	}
	return t.runFinalize(view)
}

// OnError ends the turn after a transport failure. Buffered text is flushed
// before the turn is marked errored.
func (t *Turn) OnError(err error) {
	status := StatusErrored
	if errors.Is(err, context.Canceled) {
		status = StatusCancelled
	}
	view, ok := t.finish(status, err)
	if !ok {
		return
	}
	if ferr := t.runFinalize(view); ferr != nil {
		logger.WithComponent("turn").Error("Finalize after error failed", "turn_id", t.id, "error", ferr)
	}
}

// Cancel abandons the turn. It flushes like any other ending.
func (t *Turn) Cancel() {
	t.OnError(context.Canceled)
}

// finish flushes the demultiplexer exactly once and records the outcome.
func (t *Turn) finish(status TurnStatus, err error) (TurnView, bool) {
	t.mu.Lock()
	if t.finalized {
		t.mu.Unlock()
		return TurnView{}, false
	}
	t.finalized = true

	segs := t.demux.Feed(t.drainCarry())
	segs = append(segs, t.demux.Flush()...)
	t.apply(segs)

	t.status = status
	t.err = err
	t.stats.IsComplete = true
	t.stats.LastUpdate = time.Now()
	t.stats.Duration = t.stats.LastUpdate.Sub(t.stats.StartTime)

	view := t.snapshot()
	t.mu.Unlock()

	log := logger.WithComponent("turn")
	if err != nil {
		log.Warn("Turn ended with error", "turn_id", t.id, "status", status, "error", err)
	} else {
		log.Debug("Turn complete", "turn_id", t.id, "chunks", view.Stats.ChunkCount, "length", view.Stats.ContentLength)
	}

	t.notify(view)
	return view, true
}

func (t *Turn) runFinalize(view TurnView) error {
	if t.finalize == nil {
		return nil
	}
	return t.finalize(view)
}

func (t *Turn) notify(view TurnView) {
	if t.refresh != nil {
		t.refresh(view)
	}
}

// apply appends segments, merging adjacent text so the view stays compact.
func (t *Turn) apply(segs []stream.Segment) {
	for _, s := range segs {
		t.stats.ContentLength += len(s.Content)
		n := len(t.segments)
		if !s.IsBlock() && n > 0 && !t.segments[n-1].IsBlock() {
			t.segments[n-1].Content += s.Content
			continue
		}
		t.segments = append(t.segments, s)
	}
}

// decode turns a chunk into text, holding back a trailing incomplete UTF-8
// sequence until the next chunk completes it.
func (t *Turn) decode(chunk []byte) string {
	data := chunk
	if len(t.carry) > 0 {
		data = append(t.carry, chunk...)
		t.carry = nil
	}

	cut := len(data)
	for i := len(data) - 1; i >= 0 && i >= len(data)-utf8.UTFMax; i-- {
		if utf8.RuneStart(data[i]) {
			if !utf8.FullRune(data[i:]) {
				cut = i
			}
			break
		}
	}
	if cut < len(data) {
		t.carry = append([]byte(nil), data[cut:]...)
	}
	return string(data[:cut])
}

func (t *Turn) drainCarry() string {
	if len(t.carry) == 0 {
		return ""
	}
	s := strings.ToValidUTF8(string(t.carry), "�")
	t.carry = nil
	return s
}

func (t *Turn) snapshot() TurnView {
	segs := make([]stream.Segment, len(t.segments))
	copy(segs, t.segments)
	return TurnView{
		ID:       t.id,
		Model:    t.model,
		Segments: segs,
		Status:   t.status,
		Err:      t.err,
		Stats:    t.stats,
		Empty:    t.finalized && len(segs) == 0,
	}
}

// View returns the current snapshot.
func (t *Turn) View() TurnView {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot()
}

// Message returns the response to persist for the turn.
func (t *Turn) Message() ChatMessage {
	return ResponseFromView(t.View())
}

// ResponseFromView builds the persisted response for a finished turn.
func ResponseFromView(v TurnView) ChatMessage {
	content := v.Raw()
	if content == "" {
		if v.Err != nil {
			content = ErrorText(v.Err)
		} else {
			content = EmptyTurnText
		}
	}
	return NewResponseMessage(content, v.Model)
}

// ErrorText is the user-facing description of a failed turn.
func ErrorText(err error) string {
	var serverErr *stream.ServerError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &serverErr):
		msg := serverErr.Message
		if msg == "" {
			msg = "Unknown error"
		}
		return "Stream Error: " + msg
	case errors.Is(err, context.Canceled):
		return "Reply cancelled"
	default:
		return "Network or stream error: " + err.Error()
	}
}

// EstimateWordsPerMinute estimates streaming speed in words per minute
func EstimateWordsPerMinute(stats StreamStats, content string) float64 {
	if stats.Duration <= 0 {
		return 0
	}
	words := len(strings.Fields(content))
	return float64(words) / stats.Duration.Minutes()
}

var _ stream.Handler = (*Turn)(nil)
