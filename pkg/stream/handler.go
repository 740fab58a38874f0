package stream

import "context"

// Handler receives the fragments of one streamed reply. A transport calls
// OnChunk for every fragment in order, then exactly one of OnComplete or
// OnError.
type Handler interface {
	// OnChunk is called when a new chunk of content is received.
	OnChunk(chunk []byte) error

	// OnComplete is called on an explicit end-of-stream signal.
	OnComplete(finalContent string) error

	// OnError is called when the stream terminates abnormally.
	OnError(err error)
}

// HandlerFunc is a function adapter for Handler interface
type HandlerFunc struct {
	ChunkFunc    func(chunk []byte) error
	CompleteFunc func(finalContent string) error
	ErrorFunc    func(err error)
}

// OnChunk implements Handler
func (h HandlerFunc) OnChunk(chunk []byte) error {
	if h.ChunkFunc != nil {
		return h.ChunkFunc(chunk)
	}
	return nil
}

// OnComplete implements Handler
func (h HandlerFunc) OnComplete(finalContent string) error {
	if h.CompleteFunc != nil {
		return h.CompleteFunc(finalContent)
	}
	return nil
}

// OnError implements Handler
func (h HandlerFunc) OnError(err error) {
	if h.ErrorFunc != nil {
		h.ErrorFunc(err)
	}
}

// ToStreamingFunc converts a Handler to LangChain's streaming function signature
// for use with llms.WithStreamingFunc. A cancelled context stops the stream
// without reporting; the caller owns the terminal callback.
func ToStreamingFunc(handler Handler) func(context.Context, []byte) error {
	return func(ctx context.Context, chunk []byte) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return handler.OnChunk(chunk)
		}
	}
}

var _ Handler = HandlerFunc{}
