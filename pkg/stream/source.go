package stream

import (
	"context"
	"time"
)

// Source produces a streamed assistant reply for a conversation. Stream
// blocks until the reply ends and reports the outcome both through the
// handler's terminal callback and its return value.
type Source interface {
	Stream(ctx context.Context, history []Message, handler Handler) error
}

// Role names the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is the transport-neutral form of one conversation message.
type Message struct {
	Role      Role
	Content   string
	Timestamp time.Time
}

// ServerError is a failure reported by the remote end inside the stream,
// as opposed to a connection or protocol failure.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return e.Message
}
