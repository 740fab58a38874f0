// Package session persists conversations between runs.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/BryanTheLai/stackrag/pkg/chat"
	"github.com/BryanTheLai/stackrag/pkg/config"
)

var ErrNotFound = errors.New("session not found")

// Session is a stored conversation.
type Session struct {
	ID        string             `json:"id"`
	UserID    string             `json:"user_id"`
	Title     string             `json:"title"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
	History   []chat.ChatMessage `json:"history"`
}

// Summary is a session without its history, as shown in listings.
type Summary struct {
	ID           string
	Title        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MessageCount int
}

// Conversation returns the session as a chat conversation.
func (s *Session) Conversation() chat.Conversation {
	return chat.Conversation{ID: s.ID, Title: s.Title, History: s.History}
}

// Store is the persistence boundary for sessions.
type Store interface {
	Create(ctx context.Context, userID, title string) (string, error)
	// List returns a user's sessions, most recently updated first.
	List(ctx context.Context, userID string) ([]Summary, error)
	Get(ctx context.Context, id string) (*Session, error)
	UpdateHistory(ctx context.Context, id string, history []chat.ChatMessage) error
	UpdateTitle(ctx context.Context, id, title string) error
	Delete(ctx context.Context, id string) error
	Close() error
}

func NewID() string {
	return uuid.NewString()
}

// NewStore opens the store selected by cfg.Backend.
func NewStore(cfg config.SessionConfig) (Store, error) {
	switch cfg.Backend {
	case "", "sqlite":
		return NewSQLiteStore(cfg.Path)
	case "file":
		return NewFileStore(cfg.Path)
	case "none":
		return &NoopStore{}, nil
	default:
		return nil, fmt.Errorf("unknown session backend %q (expected sqlite, file or none)", cfg.Backend)
	}
}

func titleOrDefault(title string) string {
	if title == "" {
		return chat.DefaultTitle
	}
	return title
}
