package session

import (
	"context"

	"github.com/BryanTheLai/stackrag/pkg/chat"
)

// NoopStore is used when persistence is disabled. Writes are discarded and
// every lookup misses.
type NoopStore struct{}

func (s *NoopStore) Create(ctx context.Context, userID, title string) (string, error) {
	return NewID(), nil
}

func (s *NoopStore) List(ctx context.Context, userID string) ([]Summary, error) {
	return nil, nil
}

func (s *NoopStore) Get(ctx context.Context, id string) (*Session, error) {
	return nil, ErrNotFound
}

func (s *NoopStore) UpdateHistory(ctx context.Context, id string, history []chat.ChatMessage) error {
	return nil
}

func (s *NoopStore) UpdateTitle(ctx context.Context, id, title string) error {
	return nil
}

func (s *NoopStore) Delete(ctx context.Context, id string) error {
	return nil
}

func (s *NoopStore) Close() error {
	return nil
}

var _ Store = (*NoopStore)(nil)
