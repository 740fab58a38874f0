package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/BryanTheLai/stackrag/pkg/chat"
)

// FileStore keeps every session in one JSON document. Each write rewrites
// the file atomically.
type FileStore struct {
	mu       sync.RWMutex
	path     string
	sessions map[string]*Session
}

func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path, sessions: make(map[string]*Session)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions: %w", err)
	}
	if len(data) == 0 {
		return s, nil
	}

	var list []*Session
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse sessions %s: %w", path, err)
	}
	for _, sess := range list {
		s.sessions[sess.ID] = sess
	}
	return s, nil
}

func (s *FileStore) Create(ctx context.Context, userID, title string) (string, error) {
	now := time.Now()
	sess := &Session{
		ID:        NewID(),
		UserID:    userID,
		Title:     titleOrDefault(title),
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	if err := s.saveLocked(); err != nil {
		delete(s.sessions, sess.ID)
		return "", err
	}
	return sess.ID, nil
}

func (s *FileStore) List(ctx context.Context, userID string) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Summary
	for _, sess := range s.sessions {
		if sess.UserID != userID {
			continue
		}
		out = append(out, Summary{
			ID:           sess.ID,
			Title:        sess.Title,
			CreatedAt:    sess.CreatedAt,
			UpdatedAt:    sess.UpdatedAt,
			MessageCount: len(sess.History),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *FileStore) Get(ctx context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *sess
	cp.History = append([]chat.ChatMessage(nil), sess.History...)
	return &cp, nil
}

func (s *FileStore) UpdateHistory(ctx context.Context, id string, history []chat.ChatMessage) error {
	return s.update(id, func(sess *Session) {
		sess.History = append([]chat.ChatMessage(nil), history...)
	})
}

func (s *FileStore) UpdateTitle(ctx context.Context, id, title string) error {
	return s.update(id, func(sess *Session) {
		sess.Title = titleOrDefault(title)
	})
}

func (s *FileStore) update(id string, fn func(*Session)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	fn(sess)
	sess.UpdatedAt = time.Now()
	return s.saveLocked()
}

func (s *FileStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, id)
	return s.saveLocked()
}

func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) saveLocked() error {
	list := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		list = append(list, sess)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal sessions: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create sessions directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write sessions: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace sessions: %w", err)
	}
	return nil
}

var _ Store = (*FileStore)(nil)
