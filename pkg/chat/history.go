package chat

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// History is a conversation kept in a single JSON file. It backs the
// file session store and the REPL's scratch history.
type History struct {
	mu       sync.RWMutex
	path     string
	messages []ChatMessage
}

// NewHistory loads the file at path if it exists.
func NewHistory(path string) (*History, error) {
	h := &History{path: path}
	if err := h.Load(); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *History) Add(msg ChatMessage) error {
	h.mu.Lock()
	h.messages = append(h.messages, msg)
	h.mu.Unlock()
	return h.Save()
}

// Replace swaps the stored messages and saves.
func (h *History) Replace(msgs []ChatMessage) error {
	h.mu.Lock()
	h.messages = append([]ChatMessage(nil), msgs...)
	h.mu.Unlock()
	return h.Save()
}

func (h *History) GetMessages() []ChatMessage {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]ChatMessage, len(h.messages))
	copy(out, h.messages)
	return out
}

// GetLastN returns up to n most recent messages.
func (h *History) GetLastN(n int) []ChatMessage {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if n <= 0 {
		return nil
	}
	if n > len(h.messages) {
		n = len(h.messages)
	}
	out := make([]ChatMessage, n)
	copy(out, h.messages[len(h.messages)-n:])
	return out
}

func (h *History) Clear() error {
	h.mu.Lock()
	h.messages = nil
	h.mu.Unlock()
	return h.Save()
}

// Save writes the history atomically.
func (h *History) Save() error {
	h.mu.RLock()
	data, err := json.MarshalIndent(h.messages, "", "  ")
	h.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(h.path), 0755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	tmp := h.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := os.Rename(tmp, h.path); err != nil {
		return fmt.Errorf("failed to replace history: %w", err)
	}
	return nil
}

// Load reads the history file. A missing file means an empty history.
func (h *History) Load() error {
	data, err := os.ReadFile(h.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}

	var msgs []ChatMessage
	if len(data) > 0 {
		if err := json.Unmarshal(data, &msgs); err != nil {
			return fmt.Errorf("failed to parse history %s: %w", h.path, err)
		}
	}

	h.mu.Lock()
	h.messages = msgs
	h.mu.Unlock()
	return nil
}
