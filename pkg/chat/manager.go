package chat

import (
	"sort"
	"sync"

	"github.com/BryanTheLai/stackrag/pkg/logger"
	"github.com/BryanTheLai/stackrag/pkg/tags"
)

// Manager tracks the turns currently streaming. Each turn has its own
// demultiplexer, so turns of different conversations never share state.
type Manager struct {
	reg   *tags.Registry
	mu    sync.RWMutex
	turns map[string]*Turn
}

// NewManager creates a new turn manager
func NewManager(reg *tags.Registry) *Manager {
	return &Manager{
		reg:   reg,
		turns: make(map[string]*Turn),
	}
}

// Start creates and tracks a new turn.
func (m *Manager) Start(opts ...TurnOption) *Turn {
	t := NewTurn(m.reg, opts...)

	m.mu.Lock()
	m.turns[t.ID()] = t
	m.mu.Unlock()

	logger.WithComponent("turn_manager").Debug("Turn started", "turn_id", t.ID())
	return t
}

func (m *Manager) Get(id string) (*Turn, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.turns[id]
	return t, ok
}

// Finish stops tracking a turn. A turn still streaming is cancelled first.
func (m *Manager) Finish(id string) {
	m.mu.Lock()
	t, ok := m.turns[id]
	delete(m.turns, id)
	m.mu.Unlock()

	if ok {
		t.Cancel()
	}
}

// CancelAll cancels and forgets every tracked turn.
func (m *Manager) CancelAll() {
	m.mu.Lock()
	turns := m.turns
	m.turns = make(map[string]*Turn)
	m.mu.Unlock()

	for _, t := range turns {
		t.Cancel()
	}
}

// Active returns the ids of tracked turns in sorted order.
func (m *Manager) Active() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.turns))
	for id := range m.turns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Stats returns statistics for a tracked turn.
func (m *Manager) Stats(id string) (StreamStats, bool) {
	t, ok := m.Get(id)
	if !ok {
		return StreamStats{}, false
	}
	return t.View().Stats, true
}
