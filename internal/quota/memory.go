package quota

import (
	"context"
	"sync"
	"time"

	"portfolio-functions/internal/domain"
)

// MemoryStore keeps session records in process memory. Expired records are
// only replaced when their session is seen again; nothing sweeps abandoned
// sessions, so the map lives as long as the process.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]domain.SessionQuota
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]domain.SessionQuota)}
}

func (m *MemoryStore) Admit(_ context.Context, sessionID string, now time.Time, policy Policy) (Decision, error) {
	policy = policy.normalized()

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.sessions[sessionID]
	rec.SessionID = sessionID
	rec, d := decide(rec, ok, now, policy)
	m.sessions[sessionID] = rec
	return d, nil
}

// Len returns the number of tracked sessions, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

var _ Store = (*MemoryStore)(nil)
