package upstream

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/samteezy/mcproxy/internal/resolver"
)

// Manager owns every configured upstream's Session and connects/disconnects
// them as a group, isolating one upstream's failure from the rest — the
// same per-entity isolation the teacher's SessionManager applies to
// conversation sessions, generalized to upstream connections.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager builds a Manager with one Session per enabled upstream spec.
// Disabled upstreams are skipped entirely; they never appear in the
// catalog and never get connected.
func NewManager(specs map[string]*resolver.UpstreamSpec) *Manager {
	m := &Manager{sessions: make(map[string]*Session, len(specs))}
	for id, spec := range specs {
		if !spec.Enabled {
			continue
		}
		m.sessions[id] = New(spec)
	}
	return m
}

// ConnectAll connects every session concurrently. A failure on one upstream
// is logged and does not prevent the others from connecting.
func (m *Manager) ConnectAll(ctx context.Context) {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			if err := s.Connect(ctx); err != nil {
				log.Warn().Err(err).Str("upstream", s.ID()).Msg("upstream connect failed")
			}
		}(s)
	}
	wg.Wait()
}

// DisconnectAll tears down every session. Called on shutdown, and on a
// config reload for the replaced graph's manager once the new graph is live.
func (m *Manager) DisconnectAll() {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	for _, s := range sessions {
		s.Disconnect()
	}
}

// Get returns the session for an upstream id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// All returns every managed session, keyed by upstream id.
func (m *Manager) All() map[string]*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*Session, len(m.sessions))
	for id, s := range m.sessions {
		out[id] = s
	}
	return out
}

// IDs returns the upstream ids this manager knows about, in no particular
// order.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}
