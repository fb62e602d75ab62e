package composer

import (
	"context"
	"fmt"
	"sync"

	"salepoint/backend/internal/store"
)

// Manager owns the active composer sessions. Only one composition is active
// per session id; sessions are dropped from the registry once they end.
type Manager struct {
	backend  Backend
	deleter  LineDeleter
	listener Listener

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(backend Backend, deleter LineDeleter, listener Listener) *Manager {
	return &Manager{
		backend:  backend,
		deleter:  deleter,
		listener: listener,
		sessions: make(map[string]*Session),
	}
}

// Open creates a session in new-sale mode (empty saleID) or edit mode. A
// failed edit start does not register the session.
func (m *Manager) Open(ctx context.Context, saleID string) (*Session, error) {
	session := NewSession(m.backend, m.deleter, m.sessionListener())
	var err error
	if saleID == "" {
		err = session.StartNew(ctx)
	} else {
		err = session.StartEdit(ctx, saleID)
	}
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[session.ID()] = session
	m.mu.Unlock()
	return session, nil
}

func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.Lock()
	session, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: composer session %s", store.ErrNotFound, sessionID)
	}
	return session, nil
}

// Abandon ends and unregisters the session. Unknown ids are ignored: the
// session may already have ended through a successful save.
func (m *Manager) Abandon(sessionID string) {
	m.mu.Lock()
	session, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return
	}
	session.Abandon()
}

// sessionListener unregisters ended sessions before forwarding the event to
// the manager-wide listener.
func (m *Manager) sessionListener() Listener {
	return func(sessionID string, event Event) {
		if event == EventSessionEnded {
			m.mu.Lock()
			delete(m.sessions, sessionID)
			m.mu.Unlock()
		}
		if m.listener != nil {
			m.listener(sessionID, event)
		}
	}
}
