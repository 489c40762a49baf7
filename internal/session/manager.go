package session

import (
	"sync"
	"time"

	"whitepaper-console/internal/shared/telemetry"
	"whitepaper-console/internal/upstream"
)

const sweepInterval = time.Minute

// Manager hands out one workspace per caller identity and reaps workspaces
// that stopped polling and lost all watchers.
type Manager struct {
	pipe upstream.Pipeline
	cfg  Config
	ttl  time.Duration

	mu         sync.Mutex
	workspaces map[string]*Workspace

	done     chan struct{}
	shutdown sync.Once
}

// NewManager starts the reaper goroutine; call Shutdown to stop it.
func NewManager(pipe upstream.Pipeline, cfg Config, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	m := &Manager{
		pipe:       pipe,
		cfg:        cfg,
		ttl:        ttl,
		workspaces: make(map[string]*Workspace),
		done:       make(chan struct{}),
	}
	go m.janitor()
	return m
}

// Workspace returns the owner's workspace, creating it on first use, and
// records the caller's current token for auth-change detection.
func (m *Manager) Workspace(owner, token string) *Workspace {
	m.mu.Lock()
	ws, ok := m.workspaces[owner]
	if !ok {
		ws = newWorkspace(owner, m.pipe, m.cfg)
		m.workspaces[owner] = ws
	}
	m.mu.Unlock()
	ws.ObserveToken(token)
	return ws
}

// Peek returns the owner's workspace without creating one.
func (m *Manager) Peek(owner string) (*Workspace, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ws, ok := m.workspaces[owner]
	return ws, ok
}

// Shutdown stops the reaper and closes every workspace.
func (m *Manager) Shutdown() {
	m.shutdown.Do(func() { close(m.done) })
	m.mu.Lock()
	all := make([]*Workspace, 0, len(m.workspaces))
	for owner, ws := range m.workspaces {
		all = append(all, ws)
		delete(m.workspaces, owner)
	}
	m.mu.Unlock()
	for _, ws := range all {
		ws.Close()
	}
}

func (m *Manager) janitor() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.sweep(time.Now().Add(-m.ttl))
		}
	}
}

func (m *Manager) sweep(cutoff time.Time) {
	m.mu.Lock()
	var expired []*Workspace
	for owner, ws := range m.workspaces {
		if ws.Idle(cutoff) {
			delete(m.workspaces, owner)
			expired = append(expired, ws)
		}
	}
	m.mu.Unlock()

	for _, ws := range expired {
		ws.Close()
	}
	if len(expired) > 0 {
		telemetry.Info("session.swept", map[string]any{"count": len(expired)})
	}
}
