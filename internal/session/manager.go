package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/uhuru-arts/pixelgarden/internal/editor"
	"github.com/uhuru-arts/pixelgarden/internal/grid"
	"github.com/uhuru-arts/pixelgarden/internal/pixel"
	"github.com/uhuru-arts/pixelgarden/internal/verify"
)

// ErrNoSession is returned when a user session has no live payment
// session.
var ErrNoSession = errors.New("session: no payment session")

// ManagerConfig holds the pieces every per-user flow shares.
type ManagerConfig struct {
	Editor      editor.Config
	Pricing     pixel.Pricing
	BurnAddress string
	// TTL after which an idle user flow is swept. Zero disables sweeping.
	TTL time.Duration
}

type flow struct {
	editor     *editor.Editor
	session    *Session
	lastActive time.Time
}

// Manager owns the editor and payment session of every active user
// session, keyed by an opaque session id. All operations for one user
// are serialized behind the manager's lock; distinct users only
// contend on the map.
type Manager struct {
	mu   sync.Mutex
	grid *grid.Grid
	svc  *verify.Service
	cfg  ManagerConfig

	flows map[string]*flow
}

// NewManager creates a Manager.
func NewManager(g *grid.Grid, svc *verify.Service, cfg ManagerConfig) *Manager {
	return &Manager{
		grid:  g,
		svc:   svc,
		cfg:   cfg,
		flows: make(map[string]*flow),
	}
}

func (m *Manager) flowFor(sessionID string) *flow {
	f, ok := m.flows[sessionID]
	if !ok {
		f = &flow{editor: editor.New(m.grid, m.cfg.Editor)}
		m.flows[sessionID] = f
	}
	f.lastActive = time.Now()
	return f
}

// OpenDraft starts editing an empty cell. Any previous draft is
// discarded and any pending payment session invalidated, per the
// one-live-purchase-at-a-time rule.
func (m *Manager) OpenDraft(sessionID string, x, y int) (*editor.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f := m.flowFor(sessionID)
	if f.session != nil {
		f.session.Invalidate()
		f.session = nil
	}
	return f.editor.Open(x, y)
}

// Edit runs fn against the user's editor.
func (m *Manager) Edit(sessionID string, fn func(*editor.Editor) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.flowFor(sessionID).editor)
}

// Draft returns a copy of the user's current draft.
func (m *Manager) Draft(sessionID string) (*editor.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flowFor(sessionID).editor.Draft()
}

// CancelDraft discards the user's draft.
func (m *Manager) CancelDraft(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flowFor(sessionID).editor.Cancel()
}

// Submit turns the user's draft into a payment session and returns the
// payment instructions.
func (m *Manager) Submit(sessionID string) (Instructions, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f := m.flowFor(sessionID)

	draft, err := f.editor.Submit()
	if err != nil {
		return Instructions{}, err
	}
	if f.session != nil {
		f.session.Invalidate()
	}
	f.session = New(*draft, m.cfg.Pricing)
	return f.session.Instructions(m.cfg.BurnAddress), nil
}

// Session returns the user's live payment session.
func (m *Manager) Session(sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f := m.flowFor(sessionID)
	if f.session == nil {
		return nil, ErrNoSession
	}
	return f.session, nil
}

// SubmitTransaction verifies a transaction id against the user's live
// session. The manager lock is not held across the verification call,
// so other users are never blocked on a slow ledger.
func (m *Manager) SubmitTransaction(ctx context.Context, sessionID, txID string) (*pixel.Pixel, error) {
	s, err := m.Session(sessionID)
	if err != nil {
		return nil, err
	}
	return s.SubmitTransaction(ctx, txID, m.svc)
}

// Sweep drops user flows idle for longer than the TTL. Returns the
// number removed.
func (m *Manager) Sweep() int {
	if m.cfg.TTL <= 0 {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-m.cfg.TTL)
	n := 0
	for id, f := range m.flows {
		if f.lastActive.Before(cutoff) {
			if f.session != nil {
				f.session.Invalidate()
			}
			delete(m.flows, id)
			n++
		}
	}
	return n
}

// RunSweeper sweeps idle flows at the given interval until ctx ends.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}
