package engine

import (
	"context"

	"github.com/fyrsmithlabs/askd/internal/memory"
)

// CreateNewSession starts a fresh conversation: a new session id becomes
// current and the buffer is cleared. Nothing is written until the first
// message arrives.
func (e *Engine) CreateNewSession() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.memory.CreateSession()
	e.memory.ClearBuffer()
	e.sessionID.Store(id)
	return id
}

// LoadSession makes id the current session and refills the buffer from its
// record. On failure the current session and buffer are untouched; the
// error is memory.ErrTransientMode or wraps memory.ErrSessionNotFound.
func (e *Engine) LoadSession(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.memory.LoadSession(ctx, id); err != nil {
		return err
	}
	e.sessionID.Store(id)
	return nil
}

// AllSessions lists stored sessions, most recently updated first.
func (e *Engine) AllSessions(ctx context.Context) ([]memory.Summary, error) {
	return e.memory.AllSessions(ctx)
}

// DeleteSession removes a stored session and reports whether it existed.
// Deleting the current session also clears the buffer and the current id.
func (e *Engine) DeleteSession(ctx context.Context, id string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	existed, err := e.memory.DeleteSession(ctx, id)
	if err != nil {
		return false, err
	}
	if id == e.currentSession() {
		e.sessionID.Store("")
		e.memory.ClearBuffer()
	}
	return existed, nil
}

// ClearAllSessions removes every stored session, clears the buffer and
// forgets the current session.
func (e *Engine) ClearAllSessions(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.memory.ClearAllSessions(ctx); err != nil {
		return err
	}
	e.sessionID.Store("")
	e.memory.ClearBuffer()
	return nil
}
