// Package session owns the arena of loaded models. Each loaded document
// gets a Session holding exclusive ownership of its in-memory model;
// there is deliberately no process-wide "currently loaded model";
// multiple sessions coexist and executors receive an explicit handle.
package session

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/buildenergy/epmod/internal/idf"
)

// Session is one loaded model plus its apply lock. Apply-mode batches
// hold the lock from target resolution through persist, serializing
// concurrent applies against the same model. Dry-runs only take it long
// enough to snapshot.
type Session struct {
	ID   uuid.UUID
	Path string

	mu    sync.Mutex
	model *idf.Model
}

// Lock acquires the exclusive mutation lock.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the mutation lock.
func (s *Session) Unlock() { s.mu.Unlock() }

// Model returns the live model. Callers mutating it must hold the lock.
func (s *Session) Model() *idf.Model { return s.model }

// Snapshot returns a deep copy taken under the lock. A snapshot taken
// while an apply is in flight may be stale relative to the apply's final
// state; dry-run results are advisory, not transactional.
func (s *Session) Snapshot() *idf.Model {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model.Clone()
}

// Arena is the registry of live sessions, keyed by session id and
// indexed by resolved document path.
type Arena struct {
	gateway *idf.Gateway
	logger  *slog.Logger

	mu     sync.Mutex
	byID   map[uuid.UUID]*Session
	byPath map[string]uuid.UUID
}

// NewArena creates an empty arena backed by the given gateway.
func NewArena(gateway *idf.Gateway, logger *slog.Logger) *Arena {
	return &Arena{
		gateway: gateway,
		logger:  logger,
		byID:    make(map[uuid.UUID]*Session),
		byPath:  make(map[string]uuid.UUID),
	}
}

// Acquire returns the session for path, loading the document on first
// use. Paths are resolved to absolute form so aliases share a session.
func (a *Arena) Acquire(path string) (*Session, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("session: resolve %s: %w", path, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if id, ok := a.byPath[abs]; ok {
		return a.byID[id], nil
	}

	model, err := a.gateway.Load(abs)
	if err != nil {
		return nil, err
	}

	s := &Session{ID: uuid.New(), Path: abs, model: model}
	a.byID[s.ID] = s
	a.byPath[abs] = s.ID
	a.logger.Info("session loaded", "session_id", s.ID, "path", abs)
	return s, nil
}

// Get looks up a session by id.
func (a *Arena) Get(id uuid.UUID) (*Session, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.byID[id]
	return s, ok
}

// Unload drops a session from the arena. The caller is responsible for
// having persisted any mutations it wants to keep.
func (a *Arena) Unload(id uuid.UUID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.byID[id]
	if !ok {
		return
	}
	delete(a.byID, id)
	delete(a.byPath, s.Path)
	a.logger.Info("session unloaded", "session_id", id, "path", s.Path)
}

// Len reports the number of live sessions.
func (a *Arena) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.byID)
}
