package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"star-art-studio/internal/generator"
	"star-art-studio/internal/studio"
)

// Session pairs one orchestrator with the options its owner last chose.
type Session struct {
	ID           string
	Studio       *studio.Orchestrator
	Options      generator.Options
	LastActivity time.Time
}

type Options struct {
	// NewStudio builds the orchestrator for a fresh session.
	NewStudio func() *studio.Orchestrator
}

type Store struct {
	mu        sync.Mutex
	sessions  map[string]*Session
	newStudio func() *studio.Orchestrator
}

func NewStore(opts Options) *Store {
	return &Store{
		sessions:  make(map[string]*Session),
		newStudio: opts.NewStudio,
	}
}

// Create starts a session under a fresh random ID.
func (s *Store) Create() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.getOrCreateLocked(uuid.NewString())
}

func (s *Store) GetOrCreate(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getOrCreateLocked(id)
	sess.LastActivity = time.Now()
	return sess
}

func (s *Store) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if ok {
		sess.LastActivity = time.Now()
	}
	return sess, ok
}

// Options returns a copy of the session's saved options.
func (s *Store) Options(id string) generator.Options {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.getOrCreateLocked(id).Options
}

func (s *Store) UpdateOptions(id string, fn func(*generator.Options) error) (generator.Options, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getOrCreateLocked(id)
	next := sess.Options
	if fn != nil {
		if err := fn(&next); err != nil {
			return sess.Options, err
		}
	}
	sess.Options = next
	sess.LastActivity = time.Now()
	return next, nil
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Prune drops sessions idle longer than maxIdle. Sessions with a run in
// flight are kept.
func (s *Store) Prune(maxIdle time.Duration) int {
	if maxIdle <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-maxIdle)
	removed := 0
	for id, sess := range s.sessions {
		if sess.LastActivity.After(cutoff) || sess.Studio.Loading() {
			continue
		}
		delete(s.sessions, id)
		removed++
	}
	return removed
}

// Janitor prunes idle sessions every tick until ctx is done.
func (s *Store) Janitor(ctx context.Context, every, maxIdle time.Duration, logger *slog.Logger) {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Prune(maxIdle); n > 0 && logger != nil {
				logger.Info("sessions pruned", "removed", n, "remaining", s.Len())
			}
		}
	}
}

func (s *Store) getOrCreateLocked(id string) *Session {
	if sess, ok := s.sessions[id]; ok {
		return sess
	}

	sess := &Session{
		ID:           id,
		Studio:       s.newStudio(),
		LastActivity: time.Now(),
	}
	s.sessions[id] = sess
	return sess
}
