package server

import (
	"sync"

	"github.com/google/uuid"
	"github.com/taleweave/taleweave/internal/memory"
)

// Session is one campaign's story memory plus the lock that gives each
// turn exclusive ownership of it. Turns within a session run start to
// finish; there is no intra-turn parallelism to guard against.
type Session struct {
	ID     string
	Memory *memory.StoryMemory

	mu sync.Mutex
}

// Do runs fn while holding the session exclusively.
func (s *Session) Do(fn func(mem *memory.StoryMemory)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.Memory)
}

// SessionRegistry tracks live sessions by ID.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*Session)}
}

// Create opens a new session around a fresh story memory.
func (r *SessionRegistry) Create(decay memory.DecayPolicy) *Session {
	s := &Session{
		ID:     uuid.New().String(),
		Memory: memory.NewStoryMemory().WithDecayPolicy(decay),
	}
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	return s
}

// Get returns the session with the given ID, or nil.
func (r *SessionRegistry) Get(id string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[id]
}

// Adopt registers a session restored from a save.
func (r *SessionRegistry) Adopt(mem *memory.StoryMemory) *Session {
	s := &Session{
		ID:     uuid.New().String(),
		Memory: mem,
	}
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	return s
}
