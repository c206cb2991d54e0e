package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory implementation of the three repositories,
// used by tests and when storage is disabled. Values are copied on the way
// in and out so callers never share memory with the store.
type MemoryStore struct {
	mu        sync.RWMutex
	users     map[string]*User
	usernames map[string]string
	sessions  map[string]*PracticeSession
	events    map[string][]*PracticeEvent
	profiles  map[string][]*CalibrationProfile
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[string]*User),
		usernames: make(map[string]string),
		sessions:  make(map[string]*PracticeSession),
		events:    make(map[string][]*PracticeEvent),
		profiles:  make(map[string][]*CalibrationProfile),
	}
}

// Users returns the store's UserRepository view.
func (s *MemoryStore) Users() UserRepository { return &memoryUsers{s} }

// Sessions returns the store's SessionRepository view.
func (s *MemoryStore) Sessions() SessionRepository { return &memorySessions{s} }

// Calibrations returns the store's CalibrationRepository view.
func (s *MemoryStore) Calibrations() CalibrationRepository { return &memoryCalibrations{s} }

type memoryUsers struct{ s *MemoryStore }

func (r *memoryUsers) GetOrCreateByUsername(_ context.Context, username string) (*User, error) {
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if id, ok := r.s.usernames[username]; ok {
		u := *r.s.users[id]
		return &u, nil
	}

	user := &User{ID: uuid.NewString(), Username: username}
	r.s.users[user.ID] = user
	r.s.usernames[username] = user.ID
	u := *user
	return &u, nil
}

func (r *memoryUsers) GetByUsername(_ context.Context, username string) (*User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, ok := r.s.usernames[username]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", username, ErrNotFound)
	}
	u := *r.s.users[id]
	return &u, nil
}

func (r *memoryUsers) GetByID(_ context.Context, id string) (*User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	user, ok := r.s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	u := *user
	return &u, nil
}

type memorySessions struct{ s *MemoryStore }

func (r *memorySessions) Create(_ context.Context, session *PracticeSession) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.sessions[session.ID]; ok {
		return fmt.Errorf("session %s already exists", session.ID)
	}
	stored := *session
	r.s.sessions[session.ID] = &stored
	return nil
}

func (r *memorySessions) Update(_ context.Context, session *PracticeSession) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.sessions[session.ID]; !ok {
		return fmt.Errorf("session %s: %w", session.ID, ErrNotFound)
	}
	stored := *session
	r.s.sessions[session.ID] = &stored
	return nil
}

func (r *memorySessions) GetByID(_ context.Context, id string) (*PracticeSession, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	session, ok := r.s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	out := *session
	return &out, nil
}

func (r *memorySessions) ListByUser(_ context.Context, userID string, limit int) ([]*PracticeSession, error) {
	if limit <= 0 {
		limit = 20
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*PracticeSession
	for _, session := range r.s.sessions {
		if session.UserID == userID {
			dup := *session
			out = append(out, &dup)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime.After(out[j].StartTime)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memorySessions) AppendEvent(_ context.Context, event *PracticeEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored := *event
	r.s.events[event.SessionID] = append(r.s.events[event.SessionID], &stored)
	return nil
}

func (r *memorySessions) ListEvents(_ context.Context, sessionID string) ([]*PracticeEvent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	stored := r.s.events[sessionID]
	out := make([]*PracticeEvent, len(stored))
	for i, event := range stored {
		dup := *event
		out[i] = &dup
	}
	return out, nil
}

type memoryCalibrations struct{ s *MemoryStore }

func (r *memoryCalibrations) Save(_ context.Context, profile *CalibrationProfile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.profiles[profile.UserID] {
		existing.Active = false
	}

	profile.Active = true
	stored := *profile
	stored.Payload = append([]byte(nil), profile.Payload...)
	r.s.profiles[profile.UserID] = append(r.s.profiles[profile.UserID], &stored)
	return nil
}

func (r *memoryCalibrations) GetActive(_ context.Context, userID string) (*CalibrationProfile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	profiles := r.s.profiles[userID]
	for i := len(profiles) - 1; i >= 0; i-- {
		if profiles[i].Active {
			out := *profiles[i]
			out.Payload = append([]byte(nil), profiles[i].Payload...)
			return &out, nil
		}
	}
	return nil, fmt.Errorf("active calibration for user %s: %w", userID, ErrNotFound)
}
