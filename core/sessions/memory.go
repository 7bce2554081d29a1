package sessions

import (
	"context"
	"fmt"
	"sync"

	"github.com/jinzhu/copier"
)

type memorySession struct {
	profile Profile
	history []string
}

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	sessions   map[string]*memorySession
	maxHistory int
	mu         sync.RWMutex
}

// NewMemoryStore creates an empty store. A positive maxHistory keeps only the
// newest entries.
func NewMemoryStore(maxHistory int) *MemoryStore {
	return &MemoryStore{sessions: map[string]*memorySession{}, maxHistory: maxHistory}
}

// Seed creates the session or replaces the profile of an existing one. The
// history is kept.
func (s *MemoryStore) Seed(_ context.Context, sessionID string, profile Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session, ok := s.sessions[sessionID]; ok {
		session.profile = profile
		return nil
	}
	s.sessions[sessionID] = &memorySession{profile: profile}
	return nil
}

func (s *MemoryStore) Context(_ context.Context, sessionID string) (Context, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return Context{}, fmt.Errorf("session %q: %w", sessionID, ErrUnknownSession)
	}

	snapshot := Context{
		SessionID:     sessionID,
		AssistantName: session.profile.AssistantName,
		OwnerName:     session.profile.OwnerName,
	}
	if err := copier.CopyWithOption(&snapshot.History, &session.history, copier.Option{DeepCopy: true}); err != nil {
		return Context{}, fmt.Errorf("failed to snapshot session history: %w", err)
	}
	return snapshot, nil
}

func (s *MemoryStore) AppendHistory(_ context.Context, sessionID string, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session %q: %w", sessionID, ErrUnknownSession)
	}

	session.history = append(session.history, text)
	if s.maxHistory > 0 && len(session.history) > s.maxHistory {
		session.history = session.history[len(session.history)-s.maxHistory:]
	}
	return nil
}
