package repository

import (
	"context"
	"errors"
	"strings"
	"sync"

	"kendra-chatbot/internal/domain"
)

// MemoryStore keeps session history in process memory. It backs local runs
// (SESSION_STORE=memory) and tests; history is lost when the process exits.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.ConversationHistory
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]domain.ConversationHistory)}
}

func (m *MemoryStore) Load(_ context.Context, sessionID string) (domain.ConversationHistory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored := m.sessions[sessionID]
	out := make(domain.ConversationHistory, len(stored))
	copy(out, stored)
	return out, nil
}

func (m *MemoryStore) Append(_ context.Context, sessionID string, turn domain.ConversationTurn) error {
	if strings.TrimSpace(sessionID) == "" {
		return errors.New("repository: Append: session id is required")
	}
	turn.SessionID = sessionID
	turn.RetrievedDocuments = nil
	turn.SourceDocuments = append([]domain.SourceAttribution(nil), turn.SourceDocuments...)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sessionID] = append(m.sessions[sessionID], turn)
	return nil
}
