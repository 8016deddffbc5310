package assistant

import (
	"sync"
	"time"

	"github.com/naigggs/hau2park.web-sub001/internal/domain"
)

// ContextStore is the session-scoped blob store for conversation contexts.
// Contexts have no cross-session visibility; concurrent writers to the same
// session get last-write-wins semantics.
type ContextStore interface {
	Get(sessionID string) (domain.ConversationContext, bool)
	Set(ctx domain.ConversationContext)
	Clear(sessionID string)
}

type memoryStore struct {
	mu       sync.RWMutex
	contexts map[string]domain.ConversationContext
}

func NewMemoryStore() ContextStore {
	return &memoryStore{contexts: make(map[string]domain.ConversationContext)}
}

func (s *memoryStore) Get(sessionID string) (domain.ConversationContext, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ctx, ok := s.contexts[sessionID]
	return ctx, ok
}

func (s *memoryStore) Set(ctx domain.ConversationContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx.UpdatedAt = time.Now().UTC()
	s.contexts[ctx.SessionID] = ctx
}

func (s *memoryStore) Clear(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.contexts, sessionID)
}
