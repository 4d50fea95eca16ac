package usecase

import (
	"context"
	"time"

	"kendra-chatbot/internal/domain"
)

type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]domain.DocumentReference, error)
}

type Generator interface {
	Generate(ctx context.Context, prompt string, cfg domain.SamplingConfig) (string, error)
}

// SessionStore persists conversation history. Turns are only appended and
// read back, never rewritten or deleted.
type SessionStore interface {
	Load(ctx context.Context, sessionID string) (domain.ConversationHistory, error)
	Append(ctx context.Context, sessionID string, turn domain.ConversationTurn) error
}

type Signer interface {
	Sign(ctx context.Context, bucket, key string, action domain.Action, ttl time.Duration) (string, error)
}
