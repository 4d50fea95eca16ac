package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kendra-chatbot/internal/domain"
)

// s3DocumentIDAttribute marks retrieved documents that live in an internal bucket.
const s3DocumentIDAttribute = "s3_document_id"

// DefaultSampling is applied to every model call; it is not tunable per request.
var DefaultSampling = domain.SamplingConfig{
	MaxTokens:   2000,
	Temperature: 1,
	TopP:        0.999,
	TopK:        250,
}

type TurnInput struct {
	UserInput string
	SessionID string
}

type TurnOutput struct {
	Answer             string
	StandaloneQuestion string
	SourceDocuments    []domain.SourceAttribution
	// HistoryPersisted is false when the turn was answered but could not be
	// appended to the session history; PersistErr carries the cause.
	HistoryPersisted bool
	PersistErr       error
}

type ConversationService struct {
	retriever Retriever
	llm       Generator
	store     SessionStore
	sampling  domain.SamplingConfig
	now       func() time.Time

	grants   *GrantService
	grantTTL time.Duration
}

type Option func(*ConversationService)

// WithSourcePresigning replaces the source of documents carrying an
// s3_document_id attribute with a presigned read URL.
func WithSourcePresigning(g *GrantService, ttl time.Duration) Option {
	return func(s *ConversationService) {
		s.grants = g
		s.grantTTL = ttl
	}
}

func NewConversationService(r Retriever, llm Generator, store SessionStore, opts ...Option) (*ConversationService, error) {
	if r == nil {
		return nil, errors.New("usecase: retriever must not be nil")
	}
	if llm == nil {
		return nil, errors.New("usecase: generator must not be nil")
	}
	if store == nil {
		return nil, errors.New("usecase: session store must not be nil")
	}
	s := &ConversationService{
		retriever: r,
		llm:       llm,
		store:     store,
		sampling:  DefaultSampling,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.grants != nil && s.grantTTL <= 0 {
		s.grantTTL = DefaultGrantTTL
	}
	return s, nil
}

// Converse runs one turn: load history, standalone question, retrieve,
// answer, shape, persist. Each stage short-circuits on failure except
// persistence, whose failure is reported on the output. Nothing is
// persisted for a turn that fails.
func (s *ConversationService) Converse(ctx context.Context, in TurnInput) (TurnOutput, error) {
	userInput := strings.TrimSpace(in.UserInput)
	if userInput == "" {
		return TurnOutput{}, newError(ErrorMalformedRequest, "missing_user_input", nil)
	}
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		return TurnOutput{}, newError(ErrorMalformedRequest, "missing_session_id", nil)
	}

	history, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return TurnOutput{}, newError(ErrorSessionStore, "history_load_error", err)
	}

	question, err := s.standaloneQuestion(ctx, history, userInput)
	if err != nil {
		return TurnOutput{}, err
	}

	docs, err := s.retriever.Retrieve(ctx, question)
	if err != nil {
		return TurnOutput{}, upstreamError(ErrorUpstreamRetrieval, "retrieval", err)
	}

	answer, err := s.llm.Generate(ctx, buildAnswerPrompt(docs, question), s.sampling)
	if err != nil {
		return TurnOutput{}, upstreamError(ErrorUpstreamInference, "answer", err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return TurnOutput{}, newError(ErrorUpstreamInference, "answer_empty", nil)
	}

	sources := rawSources(docs)
	shaped, err := s.shapeSources(ctx, docs, sources)
	if err != nil {
		return TurnOutput{}, err
	}

	turn := domain.ConversationTurn{
		SessionID:          sessionID,
		UserInput:          userInput,
		StandaloneQuestion: question,
		RetrievedDocuments: docs,
		Answer:             answer,
		SourceDocuments:    sources,
		CreatedAt:          s.now().UTC(),
	}
	out := TurnOutput{
		Answer:             answer,
		StandaloneQuestion: question,
		SourceDocuments:    shaped,
		HistoryPersisted:   true,
	}
	if err := s.store.Append(ctx, sessionID, turn); err != nil {
		out.HistoryPersisted = false
		out.PersistErr = newError(ErrorSessionStore, "history_append_error", err)
	}
	return out, nil
}

func (s *ConversationService) standaloneQuestion(ctx context.Context, history domain.ConversationHistory, userInput string) (string, error) {
	if len(history) == 0 {
		return userInput, nil
	}
	rewritten, err := s.llm.Generate(ctx, buildCondensePrompt(history, userInput), s.sampling)
	if err != nil {
		return "", upstreamError(ErrorUpstreamInference, "condense", err)
	}
	rewritten = strings.TrimSpace(rewritten)
	if rewritten == "" {
		return "", newError(ErrorUpstreamInference, "condense_empty", nil)
	}
	return rewritten, nil
}

func rawSources(docs []domain.DocumentReference) []domain.SourceAttribution {
	sources := make([]domain.SourceAttribution, 0, len(docs))
	for _, d := range docs {
		sources = append(sources, domain.SourceAttribution{Title: d.Title, Source: d.SourceURI})
	}
	return sources
}

func (s *ConversationService) shapeSources(ctx context.Context, docs []domain.DocumentReference, sources []domain.SourceAttribution) ([]domain.SourceAttribution, error) {
	if s.grants == nil {
		return sources, nil
	}
	shaped := make([]domain.SourceAttribution, len(sources))
	copy(shaped, sources)
	for i, d := range docs {
		if !hasS3DocumentID(d) {
			continue
		}
		grant, err := s.grants.IssueAccessGrant(ctx, domain.AccessGrantRequest{
			ResourceLocator: d.SourceURI,
			Action:          domain.ActionRead,
			TTL:             s.grantTTL,
		})
		if err != nil {
			var ue *Error
			if errors.As(err, &ue) {
				return nil, ue
			}
			return nil, newError(ErrorGrantIssuance, "source_presign_error", fmt.Errorf("document %q: %w", d.DocumentID, err))
		}
		shaped[i].Source = grant.URL
	}
	return shaped, nil
}

func hasS3DocumentID(d domain.DocumentReference) bool {
	v, ok := d.DocumentAttributes[s3DocumentIDAttribute]
	if !ok || v == nil {
		return false
	}
	if str, isString := v.(string); isString {
		return strings.TrimSpace(str) != ""
	}
	return true
}
