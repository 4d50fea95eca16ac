package handler

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"kendra-chatbot/internal/domain"
	"kendra-chatbot/internal/usecase"
)

type grantIssuer interface {
	IssueAccessGrant(ctx context.Context, req domain.AccessGrantRequest) (domain.AccessGrant, error)
}

// PresignRequest is the direct-invocation payload of the access-grant Lambda.
type PresignRequest struct {
	URL        string `json:"url"`
	Action     string `json:"action,omitempty"`
	TTLSeconds *int   `json:"ttlSeconds,omitempty"`
}

type PresignResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type PresignHandler struct {
	grants     grantIssuer
	defaultTTL time.Duration
}

func NewPresignHandler(g grantIssuer, defaultTTL time.Duration) (*PresignHandler, error) {
	if g == nil {
		return nil, errors.New("handler: grant issuer must not be nil")
	}
	if defaultTTL <= 0 {
		return nil, errors.New("handler: default ttl must be positive")
	}
	return &PresignHandler{grants: g, defaultTTL: defaultTTL}, nil
}

// Handle issues one grant. Errors are returned to the Lambda runtime so the
// invocation itself fails.
func (h *PresignHandler) Handle(ctx context.Context, req PresignRequest) (PresignResponse, error) {
	action := domain.Action(strings.ToLower(strings.TrimSpace(req.Action)))
	if action == "" {
		action = domain.ActionRead
	}
	ttl := h.defaultTTL
	if req.TTLSeconds != nil {
		secs := *req.TTLSeconds
		// Bounded before conversion so a huge value cannot wrap into a short duration.
		if secs <= 0 || int64(secs) > int64(usecase.MaxGrantTTL/time.Second) {
			err := &usecase.Error{Code: usecase.ErrorGrantIssuance, Reason: "invalid_ttl"}
			slog.Error("access grant rejected", "code", err.Code, "reason", err.Reason, "ttl_seconds", secs)
			return PresignResponse{}, err
		}
		ttl = time.Duration(secs) * time.Second
	}

	grant, err := h.grants.IssueAccessGrant(ctx, domain.AccessGrantRequest{
		ResourceLocator: req.URL,
		Action:          action,
		TTL:             ttl,
	})
	if err != nil {
		code, reason := classify(err)
		slog.Error("access grant failed", "code", code, "reason", reason, "action", action, "err", err)
		return PresignResponse{}, err
	}
	slog.Info("access grant issued", "action", action, "ttl", ttl, "expires_at", grant.ExpiresAt)
	return PresignResponse{URL: grant.URL, ExpiresAt: grant.ExpiresAt.UTC()}, nil
}
