package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"kendra-chatbot/internal/domain"
	"kendra-chatbot/internal/usecase"
)

const (
	headerCorrelationID    = "X-Correlation-Id"
	headerHistoryPersisted = "X-History-Persisted"
)

type conversationUseCase interface {
	Converse(ctx context.Context, in usecase.TurnInput) (usecase.TurnOutput, error)
}

type Handler struct {
	uc conversationUseCase
}

type chatRequest struct {
	UserInput *string `json:"userInput"`
	SessionID *string `json:"sessionId"`
}

type chatResponse struct {
	Answer          string                     `json:"answer"`
	SourceDocuments []domain.SourceAttribution `json:"sourceDocuments"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

func NewHandler(uc conversationUseCase) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	return &Handler{uc: uc}, nil
}

// Handle serves one API Gateway proxy request. Failures are always returned
// as a JSON error response, never as a Lambda invocation error.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := correlationIDFrom(req.Headers)
	logger := slog.With("correlation_id", correlationID)

	in, err := decodeRequest(req)
	if err != nil {
		return h.fail(logger, correlationID, err), nil
	}
	logger = logger.With("session_id", in.SessionID)

	out, err := h.uc.Converse(ctx, in)
	if err != nil {
		return h.fail(logger, correlationID, err), nil
	}

	resp := jsonResponse(http.StatusOK, correlationID, chatResponse{
		Answer:          out.Answer,
		SourceDocuments: out.SourceDocuments,
	})
	if !out.HistoryPersisted {
		logger.Warn("turn answered but history not persisted", "err", out.PersistErr)
		resp.Headers[headerHistoryPersisted] = "false"
	}
	logger.Info("turn answered", "sources", len(out.SourceDocuments))
	return resp, nil
}

func decodeRequest(req events.APIGatewayProxyRequest) (usecase.TurnInput, error) {
	body := req.Body
	if req.IsBase64Encoded && body != "" {
		raw, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return usecase.TurnInput{}, &usecase.Error{Code: usecase.ErrorMalformedRequest, Reason: "invalid_body_encoding", Err: err}
		}
		body = string(raw)
	}

	if strings.TrimSpace(body) == "" {
		// API Gateway GET-style invocations carry the turn in the query string.
		return usecase.TurnInput{
			UserInput: req.QueryStringParameters["userInput"],
			SessionID: req.QueryStringParameters["sessionId"],
		}, nil
	}

	var r chatRequest
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return usecase.TurnInput{}, &usecase.Error{Code: usecase.ErrorMalformedRequest, Reason: "invalid_field_type", Err: err}
		}
		return usecase.TurnInput{}, &usecase.Error{Code: usecase.ErrorMalformedRequest, Reason: "invalid_json", Err: err}
	}
	var in usecase.TurnInput
	if r.UserInput != nil {
		in.UserInput = *r.UserInput
	}
	if r.SessionID != nil {
		in.SessionID = *r.SessionID
	}
	return in, nil
}

func (h *Handler) fail(logger *slog.Logger, correlationID string, err error) events.APIGatewayProxyResponse {
	code, reason := classify(err)
	status := statusFor(code, reason)
	attrs := []any{"code", code, "reason", reason, "status", status, "err", err}
	if status >= http.StatusInternalServerError {
		logger.Error("turn failed", attrs...)
	} else {
		logger.Warn("turn rejected", attrs...)
	}
	return jsonResponse(status, correlationID, errorResponse{Error: string(code), Reason: reason})
}

func classify(err error) (usecase.ErrorCode, string) {
	var ue *usecase.Error
	if errors.As(err, &ue) {
		return ue.Code, ue.Reason
	}
	return usecase.ErrorInternal, "unexpected_error"
}

func statusFor(code usecase.ErrorCode, reason string) int {
	switch code {
	case usecase.ErrorMalformedRequest:
		return http.StatusBadRequest
	case usecase.ErrorGrantIssuance:
		switch reason {
		case "invalid_locator", "unsupported_action", "invalid_ttl":
			return http.StatusBadRequest
		}
		return http.StatusInternalServerError
	case usecase.ErrorUpstreamRetrieval, usecase.ErrorUpstreamInference:
		return http.StatusBadGateway
	case usecase.ErrorRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func jsonResponse(status int, correlationID string, v any) events.APIGatewayProxyResponse {
	b, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		b = []byte(`{"error":"INTERNAL_ERROR","reason":"encode_response_error"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Access-Control-Allow-Origin":  "*",
			"Access-Control-Allow-Headers": "*",
			"Content-Type":                 "application/json",
			headerCorrelationID:            correlationID,
		},
		Body: string(b),
	}
}

// correlationIDFrom returns the caller's X-Correlation-Id, matched
// case-insensitively, or a fresh UUID.
func correlationIDFrom(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, headerCorrelationID) && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return uuid.NewString()
}
