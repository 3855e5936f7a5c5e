package v1

import (
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/agentboard/internal/domain"
	"github.com/gosuda/agentboard/internal/ingest"
)

// Error codes carried in Envelope.Error.Code.
const (
	CodeValidation  = "VALIDATION_ERROR"
	CodeInternal    = "INTERNAL_ERROR"
	CodeRateLimited = "RATE_LIMITED"
)

type APIError struct {
	Code    string `json:"code" doc:"Machine-readable error code"`
	Message string `json:"message" doc:"Human-readable description"`
}

// Envelope is the body of every ingestion and query response.
type Envelope struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

// EnvelopeOutput lets handlers pick the status code while keeping the
// envelope shape for failures too.
type EnvelopeOutput struct {
	Status int
	Body   Envelope
}

func ok(status int, data any) *EnvelopeOutput {
	return &EnvelopeOutput{Status: status, Body: Envelope{Success: true, Data: data}}
}

func failure(status int, code, message string) *EnvelopeOutput {
	return &EnvelopeOutput{
		Status: status,
		Body:   Envelope{Error: &APIError{Code: code, Message: message}},
	}
}

// fromError maps a service error onto the envelope. Validation failures are
// reported to the caller; anything else is logged and hidden behind msg.
func fromError(err error, msg string) *EnvelopeOutput {
	var verr *ingest.ValidationError
	switch {
	case errors.As(err, &verr):
		return failure(http.StatusBadRequest, CodeValidation, verr.Error())
	case errors.Is(err, domain.ErrValidation):
		return failure(http.StatusBadRequest, CodeValidation, msg)
	default:
		log.Error().Err(err).Msg(msg)
		return failure(http.StatusInternalServerError, CodeInternal, msg)
	}
}

func projectScope(header string) (string, *EnvelopeOutput) {
	id := strings.TrimSpace(header)
	if id == "" {
		return "", failure(http.StatusBadRequest, CodeValidation, "X-Project-ID header is required")
	}
	return id, nil
}
