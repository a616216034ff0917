package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/rag-agent/internal/api/response"
	"github.com/Rrens/rag-agent/internal/domain"
)

var validate = validator.New()

// writeError maps domain errors to status codes. Dependency failures are
// logged with their cause and answered with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		response.BadRequest(w, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		response.Unauthorized(w, rootMessage(err, domain.ErrInvalidCredentials, domain.ErrUnauthorized))
	case errors.Is(err, domain.ErrForbidden):
		response.Forbidden(w, domain.ErrForbidden.Error())
	case errors.Is(err, domain.ErrAgentNotFound):
		response.NotFound(w, domain.ErrAgentNotFound.Error())
	case errors.Is(err, domain.ErrSessionNotFound):
		response.NotFound(w, domain.ErrSessionNotFound.Error())
	case errors.Is(err, domain.ErrNotFound):
		response.NotFound(w, domain.ErrNotFound.Error())
	default:
		log.Error().
			Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("Request failed")
		response.InternalError(w, internalMessage(err))
	}
}

func rootMessage(err error, candidates ...error) string {
	for _, c := range candidates {
		if errors.Is(err, c) {
			return c.Error()
		}
	}
	return err.Error()
}

func internalMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrIngestionFailed):
		return domain.ErrIngestionFailed.Error()
	case errors.Is(err, domain.ErrEmbeddingFailed):
		return domain.ErrEmbeddingFailed.Error()
	case errors.Is(err, domain.ErrChatFailed):
		return domain.ErrChatFailed.Error()
	}
	return "internal server error"
}

// formatValidationErrors turns validator errors into a field -> message map
func formatValidationErrors(err error) any {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err.Error()
	}
	out := make(map[string]string, len(validationErrors))
	for _, e := range validationErrors {
		switch e.Tag() {
		case "required":
			out[e.Field()] = "field is required"
		case "min":
			out[e.Field()] = "must be at least " + e.Param() + " characters"
		case "max":
			out[e.Field()] = "must be at most " + e.Param() + " characters"
		default:
			out[e.Field()] = "validation failed on " + e.Tag()
		}
	}
	return out
}

// decodeAndValidate reads a JSON body into dst and validates it
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.BadRequest(w, "invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		response.BadRequest(w, formatValidationErrors(err))
		return false
	}
	return true
}

// urlUUID parses a UUID path parameter, answering 400 when malformed
func urlUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		response.BadRequest(w, "invalid "+param)
		return uuid.Nil, false
	}
	return id, true
}
