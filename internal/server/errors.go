package server

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jonathan/cv-editor/internal/compiler"
	"github.com/jonathan/cv-editor/internal/db"
	"github.com/jonathan/cv-editor/internal/project"
	"github.com/jonathan/cv-editor/internal/record"
	"github.com/jonathan/cv-editor/internal/rendering"
	"github.com/jonathan/cv-editor/internal/schemas"
	"github.com/jonathan/cv-editor/internal/session"
	"go.uber.org/zap"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		validationErr *ErrValidation
		entryFieldErr *record.EntryFieldError
		schemaErr     *schemas.ValidationError
	)

	switch {
	case err == nil:
		return http.StatusInternalServerError
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.Is(err, errPathOutsideProject):
		return http.StatusForbidden
	case errors.Is(err, session.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, compiler.ErrCompilerNotFound):
		return http.StatusServiceUnavailable
	case errors.Is(err, rendering.ErrMissingField),
		errors.Is(err, record.ErrNotStructured),
		errors.As(err, &entryFieldErr),
		errors.As(err, &schemaErr),
		errors.Is(err, project.ErrMalformed),
		errors.Is(err, project.ErrEmptyInput),
		errors.Is(err, project.ErrInputTooLarge):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrNotFound),
		errors.Is(err, record.ErrUnknownField),
		errors.Is(err, record.ErrUnknownSection),
		errors.Is(err, record.ErrEntryIndex),
		errors.Is(err, db.ErrProjectNotFound),
		errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err to a status and writes it as a JSON error body.
// Compiler lookup failures carry their remediation text.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	body := map[string]string{"error": err.Error()}

	var notFound *compiler.NotFoundError
	if errors.As(err, &notFound) {
		body["remediation"] = notFound.Remediation()
	}
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		s.logger.Error("request failed", zap.Error(err))
	}
	s.jsonResponse(w, status, body)
}

// extractValidationErrors converts validator errors to a readable message
func extractValidationErrors(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "required_without":
			msgs = append(msgs, fmt.Sprintf("%s is required when %s is absent", field, strings.ToLower(fe.Param())))
		case "excluded_with":
			msgs = append(msgs, fmt.Sprintf("%s cannot be combined with %s", field, strings.ToLower(fe.Param())))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", field))
		}
	}
	return strings.Join(msgs, "; ")
}
