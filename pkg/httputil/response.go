package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/pkg/validator"
)

// Response is the JSON envelope written by every handler. Success is always
// present so clients can branch on it without inspecting the status code.
type Response struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Data    any            `json:"data,omitempty"`
	Error   *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse describes a failed request.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteJSON writes v as JSON with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteData writes a successful envelope carrying data.
func WriteData(w http.ResponseWriter, status int, data any) {
	WriteJSON(w, status, Response{Success: true, Data: data})
}

// WriteMessage writes a successful envelope with only a message.
func WriteMessage(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, Response{Success: true, Message: message})
}

// WriteError maps err to a status code and writes the failure envelope.
// Server-side failures are logged with the request-scoped logger when the
// RequestLogger middleware is mounted, otherwise with fallback.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() && fallback != nil {
		l = fallback
	}
	requestID := logger.CorrelationIDFromContext(r.Context())

	body := &ErrorResponse{RequestID: requestID}
	status := http.StatusInternalServerError

	var (
		appErr *apperrors.AppError
		valErr *validator.ValidationError
	)
	switch {
	case errors.As(err, &valErr):
		status = http.StatusBadRequest
		body.Code = "VALIDATION_ERROR"
		body.Message = valErr.Error()
		body.Fields = valErr.Fields()
	case errors.As(err, &appErr):
		status = appErr.Status
		body.Code = appErr.Code
		body.Message = appErr.Message
	default:
		status = apperrors.HTTPStatus(err)
		body.Code, body.Message = classify(err, status)
	}

	if status >= http.StatusInternalServerError {
		l.ErrorContext(r.Context(), "request failed",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	WriteJSON(w, status, Response{Success: false, Message: body.Message, Error: body})
}

func classify(err error, status int) (string, string) {
	switch status {
	case http.StatusNotFound:
		return apperrors.CodeNotFound, "resource not found"
	case http.StatusConflict:
		if errors.Is(err, apperrors.ErrConflict) {
			return apperrors.CodeConflict, "resource was modified concurrently"
		}
		return apperrors.CodeAlreadyExists, "resource already exists"
	case http.StatusBadRequest:
		return apperrors.CodeInvalidInput, err.Error()
	case http.StatusUnauthorized:
		return apperrors.CodeUnauthorized, "authentication required"
	case http.StatusForbidden:
		return apperrors.CodeForbidden, "access denied"
	default:
		return apperrors.CodeInternal, "an internal error occurred"
	}
}

// WriteInvalidParameter writes a 400 for a malformed path or query parameter.
func WriteInvalidParameter(w http.ResponseWriter, message string) {
	WriteJSON(w, http.StatusBadRequest, Response{
		Success: false,
		Message: message,
		Error:   &ErrorResponse{Code: "INVALID_PARAMETER", Message: message},
	})
}
