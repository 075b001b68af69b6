package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelErrors_AreDistinct(t *testing.T) {
	sentinels := []error{
		ErrNotFound, ErrAlreadyExists, ErrInvalidInput, ErrUnauthorized, ErrForbidden,
		ErrInternal, ErrConflict, ErrOrderFinalized, ErrInvalidToken, ErrMail,
	}

	for i := 0; i < len(sentinels); i++ {
		for j := i + 1; j < len(sentinels); j++ {
			assert.NotEqual(t, sentinels[i], sentinels[j])
		}
	}
}

func TestAppError_ErrorString(t *testing.T) {
	appErr := &AppError{Code: CodeInternal, Message: "store down", Err: fmt.Errorf("dial tcp")}
	assert.Equal(t, "INTERNAL_ERROR: store down: dial tcp", appErr.Error())

	bare := &AppError{Code: CodeNotFound, Message: "order not found"}
	assert.Equal(t, "NOT_FOUND: order not found", bare.Error())
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		code     string
		status   int
		sentinel error
	}{
		{"not found", NotFound("product", "p-1"), CodeNotFound, http.StatusNotFound, ErrNotFound},
		{"already exists", AlreadyExists("user", "email", "a@b.com"), CodeAlreadyExists, http.StatusConflict, ErrAlreadyExists},
		{"invalid input", InvalidInput("bad"), CodeInvalidInput, http.StatusBadRequest, ErrInvalidInput},
		{"unauthenticated", Unauthenticated("login first"), CodeUnauthenticated, http.StatusUnauthorized, ErrUnauthorized},
		{"invalid session", InvalidSession("expired"), CodeInvalidSession, http.StatusUnauthorized, ErrUnauthorized},
		{"forbidden", Forbidden("admins only"), CodeForbidden, http.StatusForbidden, ErrForbidden},
		{"conflict", Conflict("retry"), CodeConflict, http.StatusConflict, ErrConflict},
		{"order finalized", OrderFinalized("o-1"), CodeOrderFinalized, http.StatusBadRequest, ErrOrderFinalized},
		{"invalid token", InvalidResetToken(), CodeInvalidToken, http.StatusBadRequest, ErrInvalidToken},
		{"mail", MailFailure(fmt.Errorf("smtp timeout")), CodeMail, http.StatusInternalServerError, ErrMail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotNil(t, tt.err)
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.Status)
			assert.True(t, errors.Is(tt.err, tt.sentinel))
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
		})
	}
}

func TestMailFailure_KeepsCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := MailFailure(cause)
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrMail)
}

func TestHTTPStatus_WrappedSentinels(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, HTTPStatus(fmt.Errorf("find: %w", ErrNotFound)))
	assert.Equal(t, http.StatusConflict, HTTPStatus(fmt.Errorf("update: %w", ErrConflict)))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(fmt.Errorf("transition: %w", ErrOrderFinalized)))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(Wrap(ErrInvalidToken, "reset")))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(fmt.Errorf("boom")))
}

func TestHTTPStatus_WrappedAppError(t *testing.T) {
	err := fmt.Errorf("service: %w", Forbidden("nope"))
	assert.Equal(t, http.StatusForbidden, HTTPStatus(err))
}
