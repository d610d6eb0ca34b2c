package apperror

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "without internal error",
			err:  New(http.StatusNotFound, "not_found", "Entity not found"),
			want: "not_found: Entity not found",
		},
		{
			name: "with internal error",
			err:  New(http.StatusInternalServerError, "database_error", "Database operation failed").WithInternal(errors.New("connection refused")),
			want: "database_error: Database operation failed (connection refused)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	inner := errors.New("inner")
	err := ErrDatabase.WithInternal(inner)

	assert.Equal(t, inner, err.Unwrap())
	assert.True(t, errors.Is(err, inner))
	assert.Nil(t, ErrDatabase.Unwrap())
}

func TestError_WithInternal_DoesNotMutateOriginal(t *testing.T) {
	inner := errors.New("boom")
	derived := ErrDatabase.WithInternal(inner)

	assert.Nil(t, ErrDatabase.Internal, "sentinel must stay untouched")
	assert.Equal(t, inner, derived.Internal)
	assert.Equal(t, ErrDatabase.Code, derived.Code)
	assert.Equal(t, ErrDatabase.HTTPStatus, derived.HTTPStatus)
}

func TestError_WithMessage(t *testing.T) {
	derived := ErrNotFound.WithMessage("Workflow status not found")

	assert.Equal(t, "Resource not found", ErrNotFound.Message, "sentinel must stay untouched")
	assert.Equal(t, "Workflow status not found", derived.Message)
	assert.Equal(t, "not_found", derived.Code)
}

func TestError_WithDetails(t *testing.T) {
	details := map[string]any{"entity_type": "proposal", "name": "budget-2026"}
	derived := ErrConflict.WithDetails(details)

	assert.Nil(t, ErrConflict.Details)
	assert.Equal(t, details, derived.Details)
}

func TestCommonErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        *Error
		wantStatus int
		wantCode   string
	}{
		{"ErrNotFound", ErrNotFound, http.StatusNotFound, "not_found"},
		{"ErrConflict", ErrConflict, http.StatusConflict, "conflict"},
		{"ErrReferentialIntegrity", ErrReferentialIntegrity, http.StatusConflict, "referential_integrity"},
		{"ErrNoSuchTransition", ErrNoSuchTransition, http.StatusNotFound, "no_such_transition"},
		{"ErrPermissionDenied", ErrPermissionDenied, http.StatusForbidden, "permission_denied"},
		{"ErrConditionNotMet", ErrConditionNotMet, http.StatusConflict, "condition_not_met"},
		{"ErrBadRequest", ErrBadRequest, http.StatusBadRequest, "bad_request"},
		{"ErrValidation", ErrValidation, http.StatusUnprocessableEntity, "validation_error"},
		{"ErrInternal", ErrInternal, http.StatusInternalServerError, "internal_error"},
		{"ErrDatabase", ErrDatabase, http.StatusInternalServerError, "database_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantStatus, tt.err.HTTPStatus)
			assert.Equal(t, tt.wantCode, tt.err.Code)
		})
	}
}

func TestToHTTPError(t *testing.T) {
	t.Run("app error", func(t *testing.T) {
		status, body := ToHTTPError(ErrNoSuchTransition)

		assert.Equal(t, http.StatusNotFound, status)
		errBody, ok := body["error"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "no_such_transition", errBody["code"])
	})

	t.Run("app error with details", func(t *testing.T) {
		status, body := ToHTTPError(ErrConflict.WithDetails(map[string]any{"name": "alice"}))

		assert.Equal(t, http.StatusConflict, status)
		errBody := body["error"].(map[string]any)
		assert.Equal(t, map[string]any{"name": "alice"}, errBody["details"])
	})

	t.Run("plain error", func(t *testing.T) {
		status, body := ToHTTPError(errors.New("something broke"))

		assert.Equal(t, http.StatusInternalServerError, status)
		errBody := body["error"].(map[string]any)
		assert.Equal(t, "internal_error", errBody["code"])
		assert.NotContains(t, errBody["message"], "something broke", "internal detail must not leak")
	})
}

func TestNewNotFound(t *testing.T) {
	err := NewNotFound("entity", "42")

	assert.Equal(t, http.StatusNotFound, err.HTTPStatus)
	assert.Equal(t, "not_found", err.Code)
	assert.Equal(t, "entity '42' not found", err.Message)
}

func TestNewInternal(t *testing.T) {
	inner := errors.New("disk full")
	err := NewInternal("export failed", inner)

	assert.Equal(t, http.StatusInternalServerError, err.HTTPStatus)
	assert.Equal(t, "export failed", err.Message)
	assert.Equal(t, inner, err.Internal)
}

func TestIsCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
		want bool
	}{
		{"matching code", ErrNoSuchTransition, "no_such_transition", true},
		{"different code", ErrNoSuchTransition, "permission_denied", false},
		{"derived error keeps code", ErrConflict.WithMessage("dup"), "conflict", true},
		{"plain error", errors.New("nope"), "conflict", false},
		{"nil error", nil, "conflict", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCode(tt.err, tt.code))
		})
	}
}
