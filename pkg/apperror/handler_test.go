package apperror

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext(method string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, "/", nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func decodeErrorBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	errBody, ok := body["error"].(map[string]any)
	require.True(t, ok, "response must carry an error object")
	return errBody
}

func testHandler() echo.HTTPErrorHandler {
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return HTTPErrorHandler(log)
}

func TestHTTPErrorHandler_AppError(t *testing.T) {
	c, rec := newTestContext(http.MethodGet)

	testHandler()(ErrPermissionDenied, c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	errBody := decodeErrorBody(t, rec)
	assert.Equal(t, "permission_denied", errBody["code"])
	assert.Equal(t, "Missing required permission", errBody["message"])
}

func TestHTTPErrorHandler_AppErrorWithDetails(t *testing.T) {
	c, rec := newTestContext(http.MethodGet)

	err := ErrReferentialIntegrity.WithDetails(map[string]any{"status_id": float64(7)})
	testHandler()(err, c)

	assert.Equal(t, http.StatusConflict, rec.Code)
	errBody := decodeErrorBody(t, rec)
	assert.Equal(t, "referential_integrity", errBody["code"])
	assert.Equal(t, map[string]any{"status_id": float64(7)}, errBody["details"])
}

func TestHTTPErrorHandler_EchoHTTPError(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantCode string
	}{
		{"not found", http.StatusNotFound, "not_found"},
		{"bad request", http.StatusBadRequest, "bad_request"},
		{"conflict", http.StatusConflict, "conflict"},
		{"forbidden", http.StatusForbidden, "permission_denied"},
		{"unprocessable", http.StatusUnprocessableEntity, "validation_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newTestContext(http.MethodGet)

			testHandler()(echo.NewHTTPError(tt.status, "boom"), c)

			assert.Equal(t, tt.status, rec.Code)
			errBody := decodeErrorBody(t, rec)
			assert.Equal(t, tt.wantCode, errBody["code"])
			assert.Equal(t, "boom", errBody["message"])
		})
	}
}

func TestHTTPErrorHandler_UnknownError(t *testing.T) {
	c, rec := newTestContext(http.MethodGet)

	testHandler()(errors.New("secret internals"), c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	errBody := decodeErrorBody(t, rec)
	assert.Equal(t, "internal_error", errBody["code"])
	assert.NotContains(t, errBody["message"], "secret internals")
}

func TestHTTPErrorHandler_HeadRequest(t *testing.T) {
	c, rec := newTestContext(http.MethodHead)

	testHandler()(ErrNotFound, c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Body.Bytes(), "HEAD responses must have no body")
}

func TestHTTPErrorHandler_CommittedResponse(t *testing.T) {
	c, rec := newTestContext(http.MethodGet)
	require.NoError(t, c.NoContent(http.StatusOK))

	testHandler()(ErrNotFound, c)

	assert.Equal(t, http.StatusOK, rec.Code, "committed response must not be overwritten")
}
