package transfer

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ahlt-platform/ahlt/pkg/apperror"
)

// Handler handles HTTP requests for bulk import and export.
type Handler struct {
	svc *Service
}

// NewHandler creates a new transfer handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// queryTypes reads the optional comma-separated "types" filter.
func queryTypes(c echo.Context) []string {
	raw := c.QueryParam("types")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	types := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			types = append(types, p)
		}
	}
	return types
}

// Export returns the native JSON payload.
// GET /api/transfer/export?types=a,b
func (h *Handler) Export(c echo.Context) error {
	payload, err := h.svc.Export(c.Request().Context(), queryTypes(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, payload)
}

// ExportSQL returns the export as a SQL script.
// GET /api/transfer/export.sql?types=a,b
func (h *Handler) ExportSQL(c echo.Context) error {
	script, err := h.svc.ExportSQL(c.Request().Context(), queryTypes(c))
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, "text/plain; charset=utf-8", []byte(script))
}

// ExportJSONLD returns the export as a JSON-LD document.
// GET /api/transfer/export.jsonld?types=a,b
func (h *Handler) ExportJSONLD(c echo.Context) error {
	doc, err := h.svc.ExportJSONLD(c.Request().Context(), queryTypes(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, doc)
}

// Import merges a native payload. Item errors are reported in the result,
// not as an HTTP failure.
// POST /api/transfer/import
func (h *Handler) Import(c echo.Context) error {
	var payload ImportPayload
	if err := c.Bind(&payload); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid import payload")
	}
	result, err := h.svc.Import(c.Request().Context(), &payload)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// ImportJSONLD merges a JSON-LD document.
// POST /api/transfer/import.jsonld
func (h *Handler) ImportJSONLD(c echo.Context) error {
	var doc map[string]any
	if err := c.Bind(&doc); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid JSON-LD document")
	}
	result, err := h.svc.ImportJSONLD(c.Request().Context(), doc)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}
