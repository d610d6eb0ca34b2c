package transfer

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers all transfer routes.
func RegisterRoutes(e *echo.Echo, h *Handler) {
	g := e.Group("/api/transfer")
	g.GET("/export", h.Export)
	g.GET("/export.sql", h.ExportSQL)
	g.GET("/export.jsonld", h.ExportJSONLD)
	g.POST("/import", h.Import)
	g.POST("/import.jsonld", h.ImportJSONLD)
}
