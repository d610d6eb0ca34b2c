package graph

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers all graph routes.
func RegisterRoutes(e *echo.Echo, h *Handler) {
	entities := e.Group("/api/entities")
	entities.POST("", h.CreateEntity)
	entities.GET("", h.ListEntities)
	entities.GET("/:id", h.GetEntity)
	entities.PATCH("/:id", h.UpdateEntity)
	entities.DELETE("/:id", h.DeleteEntity)
	entities.PUT("/:id/properties", h.SetProperties)
	entities.DELETE("/:id/properties/:key", h.DeleteProperty)
	entities.GET("/:id/targets/:relation_type", h.ListTargets)
	entities.GET("/:id/sources/:relation_type", h.ListSources)

	relations := e.Group("/api/relations")
	relations.POST("", h.CreateRelation)
	relations.DELETE("/:id", h.DeleteRelation)
}
