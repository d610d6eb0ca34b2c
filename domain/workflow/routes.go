package workflow

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers all workflow routes.
func RegisterRoutes(e *echo.Echo, h *Handler) {
	g := e.Group("/api/workflows")
	g.GET("", h.ListScopes)

	g.GET("/:scope/statuses", h.ListStatuses)
	g.POST("/:scope/statuses", h.CreateStatus)
	g.PATCH("/statuses/:id", h.UpdateStatus)
	g.DELETE("/statuses/:id", h.DeleteStatus)

	g.GET("/:scope/transitions", h.ListTransitions)
	g.POST("/:scope/transitions", h.CreateTransition)
	g.PATCH("/transitions/:id", h.UpdateTransition)
	g.DELETE("/transitions/:id", h.DeleteTransition)

	g.POST("/:scope/validate", h.Validate)
	g.POST("/:scope/available", h.Available)
}
