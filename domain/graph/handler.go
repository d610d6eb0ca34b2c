package graph

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ahlt-platform/ahlt/pkg/apperror"
)

// Handler handles HTTP requests for graph operations.
type Handler struct {
	svc *Service
}

// NewHandler creates a new graph handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func pathID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		return 0, apperror.ErrBadRequest.WithMessage("invalid " + name)
	}
	return id, nil
}

// CreateEntity creates an entity.
// POST /api/entities
func (h *Handler) CreateEntity(c echo.Context) error {
	var req CreateEntityRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}
	ent, err := h.svc.CreateEntity(c.Request().Context(), req.EntityType, req.Name, req.Label, req.SortOrder)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, ent)
}

// GetEntity returns an entity with its properties.
// GET /api/entities/:id
func (h *Handler) GetEntity(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ent, props, err := h.svc.GetEntity(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, EntityResponse{Entity: ent, Properties: props})
}

// ListEntities returns all entities of the type given in the "type" query
// parameter.
// GET /api/entities?type=...
func (h *Handler) ListEntities(c echo.Context) error {
	entityType := c.QueryParam("type")
	if entityType == "" {
		return apperror.ErrBadRequest.WithMessage("type query parameter is required")
	}
	ents, err := h.svc.ListEntities(c.Request().Context(), entityType)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ents)
}

// UpdateEntity updates label, sort order or active flag of an entity.
// PATCH /api/entities/:id
func (h *Handler) UpdateEntity(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req UpdateEntityRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}
	ctx := c.Request().Context()
	current, err := h.svc.Repo().FindByID(ctx, id)
	if err != nil {
		return err
	}
	label := current.Label
	sortOrder := current.SortOrder
	isActive := current.IsActive
	if req.Label != nil {
		label = *req.Label
	}
	if req.SortOrder != nil {
		sortOrder = *req.SortOrder
	}
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	ent, err := h.svc.UpdateEntity(ctx, id, label, sortOrder, isActive)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ent)
}

// DeleteEntity removes an entity and everything cascading from it.
// DELETE /api/entities/:id
func (h *Handler) DeleteEntity(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteEntity(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// SetProperties upserts a batch of properties on an entity.
// PUT /api/entities/:id/properties
func (h *Handler) SetProperties(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req SetPropertiesRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}
	if err := h.svc.SetProperties(c.Request().Context(), id, req.Properties); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// DeleteProperty removes one property from an entity.
// DELETE /api/entities/:id/properties/:key
func (h *Handler) DeleteProperty(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteProperty(c.Request().Context(), id, c.Param("key")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// CreateRelation creates an edge between two entities.
// POST /api/relations
func (h *Handler) CreateRelation(c echo.Context) error {
	var req CreateRelationRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}
	if req.RelationType == "" {
		return apperror.ErrValidation.WithMessage("relation_type is required")
	}
	ctx := c.Request().Context()
	if req.Unique {
		rel, created, err := h.svc.RelateUnique(ctx, req.RelationType, req.SourceID, req.TargetID)
		if err != nil {
			return err
		}
		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		return c.JSON(status, RelationResponse{Relation: rel, Created: created})
	}
	rel, err := h.svc.Relate(ctx, req.RelationType, req.SourceID, req.TargetID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, RelationResponse{Relation: rel, Created: true})
}

// DeleteRelation removes an edge by ID.
// DELETE /api/relations/:id
func (h *Handler) DeleteRelation(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.Repo().DeleteRelation(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ListTargets returns the entities an entity points at via a relation type.
// GET /api/entities/:id/targets/:relation_type
func (h *Handler) ListTargets(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ents, err := h.svc.Targets(c.Request().Context(), c.Param("relation_type"), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ents)
}

// ListSources returns the entities pointing at an entity via a relation type.
// GET /api/entities/:id/sources/:relation_type
func (h *Handler) ListSources(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ents, err := h.svc.Sources(c.Request().Context(), c.Param("relation_type"), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ents)
}
