package workflow

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ahlt-platform/ahlt/pkg/apperror"
)

// CreateStatusRequest is the payload for POST /api/workflows/:scope/statuses.
type CreateStatusRequest struct {
	StatusCode string `json:"status_code"`
	Label      string `json:"label"`
	Order      int64  `json:"order"`
	IsInitial  bool   `json:"is_initial"`
	IsTerminal bool   `json:"is_terminal"`
}

// UpdateStatusRequest is the payload for PATCH /api/workflows/statuses/:id.
type UpdateStatusRequest struct {
	Label      string `json:"label"`
	Order      int64  `json:"order"`
	IsInitial  bool   `json:"is_initial"`
	IsTerminal bool   `json:"is_terminal"`
}

// CreateTransitionRequest is the payload for POST /api/workflows/:scope/transitions.
type CreateTransitionRequest struct {
	FromStatusID       int64  `json:"from_status_id"`
	ToStatusID         int64  `json:"to_status_id"`
	Label              string `json:"label"`
	RequiredPermission string `json:"required_permission"`
	RequiresOutcome    bool   `json:"requires_outcome"`
	Condition          string `json:"condition"`
}

// UpdateTransitionRequest is the payload for PATCH /api/workflows/transitions/:id.
type UpdateTransitionRequest struct {
	Label              string `json:"label"`
	RequiredPermission string `json:"required_permission"`
	RequiresOutcome    bool   `json:"requires_outcome"`
	Condition          string `json:"condition"`
}

// ValidateRequest carries the transition to validate together with the
// caller's permission codes and the entity's current properties. Permission
// resolution happens upstream, the engine only checks membership.
type ValidateRequest struct {
	CurrentStatus string            `json:"current_status"`
	TargetStatus  string            `json:"target_status,omitempty"`
	Permissions   []string          `json:"permissions"`
	Properties    map[string]string `json:"properties"`
}

// Handler handles HTTP requests for workflow definitions and validation.
type Handler struct {
	repo   *Repository
	engine *Engine
}

// NewHandler creates a new workflow handler.
func NewHandler(repo *Repository, engine *Engine) *Handler {
	return &Handler{repo: repo, engine: engine}
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, apperror.ErrBadRequest.WithMessage("invalid id")
	}
	return id, nil
}

// ListScopes returns every workflow scope with its definition counts.
// GET /api/workflows
func (h *Handler) ListScopes(c echo.Context) error {
	scopes, err := h.repo.ListScopes(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, scopes)
}

// ListStatuses returns the statuses of a scope in display order.
// GET /api/workflows/:scope/statuses
func (h *Handler) ListStatuses(c echo.Context) error {
	statuses, err := h.repo.ListStatusesForScope(c.Request().Context(), c.Param("scope"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, statuses)
}

// CreateStatus creates a status in a scope.
// POST /api/workflows/:scope/statuses
func (h *Handler) CreateStatus(c echo.Context) error {
	var req CreateStatusRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}
	status, err := h.repo.CreateStatus(c.Request().Context(), c.Param("scope"), req.StatusCode, req.Label, req.Order, req.IsInitial, req.IsTerminal)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, status)
}

// UpdateStatus updates a status's label, order and flags.
// PATCH /api/workflows/statuses/:id
func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req UpdateStatusRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}
	if err := h.repo.UpdateStatus(c.Request().Context(), id, req.Label, req.Order, req.IsInitial, req.IsTerminal); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// DeleteStatus deletes a status unless transitions still reference it.
// DELETE /api/workflows/statuses/:id
func (h *Handler) DeleteStatus(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.repo.DeleteStatus(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ListTransitions returns the transitions of a scope.
// GET /api/workflows/:scope/transitions
func (h *Handler) ListTransitions(c echo.Context) error {
	transitions, err := h.repo.ListTransitionsForScope(c.Request().Context(), c.Param("scope"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, transitions)
}

// CreateTransition creates a transition between two statuses of a scope.
// POST /api/workflows/:scope/transitions
func (h *Handler) CreateTransition(c echo.Context) error {
	var req CreateTransitionRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}
	t, err := h.repo.CreateTransition(c.Request().Context(), c.Param("scope"), req.FromStatusID, req.ToStatusID, req.Label, req.RequiredPermission, req.RequiresOutcome, req.Condition)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, t)
}

// UpdateTransition updates a transition's label, permission, outcome flag
// and condition.
// PATCH /api/workflows/transitions/:id
func (h *Handler) UpdateTransition(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req UpdateTransitionRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}
	if err := h.repo.UpdateTransition(c.Request().Context(), id, req.Label, req.RequiredPermission, req.RequiresOutcome, req.Condition); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// DeleteTransition removes a transition.
// DELETE /api/workflows/transitions/:id
func (h *Handler) DeleteTransition(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.repo.DeleteTransition(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Validate checks one transition for the caller. Success returns the
// matched transition; the entity's status is not changed here.
// POST /api/workflows/:scope/validate
func (h *Handler) Validate(c echo.Context) error {
	var req ValidateRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}
	t, err := h.engine.ValidateTransition(
		c.Request().Context(),
		c.Param("scope"),
		req.CurrentStatus,
		req.TargetStatus,
		NewPermissionSet(req.Permissions...),
		req.Properties,
	)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

// Available lists the legal next transitions for the caller.
// POST /api/workflows/:scope/available
func (h *Handler) Available(c echo.Context) error {
	var req ValidateRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}
	available, err := h.engine.FindAvailableTransitions(
		c.Request().Context(),
		c.Param("scope"),
		req.CurrentStatus,
		NewPermissionSet(req.Permissions...),
		req.Properties,
	)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, available)
}
