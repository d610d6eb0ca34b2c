package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/ahlt-platform/ahlt/domain/graph"
	"github.com/ahlt-platform/ahlt/pkg/apperror"
	"github.com/ahlt-platform/ahlt/pkg/logger"
)

// Repository reads and writes workflow definitions, which live in the graph
// store as ordinary entities, properties and relations.
type Repository struct {
	graph *graph.Repository
	log   *slog.Logger
}

// NewRepository creates a workflow repository on top of the graph store.
func NewRepository(g *graph.Repository, log *slog.Logger) *Repository {
	return &Repository{
		graph: g,
		log:   log.With(logger.Scope("workflow.repo")),
	}
}

// CreateStatus creates a workflow status entity named "{scope}.{code}".
// The is_initial and is_terminal flags are stored only when true, matching
// how absent flags read back as false.
func (r *Repository) CreateStatus(ctx context.Context, scope, code, label string, order int64, isInitial, isTerminal bool) (*Status, error) {
	if scope == "" || code == "" {
		return nil, apperror.ErrValidation.WithMessage("scope and status_code are required")
	}
	name := fmt.Sprintf("%s.%s", scope, code)
	ent, err := r.graph.CreateEntity(ctx, StatusEntityType, name, label)
	if err != nil {
		return nil, err
	}
	props := map[string]string{
		propStatusCode: code,
		propScope:      scope,
		propLabel:      ent.Label,
		propOrder:      strconv.FormatInt(order, 10),
	}
	if isInitial {
		props[propIsInitial] = "true"
	}
	if isTerminal {
		props[propIsTerminal] = "true"
	}
	if err := r.graph.SetProperties(ctx, ent.ID, props); err != nil {
		return nil, err
	}
	return &Status{
		ID:         ent.ID,
		Scope:      scope,
		Code:       code,
		Label:      ent.Label,
		Order:      order,
		IsInitial:  isInitial,
		IsTerminal: isTerminal,
	}, nil
}

// UpdateStatus updates label, order and flags of a status. The scope and
// code are immutable; delete and recreate to change them.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, label string, order int64, isInitial, isTerminal bool) error {
	ent, err := r.graph.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if ent.EntityType != StatusEntityType {
		return apperror.ErrNotFound.WithMessage(fmt.Sprintf("entity %d is not a workflow status", id))
	}
	if _, err := r.graph.UpdateEntity(ctx, id, label, ent.SortOrder, ent.IsActive); err != nil {
		return err
	}
	if err := r.graph.SetProperties(ctx, id, map[string]string{
		propLabel: label,
		propOrder: strconv.FormatInt(order, 10),
	}); err != nil {
		return err
	}
	for _, flag := range []struct {
		key string
		on  bool
	}{
		{propIsInitial, isInitial},
		{propIsTerminal, isTerminal},
	} {
		if flag.on {
			if err := r.graph.SetProperty(ctx, id, flag.key, "true"); err != nil {
				return err
			}
		} else if err := r.graph.DeleteProperty(ctx, id, flag.key); err != nil {
			return err
		}
	}
	return nil
}

// DeleteStatus deletes a status unless any transition still references it
// as from or to. The guard is application-level because statuses and
// transitions are both generic entities.
func (r *Repository) DeleteStatus(ctx context.Context, id int64) error {
	for _, relName := range []string{RelTransitionFrom, RelTransitionTo} {
		rt, err := r.graph.FindByTypeAndName(ctx, graph.RelationTypeName, relName)
		if err != nil {
			if apperror.IsCode(err, "not_found") {
				continue
			}
			return err
		}
		n, err := r.graph.CountRelationsTargeting(ctx, rt.ID, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return apperror.ErrReferentialIntegrity.WithMessage(
				"cannot delete status: transitions still reference it, delete the transitions first")
		}
	}
	return r.graph.DeleteEntity(ctx, id)
}

// CreateTransition creates a workflow transition between two existing
// statuses. The from/to codes are read from the statuses, denormalized into
// properties, and the statuses are linked by transition_from/transition_to
// relations.
func (r *Repository) CreateTransition(ctx context.Context, scope string, fromStatusID, toStatusID int64, label, requiredPermission string, requiresOutcome bool, condition string) (*Transition, error) {
	fromCode, err := r.graph.GetProperty(ctx, fromStatusID, propStatusCode)
	if err != nil {
		return nil, err
	}
	toCode, err := r.graph.GetProperty(ctx, toStatusID, propStatusCode)
	if err != nil {
		return nil, err
	}

	name := fmt.Sprintf("%s.%s_to_%s", scope, fromCode, toCode)
	ent, err := r.graph.CreateEntity(ctx, TransitionEntityType, name, label)
	if err != nil {
		return nil, err
	}

	props := map[string]string{
		propScope:              scope,
		propFromStatusCode:     fromCode,
		propToStatusCode:       toCode,
		propTransitionLabel:    ent.Label,
		propRequiredPermission: requiredPermission,
		propRequiresOutcome:    strconv.FormatBool(requiresOutcome),
	}
	if condition != "" {
		props[propCondition] = condition
	}
	if err := r.graph.SetProperties(ctx, ent.ID, props); err != nil {
		return nil, err
	}

	fromRT, err := r.graph.FindByTypeAndName(ctx, graph.RelationTypeName, RelTransitionFrom)
	if err != nil {
		return nil, err
	}
	toRT, err := r.graph.FindByTypeAndName(ctx, graph.RelationTypeName, RelTransitionTo)
	if err != nil {
		return nil, err
	}
	if _, err := r.graph.CreateRelation(ctx, fromRT.ID, ent.ID, fromStatusID); err != nil {
		return nil, err
	}
	if _, err := r.graph.CreateRelation(ctx, toRT.ID, ent.ID, toStatusID); err != nil {
		return nil, err
	}

	return &Transition{
		ID:                 ent.ID,
		Scope:              scope,
		FromStatusCode:     fromCode,
		ToStatusCode:       toCode,
		Label:              ent.Label,
		RequiredPermission: requiredPermission,
		RequiresOutcome:    requiresOutcome,
		Condition:          condition,
	}, nil
}

// UpdateTransition updates the mutable fields of a transition. From and to
// statuses are immutable; delete and recreate to rewire.
func (r *Repository) UpdateTransition(ctx context.Context, id int64, label, requiredPermission string, requiresOutcome bool, condition string) error {
	ent, err := r.graph.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if ent.EntityType != TransitionEntityType {
		return apperror.ErrNotFound.WithMessage(fmt.Sprintf("entity %d is not a workflow transition", id))
	}
	if _, err := r.graph.UpdateEntity(ctx, id, label, ent.SortOrder, ent.IsActive); err != nil {
		return err
	}
	if err := r.graph.SetProperties(ctx, id, map[string]string{
		propTransitionLabel:    label,
		propRequiredPermission: requiredPermission,
		propRequiresOutcome:    strconv.FormatBool(requiresOutcome),
	}); err != nil {
		return err
	}
	if condition == "" {
		return r.graph.DeleteProperty(ctx, id, propCondition)
	}
	return r.graph.SetProperty(ctx, id, propCondition, condition)
}

// DeleteTransition removes a transition entity. Its transition_from and
// transition_to relations go with it via cascade.
func (r *Repository) DeleteTransition(ctx context.Context, id int64) error {
	ent, err := r.graph.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if ent.EntityType != TransitionEntityType {
		return apperror.ErrNotFound.WithMessage(fmt.Sprintf("entity %d is not a workflow transition", id))
	}
	return r.graph.DeleteEntity(ctx, id)
}

// ListStatusesForScope returns the statuses of a scope ordered by the
// numeric order property, then by ID.
func (r *Repository) ListStatusesForScope(ctx context.Context, scope string) ([]*Status, error) {
	ents, err := r.graph.FindByType(ctx, StatusEntityType)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(ents))
	for i, e := range ents {
		ids[i] = e.ID
	}
	propsByID, err := r.graph.GetPropertiesForEntities(ctx, ids)
	if err != nil {
		return nil, err
	}

	var out []*Status
	for _, e := range ents {
		props := propsByID[e.ID]
		if props[propScope] != scope {
			continue
		}
		out = append(out, statusFromProps(e.ID, scope, e.Label, props))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// FindStatus returns the status of a scope with the given code.
func (r *Repository) FindStatus(ctx context.Context, scope, code string) (*Status, error) {
	name := fmt.Sprintf("%s.%s", scope, code)
	ent, err := r.graph.FindByTypeAndName(ctx, StatusEntityType, name)
	if err != nil {
		return nil, err
	}
	props, err := r.graph.GetProperties(ctx, ent.ID)
	if err != nil {
		return nil, err
	}
	return statusFromProps(ent.ID, scope, ent.Label, props), nil
}

// ListTransitionsForScope returns every transition of a scope.
func (r *Repository) ListTransitionsForScope(ctx context.Context, scope string) ([]*Transition, error) {
	ents, err := r.graph.FindByType(ctx, TransitionEntityType)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(ents))
	for i, e := range ents {
		ids[i] = e.ID
	}
	propsByID, err := r.graph.GetPropertiesForEntities(ctx, ids)
	if err != nil {
		return nil, err
	}

	var out []*Transition
	for _, e := range ents {
		props := propsByID[e.ID]
		if props[propScope] != scope {
			continue
		}
		out = append(out, transitionFromProps(e.ID, scope, e.Label, props))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListScopes returns every distinct workflow scope with status and
// transition counts, ordered by scope name.
func (r *Repository) ListScopes(ctx context.Context) ([]*Scope, error) {
	counts := map[string]*Scope{}

	for _, entityType := range []string{StatusEntityType, TransitionEntityType} {
		ents, err := r.graph.FindByType(ctx, entityType)
		if err != nil {
			return nil, err
		}
		ids := make([]int64, len(ents))
		for i, e := range ents {
			ids[i] = e.ID
		}
		propsByID, err := r.graph.GetPropertiesForEntities(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, e := range ents {
			scope := propsByID[e.ID][propScope]
			if scope == "" {
				continue
			}
			s, ok := counts[scope]
			if !ok {
				s = &Scope{Scope: scope}
				counts[scope] = s
			}
			if entityType == StatusEntityType {
				s.StatusCount++
			} else {
				s.TransitionCount++
			}
		}
	}

	out := make([]*Scope, 0, len(counts))
	for _, s := range counts {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Scope < out[j].Scope })
	return out, nil
}

func statusFromProps(id int64, scope, entityLabel string, props map[string]string) *Status {
	label := props[propLabel]
	if label == "" {
		label = entityLabel
	}
	order, _ := strconv.ParseInt(props[propOrder], 10, 64)
	return &Status{
		ID:         id,
		Scope:      scope,
		Code:       props[propStatusCode],
		Label:      label,
		Order:      order,
		IsInitial:  props[propIsInitial] == "true",
		IsTerminal: props[propIsTerminal] == "true",
	}
}

func transitionFromProps(id int64, scope, entityLabel string, props map[string]string) *Transition {
	label := props[propTransitionLabel]
	if label == "" {
		label = entityLabel
	}
	return &Transition{
		ID:                 id,
		Scope:              scope,
		FromStatusCode:     props[propFromStatusCode],
		ToStatusCode:       props[propToStatusCode],
		Label:              label,
		RequiredPermission: props[propRequiredPermission],
		RequiresOutcome:    props[propRequiresOutcome] == "true",
		Condition:          props[propCondition],
	}
}
