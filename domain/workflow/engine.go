package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ahlt-platform/ahlt/pkg/apperror"
	"github.com/ahlt-platform/ahlt/pkg/logger"
)

// Engine validates and enumerates workflow transitions. It is a pure
// validator: a successful validation performs no mutation, callers write
// the new status property themselves.
type Engine struct {
	repo *Repository
	log  *slog.Logger
}

// NewEngine creates a workflow engine.
func NewEngine(repo *Repository, log *slog.Logger) *Engine {
	return &Engine{
		repo: repo,
		log:  log.With(logger.Scope("workflow.engine")),
	}
}

// ValidateTransition checks whether the caller may move an entity of the
// given scope from currentStatus to targetStatus. It distinguishes the
// failure reasons: no_such_transition when no matching edge exists,
// permission_denied when the caller lacks the required permission, and
// condition_not_met when the transition's condition evaluates false against
// the entity's properties.
func (e *Engine) ValidateTransition(ctx context.Context, scope, currentStatus, targetStatus string, perms PermissionSet, entityProps map[string]string) (*Transition, error) {
	transitions, err := e.transitionsFrom(ctx, scope, currentStatus)
	if err != nil {
		return nil, err
	}

	var match *Transition
	for _, t := range transitions {
		if t.ToStatusCode == targetStatus {
			match = t
			break
		}
	}
	if match == nil {
		return nil, apperror.ErrNoSuchTransition.WithMessage(
			fmt.Sprintf("no transition %s -> %s for %s", currentStatus, targetStatus, scope))
	}

	if match.RequiredPermission != "" && !perms.Has(match.RequiredPermission) {
		return nil, apperror.ErrPermissionDenied.WithMessage(
			fmt.Sprintf("transition %s -> %s requires permission %s", currentStatus, targetStatus, match.RequiredPermission))
	}

	if !conditionHolds(match.Condition, entityProps) {
		return nil, apperror.ErrConditionNotMet.WithMessage(
			fmt.Sprintf("transition %s -> %s condition not met: %s", currentStatus, targetStatus, match.Condition))
	}

	return match, nil
}

// FindAvailableTransitions returns every transition leaving currentStatus
// whose permission gate passes and whose condition holds for the given
// entity properties.
func (e *Engine) FindAvailableTransitions(ctx context.Context, scope, currentStatus string, perms PermissionSet, entityProps map[string]string) ([]AvailableTransition, error) {
	transitions, err := e.transitionsFrom(ctx, scope, currentStatus)
	if err != nil {
		return nil, err
	}

	available := make([]AvailableTransition, 0, len(transitions))
	for _, t := range filterTransitions(transitions, perms, entityProps) {
		available = append(available, AvailableTransition{
			ToStatusCode:    t.ToStatusCode,
			Label:           t.Label,
			RequiresOutcome: t.RequiresOutcome,
		})
	}
	return available, nil
}

func (e *Engine) transitionsFrom(ctx context.Context, scope, currentStatus string) ([]*Transition, error) {
	all, err := e.repo.ListTransitionsForScope(ctx, scope)
	if err != nil {
		return nil, err
	}
	var out []*Transition
	for _, t := range all {
		if t.FromStatusCode == currentStatus {
			out = append(out, t)
		}
	}
	return out, nil
}

// filterTransitions keeps transitions whose permission and condition gates
// both pass. Split out of the engine for direct testing.
func filterTransitions(transitions []*Transition, perms PermissionSet, entityProps map[string]string) []*Transition {
	var out []*Transition
	for _, t := range transitions {
		if t.RequiredPermission != "" && !perms.Has(t.RequiredPermission) {
			continue
		}
		if !conditionHolds(t.Condition, entityProps) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// conditionHolds evaluates a "key=value" condition against entity
// properties. An empty or malformed condition (no "=") always holds. A
// missing property compares as the empty string.
func conditionHolds(condition string, entityProps map[string]string) bool {
	if condition == "" {
		return true
	}
	key, want, ok := strings.Cut(condition, "=")
	if !ok {
		return true
	}
	return entityProps[key] == want
}
