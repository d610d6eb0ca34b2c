package graph

import (
	"context"
	"log/slog"

	"github.com/ahlt-platform/ahlt/pkg/apperror"
	"github.com/ahlt-platform/ahlt/pkg/logger"
)

// Service handles business logic for graph operations. It resolves relation
// types by name so callers never deal in relation_type entity IDs.
type Service struct {
	repo *Repository
	log  *slog.Logger
}

// NewService creates a new graph service.
func NewService(repo *Repository, log *slog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With(logger.Scope("graph.svc")),
	}
}

// Repo exposes the underlying repository for other domains that need raw
// primitives (workflow definitions, import/export).
func (s *Service) Repo() *Repository {
	return s.repo
}

// CreateEntity creates an entity. An empty label defaults to the name.
func (s *Service) CreateEntity(ctx context.Context, entityType, name, label string, sortOrder int64) (*Entity, error) {
	if entityType == "" || name == "" {
		return nil, apperror.ErrValidation.WithMessage("entity_type and name are required")
	}
	if label == "" {
		label = name
	}
	return s.repo.CreateEntityWithSort(ctx, entityType, name, label, sortOrder)
}

// GetEntity returns an entity with its properties.
func (s *Service) GetEntity(ctx context.Context, id int64) (*Entity, map[string]string, error) {
	ent, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	props, err := s.repo.GetProperties(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return ent, props, nil
}

// ListEntities returns all entities of a type.
func (s *Service) ListEntities(ctx context.Context, entityType string) ([]*Entity, error) {
	return s.repo.FindByType(ctx, entityType)
}

// UpdateEntity updates the mutable fields of an entity.
func (s *Service) UpdateEntity(ctx context.Context, id int64, label string, sortOrder int64, isActive bool) (*Entity, error) {
	return s.repo.UpdateEntity(ctx, id, label, sortOrder, isActive)
}

// DeleteEntity removes an entity and, via cascade, its properties and edges.
func (s *Service) DeleteEntity(ctx context.Context, id int64) error {
	return s.repo.DeleteEntity(ctx, id)
}

// SetProperties upserts a batch of properties on an entity.
func (s *Service) SetProperties(ctx context.Context, entityID int64, props map[string]string) error {
	if _, err := s.repo.FindByID(ctx, entityID); err != nil {
		return err
	}
	return s.repo.SetProperties(ctx, entityID, props)
}

// DeleteProperty removes a property from an entity.
func (s *Service) DeleteProperty(ctx context.Context, entityID int64, key string) error {
	return s.repo.DeleteProperty(ctx, entityID, key)
}

// ResolveRelationType finds the relation_type entity with the given name.
func (s *Service) ResolveRelationType(ctx context.Context, name string) (*Entity, error) {
	return s.repo.FindByTypeAndName(ctx, RelationTypeName, name)
}

// EnsureRelationType finds or creates the relation_type entity with the
// given name.
func (s *Service) EnsureRelationType(ctx context.Context, name string) (*Entity, error) {
	ent, err := s.repo.FindByTypeAndName(ctx, RelationTypeName, name)
	if err == nil {
		return ent, nil
	}
	if !apperror.IsCode(err, "not_found") {
		return nil, err
	}
	ent, err = s.repo.CreateEntity(ctx, RelationTypeName, name, name)
	if err == nil {
		return ent, nil
	}
	// Lost a create race: the row exists now, read it back.
	if apperror.IsCode(err, "conflict") {
		return s.repo.FindByTypeAndName(ctx, RelationTypeName, name)
	}
	return nil, err
}

// Relate creates an edge of the named type between two entities, allowing
// duplicate edges.
func (s *Service) Relate(ctx context.Context, relationType string, sourceID, targetID int64) (*Relation, error) {
	rt, err := s.EnsureRelationType(ctx, relationType)
	if err != nil {
		return nil, err
	}
	return s.repo.CreateRelation(ctx, rt.ID, sourceID, targetID)
}

// RelateUnique creates an edge of the named type unless an identical one
// already exists. The bool reports whether a new edge was inserted.
func (s *Service) RelateUnique(ctx context.Context, relationType string, sourceID, targetID int64) (*Relation, bool, error) {
	rt, err := s.EnsureRelationType(ctx, relationType)
	if err != nil {
		return nil, false, err
	}
	return s.repo.CreateRelationUnique(ctx, rt.ID, sourceID, targetID)
}

// Unrelate removes all edges matching (type name, source, target).
func (s *Service) Unrelate(ctx context.Context, relationType string, sourceID, targetID int64) (int64, error) {
	rt, err := s.ResolveRelationType(ctx, relationType)
	if err != nil {
		return 0, err
	}
	return s.repo.DeleteRelationByTriple(ctx, rt.ID, sourceID, targetID)
}

// Targets returns the entities the source points at via the named relation.
func (s *Service) Targets(ctx context.Context, relationType string, sourceID int64) ([]*Entity, error) {
	rt, err := s.ResolveRelationType(ctx, relationType)
	if err != nil {
		return nil, err
	}
	return s.repo.FindTargets(ctx, rt.ID, sourceID)
}

// Sources returns the entities pointing at the target via the named relation.
func (s *Service) Sources(ctx context.Context, relationType string, targetID int64) ([]*Entity, error) {
	rt, err := s.ResolveRelationType(ctx, relationType)
	if err != nil {
		return nil, err
	}
	return s.repo.FindSources(ctx, rt.ID, targetID)
}
