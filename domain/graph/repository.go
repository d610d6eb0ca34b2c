package graph

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/uptrace/bun"

	"github.com/ahlt-platform/ahlt/internal/database"
	"github.com/ahlt-platform/ahlt/pkg/apperror"
	"github.com/ahlt-platform/ahlt/pkg/logger"
)

// Repository handles database operations for entities, properties and relations.
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a new graph repository.
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("graph.repo")),
	}
}

// WithTx returns a repository bound to the given transaction. All other
// methods are safe to call on the returned value.
func (r *Repository) WithTx(tx bun.Tx) *Repository {
	return &Repository{db: tx, log: r.log}
}

// DB exposes the underlying bun.IDB so services can open transactions.
func (r *Repository) DB() bun.IDB {
	return r.db
}

// CreateEntity inserts a new entity with sort_order 0.
// Returns ErrConflict when an entity with the same (type, name) exists.
func (r *Repository) CreateEntity(ctx context.Context, entityType, name, label string) (*Entity, error) {
	return r.CreateEntityWithSort(ctx, entityType, name, label, 0)
}

// CreateEntityWithSort inserts a new entity with an explicit sort order.
// The label is stored exactly as given.
func (r *Repository) CreateEntityWithSort(ctx context.Context, entityType, name, label string, sortOrder int64) (*Entity, error) {
	ent := &Entity{
		EntityType: entityType,
		Name:       name,
		Label:      label,
		SortOrder:  sortOrder,
		IsActive:   true,
	}
	_, err := r.db.NewInsert().Model(ent).Returning("*").Exec(ctx)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperror.ErrConflict.
				WithMessage(fmt.Sprintf("entity %s:%s already exists", entityType, name)).
				WithInternal(err)
		}
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return ent, nil
}

// FindByID returns the entity with the given ID.
func (r *Repository) FindByID(ctx context.Context, id int64) (*Entity, error) {
	ent := new(Entity)
	err := r.db.NewSelect().Model(ent).Where("e.id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrNotFound.WithMessage(fmt.Sprintf("entity %d not found", id))
		}
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return ent, nil
}

// FindByType returns all entities of a type, ordered by sort_order then name.
func (r *Repository) FindByType(ctx context.Context, entityType string) ([]*Entity, error) {
	var ents []*Entity
	err := r.db.NewSelect().
		Model(&ents).
		Where("e.entity_type = ?", entityType).
		Order("e.sort_order ASC", "e.name ASC").
		Scan(ctx)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return ents, nil
}

// FindByTypeAndName returns the unique entity with the given type and name,
// or ErrNotFound.
func (r *Repository) FindByTypeAndName(ctx context.Context, entityType, name string) (*Entity, error) {
	ent := new(Entity)
	err := r.db.NewSelect().
		Model(ent).
		Where("e.entity_type = ?", entityType).
		Where("e.name = ?", name).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrNotFound.WithMessage(fmt.Sprintf("entity %s:%s not found", entityType, name))
		}
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return ent, nil
}

// UpdateEntity updates label, sort_order and is_active of an entity and
// bumps updated_at.
func (r *Repository) UpdateEntity(ctx context.Context, id int64, label string, sortOrder int64, isActive bool) (*Entity, error) {
	ent := new(Entity)
	err := r.db.NewUpdate().
		Model(ent).
		Set("label = ?", label).
		Set("sort_order = ?", sortOrder).
		Set("is_active = ?", isActive).
		Set("updated_at = now()").
		Where("id = ?", id).
		Returning("*").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrNotFound.WithMessage(fmt.Sprintf("entity %d not found", id))
		}
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return ent, nil
}

// DeleteEntity removes an entity. Properties and relations touching it are
// removed by ON DELETE CASCADE.
func (r *Repository) DeleteEntity(ctx context.Context, id int64) error {
	res, err := r.db.NewDelete().
		Model((*Entity)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.ErrNotFound.WithMessage(fmt.Sprintf("entity %d not found", id))
	}
	return nil
}

// CountByType returns the number of entities of a type.
func (r *Repository) CountByType(ctx context.Context, entityType string) (int, error) {
	count, err := r.db.NewSelect().
		Model((*Entity)(nil)).
		Where("entity_type = ?", entityType).
		Count(ctx)
	if err != nil {
		return 0, apperror.ErrDatabase.WithInternal(err)
	}
	return count, nil
}

// FindAll returns every entity ordered by ID.
func (r *Repository) FindAll(ctx context.Context) ([]*Entity, error) {
	var ents []*Entity
	err := r.db.NewSelect().Model(&ents).Order("e.id ASC").Scan(ctx)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return ents, nil
}

// FindByTypes returns entities whose type is in the given set, ordered by
// ID. An empty set returns every entity.
func (r *Repository) FindByTypes(ctx context.Context, entityTypes []string) ([]*Entity, error) {
	if len(entityTypes) == 0 {
		return r.FindAll(ctx)
	}
	var ents []*Entity
	err := r.db.NewSelect().
		Model(&ents).
		Where("e.entity_type IN (?)", bun.In(entityTypes)).
		Order("e.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return ents, nil
}

// ListEntityTypes returns the distinct entity types present in the store.
func (r *Repository) ListEntityTypes(ctx context.Context) ([]string, error) {
	var types []string
	err := r.db.NewSelect().
		Model((*Entity)(nil)).
		ColumnExpr("DISTINCT entity_type").
		OrderExpr("entity_type ASC").
		Scan(ctx, &types)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return types, nil
}

// ListPropertyKeys returns the distinct property keys in use across all
// entities, sorted.
func (r *Repository) ListPropertyKeys(ctx context.Context) ([]string, error) {
	var keys []string
	err := r.db.NewSelect().
		Model((*EntityProperty)(nil)).
		ColumnExpr("DISTINCT key").
		OrderExpr("key ASC").
		Scan(ctx, &keys)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return keys, nil
}

// SetProperty upserts a single property on an entity.
func (r *Repository) SetProperty(ctx context.Context, entityID int64, key, value string) error {
	prop := &EntityProperty{EntityID: entityID, Key: key, Value: value}
	_, err := r.db.NewInsert().
		Model(prop).
		On("CONFLICT (entity_id, key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Exec(ctx)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return apperror.ErrNotFound.WithMessage(fmt.Sprintf("entity %d not found", entityID)).WithInternal(err)
		}
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// SetProperties upserts a batch of properties on an entity.
func (r *Repository) SetProperties(ctx context.Context, entityID int64, props map[string]string) error {
	for key, value := range props {
		if err := r.SetProperty(ctx, entityID, key, value); err != nil {
			return err
		}
	}
	return nil
}

// GetProperty returns the value of one property, or ErrNotFound.
func (r *Repository) GetProperty(ctx context.Context, entityID int64, key string) (string, error) {
	prop := new(EntityProperty)
	err := r.db.NewSelect().
		Model(prop).
		Where("ep.entity_id = ?", entityID).
		Where("ep.key = ?", key).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", apperror.ErrNotFound.WithMessage(fmt.Sprintf("property %q not found on entity %d", key, entityID))
		}
		return "", apperror.ErrDatabase.WithInternal(err)
	}
	return prop.Value, nil
}

// GetProperties returns all properties of an entity as a map. An entity
// with no properties yields an empty map, not an error.
func (r *Repository) GetProperties(ctx context.Context, entityID int64) (map[string]string, error) {
	var props []EntityProperty
	err := r.db.NewSelect().
		Model(&props).
		Where("ep.entity_id = ?", entityID).
		Scan(ctx)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	out := make(map[string]string, len(props))
	for _, p := range props {
		out[p.Key] = p.Value
	}
	return out, nil
}

// GetPropertiesForEntities loads properties for a batch of entities in one
// query, keyed by entity ID. Used by the export path to avoid N+1 selects.
func (r *Repository) GetPropertiesForEntities(ctx context.Context, entityIDs []int64) (map[int64]map[string]string, error) {
	out := make(map[int64]map[string]string, len(entityIDs))
	if len(entityIDs) == 0 {
		return out, nil
	}
	var props []EntityProperty
	err := r.db.NewSelect().
		Model(&props).
		Where("ep.entity_id IN (?)", bun.In(entityIDs)).
		Scan(ctx)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	for _, p := range props {
		m, ok := out[p.EntityID]
		if !ok {
			m = make(map[string]string)
			out[p.EntityID] = m
		}
		m[p.Key] = p.Value
	}
	return out, nil
}

// DeleteProperty removes one property from an entity. Deleting a property
// that does not exist is not an error.
func (r *Repository) DeleteProperty(ctx context.Context, entityID int64, key string) error {
	_, err := r.db.NewDelete().
		Model((*EntityProperty)(nil)).
		Where("entity_id = ?", entityID).
		Where("key = ?", key).
		Exec(ctx)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// CreateRelation inserts a relation edge without checking for duplicates.
func (r *Repository) CreateRelation(ctx context.Context, relationTypeID, sourceID, targetID int64) (*Relation, error) {
	rel := &Relation{
		RelationTypeID: relationTypeID,
		SourceID:       sourceID,
		TargetID:       targetID,
	}
	_, err := r.db.NewInsert().Model(rel).Returning("*").Exec(ctx)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, apperror.ErrNotFound.WithMessage("relation endpoint or type not found").WithInternal(err)
		}
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return rel, nil
}

// CreateRelationUnique inserts a relation edge only when no identical
// (type, source, target) edge exists yet. Returns the existing edge
// otherwise, with created=false.
func (r *Repository) CreateRelationUnique(ctx context.Context, relationTypeID, sourceID, targetID int64) (*Relation, bool, error) {
	existing := new(Relation)
	err := r.db.NewSelect().
		Model(existing).
		Where("r.relation_type_id = ?", relationTypeID).
		Where("r.source_id = ?", sourceID).
		Where("r.target_id = ?", targetID).
		Limit(1).
		Scan(ctx)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, apperror.ErrDatabase.WithInternal(err)
	}
	rel, err := r.CreateRelation(ctx, relationTypeID, sourceID, targetID)
	if err != nil {
		return nil, false, err
	}
	return rel, true, nil
}

// FindRelationByID returns the relation with the given ID.
func (r *Repository) FindRelationByID(ctx context.Context, id int64) (*Relation, error) {
	rel := new(Relation)
	err := r.db.NewSelect().Model(rel).Where("r.id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrNotFound.WithMessage(fmt.Sprintf("relation %d not found", id))
		}
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return rel, nil
}

// DeleteRelation removes a relation by ID.
func (r *Repository) DeleteRelation(ctx context.Context, id int64) error {
	res, err := r.db.NewDelete().
		Model((*Relation)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.ErrNotFound.WithMessage(fmt.Sprintf("relation %d not found", id))
	}
	return nil
}

// DeleteRelationByTriple removes all edges matching (type, source, target).
// Returns the number of edges removed.
func (r *Repository) DeleteRelationByTriple(ctx context.Context, relationTypeID, sourceID, targetID int64) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*Relation)(nil)).
		Where("relation_type_id = ?", relationTypeID).
		Where("source_id = ?", sourceID).
		Where("target_id = ?", targetID).
		Exec(ctx)
	if err != nil {
		return 0, apperror.ErrDatabase.WithInternal(err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// DeleteAllFromSource removes every edge of the given type going out of the
// given source entity.
func (r *Repository) DeleteAllFromSource(ctx context.Context, relationTypeID, sourceID int64) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*Relation)(nil)).
		Where("relation_type_id = ?", relationTypeID).
		Where("source_id = ?", sourceID).
		Exec(ctx)
	if err != nil {
		return 0, apperror.ErrDatabase.WithInternal(err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// FindTargets returns the entities reachable from source via edges of the
// given type, ordered by sort_order then name.
func (r *Repository) FindTargets(ctx context.Context, relationTypeID, sourceID int64) ([]*Entity, error) {
	var ents []*Entity
	err := r.db.NewSelect().
		Model(&ents).
		Join("JOIN relations AS r ON r.target_id = e.id").
		Where("r.relation_type_id = ?", relationTypeID).
		Where("r.source_id = ?", sourceID).
		Order("e.sort_order ASC", "e.name ASC").
		Scan(ctx)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return ents, nil
}

// FindSources returns the entities that point at target via edges of the
// given type, ordered by sort_order then name.
func (r *Repository) FindSources(ctx context.Context, relationTypeID, targetID int64) ([]*Entity, error) {
	var ents []*Entity
	err := r.db.NewSelect().
		Model(&ents).
		Join("JOIN relations AS r ON r.source_id = e.id").
		Where("r.relation_type_id = ?", relationTypeID).
		Where("r.target_id = ?", targetID).
		Order("e.sort_order ASC", "e.name ASC").
		Scan(ctx)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return ents, nil
}

// FindRelations returns raw relation rows matching the given type and, when
// nonzero, source and target filters.
func (r *Repository) FindRelations(ctx context.Context, relationTypeID, sourceID, targetID int64) ([]*Relation, error) {
	q := r.db.NewSelect().Model((*Relation)(nil))
	if relationTypeID != 0 {
		q = q.Where("r.relation_type_id = ?", relationTypeID)
	}
	if sourceID != 0 {
		q = q.Where("r.source_id = ?", sourceID)
	}
	if targetID != 0 {
		q = q.Where("r.target_id = ?", targetID)
	}
	var rels []*Relation
	if err := q.Order("r.id ASC").Scan(ctx, &rels); err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return rels, nil
}

// AllRelations returns every relation row. Used by the export path.
func (r *Repository) AllRelations(ctx context.Context) ([]*Relation, error) {
	var rels []*Relation
	err := r.db.NewSelect().Model(&rels).Order("r.id ASC").Scan(ctx)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return rels, nil
}

// CountRelationsByType returns the number of edges of the given type.
func (r *Repository) CountRelationsByType(ctx context.Context, relationTypeID int64) (int, error) {
	count, err := r.db.NewSelect().
		Model((*Relation)(nil)).
		Where("relation_type_id = ?", relationTypeID).
		Count(ctx)
	if err != nil {
		return 0, apperror.ErrDatabase.WithInternal(err)
	}
	return count, nil
}

// CountRelationsTargeting returns the number of edges of the given type
// pointing at the given target entity.
func (r *Repository) CountRelationsTargeting(ctx context.Context, relationTypeID, targetID int64) (int, error) {
	count, err := r.db.NewSelect().
		Model((*Relation)(nil)).
		Where("relation_type_id = ?", relationTypeID).
		Where("target_id = ?", targetID).
		Count(ctx)
	if err != nil {
		return 0, apperror.ErrDatabase.WithInternal(err)
	}
	return count, nil
}

// SetRelationProperty upserts a property on a relation.
func (r *Repository) SetRelationProperty(ctx context.Context, relationID int64, key, value string) error {
	prop := &RelationProperty{RelationID: relationID, Key: key, Value: value}
	_, err := r.db.NewInsert().
		Model(prop).
		On("CONFLICT (relation_id, key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Exec(ctx)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return apperror.ErrNotFound.WithMessage(fmt.Sprintf("relation %d not found", relationID)).WithInternal(err)
		}
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// GetRelationProperties returns all properties of a relation as a map.
func (r *Repository) GetRelationProperties(ctx context.Context, relationID int64) (map[string]string, error) {
	var props []RelationProperty
	err := r.db.NewSelect().
		Model(&props).
		Where("rp.relation_id = ?", relationID).
		Scan(ctx)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	out := make(map[string]string, len(props))
	for _, p := range props {
		out[p.Key] = p.Value
	}
	return out, nil
}

// GetPropertiesForRelations loads relation properties in one query, keyed
// by relation ID.
func (r *Repository) GetPropertiesForRelations(ctx context.Context, relationIDs []int64) (map[int64]map[string]string, error) {
	out := make(map[int64]map[string]string, len(relationIDs))
	if len(relationIDs) == 0 {
		return out, nil
	}
	var props []RelationProperty
	err := r.db.NewSelect().
		Model(&props).
		Where("rp.relation_id IN (?)", bun.In(relationIDs)).
		Scan(ctx)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	for _, p := range props {
		m, ok := out[p.RelationID]
		if !ok {
			m = make(map[string]string)
			out[p.RelationID] = m
		}
		m[p.Key] = p.Value
	}
	return out, nil
}
