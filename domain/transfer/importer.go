package transfer

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/ahlt-platform/ahlt/domain/graph"
	"github.com/ahlt-platform/ahlt/internal/database"
	"github.com/ahlt-platform/ahlt/pkg/apperror"
	"github.com/ahlt-platform/ahlt/pkg/logger"
)

// Importer merges an ImportPayload into the graph inside one transaction.
type Importer struct {
	db    bun.IDB
	graph *graph.Repository
	log   *slog.Logger
}

// NewImporter creates an importer.
func NewImporter(db bun.IDB, g *graph.Repository, log *slog.Logger) *Importer {
	return &Importer{
		db:    db,
		graph: g,
		log:   log.With(logger.Scope("transfer.import")),
	}
}

// Import runs a two-phase merge: all entities first, then all relations, so
// relations may reference entities that appear later in the same payload.
// Item errors are accumulated in the result without aborting the batch. The
// single exception is fail mode, where the first entity conflict rolls the
// whole transaction back; relation errors never abort, even then.
func (im *Importer) Import(ctx context.Context, payload *ImportPayload) (*ImportResult, error) {
	if !payload.ConflictMode.Valid() {
		return nil, apperror.ErrBadRequest.WithMessage("conflict_mode must be skip, upsert or fail")
	}
	mode := payload.ConflictMode
	if mode == "" {
		mode = ConflictSkip
	}

	runID := uuid.NewString()
	log := im.log.With(slog.String("import_run", runID))
	log.Info("starting import",
		slog.String("conflict_mode", string(mode)),
		slog.Int("entities", len(payload.Entities)),
		slog.Int("relations", len(payload.Relations)),
	)

	tx, err := database.BeginSafeTx(ctx, im.db)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	defer tx.Rollback()

	g := im.graph.WithTx(tx.Tx)
	result := &ImportResult{Errors: []ImportError{}}

	for i := range payload.Entities {
		ent := &payload.Entities[i]
		outcome, err := importEntity(ctx, g, ent, mode)
		if err != nil {
			result.Errors = append(result.Errors, importError(ent, err))
			if mode == ConflictFail && apperror.IsCode(err, "conflict") {
				if rbErr := tx.Rollback(); rbErr != nil {
					return nil, apperror.ErrDatabase.WithInternal(rbErr)
				}
				result.Aborted = true
				log.Warn("import aborted on entity conflict",
					slog.String("entity", EntityRef(ent.EntityType, ent.Name)))
				return result, nil
			}
			continue
		}
		switch outcome {
		case outcomeCreated:
			result.Created++
		case outcomeUpdated:
			result.Updated++
		case outcomeSkipped:
			result.Skipped++
		}
	}

	for i := range payload.Relations {
		rel := &payload.Relations[i]
		if err := importRelation(ctx, g, rel); err != nil {
			result.Errors = append(result.Errors, importError(rel, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}

	log.Info("import finished",
		slog.Int("created", result.Created),
		slog.Int("updated", result.Updated),
		slog.Int("skipped", result.Skipped),
		slog.Int("errors", len(result.Errors)),
	)
	return result, nil
}

type entityOutcome int

const (
	outcomeCreated entityOutcome = iota
	outcomeUpdated
	outcomeSkipped
)

func importEntity(ctx context.Context, g *graph.Repository, ent *EntityImport, mode ConflictMode) (entityOutcome, error) {
	existing, err := g.FindByTypeAndName(ctx, ent.EntityType, ent.Name)
	switch {
	case err == nil:
		switch mode {
		case ConflictSkip:
			return outcomeSkipped, nil
		case ConflictUpsert:
			return outcomeUpdated, upsertEntity(ctx, g, existing.ID, ent)
		default:
			return 0, apperror.ErrConflict.WithMessage(
				"entity already exists: " + EntityRef(ent.EntityType, ent.Name))
		}
	case apperror.IsCode(err, "not_found"):
		return outcomeCreated, insertEntity(ctx, g, ent)
	default:
		return 0, err
	}
}

func insertEntity(ctx context.Context, g *graph.Repository, ent *EntityImport) error {
	created, err := g.CreateEntityWithSort(ctx, ent.EntityType, ent.Name, ent.Label, ent.SortOrder)
	if err != nil {
		return err
	}
	return g.SetProperties(ctx, created.ID, ent.Properties)
}

// upsertEntity updates label and sort order and replaces every property
// with the imported set.
func upsertEntity(ctx context.Context, g *graph.Repository, existingID int64, ent *EntityImport) error {
	current, err := g.FindByID(ctx, existingID)
	if err != nil {
		return err
	}
	if _, err := g.UpdateEntity(ctx, existingID, ent.Label, ent.SortOrder, current.IsActive); err != nil {
		return err
	}
	existing, err := g.GetProperties(ctx, existingID)
	if err != nil {
		return err
	}
	for key := range existing {
		if err := g.DeleteProperty(ctx, existingID, key); err != nil {
			return err
		}
	}
	return g.SetProperties(ctx, existingID, ent.Properties)
}

// importRelation resolves the "type:name" references and inserts the edge
// unless an identical one already exists; duplicates are skipped silently.
// A missing endpoint or relation type is a referential-integrity error for
// this item only.
func importRelation(ctx context.Context, g *graph.Repository, rel *RelationImport) error {
	rt, err := g.FindByTypeAndName(ctx, graph.RelationTypeName, rel.RelationType)
	if err != nil {
		if apperror.IsCode(err, "not_found") {
			return apperror.ErrReferentialIntegrity.WithMessage("unknown relation type: " + rel.RelationType)
		}
		return err
	}

	sourceID, err := resolveRef(ctx, g, rel.Source)
	if err != nil {
		return err
	}
	targetID, err := resolveRef(ctx, g, rel.Target)
	if err != nil {
		return err
	}

	edge, created, err := g.CreateRelationUnique(ctx, rt.ID, sourceID, targetID)
	if err != nil {
		return err
	}
	if !created {
		return nil
	}
	for key, value := range rel.Properties {
		if err := g.SetRelationProperty(ctx, edge.ID, key, value); err != nil {
			return err
		}
	}
	return nil
}

func resolveRef(ctx context.Context, g *graph.Repository, ref string) (int64, error) {
	entityType, name, err := ParseRef(ref)
	if err != nil {
		return 0, apperror.ErrBadRequest.WithMessage(err.Error())
	}
	ent, err := g.FindByTypeAndName(ctx, entityType, name)
	if err != nil {
		if apperror.IsCode(err, "not_found") {
			return 0, apperror.ErrReferentialIntegrity.WithMessage("entity not found: " + ref)
		}
		return 0, err
	}
	return ent.ID, nil
}

func importError(item any, err error) ImportError {
	raw, marshalErr := json.Marshal(item)
	if marshalErr != nil {
		raw = []byte("null")
	}
	return ImportError{Item: raw, Reason: err.Error()}
}
