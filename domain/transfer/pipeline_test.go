package transfer

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahlt-platform/ahlt/domain/graph"
	"github.com/ahlt-platform/ahlt/internal/testutil"
)

type pipeline struct {
	graph    *graph.Repository
	exporter *Exporter
	importer *Importer
}

func setupPipeline(t *testing.T) (*pipeline, func()) {
	t.Helper()
	testutil.RequireDB(t)

	ctx := context.Background()
	tdb, err := testutil.SetupTestDB(ctx, "transfer")
	require.NoError(t, err)

	log := slog.Default()
	g := graph.NewRepository(tdb.DB, log)
	return &pipeline{
		graph:    g,
		exporter: NewExporter(g, log),
		importer: NewImporter(tdb.DB, g, log),
	}, tdb.Close
}

func samplePayload(mode ConflictMode) *ImportPayload {
	return &ImportPayload{
		ConflictMode: mode,
		Entities: []EntityImport{
			{EntityType: "relation_type", Name: "member_of", Label: "Member of"},
			{EntityType: "committee", Name: "budget", Label: "Budget", SortOrder: 1,
				Properties: map[string]string{"status": "active"}},
			{EntityType: "user", Name: "alice", Label: "Alice"},
		},
		Relations: []RelationImport{
			{RelationType: "member_of", Source: "user:alice", Target: "committee:budget",
				Properties: map[string]string{"role": "chair"}},
		},
	}
}

func TestImportPreservesEmptyLabel(t *testing.T) {
	p, cleanup := setupPipeline(t)
	defer cleanup()
	ctx := context.Background()

	payload := &ImportPayload{
		Entities: []EntityImport{
			{EntityType: "committee", Name: "audit", Label: ""},
		},
	}
	result, err := p.importer.Import(ctx, payload)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)

	ent, err := p.graph.FindByTypeAndName(ctx, "committee", "audit")
	require.NoError(t, err)
	assert.Equal(t, "", ent.Label)

	// Upsert keeps the label verbatim as well.
	payload.ConflictMode = ConflictUpsert
	result, err = p.importer.Import(ctx, payload)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)

	ent, err = p.graph.FindByTypeAndName(ctx, "committee", "audit")
	require.NoError(t, err)
	assert.Equal(t, "", ent.Label)
}

func TestImportExportRoundTrip(t *testing.T) {
	p, cleanup := setupPipeline(t)
	defer cleanup()
	ctx := context.Background()

	result, err := p.importer.Import(ctx, samplePayload(ConflictSkip))
	require.NoError(t, err)
	assert.Equal(t, 3, result.Created)
	assert.Empty(t, result.Errors)

	payload, err := p.exporter.Export(ctx, nil)
	require.NoError(t, err)

	byRef := map[string]EntityExport{}
	for _, e := range payload.Entities {
		byRef[EntityRef(e.EntityType, e.Name)] = e
	}
	require.Contains(t, byRef, "committee:budget")
	assert.Equal(t, "active", byRef["committee:budget"].Properties["status"])
	assert.EqualValues(t, 1, byRef["committee:budget"].SortOrder)

	var member *RelationExport
	for i := range payload.Relations {
		if payload.Relations[i].RelationType == "member_of" {
			member = &payload.Relations[i]
		}
	}
	require.NotNil(t, member)
	assert.Equal(t, "user:alice", member.Source)
	assert.Equal(t, "committee:budget", member.Target)
	assert.Equal(t, map[string]string{"role": "chair"}, member.Properties)
}

func TestImportForwardReferences(t *testing.T) {
	p, cleanup := setupPipeline(t)
	defer cleanup()
	ctx := context.Background()

	// The relation references entities that appear later in the payload.
	payload := &ImportPayload{
		Relations: []RelationImport{
			{RelationType: "links", Source: "page:a", Target: "page:b"},
		},
		Entities: []EntityImport{
			{EntityType: "page", Name: "b", Label: "B"},
			{EntityType: "relation_type", Name: "links", Label: "Links"},
			{EntityType: "page", Name: "a", Label: "A"},
		},
	}

	result, err := p.importer.Import(ctx, payload)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Created)
	assert.Empty(t, result.Errors)
}

func TestImportSkipLeavesExistingUntouched(t *testing.T) {
	p, cleanup := setupPipeline(t)
	defer cleanup()
	ctx := context.Background()

	_, err := p.importer.Import(ctx, samplePayload(ConflictSkip))
	require.NoError(t, err)

	second := samplePayload(ConflictSkip)
	second.Entities[1].Label = "Renamed"
	second.Entities[1].Properties = map[string]string{"status": "archived"}

	result, err := p.importer.Import(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Created)
	assert.Equal(t, 3, result.Skipped)

	ent, err := p.graph.FindByTypeAndName(ctx, "committee", "budget")
	require.NoError(t, err)
	assert.Equal(t, "Budget", ent.Label)
	props, err := p.graph.GetProperties(ctx, ent.ID)
	require.NoError(t, err)
	assert.Equal(t, "active", props["status"])
}

func TestImportUpsertReplacesProperties(t *testing.T) {
	p, cleanup := setupPipeline(t)
	defer cleanup()
	ctx := context.Background()

	_, err := p.importer.Import(ctx, samplePayload(ConflictSkip))
	require.NoError(t, err)

	second := samplePayload(ConflictUpsert)
	second.Entities[1].Label = "Renamed"
	second.Entities[1].SortOrder = 9
	second.Entities[1].Properties = map[string]string{"owner": "alice"}

	result, err := p.importer.Import(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Updated)

	ent, err := p.graph.FindByTypeAndName(ctx, "committee", "budget")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", ent.Label)
	assert.EqualValues(t, 9, ent.SortOrder)

	// Old properties are gone, only the imported set remains.
	props, err := p.graph.GetProperties(ctx, ent.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"owner": "alice"}, props)
}

func TestImportFailModeAbortsOnEntityConflictOnly(t *testing.T) {
	p, cleanup := setupPipeline(t)
	defer cleanup()
	ctx := context.Background()

	_, err := p.importer.Import(ctx, samplePayload(ConflictSkip))
	require.NoError(t, err)

	// Entity conflict under fail mode rolls everything back, including
	// entities imported earlier in the same batch.
	payload := &ImportPayload{
		ConflictMode: ConflictFail,
		Entities: []EntityImport{
			{EntityType: "committee", Name: "newone", Label: "New One"},
			{EntityType: "committee", Name: "budget", Label: "Clash"},
		},
	}
	result, err := p.importer.Import(ctx, payload)
	require.NoError(t, err)
	assert.True(t, result.Aborted)
	require.Len(t, result.Errors, 1)

	_, err = p.graph.FindByTypeAndName(ctx, "committee", "newone")
	assert.Error(t, err, "rolled-back entity must not exist")

	// Relation errors do not abort, even in fail mode.
	payload = &ImportPayload{
		ConflictMode: ConflictFail,
		Entities: []EntityImport{
			{EntityType: "committee", Name: "other", Label: "Other"},
		},
		Relations: []RelationImport{
			{RelationType: "member_of", Source: "user:ghost", Target: "committee:other"},
			{RelationType: "no_such_type", Source: "user:alice", Target: "committee:other"},
		},
	}
	result, err = p.importer.Import(ctx, payload)
	require.NoError(t, err)
	assert.False(t, result.Aborted)
	assert.Equal(t, 1, result.Created)
	assert.Len(t, result.Errors, 2)

	_, err = p.graph.FindByTypeAndName(ctx, "committee", "other")
	assert.NoError(t, err, "entity committed despite relation errors")
}

func TestImportDuplicateRelationsSkippedSilently(t *testing.T) {
	p, cleanup := setupPipeline(t)
	defer cleanup()
	ctx := context.Background()

	_, err := p.importer.Import(ctx, samplePayload(ConflictSkip))
	require.NoError(t, err)

	// Re-importing the same relation adds no edge and reports no error.
	result, err := p.importer.Import(ctx, samplePayload(ConflictSkip))
	require.NoError(t, err)
	assert.Empty(t, result.Errors)

	rt, err := p.graph.FindByTypeAndName(ctx, graph.RelationTypeName, "member_of")
	require.NoError(t, err)
	n, err := p.graph.CountRelationsByType(ctx, rt.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestExportTypeFilterDropsBoundaryRelations(t *testing.T) {
	p, cleanup := setupPipeline(t)
	defer cleanup()
	ctx := context.Background()

	_, err := p.importer.Import(ctx, samplePayload(ConflictSkip))
	require.NoError(t, err)

	// Only users exported: the member_of relation crosses the boundary and
	// must be dropped.
	payload, err := p.exporter.Export(ctx, []string{"user"})
	require.NoError(t, err)
	require.Len(t, payload.Entities, 1)
	assert.Equal(t, "alice", payload.Entities[0].Name)
	assert.Empty(t, payload.Relations)

	// Exporting both endpoint types keeps it.
	payload, err = p.exporter.Export(ctx, []string{"user", "committee", "relation_type"})
	require.NoError(t, err)
	found := false
	for _, r := range payload.Relations {
		if r.RelationType == "member_of" {
			found = true
		}
	}
	assert.True(t, found)
}
