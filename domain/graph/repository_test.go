package graph

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahlt-platform/ahlt/internal/testutil"
	"github.com/ahlt-platform/ahlt/pkg/apperror"
)

func setupRepo(t *testing.T) (*Repository, func()) {
	t.Helper()
	testutil.RequireDB(t)

	ctx := context.Background()
	tdb, err := testutil.SetupTestDB(ctx, "graph")
	require.NoError(t, err)

	repo := NewRepository(tdb.DB, slog.Default())
	return repo, tdb.Close
}

func TestEntityLifecycle(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	ent, err := repo.CreateEntity(ctx, "priority", "high", "High")
	require.NoError(t, err)
	assert.NotZero(t, ent.ID)
	assert.Equal(t, "priority", ent.EntityType)
	assert.Equal(t, "High", ent.Label)
	assert.True(t, ent.IsActive)

	// The store keeps the label verbatim, empty included.
	low, err := repo.CreateEntity(ctx, "priority", "low", "")
	require.NoError(t, err)
	assert.Equal(t, "", low.Label)

	// Duplicate (type, name) conflicts.
	_, err = repo.CreateEntity(ctx, "priority", "high", "High again")
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, "conflict"))

	// Same name under another type is fine.
	_, err = repo.CreateEntity(ctx, "severity", "high", "High severity")
	require.NoError(t, err)

	found, err := repo.FindByTypeAndName(ctx, "priority", "high")
	require.NoError(t, err)
	assert.Equal(t, ent.ID, found.ID)

	_, err = repo.FindByTypeAndName(ctx, "priority", "nope")
	assert.True(t, apperror.IsCode(err, "not_found"))

	all, err := repo.FindByType(ctx, "priority")
	require.NoError(t, err)
	require.Len(t, all, 2)
	// sort_order ties broken by name
	assert.Equal(t, "high", all[0].Name)
	assert.Equal(t, "low", all[1].Name)

	count, err := repo.CountByType(ctx, "priority")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	updated, err := repo.UpdateEntity(ctx, ent.ID, "Highest", 5, false)
	require.NoError(t, err)
	assert.Equal(t, "Highest", updated.Label)
	assert.EqualValues(t, 5, updated.SortOrder)
	assert.False(t, updated.IsActive)

	require.NoError(t, repo.DeleteEntity(ctx, ent.ID))
	err = repo.DeleteEntity(ctx, ent.ID)
	assert.True(t, apperror.IsCode(err, "not_found"))
}

func TestEntityWithSortOrder(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	for _, tc := range []struct {
		name string
		sort int64
	}{
		{"third", 30},
		{"first", 10},
		{"second", 20},
	} {
		_, err := repo.CreateEntityWithSort(ctx, "step", tc.name, "", tc.sort)
		require.NoError(t, err)
	}

	steps, err := repo.FindByType(ctx, "step")
	require.NoError(t, err)
	require.Len(t, steps, 3)
	assert.Equal(t, "first", steps[0].Name)
	assert.Equal(t, "second", steps[1].Name)
	assert.Equal(t, "third", steps[2].Name)
}

func TestPropertyUpsert(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	ent, err := repo.CreateEntity(ctx, "document", "charter", "")
	require.NoError(t, err)

	require.NoError(t, repo.SetProperty(ctx, ent.ID, "status", "draft"))
	require.NoError(t, repo.SetProperty(ctx, ent.ID, "status", "review"))
	require.NoError(t, repo.SetProperty(ctx, ent.ID, "owner", "alice"))

	val, err := repo.GetProperty(ctx, ent.ID, "status")
	require.NoError(t, err)
	assert.Equal(t, "review", val)

	_, err = repo.GetProperty(ctx, ent.ID, "missing")
	assert.True(t, apperror.IsCode(err, "not_found"))

	props, err := repo.GetProperties(ctx, ent.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"status": "review", "owner": "alice"}, props)

	// Properties on a missing entity map the FK violation to not_found.
	err = repo.SetProperty(ctx, 999999, "k", "v")
	assert.True(t, apperror.IsCode(err, "not_found"))

	// Deleting a property is idempotent.
	require.NoError(t, repo.DeleteProperty(ctx, ent.ID, "owner"))
	require.NoError(t, repo.DeleteProperty(ctx, ent.ID, "owner"))

	props, err = repo.GetProperties(ctx, ent.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"status": "review"}, props)

	// Cascade: deleting the entity removes its properties.
	require.NoError(t, repo.DeleteEntity(ctx, ent.ID))
	props, err = repo.GetProperties(ctx, ent.ID)
	require.NoError(t, err)
	assert.Empty(t, props)
}

func TestRelations(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	rt, err := repo.CreateEntity(ctx, RelationTypeName, "depends_on", "")
	require.NoError(t, err)
	a, err := repo.CreateEntity(ctx, "task", "a", "")
	require.NoError(t, err)
	b, err := repo.CreateEntity(ctx, "task", "b", "")
	require.NoError(t, err)

	// Plain create allows duplicate edges.
	r1, err := repo.CreateRelation(ctx, rt.ID, a.ID, b.ID)
	require.NoError(t, err)
	r2, err := repo.CreateRelation(ctx, rt.ID, a.ID, b.ID)
	require.NoError(t, err)
	assert.NotEqual(t, r1.ID, r2.ID)

	// Unique create returns the existing edge.
	existing, created, err := repo.CreateRelationUnique(ctx, rt.ID, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, r1.ID, existing.ID)

	// And inserts when no edge matches.
	_, created, err = repo.CreateRelationUnique(ctx, rt.ID, b.ID, a.ID)
	require.NoError(t, err)
	assert.True(t, created)

	targets, err := repo.FindTargets(ctx, rt.ID, a.ID)
	require.NoError(t, err)
	require.NotEmpty(t, targets)
	assert.Equal(t, b.ID, targets[0].ID)

	sources, err := repo.FindSources(ctx, rt.ID, b.ID)
	require.NoError(t, err)
	require.NotEmpty(t, sources)
	assert.Equal(t, a.ID, sources[0].ID)

	// Dangling endpoints surface as not_found.
	_, err = repo.CreateRelation(ctx, rt.ID, a.ID, 999999)
	assert.True(t, apperror.IsCode(err, "not_found"))

	n, err := repo.DeleteRelationByTriple(ctx, rt.ID, a.ID, b.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = repo.DeleteAllFromSource(ctx, rt.ID, b.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	err = repo.DeleteRelation(ctx, 999999)
	assert.True(t, apperror.IsCode(err, "not_found"))
}

func TestRelationProperties(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	rt, err := repo.CreateEntity(ctx, RelationTypeName, "annotated", "")
	require.NoError(t, err)
	a, err := repo.CreateEntity(ctx, "node", "a", "")
	require.NoError(t, err)
	b, err := repo.CreateEntity(ctx, "node", "b", "")
	require.NoError(t, err)

	rel, err := repo.CreateRelation(ctx, rt.ID, a.ID, b.ID)
	require.NoError(t, err)

	require.NoError(t, repo.SetRelationProperty(ctx, rel.ID, "weight", "1"))
	require.NoError(t, repo.SetRelationProperty(ctx, rel.ID, "weight", "2"))

	props, err := repo.GetRelationProperties(ctx, rel.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"weight": "2"}, props)

	// Deleting either endpoint cascades through the relation to its props.
	require.NoError(t, repo.DeleteEntity(ctx, b.ID))
	props, err = repo.GetRelationProperties(ctx, rel.ID)
	require.NoError(t, err)
	assert.Empty(t, props)
}

func TestServiceCreateEntityDefaultsLabel(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	svc := NewService(repo, slog.Default())

	ent, err := svc.CreateEntity(ctx, "priority", "low", "", 0)
	require.NoError(t, err)
	assert.Equal(t, "low", ent.Label)

	ent, err = svc.CreateEntity(ctx, "priority", "high", "High", 0)
	require.NoError(t, err)
	assert.Equal(t, "High", ent.Label)
}

func TestServiceEnsureRelationType(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	svc := NewService(repo, slog.Default())

	rt1, err := svc.EnsureRelationType(ctx, "links_to")
	require.NoError(t, err)
	rt2, err := svc.EnsureRelationType(ctx, "links_to")
	require.NoError(t, err)
	assert.Equal(t, rt1.ID, rt2.ID)

	a, err := repo.CreateEntity(ctx, "page", "a", "")
	require.NoError(t, err)
	b, err := repo.CreateEntity(ctx, "page", "b", "")
	require.NoError(t, err)

	_, err = svc.Relate(ctx, "links_to", a.ID, b.ID)
	require.NoError(t, err)

	targets, err := svc.Targets(ctx, "links_to", a.ID)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, b.ID, targets[0].ID)

	n, err := svc.Unrelate(ctx, "links_to", a.ID, b.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
