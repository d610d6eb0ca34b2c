package transfer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportSQLOrderAndEscaping(t *testing.T) {
	payload := &ExportPayload{
		Entities: []EntityExport{
			{EntityType: "committee", Name: "o'brien", Label: "O'Brien's", SortOrder: 1,
				Properties: map[string]string{"note": "it's quoted"}},
		},
		Relations: []RelationExport{
			{RelationType: "member_of", Source: "user:alice", Target: "committee:o'brien",
				Properties: map[string]string{"role": "chair"}},
		},
	}

	script := ExportSQL(payload)

	// Single quotes are doubled.
	assert.Contains(t, script, "'o''brien'")
	assert.Contains(t, script, "'O''Brien''s'")
	assert.Contains(t, script, "'it''s quoted'")

	// Every statement is conflict-tolerant.
	for _, line := range strings.Split(strings.TrimSpace(script), "\n") {
		if strings.HasPrefix(line, "INSERT") {
			assert.True(t, strings.HasSuffix(line, "ON CONFLICT DO NOTHING;"), line)
		}
	}

	// Dependency order: entities, then properties, then relations, then
	// relation properties.
	idxEntities := strings.Index(script, "-- Entities")
	idxProps := strings.Index(script, "-- Entity properties")
	idxRels := strings.Index(script, "-- Relations")
	idxRelProps := strings.Index(script, "-- Relation properties")
	require.True(t, idxEntities >= 0 && idxProps > idxEntities && idxRels > idxProps && idxRelProps > idxRels)
}

func TestExportSQLOmitsEmptyRelationProperties(t *testing.T) {
	payload := &ExportPayload{
		Entities: []EntityExport{
			{EntityType: "a", Name: "x", Label: "X", Properties: map[string]string{}},
		},
		Relations: []RelationExport{
			{RelationType: "r", Source: "a:x", Target: "a:x"},
		},
	}
	script := ExportSQL(payload)
	assert.NotContains(t, script, "-- Relation properties")
}

func TestSplitRefMalformed(t *testing.T) {
	entityType, name := splitRef("noseparator")
	assert.Equal(t, "unknown", entityType)
	assert.Equal(t, "noseparator", name)
}

func TestConflictModeValid(t *testing.T) {
	assert.True(t, ConflictMode("").Valid())
	assert.True(t, ConflictSkip.Valid())
	assert.True(t, ConflictUpsert.Valid())
	assert.True(t, ConflictFail.Valid())
	assert.False(t, ConflictMode("merge").Valid())
}
