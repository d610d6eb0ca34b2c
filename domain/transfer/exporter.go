package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/ahlt-platform/ahlt/domain/graph"
	"github.com/ahlt-platform/ahlt/pkg/logger"
)

// Exporter serializes the entity graph. Typed errors from the graph layer
// pass through untouched.
type Exporter struct {
	graph *graph.Repository
	log   *slog.Logger
}

// NewExporter creates an exporter on top of the graph store.
func NewExporter(g *graph.Repository, log *slog.Logger) *Exporter {
	return &Exporter{
		graph: g,
		log:   log.With(logger.Scope("transfer.export")),
	}
}

// Export builds the native payload. When entityTypes is non-empty only
// entities of those types are exported, and relations are emitted only when
// both endpoints are inside the exported set. All properties are
// batch-loaded, one query per table.
func (e *Exporter) Export(ctx context.Context, entityTypes []string) (*ExportPayload, error) {
	refMap, err := e.buildRefMap(ctx)
	if err != nil {
		return nil, err
	}

	ents, err := e.graph.FindByTypes(ctx, entityTypes)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, len(ents))
	idSet := make(map[int64]struct{}, len(ents))
	for i, ent := range ents {
		ids[i] = ent.ID
		idSet[ent.ID] = struct{}{}
	}

	propsByID, err := e.graph.GetPropertiesForEntities(ctx, ids)
	if err != nil {
		return nil, err
	}

	entities := make([]EntityExport, 0, len(ents))
	for _, ent := range ents {
		props := propsByID[ent.ID]
		if props == nil {
			props = map[string]string{}
		}
		entities = append(entities, EntityExport{
			ID:         ent.ID,
			EntityType: ent.EntityType,
			Name:       ent.Name,
			Label:      ent.Label,
			SortOrder:  ent.SortOrder,
			Properties: props,
		})
	}

	rels, err := e.graph.AllRelations(ctx)
	if err != nil {
		return nil, err
	}

	filtered := len(entityTypes) > 0
	var relIDs []int64
	var kept []*graph.Relation
	for _, r := range rels {
		if filtered {
			if _, ok := idSet[r.SourceID]; !ok {
				continue
			}
			if _, ok := idSet[r.TargetID]; !ok {
				continue
			}
		}
		kept = append(kept, r)
		relIDs = append(relIDs, r.ID)
	}

	relProps, err := e.graph.GetPropertiesForRelations(ctx, relIDs)
	if err != nil {
		return nil, err
	}

	relations := make([]RelationExport, 0, len(kept))
	for _, r := range kept {
		relations = append(relations, RelationExport{
			ID:           r.ID,
			RelationType: relationTypeName(refMap, r.RelationTypeID),
			Source:       refOrUnknown(refMap, r.SourceID),
			Target:       refOrUnknown(refMap, r.TargetID),
			Properties:   relProps[r.ID],
		})
	}

	return &ExportPayload{Entities: entities, Relations: relations}, nil
}

// buildRefMap loads every entity once and maps its ID to "type:name".
func (e *Exporter) buildRefMap(ctx context.Context) (map[int64]string, error) {
	all, err := e.graph.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	refMap := make(map[int64]string, len(all))
	for _, ent := range all {
		refMap[ent.ID] = EntityRef(ent.EntityType, ent.Name)
	}
	return refMap, nil
}

func refOrUnknown(refMap map[int64]string, id int64) string {
	if ref, ok := refMap[id]; ok {
		return ref
	}
	return fmt.Sprintf("unknown:%d", id)
}

// relationTypeName resolves a relation type ID to its bare name, without
// the "relation_type:" ref prefix.
func relationTypeName(refMap map[int64]string, id int64) string {
	ref, ok := refMap[id]
	if !ok {
		return fmt.Sprintf("unknown:%d", id)
	}
	if name, found := strings.CutPrefix(ref, graph.RelationTypeName+":"); found {
		return name
	}
	return ref
}

// ExportSQL renders the payload as Postgres INSERT statements with
// ON CONFLICT DO NOTHING, in dependency order: entities, entity properties,
// relations, relation properties. Endpoints are resolved by subselects on
// (type, name) so the script is portable across databases with different
// ID sequences.
func ExportSQL(payload *ExportPayload) string {
	var b strings.Builder

	b.WriteString("-- Graph export\n")
	b.WriteString("-- Generated by ahlt\n\n")

	b.WriteString("-- Entities\n")
	for _, e := range payload.Entities {
		fmt.Fprintf(&b,
			"INSERT INTO entities (entity_type, name, label, sort_order) VALUES ('%s', '%s', '%s', %d) ON CONFLICT DO NOTHING;\n",
			escapeSQL(e.EntityType), escapeSQL(e.Name), escapeSQL(e.Label), e.SortOrder)
	}

	b.WriteString("\n-- Entity properties\n")
	for _, e := range payload.Entities {
		for _, key := range sortedKeys(e.Properties) {
			fmt.Fprintf(&b,
				"INSERT INTO entity_properties (entity_id, key, value) VALUES ((SELECT id FROM entities WHERE entity_type='%s' AND name='%s'), '%s', '%s') ON CONFLICT DO NOTHING;\n",
				escapeSQL(e.EntityType), escapeSQL(e.Name), escapeSQL(key), escapeSQL(e.Properties[key]))
		}
	}

	b.WriteString("\n-- Relations\n")
	for _, r := range payload.Relations {
		srcType, srcName := splitRef(r.Source)
		tgtType, tgtName := splitRef(r.Target)
		fmt.Fprintf(&b,
			"INSERT INTO relations (relation_type_id, source_id, target_id) VALUES ("+
				"(SELECT id FROM entities WHERE entity_type='relation_type' AND name='%s'), "+
				"(SELECT id FROM entities WHERE entity_type='%s' AND name='%s'), "+
				"(SELECT id FROM entities WHERE entity_type='%s' AND name='%s')) ON CONFLICT DO NOTHING;\n",
			escapeSQL(r.RelationType),
			escapeSQL(srcType), escapeSQL(srcName),
			escapeSQL(tgtType), escapeSQL(tgtName))
	}

	hasRelProps := false
	for _, r := range payload.Relations {
		if len(r.Properties) > 0 {
			hasRelProps = true
			break
		}
	}
	if hasRelProps {
		b.WriteString("\n-- Relation properties\n")
		for _, r := range payload.Relations {
			if len(r.Properties) == 0 {
				continue
			}
			srcType, srcName := splitRef(r.Source)
			tgtType, tgtName := splitRef(r.Target)
			for _, key := range sortedKeys(r.Properties) {
				fmt.Fprintf(&b,
					"INSERT INTO relation_properties (relation_id, key, value) VALUES ("+
						"(SELECT id FROM relations WHERE relation_type_id="+
						"(SELECT id FROM entities WHERE entity_type='relation_type' AND name='%s') "+
						"AND source_id=(SELECT id FROM entities WHERE entity_type='%s' AND name='%s') "+
						"AND target_id=(SELECT id FROM entities WHERE entity_type='%s' AND name='%s')), "+
						"'%s', '%s') ON CONFLICT DO NOTHING;\n",
					escapeSQL(r.RelationType),
					escapeSQL(srcType), escapeSQL(srcName),
					escapeSQL(tgtType), escapeSQL(tgtName),
					escapeSQL(key), escapeSQL(r.Properties[key]))
			}
		}
	}

	return b.String()
}

// escapeSQL doubles single quotes for SQL string literals.
func escapeSQL(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// splitRef is ParseRef without an error path; malformed refs map to the
// "unknown" type so the generated SQL stays syntactically valid.
func splitRef(ref string) (string, string) {
	entityType, name, err := ParseRef(ref)
	if err != nil {
		return "unknown", ref
	}
	return entityType, name
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
