package transfer

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ahlt-platform/ahlt/pkg/apperror"
)

// Namespace is the base IRI for the ahlt ontology. Compact IRIs use the
// "ahlt:" prefix bound to it.
const Namespace = "http://ahlt.local/ontology/"

const rdfNamespace = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"

// JSONLDDocument is a JSON-LD rendering of the graph: a dynamic @context
// mapping property keys and relation types into the ahlt namespace, and a
// @graph of entity nodes.
type JSONLDDocument struct {
	Context map[string]any   `json:"@context"`
	Graph   []map[string]any `json:"@graph"`
}

// BuildContext assembles the @context from the distinct property keys and
// relation type names currently in the store. Property keys win when a
// relation type shares spellings with one.
func BuildContext(propertyKeys, relationTypes []string) map[string]any {
	ctx := map[string]any{
		"ahlt": Namespace,
		"rdf":  rdfNamespace,
	}
	for _, k := range propertyKeys {
		ctx[k] = "ahlt:" + k
	}
	for _, r := range relationTypes {
		if _, exists := ctx[r]; !exists {
			ctx[r] = "ahlt:" + r
		}
	}
	return ctx
}

// ToJSONLD renders an export payload as a JSON-LD document. Each entity
// becomes a node whose @id encodes (type, name); properties become literal
// predicates; relations become IRI-valued predicates on the source node,
// grouped per relation type. Relation properties have no JSON-LD home and
// are dropped here, the native format keeps them.
func ToJSONLD(payload *ExportPayload, context map[string]any) *JSONLDDocument {
	relBySource := map[string]map[string][]string{}
	for _, r := range payload.Relations {
		group, ok := relBySource[r.Source]
		if !ok {
			group = map[string][]string{}
			relBySource[r.Source] = group
		}
		group[r.RelationType] = append(group[r.RelationType], refToIRI(r.Target))
	}

	graph := make([]map[string]any, 0, len(payload.Entities))
	for _, e := range payload.Entities {
		node := map[string]any{
			"@id":        fmt.Sprintf("ahlt:%s/%s", e.EntityType, e.Name),
			"@type":      "ahlt:" + entityTypeToClass(e.EntityType),
			"ahlt:label": e.Label,
		}
		if e.SortOrder != 0 {
			node["ahlt:sort_order"] = e.SortOrder
		}
		for k, v := range e.Properties {
			node["ahlt:"+k] = v
		}
		if group, ok := relBySource[EntityRef(e.EntityType, e.Name)]; ok {
			for pred, targets := range group {
				key := "ahlt:" + pred
				if len(targets) == 1 {
					node[key] = map[string]any{"@id": targets[0]}
				} else {
					refs := make([]any, len(targets))
					for i, t := range targets {
						refs[i] = map[string]any{"@id": t}
					}
					node[key] = refs
				}
			}
		}
		graph = append(graph, node)
	}

	return &JSONLDDocument{Context: context, Graph: graph}
}

// ParseJSONLD converts a JSON-LD document back into an import payload.
// Whether a predicate is a relation or a literal property is inferred from
// the value's shape: an object with "@id", or a non-empty array of such
// objects, is a relation; everything else is a literal. An optional
// "ahlt:conflict_mode" key selects the conflict policy, defaulting to skip.
func ParseJSONLD(doc map[string]any) (*ImportPayload, error) {
	rawGraph, ok := doc["@graph"]
	if !ok {
		return nil, apperror.ErrBadRequest.WithMessage("JSON-LD document must contain a @graph array")
	}
	graphArr, ok := rawGraph.([]any)
	if !ok {
		return nil, apperror.ErrBadRequest.WithMessage("@graph must be an array")
	}

	mode := ConflictSkip
	if raw, ok := doc["ahlt:conflict_mode"].(string); ok {
		switch raw {
		case string(ConflictUpsert):
			mode = ConflictUpsert
		case string(ConflictFail):
			mode = ConflictFail
		}
	}

	payload := &ImportPayload{ConflictMode: mode}

	for _, rawNode := range graphArr {
		node, ok := rawNode.(map[string]any)
		if !ok {
			return nil, apperror.ErrBadRequest.WithMessage("each @graph item must be an object")
		}

		idIRI, ok := node["@id"].(string)
		if !ok {
			return nil, apperror.ErrBadRequest.WithMessage("each node must have an @id")
		}
		entityType, name, err := iriToTypeName(idIRI)
		if err != nil {
			return nil, apperror.ErrBadRequest.WithMessage(err.Error())
		}

		label := name
		if l, ok := node["ahlt:label"].(string); ok {
			label = l
		}
		var sortOrder int64
		if so, ok := node["ahlt:sort_order"].(float64); ok {
			sortOrder = int64(so)
		}

		properties := map[string]string{}

		for _, key := range sortedNodeKeys(node) {
			if strings.HasPrefix(key, "@") || key == "ahlt:label" || key == "ahlt:sort_order" {
				continue
			}
			predicate := strings.TrimPrefix(key, "ahlt:")
			val := node[key]

			if targets, isRel := relationTargets(val); isRel {
				for _, targetIRI := range targets {
					targetType, targetName, err := iriToTypeName(targetIRI)
					if err != nil {
						return nil, apperror.ErrBadRequest.WithMessage(err.Error())
					}
					payload.Relations = append(payload.Relations, RelationImport{
						RelationType: predicate,
						Source:       EntityRef(entityType, name),
						Target:       EntityRef(targetType, targetName),
					})
				}
				continue
			}

			properties[predicate] = literalString(val)
		}

		payload.Entities = append(payload.Entities, EntityImport{
			EntityType: entityType,
			Name:       name,
			Label:      label,
			SortOrder:  sortOrder,
			Properties: properties,
		})
	}

	return payload, nil
}

// relationTargets reports whether a predicate value is an IRI reference or
// an array of them, returning the target IRIs when it is.
func relationTargets(val any) ([]string, bool) {
	switch v := val.(type) {
	case map[string]any:
		if iri, ok := v["@id"].(string); ok {
			return []string{iri}, true
		}
	case []any:
		if len(v) == 0 {
			return nil, false
		}
		targets := make([]string, 0, len(v))
		for _, item := range v {
			obj, ok := item.(map[string]any)
			if !ok {
				return nil, false
			}
			iri, ok := obj["@id"].(string)
			if !ok {
				return nil, false
			}
			targets = append(targets, iri)
		}
		return targets, true
	}
	return nil, false
}

// literalString renders a JSON literal as the opaque string the property
// store expects.
func literalString(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case bool:
		if v {
			return "true"
		}
		return "false"
	case float64:
		// encoding/json decodes all numbers as float64; re-render whole
		// numbers without a fraction.
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	default:
		// Mixed arrays and objects without @id are stored as their JSON
		// encoding, keeping the value round-trippable.
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}

// entityTypeToClass converts a snake_case entity type to a PascalCase
// class name, e.g. "workflow_status" -> "WorkflowStatus".
func entityTypeToClass(entityType string) string {
	parts := strings.Split(entityType, "_")
	var b strings.Builder
	for _, part := range parts {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}

// iriToTypeName parses an entity IRI, compact ("ahlt:type/name") or
// absolute, back into its (type, name) pair.
func iriToTypeName(iri string) (string, string, error) {
	path, found := strings.CutPrefix(iri, "ahlt:")
	if !found {
		path, found = strings.CutPrefix(iri, Namespace)
	}
	if !found {
		return "", "", fmt.Errorf("IRI %q does not start with ahlt: or the full namespace", iri)
	}
	entityType, name, ok := strings.Cut(path, "/")
	if !ok {
		return "", "", fmt.Errorf("IRI %q is missing the type/name separator", iri)
	}
	return entityType, name, nil
}

// refToIRI converts a "type:name" reference to a compact IRI.
func refToIRI(ref string) string {
	entityType, name, err := ParseRef(ref)
	if err != nil {
		return "ahlt:unknown/" + ref
	}
	return fmt.Sprintf("ahlt:%s/%s", entityType, name)
}

func sortedNodeKeys(node map[string]any) []string {
	keys := make([]string, 0, len(node))
	for k := range node {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
