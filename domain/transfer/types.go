// Package transfer implements bulk import and export of the entity graph:
// a native JSON payload, a JSON-LD rendering, and a SQL-text export.
package transfer

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ConflictMode decides what happens when an imported entity's (type, name)
// already exists.
type ConflictMode string

const (
	// ConflictSkip leaves the existing entity untouched.
	ConflictSkip ConflictMode = "skip"
	// ConflictUpsert updates label and sort order and replaces all
	// properties with the imported ones.
	ConflictUpsert ConflictMode = "upsert"
	// ConflictFail aborts the whole import on the first entity conflict.
	// Relation-phase errors never abort, even in this mode.
	ConflictFail ConflictMode = "fail"
)

// Valid reports whether the mode is one of skip, upsert or fail. The empty
// string is valid and means skip.
func (m ConflictMode) Valid() bool {
	switch m {
	case "", ConflictSkip, ConflictUpsert, ConflictFail:
		return true
	}
	return false
}

// ImportPayload is the native import format. Relations reference entities
// by "type:name" strings, never by numeric IDs, so payloads stay portable
// across databases.
type ImportPayload struct {
	ConflictMode ConflictMode     `json:"conflict_mode,omitempty"`
	Entities     []EntityImport   `json:"entities"`
	Relations    []RelationImport `json:"relations"`
}

// EntityImport is one entity to import.
type EntityImport struct {
	EntityType string            `json:"entity_type"`
	Name       string            `json:"name"`
	Label      string            `json:"label"`
	SortOrder  int64             `json:"sort_order,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

// RelationImport is one relation to import, with endpoints given as
// "type:name" references.
type RelationImport struct {
	RelationType string            `json:"relation_type"`
	Source       string            `json:"source"`
	Target       string            `json:"target"`
	Properties   map[string]string `json:"properties,omitempty"`
}

// ImportResult accumulates per-item outcomes. Item errors are collected
// here rather than aborting the batch, except for entity conflicts under
// fail mode.
type ImportResult struct {
	Created int           `json:"created"`
	Updated int           `json:"updated"`
	Skipped int           `json:"skipped"`
	Errors  []ImportError `json:"errors"`
	// Aborted is set when fail mode rolled the transaction back.
	Aborted bool `json:"aborted,omitempty"`
}

// ImportError records one failed item with the reason it was rejected.
type ImportError struct {
	Item   json.RawMessage `json:"item"`
	Reason string          `json:"reason"`
}

// ExportPayload is the native export format, symmetric with ImportPayload.
type ExportPayload struct {
	Entities  []EntityExport   `json:"entities"`
	Relations []RelationExport `json:"relations"`
}

// EntityExport is one exported entity with its properties.
type EntityExport struct {
	ID         int64             `json:"id"`
	EntityType string            `json:"entity_type"`
	Name       string            `json:"name"`
	Label      string            `json:"label"`
	SortOrder  int64             `json:"sort_order"`
	Properties map[string]string `json:"properties"`
}

// RelationExport is one exported relation with "type:name" references.
type RelationExport struct {
	ID           int64             `json:"id"`
	RelationType string            `json:"relation_type"`
	Source       string            `json:"source"`
	Target       string            `json:"target"`
	Properties   map[string]string `json:"properties,omitempty"`
}

// EntityRef formats a (type, name) pair as a "type:name" reference.
func EntityRef(entityType, name string) string {
	return entityType + ":" + name
}

// ParseRef splits a "type:name" reference. The name may itself contain
// colons; only the first one separates the type.
func ParseRef(ref string) (entityType, name string, err error) {
	entityType, name, ok := strings.Cut(ref, ":")
	if !ok {
		return "", "", fmt.Errorf("invalid entity reference %q, expected \"type:name\"", ref)
	}
	return entityType, name, nil
}
