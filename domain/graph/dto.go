package graph

// CreateEntityRequest is the payload for POST /api/entities.
type CreateEntityRequest struct {
	EntityType string `json:"entity_type"`
	Name       string `json:"name"`
	Label      string `json:"label,omitempty"`
	SortOrder  int64  `json:"sort_order,omitempty"`
}

// UpdateEntityRequest is the payload for PATCH /api/entities/:id. Pointer
// fields distinguish "absent" from zero values.
type UpdateEntityRequest struct {
	Label     *string `json:"label,omitempty"`
	SortOrder *int64  `json:"sort_order,omitempty"`
	IsActive  *bool   `json:"is_active,omitempty"`
}

// EntityResponse is an entity together with its properties.
type EntityResponse struct {
	*Entity
	Properties map[string]string `json:"properties,omitempty"`
}

// SetPropertiesRequest is the payload for PUT /api/entities/:id/properties.
type SetPropertiesRequest struct {
	Properties map[string]string `json:"properties"`
}

// CreateRelationRequest is the payload for POST /api/relations.
type CreateRelationRequest struct {
	RelationType string `json:"relation_type"`
	SourceID     int64  `json:"source_id"`
	TargetID     int64  `json:"target_id"`
	// Unique requests skip-if-exists behavior instead of a plain insert.
	Unique bool `json:"unique,omitempty"`
}

// RelationResponse reports the edge and whether it was newly created.
type RelationResponse struct {
	*Relation
	Created bool `json:"created"`
}
