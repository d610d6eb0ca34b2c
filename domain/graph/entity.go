package graph

import (
	"time"

	"github.com/uptrace/bun"
)

// Entity is a node in the graph. Everything in the system is an entity,
// including relation types and workflow definitions.
type Entity struct {
	bun.BaseModel `bun:"table:entities,alias:e"`

	ID         int64     `bun:"id,pk,autoincrement" json:"id"`
	EntityType string    `bun:"entity_type,notnull" json:"entity_type"`
	Name       string    `bun:"name,notnull" json:"name"`
	Label      string    `bun:"label,notnull,default:''" json:"label"`
	SortOrder  int64     `bun:"sort_order,notnull,default:0" json:"sort_order"`
	IsActive   bool      `bun:"is_active,notnull,default:true" json:"is_active"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:now()" json:"created_at"`
	UpdatedAt  time.Time `bun:"updated_at,notnull,default:now()" json:"updated_at"`
}

// EntityProperty is a single key/value pair attached to an entity.
// (entity_id, key) is the primary key, so setting a property is an upsert.
type EntityProperty struct {
	bun.BaseModel `bun:"table:entity_properties,alias:ep"`

	EntityID int64  `bun:"entity_id,pk" json:"entity_id"`
	Key      string `bun:"key,pk" json:"key"`
	Value    string `bun:"value,notnull,default:''" json:"value"`
}

// Relation is a typed, directed edge between two entities. The relation
// type is itself an entity of entity_type "relation_type".
type Relation struct {
	bun.BaseModel `bun:"table:relations,alias:r"`

	ID             int64 `bun:"id,pk,autoincrement" json:"id"`
	RelationTypeID int64 `bun:"relation_type_id,notnull" json:"relation_type_id"`
	SourceID       int64 `bun:"source_id,notnull" json:"source_id"`
	TargetID       int64 `bun:"target_id,notnull" json:"target_id"`
}

// RelationProperty is a key/value pair attached to a relation.
type RelationProperty struct {
	bun.BaseModel `bun:"table:relation_properties,alias:rp"`

	RelationID int64  `bun:"relation_id,pk" json:"relation_id"`
	Key        string `bun:"key,pk" json:"key"`
	Value      string `bun:"value,notnull,default:''" json:"value"`
}

// RelationTypeName is the entity_type under which relation types are stored.
const RelationTypeName = "relation_type"
