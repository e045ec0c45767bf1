package common

import (
	"time"
)

// KnowledgeEntity is a node in the knowledge graph. Entities carry a dynamic,
// schema-less set of attributes (EAV style) plus outgoing relations. Every
// mutation bumps the entity version so derived facts stay auditable.
//
// Entities are created by fact mappers when a document first needs a node of
// a given type. The ingestion pipeline never deletes entities; removal is a
// graph-maintenance concern outside this package.
type KnowledgeEntity struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	DataRoomID string            `json:"data_room_id"`
	Version    int               `json:"version"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
	Attributes []EntityAttribute `json:"attributes"`
	Relations  []EntityRelation  `json:"relations"`
}

// EntityAttribute is one named fact on an entity. Attributes are owned
// exclusively by their entity and are unique by name within it: setting an
// existing name updates the attribute in place instead of duplicating it.
type EntityAttribute struct {
	ID         string         `json:"id"`
	EntityID   string         `json:"entity_id"`
	Name       string         `json:"name"`
	Value      AttributeValue `json:"value"`
	ValueType  ValueType      `json:"value_type"`
	Confidence float64        `json:"confidence"`
	EvidenceID string         `json:"evidence_id,omitempty"`
	Version    int            `json:"version"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// EntityRelation is a typed, confidence-scored edge between two entities.
// Multiple relations may exist between the same pair of entities; no
// uniqueness constraint is enforced.
type EntityRelation struct {
	ID               string            `json:"id"`
	SourceEntityID   string            `json:"source_entity_id"`
	TargetEntityID   string            `json:"target_entity_id"`
	RelationshipType string            `json:"relationship_type"`
	Confidence       float64           `json:"confidence"`
	EvidenceID       string            `json:"evidence_id,omitempty"`
	Properties       map[string]string `json:"properties,omitempty"`
	Version          int               `json:"version"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// NewKnowledgeEntity creates an entity of the given type scoped to a data
// room, with version 1 and no attributes or relations.
func NewKnowledgeEntity(entityType, dataRoomID string) *KnowledgeEntity {
	now := time.Now().UTC()
	return &KnowledgeEntity{
		ID:         NewID(),
		Type:       entityType,
		DataRoomID: dataRoomID,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// SetAttribute sets or updates the attribute with the given name. A new
// attribute starts at version 1; updating an existing name bumps its version
// and replaces value, confidence, and evidence reference in place. The entity
// version increases by one per call either way.
func (e *KnowledgeEntity) SetAttribute(name string, value AttributeValue, confidence float64, evidenceID string) *EntityAttribute {
	now := time.Now().UTC()

	for i := range e.Attributes {
		if e.Attributes[i].Name != name {
			continue
		}
		attr := &e.Attributes[i]
		attr.Value = value
		attr.ValueType = value.Type
		attr.Confidence = confidence
		attr.EvidenceID = evidenceID
		attr.Version++
		attr.UpdatedAt = now

		e.Version++
		e.UpdatedAt = now
		return attr
	}

	e.Attributes = append(e.Attributes, EntityAttribute{
		ID:         NewID(),
		EntityID:   e.ID,
		Name:       name,
		Value:      value,
		ValueType:  value.Type,
		Confidence: confidence,
		EvidenceID: evidenceID,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	})

	e.Version++
	e.UpdatedAt = now
	return &e.Attributes[len(e.Attributes)-1]
}

// GetAttribute returns the attribute with the given name, if present.
func (e *KnowledgeEntity) GetAttribute(name string) (*EntityAttribute, bool) {
	for i := range e.Attributes {
		if e.Attributes[i].Name == name {
			return &e.Attributes[i], true
		}
	}
	return nil, false
}

// AddRelation appends an outgoing edge to the entity and bumps its version.
func (e *KnowledgeEntity) AddRelation(targetEntityID, relationshipType string, confidence float64, evidenceID string, properties map[string]string) *EntityRelation {
	now := time.Now().UTC()

	rel := EntityRelation{
		ID:               NewID(),
		SourceEntityID:   e.ID,
		TargetEntityID:   targetEntityID,
		RelationshipType: relationshipType,
		Confidence:       confidence,
		EvidenceID:       evidenceID,
		Properties:       properties,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	e.Relations = append(e.Relations, rel)

	e.Version++
	e.UpdatedAt = now
	return &e.Relations[len(e.Relations)-1]
}
