package pgx

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/factgraph/backend/pkg/common"
)

// CreateRelation persists one edge. Relations have no uniqueness
// constraint; every call inserts a new row.
func (s *GraphDBStorage) CreateRelation(ctx context.Context, relation common.EntityRelation) error {
	var properties []byte
	if len(relation.Properties) > 0 {
		var err error
		properties, err = json.Marshal(relation.Properties)
		if err != nil {
			return fmt.Errorf("failed to encode relation properties: %w", err)
		}
	}

	var evidenceID *string
	if relation.EvidenceID != "" {
		evidenceID = &relation.EvidenceID
	}

	_, err := s.conn.Exec(ctx, `
		INSERT INTO entity_relations (
			id, source_entity_id, target_entity_id, relationship_type,
			confidence, evidence_id, properties, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		relation.ID, relation.SourceEntityID, relation.TargetEntityID, relation.RelationshipType,
		relation.Confidence, evidenceID, properties, relation.Version, relation.CreatedAt, relation.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert relation %s: %w", relation.ID, err)
	}
	return nil
}
