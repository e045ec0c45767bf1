package pgx

import (
	"context"
	"fmt"

	"github.com/factgraph/backend/internal/util"
	"github.com/factgraph/backend/pkg/common"
)

// UpdateEntity upserts an entity and its attributes in one transaction,
// keyed by entity id. Attribute rows are upserted by (entity_id, name), so
// repeated calls with the same entity are idempotent.
func (s *GraphDBStorage) UpdateEntity(ctx context.Context, entity *common.KnowledgeEntity) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin entity transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO knowledge_entities (id, type, data_room_id, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			version = EXCLUDED.version,
			updated_at = EXCLUDED.updated_at`,
		entity.ID, entity.Type, entity.DataRoomID, entity.Version, entity.CreatedAt, entity.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert entity %s: %w", entity.ID, err)
	}

	for _, attr := range entity.Attributes {
		var evidenceID *string
		if attr.EvidenceID != "" {
			evidenceID = &attr.EvidenceID
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO entity_attributes (
				id, entity_id, name, value_text, value_type,
				confidence, evidence_id, version, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (entity_id, name) DO UPDATE SET
				value_text = EXCLUDED.value_text,
				value_type = EXCLUDED.value_type,
				confidence = EXCLUDED.confidence,
				evidence_id = EXCLUDED.evidence_id,
				version = EXCLUDED.version,
				updated_at = EXCLUDED.updated_at`,
			attr.ID, entity.ID, attr.Name, util.SanitizePostgresText(attr.Value.Text()), string(attr.ValueType),
			attr.Confidence, evidenceID, attr.Version, attr.CreatedAt, attr.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert attribute %s.%s: %w", entity.ID, attr.Name, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit entity %s: %w", entity.ID, err)
	}
	return nil
}
