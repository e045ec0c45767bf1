package pgx

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/factgraph/backend/pkg/common"
)

// CreateEvidence persists a provenance record. Evidence rows are written
// before the entities and relations that reference them.
func (s *GraphDBStorage) CreateEvidence(ctx context.Context, evidence common.Evidence) (string, error) {
	var metadata []byte
	if len(evidence.Metadata) > 0 {
		var err error
		metadata, err = json.Marshal(evidence.Metadata)
		if err != nil {
			return "", fmt.Errorf("failed to encode evidence metadata: %w", err)
		}
	}

	var (
		page               *int
		bx, by, bw, bh     *float64
		spanStart, spanEnd *int
	)
	if evidence.HasLocation() {
		page = &evidence.PageNumber
		bx = &evidence.BoundingBox.X
		by = &evidence.BoundingBox.Y
		bw = &evidence.BoundingBox.Width
		bh = &evidence.BoundingBox.Height
		spanStart = &evidence.TextSpan.Start
		spanEnd = &evidence.TextSpan.End
	}

	_, err := s.conn.Exec(ctx, `
		INSERT INTO evidence (
			id, source_type, source_id, source_path,
			page_number, bbox_x, bbox_y, bbox_width, bbox_height,
			span_start, span_end,
			extraction_confidence, extraction_method,
			data_room_id, correlation_id, metadata, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17
		)`,
		evidence.ID, evidence.SourceType, evidence.SourceID, evidence.SourcePath,
		page, bx, by, bw, bh,
		spanStart, spanEnd,
		evidence.ExtractionConfidence, evidence.ExtractionMethod,
		evidence.DataRoomID, evidence.CorrelationID, metadata, evidence.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert evidence %s: %w", evidence.ID, err)
	}
	return evidence.ID, nil
}
