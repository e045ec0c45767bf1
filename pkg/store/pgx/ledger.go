package pgx

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/factgraph/backend/pkg/common"
)

// AppendLedger appends an audit record. The sequence number is assigned by
// the database and returned; ledger rows are never updated afterwards.
func (s *GraphDBStorage) AppendLedger(ctx context.Context, record common.LedgerRecord) (int64, error) {
	var eventData []byte
	if len(record.EventData) > 0 {
		var err error
		eventData, err = json.Marshal(record.EventData)
		if err != nil {
			return 0, fmt.Errorf("failed to encode ledger event data: %w", err)
		}
	}

	var seq int64
	err := s.conn.QueryRow(ctx, `
		INSERT INTO event_ledger (
			id, event_type, source_id, source_type,
			data_room_id, correlation_id, event_data, event_timestamp, ingested_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING sequence_number`,
		record.ID, record.EventType, record.SourceID, record.SourceType,
		record.DataRoomID, record.CorrelationID, eventData, record.EventTimestamp, record.IngestedAt,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("failed to append ledger record %s: %w", record.ID, err)
	}
	return seq, nil
}
