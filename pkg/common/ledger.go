package common

import "time"

// LedgerRecord is one entry in the append-only event ledger. Records are
// never mutated after creation; the sequence number is assigned by the
// repository on append and is monotonic within it.
type LedgerRecord struct {
	ID             string            `json:"id"`
	EventType      string            `json:"event_type"`
	SourceID       string            `json:"source_id"`
	SourceType     string            `json:"source_type"`
	DataRoomID     string            `json:"data_room_id"`
	CorrelationID  string            `json:"correlation_id"`
	EventData      map[string]string `json:"event_data,omitempty"`
	EventTimestamp time.Time         `json:"event_timestamp"`
	IngestedAt     time.Time         `json:"ingested_at"`
	SequenceNumber int64             `json:"sequence_number"`
}

// NewLedgerRecordParams defines the input for creating a ledger record.
type NewLedgerRecordParams struct {
	EventType      string
	SourceID       string
	SourceType     string
	DataRoomID     string
	CorrelationID  string
	EventData      map[string]string
	EventTimestamp time.Time
}

// NewLedgerRecord creates a ledger record ready for appending. The sequence
// number is left at zero until the repository assigns it.
func NewLedgerRecord(params NewLedgerRecordParams) LedgerRecord {
	ts := params.EventTimestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return LedgerRecord{
		ID:             NewID(),
		EventType:      params.EventType,
		SourceID:       params.SourceID,
		SourceType:     params.SourceType,
		DataRoomID:     params.DataRoomID,
		CorrelationID:  params.CorrelationID,
		EventData:      params.EventData,
		EventTimestamp: ts,
		IngestedAt:     time.Now().UTC(),
	}
}
