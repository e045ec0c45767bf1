package store

import (
	"context"

	"github.com/factgraph/backend/pkg/common"
)

// GraphRepository defines the interface for persisting the knowledge graph.
// The ingestion pipeline writes evidence first, then entities, then
// relations; implementations must be safe for concurrent calls from
// parallel batch workers.
type GraphRepository interface {
	// CreateEvidence persists a provenance record and returns its id.
	CreateEvidence(ctx context.Context, evidence common.Evidence) (string, error)

	// UpdateEntity upserts an entity together with its attributes, keyed by
	// entity id. The call is idempotent.
	UpdateEntity(ctx context.Context, entity *common.KnowledgeEntity) error

	// CreateRelation persists one edge between two entities.
	CreateRelation(ctx context.Context, relation common.EntityRelation) error

	// AppendLedger appends an audit record and returns its assigned
	// monotonic sequence number.
	AppendLedger(ctx context.Context, record common.LedgerRecord) (int64, error)
}
