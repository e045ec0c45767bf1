package pipeline

import "time"

// Stage identifies how far a document travelled through the pipeline.
type Stage string

const (
	StageStarted        Stage = "started"
	StageClassification Stage = "classification"
	StageExtraction     Stage = "extraction"
	StageMapping        Stage = "mapping"
	StageStorage        Stage = "storage"
	StageCompleted      Stage = "completed"
	StageFailed         Stage = "failed"
)

// Options control one ProcessDocument or ProcessBatch call.
type Options struct {
	// SkipClassification bypasses the classification stage. It requires
	// ForcedDocumentType to be set.
	SkipClassification bool
	ForcedDocumentType string

	// EnableParallelProcessing runs batch documents through bounded
	// concurrent pipelines instead of sequentially.
	EnableParallelProcessing bool
	// MaxParallelism bounds concurrently in-flight documents; defaults to 4.
	MaxParallelism int
}

// DefaultMaxParallelism bounds batch concurrency when none is configured.
const DefaultMaxParallelism = 4

// Result reports the outcome of processing one document. ProcessDocument
// always returns a Result, even when the document failed: callers must
// inspect CompletedStage (or Succeeded) rather than rely on an error
// channel, because a failure in any stage is folded into the result.
type Result struct {
	FileName                 string        `json:"file_name"`
	DataRoomID               string        `json:"data_room_id"`
	CorrelationID            string        `json:"correlation_id"`
	DocumentType             string        `json:"document_type,omitempty"`
	ClassificationConfidence float64       `json:"classification_confidence,omitempty"`
	MappingConfidence        float64       `json:"mapping_confidence,omitempty"`
	CompletedStage           Stage         `json:"completed_stage"`
	Error                    string        `json:"error,omitempty"`
	Warnings                 []string      `json:"warnings,omitempty"`
	FactCount                int           `json:"fact_count"`
	EvidenceCount            int           `json:"evidence_count"`
	EntityCount              int           `json:"entity_count"`
	RelationCount            int           `json:"relation_count"`
	Duration                 time.Duration `json:"duration"`
}

// Succeeded reports whether the document completed every stage.
func (r Result) Succeeded() bool {
	return r.CompletedStage == StageCompleted
}

// BatchResult aggregates the outcomes of one batch. Results holds one entry
// per input document in input order, including documents that failed.
type BatchResult struct {
	Results             []Result      `json:"results"`
	TotalDocuments      int           `json:"total_documents"`
	SuccessfulDocuments int           `json:"successful_documents"`
	FailedDocuments     int           `json:"failed_documents"`
	Duration            time.Duration `json:"duration"`
}

// Status is a snapshot of the pipeline's registered handlers and activity.
type Status struct {
	Extractors      []string  `json:"extractors"`
	Mappers         []string  `json:"mappers"`
	LastProcessedAt time.Time `json:"last_processed_at"`
}
