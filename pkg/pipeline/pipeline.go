package pipeline

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/factgraph/backend/pkg/classify"
	"github.com/factgraph/backend/pkg/common"
	"github.com/factgraph/backend/pkg/extract"
	"github.com/factgraph/backend/pkg/logger"
	"github.com/factgraph/backend/pkg/mapper"
	"github.com/factgraph/backend/pkg/store"
)

// Pipeline sequences classification, extraction, mapping, and storage for
// one document at a time and for batches. The classifier, registries, and
// repository are shared across parallel batch workers and must be safe for
// concurrent use.
type Pipeline struct {
	classifier *classify.Classifier
	extractors *extract.Registry
	mappers    *mapper.Registry
	repo       store.GraphRepository

	mu            sync.Mutex
	lastProcessed time.Time
}

// NewPipelineParams defines the collaborators of a Pipeline.
type NewPipelineParams struct {
	Classifier *classify.Classifier
	Extractors *extract.Registry
	Mappers    *mapper.Registry
	Repository store.GraphRepository
}

// NewPipeline creates a Pipeline over the given stages and repository.
func NewPipeline(params NewPipelineParams) *Pipeline {
	return &Pipeline{
		classifier: params.Classifier,
		extractors: params.Extractors,
		mappers:    params.Mappers,
		repo:       params.Repository,
	}
}

// ProcessDocument runs one document through the pipeline stages in order:
// classification, extraction, mapping, storage. The stage machine is linear
// with no retries; the first stage failure short-circuits the rest and the
// returned Result carries the failure stage and message. Panics anywhere in
// the call are recovered into a StageFailed result, so the method itself
// never fails: inspect Result.CompletedStage to detect failure.
func (p *Pipeline) ProcessDocument(
	ctx context.Context,
	stream io.ReadSeeker,
	fileName string,
	mimeType string,
	dataRoomID string,
	correlationID string,
	opts Options,
) (result Result) {
	start := time.Now()
	if correlationID == "" {
		correlationID = common.NewCorrelationID()
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("[Pipeline] Recovered from panic", "file", fileName, "panic", r)
			result = p.failed(fileName, dataRoomID, correlationID, start, fmt.Sprintf("unexpected failure: %v", r))
		}
		p.mu.Lock()
		p.lastProcessed = time.Now()
		p.mu.Unlock()
	}()

	logger.Info("[Pipeline] Processing document", "file", fileName, "correlation_id", correlationID)

	// Classification
	classification, failure := p.classifyStage(stream, fileName, mimeType, opts)
	if failure != "" {
		return p.failed(fileName, dataRoomID, correlationID, start, failure)
	}
	logger.Debug("[Pipeline] Classified",
		"file", fileName,
		"document_type", classification.DocumentType,
		"confidence", classification.Confidence,
	)
	if err := ctx.Err(); err != nil {
		return p.failed(fileName, dataRoomID, correlationID, start, err.Error())
	}

	// Extraction
	extractor, ok := p.extractors.Resolve(classification.DocumentType)
	if !ok {
		return p.failed(fileName, dataRoomID, correlationID, start,
			fmt.Sprintf("no extractor found for type %s", classification.DocumentType))
	}
	extraction, err := extractor.Extract(ctx, extract.Request{
		Stream:         stream,
		FileName:       fileName,
		Classification: classification,
		DataRoomID:     dataRoomID,
		CorrelationID:  correlationID,
	})
	if err != nil {
		return p.failed(fileName, dataRoomID, correlationID, start,
			fmt.Sprintf("extraction failed: %v", err))
	}
	logger.Debug("[Pipeline] Extracted",
		"file", fileName,
		"facts", len(extraction.Facts),
		"evidence", len(extraction.Evidence),
	)
	if err := ctx.Err(); err != nil {
		return p.failed(fileName, dataRoomID, correlationID, start, err.Error())
	}

	// Mapping
	docMapper, ok := p.mappers.Resolve(classification.DocumentType)
	if !ok {
		return p.failed(fileName, dataRoomID, correlationID, start,
			fmt.Sprintf("no mapper found for type %s", classification.DocumentType))
	}
	mapping, err := docMapper.Map(ctx, extraction, dataRoomID, correlationID)
	if err != nil {
		return p.failed(fileName, dataRoomID, correlationID, start,
			fmt.Sprintf("mapping failed: %v", err))
	}
	logger.Debug("[Pipeline] Mapped",
		"file", fileName,
		"entities", len(mapping.Entities),
		"relations", len(mapping.Relations),
		"warnings", len(mapping.Warnings),
	)
	if err := ctx.Err(); err != nil {
		return p.failed(fileName, dataRoomID, correlationID, start, err.Error())
	}

	// Storage
	if err := p.storeKnowledgeGraph(ctx, extraction, mapping); err != nil {
		return p.failed(fileName, dataRoomID, correlationID, start,
			fmt.Sprintf("storage failed: %v", err))
	}

	result = Result{
		FileName:                 fileName,
		DataRoomID:               dataRoomID,
		CorrelationID:            correlationID,
		DocumentType:             classification.DocumentType,
		ClassificationConfidence: classification.Confidence,
		MappingConfidence:        mapping.Confidence,
		CompletedStage:           StageCompleted,
		Warnings:                 mapping.Warnings,
		FactCount:                len(extraction.Facts),
		EvidenceCount:            len(extraction.Evidence),
		EntityCount:              len(mapping.Entities),
		RelationCount:            len(mapping.Relations),
		Duration:                 time.Since(start),
	}
	logger.Info("[Pipeline] Document completed",
		"file", fileName,
		"document_type", result.DocumentType,
		"entities", result.EntityCount,
		"duration", result.Duration,
	)
	return result
}

func (p *Pipeline) classifyStage(stream io.ReadSeeker, fileName, mimeType string, opts Options) (classify.Classification, string) {
	if opts.SkipClassification {
		if opts.ForcedDocumentType == "" {
			return classify.Classification{}, "classification skipped without a forced document type"
		}
		return classify.Classification{
			DocumentType: opts.ForcedDocumentType,
			Confidence:   1,
			Method:       "forced",
		}, ""
	}

	classification, err := p.classifier.Classify(stream, fileName, mimeType)
	if err != nil {
		return classify.Classification{}, fmt.Sprintf("classification failed: %v", err)
	}
	if classification.Unknown() {
		return classify.Classification{}, fmt.Sprintf("could not classify document %s", fileName)
	}
	return classification, ""
}

// storeKnowledgeGraph persists a document's results in dependency order:
// all evidence first, then entities, then relations. The first repository
// error aborts the sequence; partial storage is not rolled back.
func (p *Pipeline) storeKnowledgeGraph(ctx context.Context, extraction *extract.Result, mapping *mapper.Result) error {
	for _, ev := range extraction.Evidence {
		if _, err := p.repo.CreateEvidence(ctx, ev); err != nil {
			return fmt.Errorf("failed to store evidence %s: %w", ev.ID, err)
		}
	}
	for _, entity := range mapping.Entities {
		if err := p.repo.UpdateEntity(ctx, entity); err != nil {
			return fmt.Errorf("failed to store entity %s: %w", entity.ID, err)
		}
	}
	for _, relation := range mapping.Relations {
		if err := p.repo.CreateRelation(ctx, relation); err != nil {
			return fmt.Errorf("failed to store relation %s: %w", relation.ID, err)
		}
	}
	return nil
}

func (p *Pipeline) failed(fileName, dataRoomID, correlationID string, start time.Time, message string) Result {
	logger.Warn("[Pipeline] Document failed", "file", fileName, "err", message)
	return Result{
		FileName:       fileName,
		DataRoomID:     dataRoomID,
		CorrelationID:  correlationID,
		CompletedStage: StageFailed,
		Error:          message,
		Duration:       time.Since(start),
	}
}

// GetStatus returns a snapshot of the registered handlers and the time the
// pipeline last finished a document.
func (p *Pipeline) GetStatus() Status {
	p.mu.Lock()
	last := p.lastProcessed
	p.mu.Unlock()

	return Status{
		Extractors:      p.extractors.Names(),
		Mappers:         p.mappers.Names(),
		LastProcessedAt: last,
	}
}
