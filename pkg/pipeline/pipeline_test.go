package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/factgraph/backend/pkg/classify"
	"github.com/factgraph/backend/pkg/common"
	"github.com/factgraph/backend/pkg/extract"
	"github.com/factgraph/backend/pkg/extract/invoice"
	"github.com/factgraph/backend/pkg/mapper"
	"github.com/factgraph/backend/pkg/store"
)

const sampleInvoice = `Invoice
Invoice Number: INV-2024-0042
Invoice Date: 2024-03-15
Due Date: 2024-04-14
Bill To: Example AG
Vendor: ACME GmbH

Subtotal: 1,000.00
Tax: 190.00
Total: EUR 1,190.00
`

// recordingRepo records repository calls in order for assertions.
type recordingRepo struct {
	mu    sync.Mutex
	calls []string

	evidenceIDs map[string]bool

	failEvidence bool
	failEntity   bool
}

func newRecordingRepo() *recordingRepo {
	return &recordingRepo{evidenceIDs: make(map[string]bool)}
}

func (r *recordingRepo) CreateEvidence(_ context.Context, ev common.Evidence) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failEvidence {
		return "", errors.New("evidence write rejected")
	}
	r.calls = append(r.calls, "evidence")
	r.evidenceIDs[ev.ID] = true
	return ev.ID, nil
}

func (r *recordingRepo) UpdateEntity(_ context.Context, entity *common.KnowledgeEntity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failEntity {
		return errors.New("entity write rejected")
	}
	for _, attr := range entity.Attributes {
		if attr.EvidenceID != "" && !r.evidenceIDs[attr.EvidenceID] {
			return errors.New("attribute references unstored evidence " + attr.EvidenceID)
		}
	}
	r.calls = append(r.calls, "entity")
	return nil
}

func (r *recordingRepo) CreateRelation(_ context.Context, _ common.EntityRelation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "relation")
	return nil
}

func (r *recordingRepo) AppendLedger(_ context.Context, _ common.LedgerRecord) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "ledger")
	return int64(len(r.calls)), nil
}

var _ store.GraphRepository = (*recordingRepo)(nil)

// panicOnFile wraps an extractor and panics for one specific file name.
type panicOnFile struct {
	inner    extract.Extractor
	fileName string
}

func (p *panicOnFile) Name() string { return p.inner.Name() }

func (p *panicOnFile) CanExtract(documentType string) bool {
	return p.inner.CanExtract(documentType)
}

func (p *panicOnFile) Extract(ctx context.Context, req extract.Request) (*extract.Result, error) {
	if req.FileName == p.fileName {
		panic("extractor blew up on " + req.FileName)
	}
	return p.inner.Extract(ctx, req)
}

func newTestPipeline(repo store.GraphRepository, extractors ...extract.Extractor) *Pipeline {
	registry := extract.NewRegistry()
	if len(extractors) == 0 {
		extractors = []extract.Extractor{invoice.NewInvoiceExtractor()}
	}
	for _, e := range extractors {
		registry.Register(e, "invoice")
	}
	return NewPipeline(NewPipelineParams{
		Classifier: classify.NewClassifier(classify.NewClassifierParams{Config: classify.DefaultConfig()}),
		Extractors: registry,
		Mappers:    mapper.NewMappersFromConfig(mapper.DefaultConfig()),
		Repository: repo,
	})
}

func TestProcessDocumentCompletes(t *testing.T) {
	repo := newRecordingRepo()
	p := newTestPipeline(repo)

	res := p.ProcessDocument(
		context.Background(),
		strings.NewReader(sampleInvoice),
		"invoice_42.txt", "text/plain", "room-1", "corr-1",
		Options{},
	)

	if !res.Succeeded() {
		t.Fatalf("document failed at %s: %s", res.CompletedStage, res.Error)
	}
	if res.DocumentType != "invoice" {
		t.Errorf("document type = %q, want invoice", res.DocumentType)
	}
	if res.FactCount == 0 || res.EvidenceCount == 0 || res.EntityCount == 0 {
		t.Errorf("counts = facts %d, evidence %d, entities %d; want all > 0",
			res.FactCount, res.EvidenceCount, res.EntityCount)
	}
	if res.CorrelationID != "corr-1" {
		t.Errorf("correlation id = %q, want corr-1", res.CorrelationID)
	}
}

func TestStorageOrderEvidenceFirst(t *testing.T) {
	repo := newRecordingRepo()
	p := newTestPipeline(repo)

	res := p.ProcessDocument(
		context.Background(),
		strings.NewReader(sampleInvoice),
		"invoice_42.txt", "text/plain", "room-1", "corr-1",
		Options{},
	)
	if !res.Succeeded() {
		t.Fatalf("document failed: %s", res.Error)
	}

	// All evidence writes must precede the first entity write, and all
	// entity writes must precede the first relation write.
	firstEntity := -1
	firstRelation := -1
	lastEvidence := -1
	lastEntity := -1
	for i, call := range repo.calls {
		switch call {
		case "evidence":
			lastEvidence = i
		case "entity":
			if firstEntity == -1 {
				firstEntity = i
			}
			lastEntity = i
		case "relation":
			if firstRelation == -1 {
				firstRelation = i
			}
		}
	}
	if firstEntity == -1 || lastEvidence == -1 {
		t.Fatalf("expected evidence and entity calls, got %v", repo.calls)
	}
	if lastEvidence > firstEntity {
		t.Errorf("evidence stored after an entity: %v", repo.calls)
	}
	if firstRelation != -1 && lastEntity > firstRelation {
		t.Errorf("entity stored after a relation: %v", repo.calls)
	}
}

func TestSkipClassification(t *testing.T) {
	repo := newRecordingRepo()
	p := newTestPipeline(repo)

	res := p.ProcessDocument(
		context.Background(),
		strings.NewReader(sampleInvoice),
		"mystery.bin", "application/octet-stream", "room-1", "",
		Options{SkipClassification: true, ForcedDocumentType: "invoice"},
	)
	if !res.Succeeded() {
		t.Fatalf("document failed: %s", res.Error)
	}
	if res.ClassificationConfidence != 1 {
		t.Errorf("forced classification confidence = %v, want 1", res.ClassificationConfidence)
	}
	if res.CorrelationID == "" {
		t.Error("pipeline should assign a correlation id when none is given")
	}

	// Forced skip without a type is a classification-stage failure.
	res = p.ProcessDocument(
		context.Background(),
		strings.NewReader(sampleInvoice),
		"mystery.bin", "application/octet-stream", "room-1", "",
		Options{SkipClassification: true},
	)
	if res.CompletedStage != StageFailed {
		t.Error("skip without forced type should fail")
	}
}

func TestNoExtractorFound(t *testing.T) {
	repo := newRecordingRepo()
	p := newTestPipeline(repo)

	// text/csv classifies structurally, but no csv extractor is registered.
	res := p.ProcessDocument(
		context.Background(),
		strings.NewReader("a,b\n1,2\n"),
		"data.csv", "text/csv", "room-1", "corr-1",
		Options{},
	)
	if res.CompletedStage != StageFailed {
		t.Fatal("expected a failed result")
	}
	if !strings.Contains(res.Error, "no extractor found for type csv") {
		t.Errorf("error = %q, want a no-extractor message", res.Error)
	}
	if len(repo.calls) != 0 {
		t.Errorf("nothing should be stored, got calls %v", repo.calls)
	}
}

func TestStorageFailureAbortsSequence(t *testing.T) {
	repo := newRecordingRepo()
	repo.failEvidence = true
	p := newTestPipeline(repo)

	res := p.ProcessDocument(
		context.Background(),
		strings.NewReader(sampleInvoice),
		"invoice_42.txt", "text/plain", "room-1", "corr-1",
		Options{},
	)
	if res.CompletedStage != StageFailed {
		t.Fatal("expected a failed result")
	}
	if !strings.Contains(res.Error, "storage failed") {
		t.Errorf("error = %q, want a storage failure", res.Error)
	}
	// The first evidence failure aborts before any entity write.
	for _, call := range repo.calls {
		if call == "entity" || call == "relation" {
			t.Errorf("no entities or relations should be written, got %v", repo.calls)
		}
	}
}

func TestProcessBatchAccounting(t *testing.T) {
	repo := newRecordingRepo()
	p := newTestPipeline(repo, &panicOnFile{
		inner:    invoice.NewInvoiceExtractor(),
		fileName: "invoice_2.txt",
	})

	docs := []BatchDocument{
		{Stream: strings.NewReader(sampleInvoice), FileName: "invoice_1.txt", MimeType: "text/plain"},
		{Stream: strings.NewReader(sampleInvoice), FileName: "invoice_2.txt", MimeType: "text/plain"},
		{Stream: strings.NewReader(sampleInvoice), FileName: "invoice_3.txt", MimeType: "text/plain"},
	}

	batch := p.ProcessBatch(context.Background(), docs, "room-1", "corr-1", Options{})

	if len(batch.Results) != 3 {
		t.Fatalf("results = %d, want one entry per document", len(batch.Results))
	}
	if batch.Results[0].FileName != "invoice_1.txt" || batch.Results[2].FileName != "invoice_3.txt" {
		t.Error("sequential batch should preserve input order")
	}
	if batch.Results[1].CompletedStage != StageFailed {
		t.Errorf("second document stage = %s, want failed", batch.Results[1].CompletedStage)
	}
	if batch.SuccessfulDocuments != 2 {
		t.Errorf("successful = %d, want 2", batch.SuccessfulDocuments)
	}
	if batch.FailedDocuments != 1 {
		t.Errorf("failed = %d, want 1", batch.FailedDocuments)
	}
}

func TestProcessBatchParallel(t *testing.T) {
	repo := newRecordingRepo()
	p := newTestPipeline(repo)

	docs := make([]BatchDocument, 6)
	for i := range docs {
		docs[i] = BatchDocument{
			Stream:   strings.NewReader(sampleInvoice),
			FileName: "invoice.txt",
			MimeType: "text/plain",
		}
	}

	batch := p.ProcessBatch(context.Background(), docs, "room-1", "corr-1", Options{
		EnableParallelProcessing: true,
		MaxParallelism:           2,
	})

	if batch.SuccessfulDocuments != 6 || batch.FailedDocuments != 0 {
		t.Errorf("successful = %d, failed = %d, want 6/0",
			batch.SuccessfulDocuments, batch.FailedDocuments)
	}
}

func TestGetStatus(t *testing.T) {
	repo := newRecordingRepo()
	p := newTestPipeline(repo)

	status := p.GetStatus()
	if len(status.Extractors) != 1 || status.Extractors[0] != "invoice" {
		t.Errorf("extractors = %v, want [invoice]", status.Extractors)
	}
	if len(status.Mappers) == 0 {
		t.Error("mappers should not be empty")
	}
	if !status.LastProcessedAt.IsZero() {
		t.Error("no document processed yet")
	}

	p.ProcessDocument(
		context.Background(),
		strings.NewReader(sampleInvoice),
		"invoice_42.txt", "text/plain", "room-1", "corr-1",
		Options{},
	)
	if p.GetStatus().LastProcessedAt.IsZero() {
		t.Error("last-processed timestamp should be set after processing")
	}
}

func TestCancelledContextFailsDocument(t *testing.T) {
	repo := newRecordingRepo()
	p := newTestPipeline(repo)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := p.ProcessDocument(
		ctx,
		strings.NewReader(sampleInvoice),
		"invoice_42.txt", "text/plain", "room-1", "corr-1",
		Options{},
	)
	if res.CompletedStage != StageFailed {
		t.Error("cancelled context should fail the document")
	}
}
