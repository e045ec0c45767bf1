package extract

import (
	"context"
	"io"

	"github.com/factgraph/backend/pkg/classify"
	"github.com/factgraph/backend/pkg/common"
)

// Fact is one extracted attribute candidate: which entity type it belongs
// to, the attribute name, the raw value, and a confidence score. Facts may
// reference an evidence record produced in the same extraction call.
//
// Values are extracted raw (as strings); type coercion is the fact mapper's
// job.
type Fact struct {
	ID         string                `json:"id"`
	EntityType string                `json:"entity_type"`
	Name       string                `json:"name"`
	Value      common.AttributeValue `json:"value"`
	Confidence float64               `json:"confidence"`
	EvidenceID string                `json:"evidence_id,omitempty"`
}

// Result is the output of extracting one document.
type Result struct {
	DocumentType string            `json:"document_type"`
	Facts        []Fact            `json:"facts"`
	Evidence     []common.Evidence `json:"evidence"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Request carries the inputs shared by every extraction call.
type Request struct {
	Stream         io.ReadSeeker
	FileName       string
	Classification classify.Classification
	DataRoomID     string
	CorrelationID  string
}

// Extractor turns a classified document into extracted facts plus evidence
// items referencing source coordinates. Implementations must be safe for
// concurrent use; the pipeline shares one instance across parallel batch
// workers.
type Extractor interface {
	Name() string
	CanExtract(documentType string) bool
	Extract(ctx context.Context, req Request) (*Result, error)
}

// Registry resolves extractors by document type. It is populated once at
// startup and read-only afterwards, so lookups need no synchronization.
type Registry struct {
	byType map[string]Extractor
	all    []Extractor
}

// NewRegistry creates an empty extractor registry.
func NewRegistry() *Registry {
	return &Registry{
		byType: make(map[string]Extractor),
	}
}

// Register adds an extractor under the given document types.
func (r *Registry) Register(e Extractor, documentTypes ...string) {
	for _, dt := range documentTypes {
		r.byType[dt] = e
	}
	r.all = append(r.all, e)
}

// Resolve returns the extractor for a document type. Types without a direct
// registration fall back to a CanExtract scan over all registered extractors.
func (r *Registry) Resolve(documentType string) (Extractor, bool) {
	if e, ok := r.byType[documentType]; ok {
		return e, true
	}
	for _, e := range r.all {
		if e.CanExtract(documentType) {
			return e, true
		}
	}
	return nil, false
}

// Names returns the names of all registered extractors in registration order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.all))
	for _, e := range r.all {
		names = append(names, e.Name())
	}
	return names
}
