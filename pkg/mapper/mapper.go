package mapper

import (
	"context"
	"fmt"

	"github.com/factgraph/backend/pkg/common"
	"github.com/factgraph/backend/pkg/extract"
)

// Confidence assigned to the relation linking a secondary entity back to
// the document's primary entity.
const secondaryLinkConfidence = 0.9

// Result is the output of mapping one extraction result onto the graph.
type Result struct {
	Entities     []*common.KnowledgeEntity `json:"entities"`
	Relations    []common.EntityRelation   `json:"relations"`
	FactEntities map[string]string         `json:"fact_entities"`
	Warnings     []string                  `json:"warnings,omitempty"`
	Confidence   float64                   `json:"confidence"`
}

// Mapper maps extracted facts onto knowledge-graph entities and relations,
// applying field validation and type coercion. Implementations must be safe
// for concurrent use.
type Mapper interface {
	Name() string
	CanMap(documentType string) bool
	Map(ctx context.Context, res *extract.Result, dataRoomID, correlationID string) (*Result, error)
}

// Registry resolves mappers by document type. Populated once at startup,
// read-only afterwards.
type Registry struct {
	byType map[string]Mapper
	all    []Mapper
}

// NewRegistry creates an empty mapper registry.
func NewRegistry() *Registry {
	return &Registry{
		byType: make(map[string]Mapper),
	}
}

// Register adds a mapper under the given document types.
func (r *Registry) Register(m Mapper, documentTypes ...string) {
	for _, dt := range documentTypes {
		r.byType[dt] = m
	}
	r.all = append(r.all, m)
}

// Resolve returns the mapper for a document type, falling back to a CanMap
// scan over all registered mappers.
func (r *Registry) Resolve(documentType string) (Mapper, bool) {
	if m, ok := r.byType[documentType]; ok {
		return m, true
	}
	for _, m := range r.all {
		if m.CanMap(documentType) {
			return m, true
		}
	}
	return nil, false
}

// Names returns the names of all registered mappers in registration order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.all))
	for _, m := range r.all {
		names = append(names, m.Name())
	}
	return names
}

// DocumentMapper is the generic, configuration-driven mapper. Facts are
// grouped by entity type: the document's primary entity type maps onto one
// canonical entity, every other type gets a fresh entity linked back to the
// primary via a "{type}_to_{primary}" relation.
type DocumentMapper struct {
	documentType  string
	primaryEntity string
	fields        map[string]FieldMapping
}

// NewDocumentMapperParams defines the configuration for a DocumentMapper.
type NewDocumentMapperParams struct {
	DocumentType  string
	PrimaryEntity string
	Fields        []FieldMapping
}

// NewDocumentMapper creates a mapper for one document type.
func NewDocumentMapper(params NewDocumentMapperParams) *DocumentMapper {
	fields := make(map[string]FieldMapping, len(params.Fields))
	for _, f := range params.Fields {
		fields[f.Name] = f
	}
	return &DocumentMapper{
		documentType:  params.DocumentType,
		primaryEntity: params.PrimaryEntity,
		fields:        fields,
	}
}

// NewMappersFromConfig builds one DocumentMapper per configured type
// mapping and registers each under its document type.
func NewMappersFromConfig(cfg Config) *Registry {
	registry := NewRegistry()
	for _, tm := range cfg.Mappings {
		m := NewDocumentMapper(NewDocumentMapperParams{
			DocumentType:  tm.DocumentType,
			PrimaryEntity: tm.PrimaryEntity,
			Fields:        tm.Fields,
		})
		registry.Register(m, tm.DocumentType)
	}
	return registry
}

// Name returns the mapper name.
func (m *DocumentMapper) Name() string {
	return m.documentType
}

// CanMap reports whether this mapper handles the document type.
func (m *DocumentMapper) CanMap(documentType string) bool {
	return documentType == m.documentType
}

// Map converts extracted facts into entities and relations. Validation
// failures and coercion errors are per-fact: the fact is skipped (or kept
// raw) with a warning, and processing continues. The reported mapping
// confidence is the arithmetic mean over ALL input facts, including any
// that validation rejected.
func (m *DocumentMapper) Map(ctx context.Context, res *extract.Result, dataRoomID, correlationID string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(res.Facts) == 0 {
		return nil, fmt.Errorf("no facts to map for document type %q", res.DocumentType)
	}

	out := &Result{
		FactEntities: make(map[string]string, len(res.Facts)),
	}

	primary := common.NewKnowledgeEntity(m.primaryEntity, dataRoomID)
	out.Entities = append(out.Entities, primary)

	secondary := make(map[string]*common.KnowledgeEntity)

	confidenceSum := 0.0
	for _, fact := range res.Facts {
		confidenceSum += fact.Confidence

		target := primary
		if fact.EntityType != m.primaryEntity {
			ent, ok := secondary[fact.EntityType]
			if !ok {
				ent = common.NewKnowledgeEntity(fact.EntityType, dataRoomID)
				secondary[fact.EntityType] = ent
				out.Entities = append(out.Entities, ent)

				rel := ent.AddRelation(
					primary.ID,
					fmt.Sprintf("%s_to_%s", fact.EntityType, m.primaryEntity),
					secondaryLinkConfidence,
					fact.EvidenceID,
					nil,
				)
				out.Relations = append(out.Relations, *rel)
			}
			target = ent
		}

		value := fact.Value
		if fm, ok := m.fields[fact.Name]; ok {
			if err := fm.Validate(value); err != nil {
				out.Warnings = append(out.Warnings, err.Error())
				continue
			}
			coerced, err := fm.Apply(value)
			if err != nil {
				// Coercion failure keeps the raw value.
				out.Warnings = append(out.Warnings, err.Error())
			}
			value = coerced
		}

		target.SetAttribute(fact.Name, value, fact.Confidence, fact.EvidenceID)
		out.FactEntities[fact.ID] = target.ID
	}

	out.Confidence = confidenceSum / float64(len(res.Facts))
	return out, nil
}
