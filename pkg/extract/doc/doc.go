package doc

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/factgraph/backend/pkg/common"
	"github.com/factgraph/backend/pkg/extract"
)

// MethodDocument tags evidence produced from whole-document text capture.
const MethodDocument = "document_text"

// DocExtractor handles generic text documents, including Word files, where
// no type-specific extractor applies. It captures document-level facts
// (title, size) with a single evidence record spanning the text.
type DocExtractor struct{}

// NewDocExtractor creates a generic document extractor.
func NewDocExtractor() *DocExtractor {
	return &DocExtractor{}
}

// Name returns the extractor name.
func (e *DocExtractor) Name() string {
	return "document"
}

// CanExtract reports whether this extractor handles the document type.
func (e *DocExtractor) CanExtract(documentType string) bool {
	return documentType == "document"
}

// Extract captures the document text (unpacking docx content when present)
// and emits document-level facts.
func (e *DocExtractor) Extract(ctx context.Context, req extract.Request) (*extract.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := extract.ReadText(req.Stream)
	if err != nil {
		return nil, fmt.Errorf("failed to read document %q: %w", req.FileName, err)
	}

	text := raw
	format := "text"
	if isZip([]byte(raw)) {
		parsed, err := parseDocx([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("failed to parse docx %q: %w", req.FileName, err)
		}
		text = string(parsed)
		format = "docx"
	}

	title := firstLine(text)
	if title == "" {
		return nil, fmt.Errorf("document %q has no readable text", req.FileName)
	}

	ev := common.NewEvidence(common.NewEvidenceParams{
		SourceType:       "document",
		SourceID:         req.FileName,
		SourcePath:       req.FileName,
		Confidence:       0.6,
		ExtractionMethod: MethodDocument,
		DataRoomID:       req.DataRoomID,
		CorrelationID:    req.CorrelationID,
	})
	_ = ev.SetLocation(1, common.BoundingBox{Width: 1, Height: 1}, common.TextSpan{Start: 0, End: len(text)})
	ev.SetMeta("format", format)

	facts := []extract.Fact{
		{
			ID:         common.NewID(),
			EntityType: "document",
			Name:       "title",
			Value:      common.StringValue(title),
			Confidence: 0.6,
			EvidenceID: ev.ID,
		},
		{
			ID:         common.NewID(),
			EntityType: "document",
			Name:       "character_count",
			Value:      common.StringValue(fmt.Sprintf("%d", len(text))),
			Confidence: 1,
			EvidenceID: ev.ID,
		},
		{
			ID:         common.NewID(),
			EntityType: "document",
			Name:       "file_name",
			Value:      common.StringValue(req.FileName),
			Confidence: 1,
			EvidenceID: ev.ID,
		},
	}

	return &extract.Result{
		DocumentType: req.Classification.DocumentType,
		Facts:        facts,
		Evidence:     []common.Evidence{ev},
		Metadata:     map[string]string{"extractor": e.Name(), "format": format},
	}, nil
}

func isZip(data []byte) bool {
	return len(data) >= 4 && bytes.HasPrefix(data, []byte("PK\x03\x04"))
}

func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
