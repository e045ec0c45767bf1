package invoice

import (
	"context"
	"fmt"
	"regexp"

	"github.com/factgraph/backend/pkg/extract"
)

// Patterns are compiled once; the extractor is stateless and safe for
// concurrent use.
var fieldPatterns = []extract.FieldPattern{
	{
		EntityType: "invoice",
		Name:       "invoice_number",
		Pattern:    regexp.MustCompile(`(?im)invoice\s*(?:no\.?|number|#)\s*[:#]?\s*([A-Za-z0-9][A-Za-z0-9/-]*)`),
		Confidence: 0.9,
	},
	{
		EntityType: "invoice",
		Name:       "invoice_date",
		Pattern:    regexp.MustCompile(`(?im)invoice\s+date\s*:?\s*([0-9]{1,4}[-/.][0-9]{1,2}[-/.][0-9]{1,4})`),
		Confidence: 0.85,
	},
	{
		EntityType: "invoice",
		Name:       "due_date",
		Pattern:    regexp.MustCompile(`(?im)due\s+date\s*:?\s*([0-9]{1,4}[-/.][0-9]{1,2}[-/.][0-9]{1,4})`),
		Confidence: 0.85,
	},
	{
		EntityType: "invoice",
		Name:       "total_amount",
		Pattern:    regexp.MustCompile(`(?im)\btotal\s*(?:due|amount)?\s*:?\s*(?:(?-i:[A-Z]{3})\s*|[$€£]\s*)?([0-9][0-9,]*(?:\.[0-9]{1,2})?)`),
		Confidence: 0.85,
	},
	{
		EntityType: "invoice",
		Name:       "tax_amount",
		Pattern:    regexp.MustCompile(`(?im)\b(?:tax|vat)\s*(?:amount)?\s*:?\s*(?:(?-i:[A-Z]{3})\s*|[$€£]\s*)?([0-9][0-9,]*(?:\.[0-9]{1,2})?)`),
		Confidence: 0.75,
	},
	{
		EntityType: "invoice",
		Name:       "currency",
		Pattern:    regexp.MustCompile(`(?m)\b(EUR|USD|GBP|CHF|JPY)\b`),
		Confidence: 0.7,
	},
	{
		EntityType: "vendor",
		Name:       "name",
		Pattern:    regexp.MustCompile(`(?im)(?:from|vendor|supplier)\s*:\s*([^\n]+)`),
		Confidence: 0.8,
	},
	{
		EntityType: "vendor",
		Name:       "tax_id",
		Pattern:    regexp.MustCompile(`(?im)(?:tax\s+id|vat\s+id|ust-id)\s*:?\s*([A-Za-z0-9][A-Za-z0-9 -]*)`),
		Confidence: 0.75,
	},
}

// InvoiceExtractor extracts invoice header fields and vendor details from
// text-readable invoice documents.
type InvoiceExtractor struct{}

// NewInvoiceExtractor creates an invoice extractor.
func NewInvoiceExtractor() *InvoiceExtractor {
	return &InvoiceExtractor{}
}

// Name returns the extractor name.
func (e *InvoiceExtractor) Name() string {
	return "invoice"
}

// CanExtract reports whether this extractor handles the document type.
func (e *InvoiceExtractor) CanExtract(documentType string) bool {
	return documentType == "invoice"
}

// Extract scans the invoice text for known header fields. Each matched field
// produces a fact plus an evidence record with the match location.
func (e *InvoiceExtractor) Extract(ctx context.Context, req extract.Request) (*extract.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text, err := extract.ReadText(req.Stream)
	if err != nil {
		return nil, fmt.Errorf("failed to read invoice %q: %w", req.FileName, err)
	}

	facts, evidence := extract.ScanText(text, fieldPatterns, extract.ScanParams{
		SourceType:    "document",
		SourceID:      req.FileName,
		SourcePath:    req.FileName,
		DataRoomID:    req.DataRoomID,
		CorrelationID: req.CorrelationID,
	})
	if len(facts) == 0 {
		return nil, fmt.Errorf("no invoice fields found in %q", req.FileName)
	}

	return &extract.Result{
		DocumentType: req.Classification.DocumentType,
		Facts:        facts,
		Evidence:     evidence,
		Metadata: map[string]string{
			"extractor":  e.Name(),
			"text_bytes": fmt.Sprintf("%d", len(text)),
		},
	}, nil
}
