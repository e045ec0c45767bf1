package purchaseorder

import (
	"context"
	"fmt"
	"regexp"

	"github.com/factgraph/backend/pkg/extract"
)

var fieldPatterns = []extract.FieldPattern{
	{
		EntityType: "purchase_order",
		Name:       "po_number",
		Pattern:    regexp.MustCompile(`(?im)(?:purchase\s+order|po)\s*(?:no\.?|number|#)\s*[:#]?\s*([A-Za-z0-9][A-Za-z0-9/-]*)`),
		Confidence: 0.9,
	},
	{
		EntityType: "purchase_order",
		Name:       "order_date",
		Pattern:    regexp.MustCompile(`(?im)order\s+date\s*:?\s*([0-9]{1,4}[-/.][0-9]{1,2}[-/.][0-9]{1,4})`),
		Confidence: 0.85,
	},
	{
		EntityType: "purchase_order",
		Name:       "delivery_date",
		Pattern:    regexp.MustCompile(`(?im)delivery\s+date\s*:?\s*([0-9]{1,4}[-/.][0-9]{1,2}[-/.][0-9]{1,4})`),
		Confidence: 0.8,
	},
	{
		EntityType: "purchase_order",
		Name:       "total_amount",
		Pattern:    regexp.MustCompile(`(?im)\btotal\s*(?:amount)?\s*:?\s*(?:(?-i:[A-Z]{3})\s*|[$€£]\s*)?([0-9][0-9,]*(?:\.[0-9]{1,2})?)`),
		Confidence: 0.85,
	},
	{
		EntityType: "purchase_order",
		Name:       "ship_to",
		Pattern:    regexp.MustCompile(`(?im)ship\s+to\s*:\s*([^\n]+)`),
		Confidence: 0.75,
	},
	{
		EntityType: "vendor",
		Name:       "name",
		Pattern:    regexp.MustCompile(`(?im)(?:supplier|vendor)\s*:\s*([^\n]+)`),
		Confidence: 0.8,
	},
}

// POExtractor extracts purchase-order header fields and the supplying vendor.
type POExtractor struct{}

// NewPOExtractor creates a purchase-order extractor.
func NewPOExtractor() *POExtractor {
	return &POExtractor{}
}

// Name returns the extractor name.
func (e *POExtractor) Name() string {
	return "purchase_order"
}

// CanExtract reports whether this extractor handles the document type.
func (e *POExtractor) CanExtract(documentType string) bool {
	return documentType == "purchase_order"
}

// Extract scans the purchase-order text for known fields.
func (e *POExtractor) Extract(ctx context.Context, req extract.Request) (*extract.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text, err := extract.ReadText(req.Stream)
	if err != nil {
		return nil, fmt.Errorf("failed to read purchase order %q: %w", req.FileName, err)
	}

	facts, evidence := extract.ScanText(text, fieldPatterns, extract.ScanParams{
		SourceType:    "document",
		SourceID:      req.FileName,
		SourcePath:    req.FileName,
		DataRoomID:    req.DataRoomID,
		CorrelationID: req.CorrelationID,
	})
	if len(facts) == 0 {
		return nil, fmt.Errorf("no purchase-order fields found in %q", req.FileName)
	}

	return &extract.Result{
		DocumentType: req.Classification.DocumentType,
		Facts:        facts,
		Evidence:     evidence,
		Metadata:     map[string]string{"extractor": e.Name()},
	}, nil
}
