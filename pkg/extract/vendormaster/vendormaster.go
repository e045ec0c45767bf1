package vendormaster

import (
	"context"
	"fmt"
	"regexp"

	"github.com/factgraph/backend/pkg/extract"
)

var fieldPatterns = []extract.FieldPattern{
	{
		EntityType: "vendor",
		Name:       "vendor_id",
		Pattern:    regexp.MustCompile(`(?im)(?:vendor|supplier)\s*(?:id|no\.?|number)\s*:?\s*([A-Za-z0-9][A-Za-z0-9-]*)`),
		Confidence: 0.9,
	},
	{
		EntityType: "vendor",
		Name:       "name",
		Pattern:    regexp.MustCompile(`(?im)(?:vendor|supplier|company)\s+name\s*:?\s*([^\n]+)`),
		Confidence: 0.85,
	},
	{
		EntityType: "vendor",
		Name:       "tax_id",
		Pattern:    regexp.MustCompile(`(?im)(?:tax\s+id|vat\s+id)\s*:?\s*([A-Za-z0-9][A-Za-z0-9 -]*)`),
		Confidence: 0.85,
	},
	{
		EntityType: "vendor",
		Name:       "iban",
		Pattern:    regexp.MustCompile(`(?im)iban\s*:?\s*([A-Z]{2}[0-9]{2}[A-Za-z0-9 ]{8,30})`),
		Confidence: 0.85,
	},
	{
		EntityType: "vendor",
		Name:       "payment_terms",
		Pattern:    regexp.MustCompile(`(?im)payment\s+terms\s*:?\s*([^\n]+)`),
		Confidence: 0.75,
	},
	{
		EntityType: "vendor",
		Name:       "contact_email",
		Pattern:    regexp.MustCompile(`(?im)\b([a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,})\b`),
		Confidence: 0.8,
	},
	{
		EntityType: "vendor",
		Name:       "address",
		Pattern:    regexp.MustCompile(`(?im)address\s*:\s*([^\n]+)`),
		Confidence: 0.7,
	},
}

// VendorMasterExtractor extracts vendor master-data records.
type VendorMasterExtractor struct{}

// NewVendorMasterExtractor creates a vendor-master extractor.
func NewVendorMasterExtractor() *VendorMasterExtractor {
	return &VendorMasterExtractor{}
}

// Name returns the extractor name.
func (e *VendorMasterExtractor) Name() string {
	return "vendor_master"
}

// CanExtract reports whether this extractor handles the document type.
func (e *VendorMasterExtractor) CanExtract(documentType string) bool {
	return documentType == "vendor_master"
}

// Extract scans the vendor-master text for known fields.
func (e *VendorMasterExtractor) Extract(ctx context.Context, req extract.Request) (*extract.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text, err := extract.ReadText(req.Stream)
	if err != nil {
		return nil, fmt.Errorf("failed to read vendor master %q: %w", req.FileName, err)
	}

	facts, evidence := extract.ScanText(text, fieldPatterns, extract.ScanParams{
		SourceType:    "document",
		SourceID:      req.FileName,
		SourcePath:    req.FileName,
		DataRoomID:    req.DataRoomID,
		CorrelationID: req.CorrelationID,
	})
	if len(facts) == 0 {
		return nil, fmt.Errorf("no vendor fields found in %q", req.FileName)
	}

	return &extract.Result{
		DocumentType: req.Classification.DocumentType,
		Facts:        facts,
		Evidence:     evidence,
		Metadata:     map[string]string{"extractor": e.Name()},
	}, nil
}
