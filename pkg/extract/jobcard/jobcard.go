package jobcard

import (
	"context"
	"fmt"
	"regexp"

	"github.com/factgraph/backend/pkg/extract"
)

var fieldPatterns = []extract.FieldPattern{
	{
		EntityType: "job_card",
		Name:       "job_number",
		Pattern:    regexp.MustCompile(`(?im)(?:job|work\s+order)\s*(?:no\.?|number|#)\s*[:#]?\s*([A-Za-z0-9][A-Za-z0-9/-]*)`),
		Confidence: 0.9,
	},
	{
		EntityType: "job_card",
		Name:       "scheduled_date",
		Pattern:    regexp.MustCompile(`(?im)scheduled\s*(?:date|for)?\s*:?\s*([0-9]{1,4}[-/.][0-9]{1,2}[-/.][0-9]{1,4})`),
		Confidence: 0.8,
	},
	{
		EntityType: "job_card",
		Name:       "completed_date",
		Pattern:    regexp.MustCompile(`(?im)completed\s*(?:date|on)?\s*:?\s*([0-9]{1,4}[-/.][0-9]{1,2}[-/.][0-9]{1,4})`),
		Confidence: 0.8,
	},
	{
		EntityType: "job_card",
		Name:       "labor_hours",
		Pattern:    regexp.MustCompile(`(?im)labor\s+hours\s*:?\s*([0-9]+(?:\.[0-9]+)?)`),
		Confidence: 0.8,
	},
	{
		EntityType: "technician",
		Name:       "name",
		Pattern:    regexp.MustCompile(`(?im)technician\s*:\s*([^\n]+)`),
		Confidence: 0.8,
	},
	{
		EntityType: "asset",
		Name:       "name",
		Pattern:    regexp.MustCompile(`(?im)(?:machine|asset|equipment)\s*:\s*([^\n]+)`),
		Confidence: 0.75,
	},
}

// JobCardExtractor extracts maintenance job-card fields: the job itself plus
// the technician and the serviced asset.
type JobCardExtractor struct{}

// NewJobCardExtractor creates a job-card extractor.
func NewJobCardExtractor() *JobCardExtractor {
	return &JobCardExtractor{}
}

// Name returns the extractor name.
func (e *JobCardExtractor) Name() string {
	return "job_card"
}

// CanExtract reports whether this extractor handles the document type.
func (e *JobCardExtractor) CanExtract(documentType string) bool {
	return documentType == "job_card"
}

// Extract scans the job-card text for known fields.
func (e *JobCardExtractor) Extract(ctx context.Context, req extract.Request) (*extract.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text, err := extract.ReadText(req.Stream)
	if err != nil {
		return nil, fmt.Errorf("failed to read job card %q: %w", req.FileName, err)
	}

	facts, evidence := extract.ScanText(text, fieldPatterns, extract.ScanParams{
		SourceType:    "document",
		SourceID:      req.FileName,
		SourcePath:    req.FileName,
		DataRoomID:    req.DataRoomID,
		CorrelationID: req.CorrelationID,
	})
	if len(facts) == 0 {
		return nil, fmt.Errorf("no job-card fields found in %q", req.FileName)
	}

	return &extract.Result{
		DocumentType: req.Classification.DocumentType,
		Facts:        facts,
		Evidence:     evidence,
		Metadata:     map[string]string{"extractor": e.Name()},
	}, nil
}
