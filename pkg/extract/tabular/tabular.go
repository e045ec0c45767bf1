package tabular

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/factgraph/backend/pkg/common"
	"github.com/factgraph/backend/pkg/extract"
)

// MethodTable tags evidence produced from tabular cells.
const MethodTable = "table_cell"

const cellConfidence = 0.85

// TabularExtractor extracts facts from delimited tabular documents (CSV and
// pre-converted spreadsheet sheets). The header row supplies attribute
// names; the first data row becomes the record's facts, and row/column
// counts describe the table itself.
type TabularExtractor struct{}

// NewTabularExtractor creates a tabular extractor.
func NewTabularExtractor() *TabularExtractor {
	return &TabularExtractor{}
}

// Name returns the extractor name.
func (e *TabularExtractor) Name() string {
	return "tabular"
}

// CanExtract reports whether this extractor handles the document type.
func (e *TabularExtractor) CanExtract(documentType string) bool {
	return documentType == "csv" || documentType == "spreadsheet"
}

// Extract parses the table and emits one fact per cell of the first data
// row plus table-shape facts. Each cell fact carries evidence locating the
// cell by row and column.
func (e *TabularExtractor) Extract(ctx context.Context, req extract.Request) (*extract.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := parseRows(req.Stream)
	if err != nil {
		return nil, fmt.Errorf("failed to parse table %q: %w", req.FileName, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("table %q has no data rows", req.FileName)
	}

	headers := rows[0]
	record := rows[1]

	facts := make([]extract.Fact, 0, len(record)+2)
	evidence := make([]common.Evidence, 0, len(record))

	for col, cell := range record {
		if col >= len(headers) {
			break
		}
		name := normalizeHeader(headers[col])
		value := strings.TrimSpace(cell)
		if name == "" || value == "" {
			continue
		}

		ev := common.NewEvidence(common.NewEvidenceParams{
			SourceType:       "table",
			SourceID:         req.FileName,
			SourcePath:       req.FileName,
			Confidence:       cellConfidence,
			ExtractionMethod: MethodTable,
			DataRoomID:       req.DataRoomID,
			CorrelationID:    req.CorrelationID,
		})
		// Cell-grid coordinates: column and row index of the cell.
		_ = ev.SetLocation(1, common.BoundingBox{
			X: float64(col), Y: 1, Width: 1, Height: 1,
		}, common.TextSpan{Start: 0, End: len(value)})
		ev.SetMeta("coordinate_space", "cell_grid")
		ev.SetMeta("column", headers[col])
		evidence = append(evidence, ev)

		facts = append(facts, extract.Fact{
			ID:         common.NewID(),
			EntityType: "record",
			Name:       name,
			Value:      common.StringValue(value),
			Confidence: cellConfidence,
			EvidenceID: ev.ID,
		})
	}

	if len(facts) == 0 {
		return nil, fmt.Errorf("table %q has no usable cells", req.FileName)
	}

	facts = append(facts,
		extract.Fact{
			ID:         common.NewID(),
			EntityType: "table",
			Name:       "row_count",
			Value:      common.StringValue(fmt.Sprintf("%d", len(rows)-1)),
			Confidence: 1,
		},
		extract.Fact{
			ID:         common.NewID(),
			EntityType: "table",
			Name:       "columns",
			Value:      common.StringValue(strings.Join(headers, ",")),
			Confidence: 1,
		},
	)

	return &extract.Result{
		DocumentType: req.Classification.DocumentType,
		Facts:        facts,
		Evidence:     evidence,
		Metadata: map[string]string{
			"extractor": e.Name(),
			"rows":      fmt.Sprintf("%d", len(rows)),
		},
	}, nil
}

// parseRows reads all non-empty CSV records, tolerating ragged rows and
// lazy quoting, and rewinds the stream afterwards.
func parseRows(stream io.ReadSeeker) ([][]string, error) {
	reader := csv.NewReader(stream)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows := make([][]string, 0, 64)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Malformed rows are skipped; anything else is an I/O error
			// and would loop forever if ignored.
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				continue
			}
			return nil, err
		}

		empty := true
		for _, field := range record {
			if strings.TrimSpace(field) != "" {
				empty = false
				break
			}
		}
		if empty {
			continue
		}
		rows = append(rows, record)
	}

	if _, err := stream.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return rows, nil
}

func normalizeHeader(header string) string {
	h := strings.ToLower(strings.TrimSpace(header))
	h = strings.ReplaceAll(h, " ", "_")
	return strings.Trim(h, "_")
}
