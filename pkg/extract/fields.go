package extract

import (
	"io"
	"regexp"
	"strings"

	"github.com/factgraph/backend/pkg/common"
)

// MethodRegex tags evidence produced by pattern-based field extraction.
const MethodRegex = "regex"

const maxTextSize = 4 << 20

// FieldPattern describes one extractable field: the entity type it maps to,
// the attribute name, and a regex whose first capture group is the value.
type FieldPattern struct {
	EntityType string
	Name       string
	Pattern    *regexp.Regexp
	Confidence float64
}

// ScanParams carries the provenance context for a ScanText call.
type ScanParams struct {
	SourceType    string
	SourceID      string
	SourcePath    string
	DataRoomID    string
	CorrelationID string
}

// ScanText matches field patterns against extracted document text. Every
// match yields a fact plus an evidence record locating the value: page 1
// with a text-grid bounding box (column/line of the match) and the character
// span of the captured value.
func ScanText(text string, patterns []FieldPattern, params ScanParams) ([]Fact, []common.Evidence) {
	facts := make([]Fact, 0, len(patterns))
	evidence := make([]common.Evidence, 0, len(patterns))

	for _, fp := range patterns {
		loc := fp.Pattern.FindStringSubmatchIndex(text)
		if loc == nil || len(loc) < 4 || loc[2] < 0 {
			continue
		}
		start, end := loc[2], loc[3]
		value := strings.TrimSpace(text[start:end])
		if value == "" {
			continue
		}

		ev := common.NewEvidence(common.NewEvidenceParams{
			SourceType:       params.SourceType,
			SourceID:         params.SourceID,
			SourcePath:       params.SourcePath,
			Confidence:       fp.Confidence,
			ExtractionMethod: MethodRegex,
			DataRoomID:       params.DataRoomID,
			CorrelationID:    params.CorrelationID,
		})
		line, col := lineCol(text, start)
		// Text-grid coordinates: one unit per character, one line per row.
		_ = ev.SetLocation(1, common.BoundingBox{
			X:      float64(col),
			Y:      float64(line),
			Width:  float64(end - start),
			Height: 1,
		}, common.TextSpan{Start: start, End: end})
		ev.SetMeta("coordinate_space", "text_grid")
		ev.SetMeta("field", fp.Name)
		evidence = append(evidence, ev)

		facts = append(facts, Fact{
			ID:         common.NewID(),
			EntityType: fp.EntityType,
			Name:       fp.Name,
			Value:      common.StringValue(value),
			Confidence: fp.Confidence,
			EvidenceID: ev.ID,
		})
	}

	return facts, evidence
}

// ReadText reads the full document text, bounded, and rewinds the stream.
func ReadText(stream io.ReadSeeker) (string, error) {
	data, err := io.ReadAll(io.LimitReader(stream, maxTextSize))
	if err != nil {
		return "", err
	}
	if _, err := stream.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return string(data), nil
}

// lineCol converts a byte offset into zero-based line and column numbers.
func lineCol(text string, offset int) (line, col int) {
	for i := 0; i < offset && i < len(text); i++ {
		if text[i] == '\n' {
			line++
			col = 0
			continue
		}
		col++
	}
	return line, col
}
