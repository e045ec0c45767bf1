package classify

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// DocumentTypeUnknown is returned when no document type reaches its
// acceptance threshold.
const DocumentTypeUnknown = "unknown"

// Structural document types resolved directly from the declared MIME type.
const (
	DocumentTypeImage       = "image"
	DocumentTypeCSV         = "csv"
	DocumentTypeSpreadsheet = "spreadsheet"
	DocumentTypePDF         = "pdf"
	DocumentTypeSQLite      = "sqlite"
)

// Classification methods recorded on the result.
const (
	MethodMimeType = "mime_type"
	MethodKeyword  = "keyword_analysis"
)

const (
	mimeConfidence = 0.95
	filenameScore  = 0.7
	filenameWeight = 0.4
	contentWeight  = 0.6
	contentCap     = 0.9
	contentFloor   = 0.2
	binaryScore    = 0.3

	sampleSize = 8192
)

// Classification is the result of classifying one document.
type Classification struct {
	DocumentType   string            `json:"document_type"`
	Confidence     float64           `json:"confidence"`
	Method         string            `json:"method"`
	DetectedFields []string          `json:"detected_fields,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Unknown reports whether the classification failed to reach a threshold.
func (c Classification) Unknown() bool {
	return c.DocumentType == DocumentTypeUnknown
}

// Classifier maps raw documents to document-type tags with a confidence
// score. Classification is a pure function of the input bytes and metadata;
// a Classifier is safe for concurrent use.
type Classifier struct {
	types     []TypeConfig
	mimeTypes map[string]string
}

// NewClassifierParams defines the configuration for creating a Classifier.
type NewClassifierParams struct {
	Config Config
}

// NewClassifier creates a Classifier over the configured document types.
func NewClassifier(params NewClassifierParams) *Classifier {
	return &Classifier{
		types: params.Config.Types,
		mimeTypes: map[string]string{
			"text/csv":                 DocumentTypeCSV,
			"application/csv":          DocumentTypeCSV,
			"application/pdf":          DocumentTypePDF,
			"application/vnd.ms-excel": DocumentTypeSpreadsheet,
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": DocumentTypeSpreadsheet,
			"application/x-sqlite3":   DocumentTypeSQLite,
			"application/vnd.sqlite3": DocumentTypeSQLite,
		},
	}
}

// Classify maps a document stream plus filename and declared MIME type to a
// document type. A recognized structural MIME type short-circuits all other
// analysis. Otherwise each configured type receives a filename score and a
// content score which are combined 40/60; the best-scoring type wins if it
// reaches its own minimum confidence, else the result is Unknown.
//
// The stream is rewound to its start after the textual sample read.
func (c *Classifier) Classify(stream io.ReadSeeker, fileName, mimeType string) (Classification, error) {
	if structural, ok := c.resolveMimeType(mimeType); ok {
		return Classification{
			DocumentType: structural,
			Confidence:   mimeConfidence,
			Method:       MethodMimeType,
			Metadata:     map[string]string{"mime_type": mimeType},
		}, nil
	}

	sample, err := readSample(stream)
	if err != nil {
		return Classification{}, fmt.Errorf("failed to sample document %q: %w", fileName, err)
	}

	textual := isTextReadable(sample)
	content := strings.ToLower(string(sample))
	name := strings.ToLower(fileName)

	best := Classification{DocumentType: DocumentTypeUnknown, Method: MethodKeyword}
	bestScore := 0.0
	bestThreshold := DefaultMinConfidence

	for _, dt := range c.types {
		fnScore := 0.0
		for _, kw := range dt.Keywords {
			if strings.Contains(name, strings.ToLower(kw)) {
				fnScore = filenameScore
				break
			}
		}

		var matched []string
		ctScore := 0.0
		if textual {
			for _, kw := range dt.Keywords {
				if strings.Contains(content, strings.ToLower(kw)) {
					matched = append(matched, kw)
				}
			}
			if len(dt.Keywords) > 0 {
				ctScore = float64(len(matched)) / float64(len(dt.Keywords))
			}
			if ctScore > contentCap {
				ctScore = contentCap
			}
			if ctScore <= contentFloor {
				ctScore = 0
			}
		} else {
			// Binary content we cannot read yet: flat placeholder score
			// pending real content extraction.
			ctScore = binaryScore
		}

		combined := filenameWeight*fnScore + contentWeight*ctScore
		if combined <= bestScore {
			continue
		}
		bestScore = combined
		bestThreshold = dt.MinConfidence
		best = Classification{
			DocumentType:   dt.Name,
			Confidence:     combined,
			Method:         MethodKeyword,
			DetectedFields: matched,
			Metadata: map[string]string{
				"filename_score": fmt.Sprintf("%.2f", fnScore),
				"content_score":  fmt.Sprintf("%.2f", ctScore),
			},
		}
	}

	// The epsilon absorbs float rounding so a score landing exactly on the
	// threshold is accepted.
	if best.DocumentType == DocumentTypeUnknown || bestScore+1e-9 < bestThreshold {
		return Classification{DocumentType: DocumentTypeUnknown, Method: MethodKeyword}, nil
	}
	return best, nil
}

func (c *Classifier) resolveMimeType(mimeType string) (string, bool) {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if idx := strings.Index(mt, ";"); idx != -1 {
		mt = strings.TrimSpace(mt[:idx])
	}
	if strings.HasPrefix(mt, "image/") {
		return DocumentTypeImage, true
	}
	structural, ok := c.mimeTypes[mt]
	return structural, ok
}

// readSample reads a bounded prefix of the stream and rewinds it.
func readSample(stream io.ReadSeeker) ([]byte, error) {
	buf := make([]byte, sampleSize)
	n, err := io.ReadFull(stream, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, err
	}
	if _, err := stream.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind stream: %w", err)
	}
	return buf[:n], nil
}

// isTextReadable reports whether the sample looks like readable text: valid
// UTF-8 with a high ratio of printable runes.
func isTextReadable(sample []byte) bool {
	if len(sample) == 0 {
		return false
	}
	if !utf8.Valid(sample) {
		return false
	}
	printable := 0
	total := 0
	for _, r := range string(sample) {
		total++
		if r == '\n' || r == '\r' || r == '\t' || r >= 0x20 {
			printable++
		}
	}
	return float64(printable)/float64(total) >= 0.95
}
