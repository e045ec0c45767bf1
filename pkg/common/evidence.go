package common

import (
	"fmt"
	"time"
)

// BoundingBox is a rectangle on a document page, in page coordinates.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// TextSpan is a character range inside the extracted text of a document.
type TextSpan struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Evidence is a provenance record linking an extracted fact to its location
// in a source document. Evidence is immutable once created, except for its
// metadata map. It is persisted before any entity attribute or relation that
// references it so those records always carry a valid evidence id.
//
// The document coordinates (page number, bounding box, text span) are set
// together via SetLocation or not at all.
type Evidence struct {
	ID                   string            `json:"id"`
	SourceType           string            `json:"source_type"`
	SourceID             string            `json:"source_id"`
	SourcePath           string            `json:"source_path"`
	PageNumber           int               `json:"page_number,omitempty"`
	BoundingBox          *BoundingBox      `json:"bounding_box,omitempty"`
	TextSpan             *TextSpan         `json:"text_span,omitempty"`
	ExtractionConfidence float64           `json:"extraction_confidence"`
	ExtractionMethod     string            `json:"extraction_method"`
	DataRoomID           string            `json:"data_room_id"`
	CorrelationID        string            `json:"correlation_id"`
	Metadata             map[string]string `json:"metadata,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
}

// NewEvidenceParams defines the input for creating an Evidence record.
type NewEvidenceParams struct {
	SourceType       string
	SourceID         string
	SourcePath       string
	Confidence       float64
	ExtractionMethod string
	DataRoomID       string
	CorrelationID    string
}

// NewEvidence creates an Evidence record without document coordinates.
func NewEvidence(params NewEvidenceParams) Evidence {
	return Evidence{
		ID:                   NewID(),
		SourceType:           params.SourceType,
		SourceID:             params.SourceID,
		SourcePath:           params.SourcePath,
		ExtractionConfidence: params.Confidence,
		ExtractionMethod:     params.ExtractionMethod,
		DataRoomID:           params.DataRoomID,
		CorrelationID:        params.CorrelationID,
		CreatedAt:            time.Now().UTC(),
	}
}

// SetLocation attaches the full set of document coordinates. Page numbers
// start at 1.
func (e *Evidence) SetLocation(page int, box BoundingBox, span TextSpan) error {
	if page <= 0 {
		return fmt.Errorf("page number must be positive, got %d", page)
	}
	e.PageNumber = page
	e.BoundingBox = &box
	e.TextSpan = &span
	return nil
}

// HasLocation reports whether the evidence carries document coordinates.
func (e *Evidence) HasLocation() bool {
	return e.PageNumber > 0 && e.BoundingBox != nil && e.TextSpan != nil
}

// SetMeta records a metadata key. Metadata is the only mutable part of an
// evidence record.
func (e *Evidence) SetMeta(key, value string) {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
}
