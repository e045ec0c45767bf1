package classify

import (
	"bytes"
	"strings"
	"testing"
)

func testClassifier(types ...TypeConfig) *Classifier {
	cfg := Config{Types: types}
	if len(types) == 0 {
		cfg = DefaultConfig()
	}
	return NewClassifier(NewClassifierParams{Config: cfg})
}

func TestClassifyMimeTypePrecedence(t *testing.T) {
	c := testClassifier()

	tests := []struct {
		name     string
		mimeType string
		fileName string
		content  string
		want     string
	}{
		{
			name:     "csv mime wins over invoice content",
			mimeType: "text/csv",
			fileName: "invoice_2024.txt",
			content:  "invoice number: 42\nbill to: ACME\ntotal: 100",
			want:     DocumentTypeCSV,
		},
		{
			name:     "pdf mime",
			mimeType: "application/pdf",
			fileName: "whatever.bin",
			content:  "%PDF-1.7",
			want:     DocumentTypePDF,
		},
		{
			name:     "image mime prefix",
			mimeType: "image/png",
			fileName: "scan.png",
			content:  "\x89PNG",
			want:     DocumentTypeImage,
		},
		{
			name:     "mime with parameters",
			mimeType: "text/csv; charset=utf-8",
			fileName: "data.csv",
			content:  "a,b,c",
			want:     DocumentTypeCSV,
		},
		{
			name:     "spreadsheet mime",
			mimeType: "application/vnd.ms-excel",
			fileName: "report.xls",
			content:  "binary",
			want:     DocumentTypeSpreadsheet,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Classify(strings.NewReader(tt.content), tt.fileName, tt.mimeType)
			if err != nil {
				t.Fatalf("Classify failed: %v", err)
			}
			if got.DocumentType != tt.want {
				t.Errorf("document type = %q, want %q", got.DocumentType, tt.want)
			}
			if got.Confidence != 0.95 {
				t.Errorf("confidence = %v, want 0.95", got.Confidence)
			}
			if got.Method != MethodMimeType {
				t.Errorf("method = %q, want %q", got.Method, MethodMimeType)
			}
		})
	}
}

func TestClassifyThresholdGating(t *testing.T) {
	// Ten keywords so the content score is exactly matched/10.
	keywords := []string{
		"alpha", "bravo", "charlie", "delta", "echo",
		"foxtrot", "golf", "hotel", "india", "juliet",
	}

	tests := []struct {
		name    string
		matched int
		want    string
	}{
		// filename score 0.7 * 0.4 = 0.28; content 0.7 * 0.6 = 0.42 -> 0.70.
		{name: "at threshold", matched: 7, want: "report"},
		// content 0.6 * 0.6 = 0.36 -> 0.64, below threshold.
		{name: "below threshold", matched: 6, want: DocumentTypeUnknown},
		{name: "all keywords clipped to 0.9", matched: 10, want: "report"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testClassifier(TypeConfig{
				Name:          "report",
				Keywords:      keywords,
				MinConfidence: 0.7,
			})

			content := strings.Join(keywords[:tt.matched], " ")
			got, err := c.Classify(strings.NewReader(content), "alpha.txt", "text/plain")
			if err != nil {
				t.Fatalf("Classify failed: %v", err)
			}
			if got.DocumentType != tt.want {
				t.Errorf("document type = %q (confidence %v), want %q", got.DocumentType, got.Confidence, tt.want)
			}
			if tt.want == DocumentTypeUnknown && got.Confidence != 0 {
				t.Errorf("unknown classification should carry confidence 0, got %v", got.Confidence)
			}
		})
	}
}

func TestClassifyContentScoreFloor(t *testing.T) {
	// Two of ten keywords matched: ratio 0.2 is not kept, so the filename
	// score alone (0.28) cannot reach the threshold.
	c := testClassifier(TypeConfig{
		Name: "report",
		Keywords: []string{
			"alpha", "bravo", "charlie", "delta", "echo",
			"foxtrot", "golf", "hotel", "india", "juliet",
		},
		MinConfidence: 0.4,
	})

	got, err := c.Classify(strings.NewReader("alpha bravo"), "alpha.txt", "text/plain")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if got.DocumentType != DocumentTypeUnknown {
		t.Errorf("document type = %q, want unknown (content score at floor is dropped)", got.DocumentType)
	}
}

func TestClassifyBinaryPlaceholderScore(t *testing.T) {
	// Binary content gets a flat 0.3 content score. Combined with a filename
	// hit: 0.7*0.4 + 0.3*0.6 = 0.46.
	c := testClassifier(TypeConfig{
		Name:          "invoice",
		Keywords:      []string{"invoice"},
		MinConfidence: 0.46,
	})

	binary := append([]byte{0x00, 0x01, 0xff, 0xfe}, bytes.Repeat([]byte{0x00}, 64)...)
	got, err := c.Classify(bytes.NewReader(binary), "invoice_march.bin", "application/octet-stream")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if got.DocumentType != "invoice" {
		t.Errorf("document type = %q, want invoice", got.DocumentType)
	}
	if got.Confidence < 0.459 || got.Confidence > 0.461 {
		t.Errorf("confidence = %v, want 0.46", got.Confidence)
	}
}

func TestClassifyRewindsStream(t *testing.T) {
	c := testClassifier()
	r := strings.NewReader("invoice number: 1\nbill to: someone\ntotal: 5")

	if _, err := c.Classify(r, "notes.txt", "text/plain"); err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	pos, err := r.Seek(0, 1)
	if err != nil {
		t.Fatalf("Seek failed: %v", err)
	}
	if pos != 0 {
		t.Errorf("stream position after classify = %d, want 0", pos)
	}
}

func TestParseConfig(t *testing.T) {
	data := []byte(`
document_types:
  - name: invoice
    keywords: [invoice, "bill to"]
  - name: delivery_note
    keywords: [delivery]
    min_confidence: 0.5
`)
	cfg, err := ParseConfig(data)
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}
	if len(cfg.Types) != 2 {
		t.Fatalf("expected 2 types, got %d", len(cfg.Types))
	}
	if cfg.Types[0].MinConfidence != DefaultMinConfidence {
		t.Errorf("default threshold = %v, want %v", cfg.Types[0].MinConfidence, DefaultMinConfidence)
	}
	if cfg.Types[1].MinConfidence != 0.5 {
		t.Errorf("explicit threshold = %v, want 0.5", cfg.Types[1].MinConfidence)
	}

	if _, err := ParseConfig([]byte("document_types: []")); err == nil {
		t.Error("empty type list should fail validation")
	}
	if _, err := ParseConfig([]byte("document_types:\n  - name: x\n    keywords: []")); err == nil {
		t.Error("type without keywords should fail validation")
	}
}
