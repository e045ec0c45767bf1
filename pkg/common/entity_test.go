package common

import (
	"testing"
	"time"
)

func TestSetAttributeUpdatesInPlace(t *testing.T) {
	e := NewKnowledgeEntity("invoice", "room-1")

	e.SetAttribute("amount", NumberValue(100), 0.8, "")
	e.SetAttribute("amount", NumberValue(150), 0.95, "")

	if len(e.Attributes) != 1 {
		t.Fatalf("expected exactly one attribute, got %d", len(e.Attributes))
	}

	attr := e.Attributes[0]
	if attr.Name != "amount" {
		t.Errorf("attribute name = %q, want %q", attr.Name, "amount")
	}
	if attr.Value.Num != 150 {
		t.Errorf("attribute value = %v, want 150", attr.Value.Num)
	}
	if attr.Confidence != 0.95 {
		t.Errorf("attribute confidence = %v, want 0.95", attr.Confidence)
	}
	if attr.Version != 2 {
		t.Errorf("attribute version = %d, want 2", attr.Version)
	}
	if e.Version != 3 {
		t.Errorf("entity version = %d, want 3 (1 initial + 2 mutations)", e.Version)
	}
}

func TestSetAttributeDistinctNames(t *testing.T) {
	e := NewKnowledgeEntity("vendor", "room-1")

	e.SetAttribute("name", StringValue("ACME"), 0.9, "ev-1")
	e.SetAttribute("tax_id", StringValue("DE123"), 0.7, "ev-2")

	if len(e.Attributes) != 2 {
		t.Fatalf("expected two attributes, got %d", len(e.Attributes))
	}
	for _, attr := range e.Attributes {
		if attr.Version != 1 {
			t.Errorf("attribute %q version = %d, want 1", attr.Name, attr.Version)
		}
		if attr.EntityID != e.ID {
			t.Errorf("attribute %q entity id = %q, want %q", attr.Name, attr.EntityID, e.ID)
		}
	}

	got, ok := e.GetAttribute("tax_id")
	if !ok {
		t.Fatal("GetAttribute(tax_id) not found")
	}
	if got.EvidenceID != "ev-2" {
		t.Errorf("evidence id = %q, want %q", got.EvidenceID, "ev-2")
	}
	if _, ok := e.GetAttribute("missing"); ok {
		t.Error("GetAttribute(missing) should report not found")
	}
}

func TestSetAttributeRecordsValueType(t *testing.T) {
	e := NewKnowledgeEntity("invoice", "room-1")

	ts := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		value AttributeValue
		want  ValueType
	}{
		{name: "number", value: NumberValue(12.5), want: ValueTypeNumber},
		{name: "string", value: StringValue("INV-1"), want: ValueTypeString},
		{name: "boolean", value: BoolValue(true), want: ValueTypeBoolean},
		{name: "timestamp", value: TimestampValue(ts), want: ValueTypeTimestamp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attr := e.SetAttribute(tt.name, tt.value, 0.5, "")
			if attr.ValueType != tt.want {
				t.Errorf("value type = %q, want %q", attr.ValueType, tt.want)
			}
		})
	}
}

func TestAddRelation(t *testing.T) {
	src := NewKnowledgeEntity("vendor", "room-1")
	dst := NewKnowledgeEntity("invoice", "room-1")

	rel := src.AddRelation(dst.ID, "vendor_to_invoice", 0.9, "ev-1", map[string]string{"role": "issuer"})

	if rel.SourceEntityID != src.ID || rel.TargetEntityID != dst.ID {
		t.Errorf("relation endpoints = (%q, %q), want (%q, %q)", rel.SourceEntityID, rel.TargetEntityID, src.ID, dst.ID)
	}
	if rel.Version != 1 {
		t.Errorf("relation version = %d, want 1", rel.Version)
	}
	if src.Version != 2 {
		t.Errorf("entity version = %d, want 2", src.Version)
	}

	// Same pair, same type again: no uniqueness constraint.
	src.AddRelation(dst.ID, "vendor_to_invoice", 0.8, "", nil)
	if len(src.Relations) != 2 {
		t.Errorf("expected two relations, got %d", len(src.Relations))
	}
}

func TestNewIDIsSortable(t *testing.T) {
	a := NewID()
	b := NewID()
	if a >= b {
		t.Errorf("ids should be monotonically ordered: %q then %q", a, b)
	}
	if len(a) != 26 {
		t.Errorf("id length = %d, want 26", len(a))
	}
}

func TestEvidenceLocation(t *testing.T) {
	ev := NewEvidence(NewEvidenceParams{
		SourceType:       "document",
		SourceID:         "doc-1",
		SourcePath:       "inbox/invoice.pdf",
		Confidence:       0.8,
		ExtractionMethod: "regex",
		DataRoomID:       "room-1",
		CorrelationID:    "corr-1",
	})

	if ev.HasLocation() {
		t.Error("fresh evidence should have no location")
	}
	if err := ev.SetLocation(0, BoundingBox{}, TextSpan{}); err == nil {
		t.Error("page 0 should be rejected")
	}
	if err := ev.SetLocation(2, BoundingBox{X: 1, Y: 2, Width: 3, Height: 4}, TextSpan{Start: 10, End: 20}); err != nil {
		t.Fatalf("SetLocation failed: %v", err)
	}
	if !ev.HasLocation() {
		t.Error("evidence should have a location after SetLocation")
	}
}
