package invoice

import (
	"context"
	"strings"
	"testing"

	"github.com/factgraph/backend/pkg/classify"
	"github.com/factgraph/backend/pkg/extract"
)

const sampleInvoice = `ACME Industrial Supplies
Invoice Number: INV-2024-0042
Invoice Date: 2024-03-15
Due Date: 2024-04-14
Vendor: ACME Industrial Supplies GmbH
Tax ID: DE123456789

Subtotal: 1,000.00
VAT: 190.00
Total: EUR 1,190.00
`

func TestExtractInvoiceFields(t *testing.T) {
	e := NewInvoiceExtractor()
	res, err := e.Extract(context.Background(), extract.Request{
		Stream:         strings.NewReader(sampleInvoice),
		FileName:       "inv_42.txt",
		Classification: classify.Classification{DocumentType: "invoice"},
		DataRoomID:     "room-1",
		CorrelationID:  "corr-1",
	})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	byName := map[string]extract.Fact{}
	for _, f := range res.Facts {
		byName[f.EntityType+"."+f.Name] = f
	}

	tests := []struct {
		key  string
		want string
	}{
		{key: "invoice.invoice_number", want: "INV-2024-0042"},
		{key: "invoice.invoice_date", want: "2024-03-15"},
		{key: "invoice.due_date", want: "2024-04-14"},
		{key: "invoice.total_amount", want: "1,190.00"},
		{key: "invoice.tax_amount", want: "190.00"},
		{key: "invoice.currency", want: "EUR"},
		{key: "vendor.name", want: "ACME Industrial Supplies GmbH"},
		{key: "vendor.tax_id", want: "DE123456789"},
	}

	for _, tt := range tests {
		fact, ok := byName[tt.key]
		if !ok {
			t.Errorf("fact %q not extracted", tt.key)
			continue
		}
		if fact.Value.Str != tt.want {
			t.Errorf("fact %q = %q, want %q", tt.key, fact.Value.Str, tt.want)
		}
		if fact.EvidenceID == "" {
			t.Errorf("fact %q has no evidence reference", tt.key)
		}
	}

	if len(res.Evidence) != len(res.Facts) {
		t.Errorf("evidence count = %d, want one per fact (%d)", len(res.Evidence), len(res.Facts))
	}
	for _, ev := range res.Evidence {
		if !ev.HasLocation() {
			t.Errorf("evidence %s has no document coordinates", ev.ID)
		}
		if ev.DataRoomID != "room-1" || ev.CorrelationID != "corr-1" {
			t.Errorf("evidence %s missing scope: room=%q corr=%q", ev.ID, ev.DataRoomID, ev.CorrelationID)
		}
	}
}

func TestTotalAmountParsing(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "subtotal line does not shadow total",
			text: "Invoice Number: INV-1\nSubtotal: 1,000.00\nTotal: EUR 1,190.00\n",
			want: "1,190.00",
		},
		{
			name: "lowercase word before amount is not a currency code",
			text: "Invoice Number: INV-2\nRate total per 100 units: 7.50\nTotal: USD 115.00\n",
			want: "115.00",
		},
	}

	e := NewInvoiceExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.Extract(context.Background(), extract.Request{
				Stream:         strings.NewReader(tt.text),
				FileName:       "inv.txt",
				Classification: classify.Classification{DocumentType: "invoice"},
			})
			if err != nil {
				t.Fatalf("Extract failed: %v", err)
			}
			for _, f := range res.Facts {
				if f.EntityType == "invoice" && f.Name == "total_amount" {
					if f.Value.Str != tt.want {
						t.Errorf("total_amount = %q, want %q", f.Value.Str, tt.want)
					}
					return
				}
			}
			t.Error("total_amount not extracted")
		})
	}
}

func TestExtractNoFields(t *testing.T) {
	e := NewInvoiceExtractor()
	_, err := e.Extract(context.Background(), extract.Request{
		Stream:         strings.NewReader("nothing relevant here"),
		FileName:       "noise.txt",
		Classification: classify.Classification{DocumentType: "invoice"},
	})
	if err == nil {
		t.Fatal("expected an error for a document without invoice fields")
	}
}

func TestCanExtract(t *testing.T) {
	e := NewInvoiceExtractor()
	if !e.CanExtract("invoice") {
		t.Error("should handle invoice")
	}
	if e.CanExtract("purchase_order") {
		t.Error("should not handle purchase_order")
	}
}
