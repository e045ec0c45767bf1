package storage

import "testing"

func TestObjectKey(t *testing.T) {
	tests := []struct {
		path string
		name string
		key  string
		want string
	}{
		{path: "processed/room-1", name: "invoice.pdf", key: "abc123", want: "processed/room-1/abc123.pdf"},
		{path: "processed/room-1", name: "vendors.csv", key: "abc123", want: "processed/room-1/abc123.csv"},
		{path: "inbox", name: "noext", key: "abc123", want: "inbox/abc123"},
	}
	for _, tt := range tests {
		if got := ObjectKey(tt.path, tt.name, tt.key); got != tt.want {
			t.Errorf("ObjectKey(%q, %q, %q) = %q, want %q", tt.path, tt.name, tt.key, got, tt.want)
		}
	}
}
