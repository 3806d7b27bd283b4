package storage

import (
	"testing"
)

func TestCursor_RoundTrip(t *testing.T) {
	c := Cursor{AddedID: 42}
	encoded, err := c.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := DecodeCursor(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.AddedID != 42 {
		t.Errorf("added_id: got %d, want 42", decoded.AddedID)
	}
}

func TestDecodeCursor_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not base64", "!!!not-base64!!!"},
		{"base64 but not json", "bm90LWpzb24"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DecodeCursor(tc.input); err == nil {
				t.Error("expected error")
			}
		})
	}
}
