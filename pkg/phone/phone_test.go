package phone

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormat_Table(t *testing.T) {
	tests := []struct {
		raw     string
		display string
		e164    string
	}{
		{"", NotInformed, ""},
		{"1130456789", "+55 (11) 3045-6789", "+551130456789"},
		{"11987654321", "+55 (11) 98765-4321", "+5511987654321"},
		{"(11) 9 8765-4321", "+55 (11) 98765-4321", "+5511987654321"},
		{"12345", NotInformed, ""},
		{"+55 21 2222-3333", "+55 (21) 2222-3333", "+552122223333"},
		{"021 2222 3333", "+55 (21) 2222-3333", "+552122223333"},
		{"0000000000", NotInformed, ""},
		{"1100000000", NotInformed, ""},
		{"011987654321", "+55 (11) 98765-4321", "+5511987654321"},
		{"01130456789", "+55 (11) 3045-6789", "+551130456789"},
		{"551130456789", "+55 (11) 3045-6789", "+551130456789"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := Format(tt.raw)
			assert.Equal(t, tt.display, got.Display)
			assert.Equal(t, tt.e164, got.E164)
		})
	}
}

func TestFormat_E164Shape(t *testing.T) {
	re := regexp.MustCompile(`^\+55\d{10,11}$`)
	for _, raw := range []string{"1130456789", "11987654321", "8532223344", "85 9 9999 0000", "5511987654321"} {
		f := Format(raw)
		if f.Valid() {
			assert.Regexp(t, re, f.E164, raw)
		}
	}
}
