package ui

import "testing"

func TestCenter(t *testing.T) {
	tests := []struct {
		text  string
		width int
		want  string
	}{
		{"ab", 6, "  ab"},
		{"abc", 6, " abc"},
		{"abcdef", 6, "abcdef"},
		{"too wide for the field", 6, "too wide for the field"},
		{"", 4, "  "},
	}
	for _, tt := range tests {
		if got := center(tt.text, tt.width); got != tt.want {
			t.Errorf("center(%q, %d) = %q, want %q", tt.text, tt.width, got, tt.want)
		}
	}
}
