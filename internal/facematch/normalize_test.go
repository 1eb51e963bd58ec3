package facematch

import "testing"

func TestRemoveDiacritics(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Honza", "Honza"},
		{"Jiří", "Jiri"},
		{"café", "cafe"},
		{"Muhammad Ḥusayn", "Muhammad Husayn"},
		{"Nguyễn Văn An", "Nguyen Van An"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := RemoveDiacritics(tt.input)
			if result != tt.expected {
				t.Errorf("RemoveDiacritics(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestDisplayText(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Siti Aisyah", "Siti Aisyah"},
		{"Zoë", "Zoe"},
		{"XII IPA 1", "XII IPA 1"},
		{"王小明", "???"},
		{"a\nb", "a?b"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := DisplayText(tt.input)
			if result != tt.expected {
				t.Errorf("DisplayText(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}
