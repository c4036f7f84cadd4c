package sys

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		s      string
		maxLen int
		want   string
	}{
		{"shorter than limit", "hello", 10, "hello"},
		{"exactly the limit", "hello", 5, "hello"},
		{"over the limit", "hello world", 8, "hello w…"},
		{"multibyte runes", "héhéhéhé", 4, "héh…"},
		{"limit of one", "hello", 1, "h"},
		{"empty", "", 5, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Truncate(tt.s, tt.maxLen)
			if got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.s, tt.maxLen, got, tt.want)
			}
			if utf8.RuneCountInString(got) > tt.maxLen {
				t.Errorf("Truncate(%q, %d) exceeds the rune limit: %q", tt.s, tt.maxLen, got)
			}
		})
	}

	// A 45-char modal label must never be split mid-rune.
	long := strings.Repeat("é", 60)
	if got := Truncate(long, 45); !utf8.ValidString(got) {
		t.Errorf("Truncate produced invalid UTF-8: %q", got)
	}
}

func TestAtoi(t *testing.T) {
	if got := Atoi("42"); got != 42 {
		t.Errorf("Atoi(42) = %d", got)
	}
	if got := Atoi("not-a-number"); got != 0 {
		t.Errorf("Atoi(garbage) = %d, want 0", got)
	}
	if got := Atoi("-7"); got != -7 {
		t.Errorf("Atoi(-7) = %d", got)
	}
}

func TestParseSnowflake(t *testing.T) {
	if got := ParseSnowflake("123456789012345678"); got.String() != "123456789012345678" {
		t.Errorf("ParseSnowflake round trip = %s", got)
	}
	if got := ParseSnowflake("garbage"); got != 0 {
		t.Errorf("ParseSnowflake(garbage) = %d, want 0", got)
	}
}
