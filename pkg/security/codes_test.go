package security

import (
	"strings"
	"testing"
)

func TestGenerateShortCodeUsesCharset(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := GenerateShortCode()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if len(code) != ShortCodeLength {
			t.Fatalf("expected length %d got %q", ShortCodeLength, code)
		}
		if !IsShortCode(code) {
			t.Fatalf("code %q has characters outside the charset", code)
		}
		if strings.ContainsAny(code, "01ILO") {
			t.Fatalf("code %q contains ambiguous glyphs", code)
		}
	}
}

func TestGenerateCodeRejectsBadInput(t *testing.T) {
	if _, err := GenerateCode(ShortCodeCharset, 0); err == nil {
		t.Fatal("expected error for zero length")
	}
	if _, err := GenerateCode("", 4); err == nil {
		t.Fatal("expected error for empty charset")
	}
}

func TestIsShortCode(t *testing.T) {
	cases := map[string]bool{
		"ABC234": true,
		"abc234": false,
		"ABC23":  false,
		"ABC230": false,
		"":       false,
	}
	for in, want := range cases {
		if got := IsShortCode(in); got != want {
			t.Fatalf("IsShortCode(%q) = %v want %v", in, got, want)
		}
	}
}
