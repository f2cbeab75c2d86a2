package redemptions

import (
	"strings"
	"testing"
)

func TestGenerateCodeFormat(t *testing.T) {
	code, err := GenerateCode()
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}
	if !strings.HasPrefix(code, CodePrefix) {
		t.Errorf("code %q missing prefix %q", code, CodePrefix)
	}
	if len(code) != len(CodePrefix)+codeLength {
		t.Errorf("code %q has length %d, want %d", code, len(code), len(CodePrefix)+codeLength)
	}
}

func TestGenerateCodeAlphabet(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := GenerateCode()
		if err != nil {
			t.Fatalf("GenerateCode: %v", err)
		}
		for _, r := range strings.TrimPrefix(code, CodePrefix) {
			if !strings.ContainsRune(codeAlphabet, r) {
				t.Fatalf("code %q contains %q, not in alphabet", code, r)
			}
			if strings.ContainsRune("0O1I", r) {
				t.Fatalf("code %q contains ambiguous character %q", code, r)
			}
		}
	}
}

func TestGenerateCodeDistinct(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code, err := GenerateCode()
		if err != nil {
			t.Fatalf("GenerateCode: %v", err)
		}
		if seen[code] {
			t.Fatalf("duplicate code %q after %d draws", code, i)
		}
		seen[code] = true
	}
}
