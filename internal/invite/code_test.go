package invite

import (
	"errors"
	"strings"
	"testing"
)

func TestNewCode_MatchesFormat(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		code, errCode := NewCode()
		if errCode != nil {
			t.Fatalf("new code: %v", errCode)
		}
		if !ValidCodeFormat(code) {
			t.Fatalf("code %q does not match the expected format", code)
		}
		for _, segment := range strings.Split(code, "-") {
			for _, r := range segment {
				if !strings.ContainsRune(codeAlphabet, r) {
					t.Fatalf("code %q contains %q outside the alphabet", code, r)
				}
			}
		}
		seen[code] = struct{}{}
	}
	if len(seen) != 100 {
		t.Fatalf("expected 100 distinct codes, got %d", len(seen))
	}
}

func TestNormalizeCode_UppercasesAndTrims(t *testing.T) {
	if got := NormalizeCode("  ab2c-def4-ghj5\n"); got != "AB2C-DEF4-GHJ5" {
		t.Fatalf("normalize: got %q", got)
	}
}

func TestValidCodeFormat_RejectsMalformedCodes(t *testing.T) {
	invalid := []string{
		"",
		"ABCD",
		"ABCD-EFGH",
		"ABCDEFGHJKLM",
		"AB1D-EFGH-JKLM", // 1 is not in the alphabet
		"ABOD-EFGH-JKLM", // neither is O
		"abcd-efgh-jklm", // normalization happens before validation
		"ABCD-EFGH-JKLM-NPQR",
	}
	for _, code := range invalid {
		if ValidCodeFormat(code) {
			t.Fatalf("expected %q to be rejected", code)
		}
	}
	if !ValidCodeFormat("ABCD-EFGH-JKLM") {
		t.Fatalf("expected a well-formed code to pass")
	}
}

func TestParsePurpose(t *testing.T) {
	if purpose, errParse := ParsePurpose(""); errParse != nil || purpose != PurposeRegistration {
		t.Fatalf("empty purpose: got %q, %v", purpose, errParse)
	}
	if purpose, errParse := ParsePurpose("plex"); errParse != nil || purpose != PurposePlex {
		t.Fatalf("plex: got %q, %v", purpose, errParse)
	}
	if purpose, errParse := ParsePurpose("audiobooks"); errParse != nil || purpose != PurposeAudiobooks {
		t.Fatalf("audiobooks: got %q, %v", purpose, errParse)
	}
	if _, errParse := ParsePurpose("minecraft"); !errors.Is(errParse, ErrUnknownPurpose) {
		t.Fatalf("expected ErrUnknownPurpose, got %v", errParse)
	}
}
