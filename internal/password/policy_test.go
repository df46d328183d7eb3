package password

import (
	"errors"
	"testing"

	"github.com/joinarr/joinarr/internal/config"
)

func TestValidate_DefaultPolicy(t *testing.T) {
	policy := config.DefaultPasswordPolicy()

	cases := []struct {
		name     string
		password string
		want     error
	}{
		{"accepts strong password", "Str0ng!pass", nil},
		{"too short", "S0r!t", ErrPasswordTooShort},
		{"missing upper", "str0ng!pass", ErrNeedsUpper},
		{"missing lower", "STR0NG!PASS", ErrNeedsLower},
		{"missing digit", "Strong!pass", ErrNeedsDigit},
		{"missing symbol", "Str0ngpass1", ErrNeedsSymbol},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Validate(policy, tc.password)
			if !errors.Is(got, tc.want) {
				t.Fatalf("Validate(%q) = %v, want %v", tc.password, got, tc.want)
			}
		})
	}
}

func TestValidate_CountsRunesNotBytes(t *testing.T) {
	policy := config.PasswordPolicy{MinLength: 8}
	// Eight runes, more than eight bytes.
	if errValidate := Validate(policy, "pässwörd"); errValidate != nil {
		t.Fatalf("expected eight runes to satisfy min length, got %v", errValidate)
	}
}

func TestValidate_RelaxedPolicy(t *testing.T) {
	policy := config.PasswordPolicy{MinLength: 4}
	if errValidate := Validate(policy, "abcd"); errValidate != nil {
		t.Fatalf("relaxed policy should accept %v", errValidate)
	}
}

func TestIsPolicyViolation(t *testing.T) {
	if !IsPolicyViolation(ErrNeedsDigit) {
		t.Fatalf("expected ErrNeedsDigit to count as a policy violation")
	}
	if IsPolicyViolation(errors.New("boom")) {
		t.Fatalf("unrelated errors are not policy violations")
	}
}
