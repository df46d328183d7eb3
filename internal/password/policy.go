// Package password validates credential strength against a configured policy.
package password

import (
	"errors"
	"unicode"
	"unicode/utf8"

	"github.com/joinarr/joinarr/internal/config"
)

// Policy violation errors reported to the caller before any store mutation.
var (
	ErrPasswordTooShort = errors.New("password too short")
	ErrNeedsUpper       = errors.New("password needs an uppercase letter")
	ErrNeedsLower       = errors.New("password needs a lowercase letter")
	ErrNeedsDigit       = errors.New("password needs a digit")
	ErrNeedsSymbol      = errors.New("password needs a symbol")
)

// IsPolicyViolation reports whether the error is one of the policy
// violations above, letting callers map them to a client error as a group.
func IsPolicyViolation(err error) bool {
	return errors.Is(err, ErrPasswordTooShort) ||
		errors.Is(err, ErrNeedsUpper) ||
		errors.Is(err, ErrNeedsLower) ||
		errors.Is(err, ErrNeedsDigit) ||
		errors.Is(err, ErrNeedsSymbol)
}

// Validate checks a password against the policy. It does not mutate input.
func Validate(policy config.PasswordPolicy, password string) error {
	// Count characters (runes), not bytes.
	if utf8.RuneCountInString(password) < policy.MinLength {
		return ErrPasswordTooShort
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSymbol = true
		}
	}

	if policy.RequireUpper && !hasUpper {
		return ErrNeedsUpper
	}
	if policy.RequireLower && !hasLower {
		return ErrNeedsLower
	}
	if policy.RequireDigit && !hasDigit {
		return ErrNeedsDigit
	}
	if policy.RequireSymbol && !hasSymbol {
		return ErrNeedsSymbol
	}
	return nil
}
