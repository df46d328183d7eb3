package security

import (
	"strings"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// TOTPPendingPrefix marks a prepared but unconfirmed authenticator secret.
// Pending secrets never gate logins.
const TOTPPendingPrefix = "pending:"

// ActiveTOTPSecret returns the enrolled secret, or "" when the account has
// none or enrollment was never confirmed.
func ActiveTOTPSecret(stored string) string {
	stored = strings.TrimSpace(stored)
	if stored == "" || strings.HasPrefix(stored, TOTPPendingPrefix) {
		return ""
	}
	return stored
}

// VerifyTOTP reports whether a TOTP code matches the stored secret.
func VerifyTOTP(secret, code string) bool {
	secret = strings.TrimSpace(secret)
	code = strings.TrimSpace(code)
	if secret == "" || code == "" {
		return false
	}
	return totp.Validate(code, secret)
}

// GenerateTOTPSecret creates a new TOTP key for an admin account. The key
// carries both the raw secret and the provisioning URL for authenticator
// apps.
func GenerateTOTPSecret(account string) (*otp.Key, error) {
	return totp.Generate(totp.GenerateOpts{
		Issuer:      "Joinarr",
		AccountName: account,
	})
}
