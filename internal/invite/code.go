// Package invite defines invite code generation and redemption purposes.
package invite

import (
	"crypto/rand"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// codeAlphabet excludes 0/O/1/I and other look-alike characters so codes
// survive being read aloud or transcribed.
const codeAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

const (
	codeSegments   = 3
	segmentLength  = 4
	segmentDivider = "-"
)

var codePattern = regexp.MustCompile(`^[` + codeAlphabet + `]{4}(-[` + codeAlphabet + `]{4}){2}$`)

// NewCode generates a random invite code like AB23-CD45-EF67.
func NewCode() (string, error) {
	raw := make([]byte, codeSegments*segmentLength)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("invite: generate code: %w", err)
	}

	segments := make([]string, 0, codeSegments)
	for s := 0; s < codeSegments; s++ {
		var b strings.Builder
		for i := 0; i < segmentLength; i++ {
			b.WriteByte(codeAlphabet[int(raw[s*segmentLength+i])%len(codeAlphabet)])
		}
		segments = append(segments, b.String())
	}
	return strings.Join(segments, segmentDivider), nil
}

// NormalizeCode uppercases and trims a user-supplied code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidCodeFormat reports whether a string has the invite code shape.
func ValidCodeFormat(code string) bool {
	return codePattern.MatchString(code)
}

// Purpose identifies which registration flow redeemed an invite code.
type Purpose string

// The closed set of redemption purposes checked at the ledger level.
const (
	PurposePlex         Purpose = "plex"
	PurposeAudiobooks   Purpose = "audiobooks"
	PurposeRegistration Purpose = "registration"
)

// ErrUnknownPurpose indicates a purpose outside the supported set.
var ErrUnknownPurpose = errors.New("invite: unknown purpose")

// ParsePurpose validates a raw purpose string against the closed set.
func ParsePurpose(raw string) (Purpose, error) {
	switch Purpose(strings.ToLower(strings.TrimSpace(raw))) {
	case PurposePlex:
		return PurposePlex, nil
	case PurposeAudiobooks:
		return PurposeAudiobooks, nil
	case PurposeRegistration, "":
		return PurposeRegistration, nil
	default:
		return "", ErrUnknownPurpose
	}
}
