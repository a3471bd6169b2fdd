package derive

import (
	"crypto/sha256"
	"errors"
	"unicode"
	"unicode/utf8"
)

const minMasterLength = 6

var (
	ErrMasterTooShort = errors.New("master secret must be at least 6 characters")
	ErrMasterWeak     = errors.New("master secret must contain a letter and a non-letter")
)

// ValidateMaster applies the minimum complexity rule for master secrets.
func ValidateMaster(master string) error {
	if utf8.RuneCountInString(master) < minMasterLength {
		return ErrMasterTooShort
	}
	var letter, other bool
	for _, r := range master {
		if unicode.IsLetter(r) {
			letter = true
		} else {
			other = true
		}
	}
	if !letter || !other {
		return ErrMasterWeak
	}
	return nil
}

const visualizationSalt = "bsu-password-v1-visual"

var fingerprintGlyphs = [...]string{
	"🔑", "❤️", "💡", "🌟", "🍀", "🚀", "🌈", "🐶", "🍕", "🎉",
	"🎶", "🌍", "🔥", "💧", "⚡", "🌱", "🍎", "💰", "👑", "🗿",
}

// ExpiredFingerprint replaces the password glyph while the license is expired.
const ExpiredFingerprint = "🚫"

// Fingerprint returns a single glyph that lets a user recognize a familiar
// password at a glance. It reveals at most log2(20) bits about the input.
func Fingerprint(password string) string {
	if password == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(password + visualizationSalt))
	return fingerprintGlyphs[int(sum[0])%len(fingerprintGlyphs)]
}
