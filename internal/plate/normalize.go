package plate

import "strings"

// Allowlist is the character set plates are read and normalized against.
const Allowlist = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// maxPlateLength caps a normalized plate at the longest US plate format.
const maxPlateLength = 8

// minPlateLength is the shortest normalized plate worth trusting; anything
// shorter is treated as OCR noise.
const minPlateLength = 3

// Normalize canonicalizes raw OCR text into a comparable plate string:
// uppercase, alphanumerics only, truncated to eight characters. Returns ""
// when nothing usable remains.
func Normalize(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(raw) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			if b.Len() == maxPlateLength {
				break
			}
		}
	}
	return b.String()
}

// IsWellFormed reports whether a raw plate string survives normalization with
// at least three characters. This is deliberately permissive; it filters
// obvious OCR noise, not state-specific plate grammars.
func IsWellFormed(raw string) bool {
	return len(Normalize(raw)) >= minPlateLength
}
