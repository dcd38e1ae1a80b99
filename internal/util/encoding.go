package util

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Normalize returns s in Unicode normalization form C. File names coming
// from macOS volumes are usually decomposed; listings compare composed forms.
func Normalize(s string) string {
	return norm.NFC.String(s)
}

// FoldKey returns a caseless, normalized sort key for s.
func FoldKey(s string) string {
	return cases.Fold().String(Normalize(s))
}

func HexEncode(b []byte) string {
	return hex.EncodeToString(b)
}

// Fingerprint returns a short, log-safe identifier for a secret value.
// The first 8 bytes of its BLAKE2b-256 digest, hex-encoded.
func Fingerprint(secret string) string {
	sum := blake2b.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:8])
}
