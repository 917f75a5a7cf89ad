package match

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint returns a hex-encoded blake2b-256 digest of content. The apply
// engine compares fingerprints taken at match time against current file
// content before writing anything.
func Fingerprint(content []byte) string {
	sum := blake2b.Sum256(content)
	return hex.EncodeToString(sum[:])
}
