package store

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/text/unicode/norm"
)

// domainPatch separates patch hashes from any other use of SHA-256 over
// the same text. The suffix allows a future change of algorithm.
const domainPatch = "haystack/patch/v1"

// contentHash returns the hex SHA-256 of domain, a null byte and the NFC
// form of text, so that canonically equivalent strings hash alike.
func contentHash(text string) string {
	h := sha256.New()
	h.Write([]byte(domainPatch))
	h.Write([]byte{0x00})
	h.Write([]byte(norm.NFC.String(text)))
	return hex.EncodeToString(h.Sum(nil))
}
