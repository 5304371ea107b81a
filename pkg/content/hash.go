// Package content computes content-addressed identities for upload
// payloads.
package content

import (
	"crypto/sha256"
	"encoding/base64"
)

// Hash returns the canonical content identity for data: the SHA-256
// digest encoded as unpadded base64url. Identical byte sequences always
// yield the identical string, which the backend uses as the
// deduplication key. The digest is an identity, not a signature.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
