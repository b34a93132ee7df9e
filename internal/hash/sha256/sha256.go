// Package sha256 derives stable lookup keys for source URLs.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashURL returns the lowercase hex SHA-256 digest of the URL exactly as
// submitted. No normalization is applied, so trailing slashes and query
// strings produce distinct keys.
func HashURL(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(sum[:])
}

// URLHasher adapts HashURL to the analysis service's hasher seam.
type URLHasher struct{}

// New returns a URLHasher.
func New() URLHasher {
	return URLHasher{}
}

// HashURL implements the hasher seam.
func (URLHasher) HashURL(rawURL string) string {
	return HashURL(rawURL)
}
