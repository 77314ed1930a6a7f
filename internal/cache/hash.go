package cache

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/lukechampine/blake3"

	"github.com/mitre/hipcheck-sub002/internal/manifest"
)

// digest computes the hex digest of data using the named algorithm.
func digest(algo manifest.HashAlgorithm, data []byte) string {
	switch algo {
	case manifest.BLAKE3:
		sum := blake3.Sum256(data)
		return hex.EncodeToString(sum[:])
	default: // manifest.SHA256
		sum := sha256.Sum256(data)
		return hex.EncodeToString(sum[:])
	}
}

// verifyDigest compares the computed and declared digests in constant time,
// per spec.md step 5 ("compare in constant time to the declared digest").
func verifyDigest(algo manifest.HashAlgorithm, data []byte, declared string) (actual string, ok bool) {
	actual = digest(algo, data)
	declaredBytes, err := hex.DecodeString(declared)
	if err != nil {
		return actual, false
	}
	actualBytes, err := hex.DecodeString(actual)
	if err != nil {
		return actual, false
	}
	if len(declaredBytes) != len(actualBytes) {
		return actual, false
	}
	return actual, subtle.ConstantTimeCompare(declaredBytes, actualBytes) == 1
}
