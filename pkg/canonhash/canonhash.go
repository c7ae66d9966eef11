// Package canonhash computes content hashes over canonical JSON encodings.
// Used to bind a signature proof to the lease and property snapshot the party
// actually signed; a later change to either breaks the hash.
package canonhash

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// SumObject returns "sha256:<hex>" over the canonical JSON encoding of v,
// along with the encoded bytes. encoding/json sorts map keys, so two maps
// with the same entries hash identically regardless of insertion order.
func SumObject(v any) (string, []byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", nil, err
	}
	sum := sha256.Sum256(b)
	return "sha256:" + hex.EncodeToString(sum[:]), b, nil
}
