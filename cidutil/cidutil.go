// Package cidutil derives content identifiers for canonical envelopes and
// stored request bodies.
package cidutil

import (
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// CIDv1RawSHA256 returns a CIDv1 string using the "raw" multicodec
// and a sha2-256 multihash.
func CIDv1RawSHA256(data []byte) string {
	c, err := CIDv1RawSHA256CID(data)
	if err != nil {
		// multihash.Sum only fails for unknown codes or bad lengths.
		return ""
	}
	return c.String()
}

// CIDv1RawSHA256CID returns a CIDv1 (raw + sha2-256) derived from data.
func CIDv1RawSHA256CID(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// CanonicalCID is the CID of a canonical JSON string's UTF-8 bytes. Its
// multihash digest is the same SHA-256 digest that gets signed.
func CanonicalCID(canonicalJSON string) string {
	return CIDv1RawSHA256([]byte(canonicalJSON))
}

// Sha256Digest returns the raw SHA-256 digest carried by a sha2-256 CID.
func Sha256Digest(c cid.Cid) ([]byte, bool) {
	dec, err := multihash.Decode(c.Hash())
	if err != nil || dec.Code != multihash.SHA2_256 {
		return nil, false
	}
	return dec.Digest, true
}
