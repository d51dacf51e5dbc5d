package kya

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"strconv"
	"strings"

	"golang.org/x/crypto/sha3"
)

// HashAlg names the digest applied to canonical bytes before signing.
type HashAlg string

const (
	HashSHA256   HashAlg = "sha256"
	HashSHA512   HashAlg = "sha512"
	HashSHA3_256 HashAlg = "sha3-256"
)

// SignatureAlg names the detached signature scheme applied to the digest.
type SignatureAlg string

const (
	SigEd25519    SignatureAlg = "ed25519"
	SigDilithium3 SignatureAlg = "dilithium3"
)

// Suite pairs a signature scheme with the digest it signs.
type Suite struct {
	Signature SignatureAlg
	Hash      HashAlg
}

// DefaultSuite is the wire suite: Ed25519 over SHA-256. SignAction,
// VerifySignature and the request builder always use it.
var DefaultSuite = Suite{Signature: SigEd25519, Hash: HashSHA256}

func (s Suite) String() string { return string(s.Signature) + "+" + string(s.Hash) }

// ParseSuite parses the "signature+hash" form returned by Suite.String.
func ParseSuite(s string) (Suite, error) {
	sig, hash, ok := strings.Cut(s, "+")
	if !ok {
		return Suite{}, newError(KindUnsupported, "KYA-ALG-003", "suite must be of the form signature+hash, got "+strconv.Quote(s))
	}
	suite := Suite{Signature: SignatureAlg(sig), Hash: HashAlg(hash)}
	switch suite.Signature {
	case SigEd25519, SigDilithium3:
	default:
		return Suite{}, newError(KindUnsupported, "KYA-ALG-002", "unsupported signature algorithm "+sig)
	}
	switch suite.Hash {
	case HashSHA256, HashSHA512, HashSHA3_256:
	default:
		return Suite{}, newError(KindUnsupported, "KYA-ALG-001", "unsupported hash algorithm "+hash)
	}
	return suite, nil
}

// Sha256Bytes returns the 32-byte SHA-256 digest of message.
func Sha256Bytes(message []byte) []byte {
	sum := sha256.Sum256(message)
	return sum[:]
}

// Sha256Hex returns the lowercase hex SHA-256 digest of message.
func Sha256Hex(message []byte) string {
	sum := sha256.Sum256(message)
	return hex.EncodeToString(sum[:])
}

// Digest hashes message with alg.
func Digest(alg HashAlg, message []byte) ([]byte, error) {
	switch alg {
	case HashSHA256:
		s := sha256.Sum256(message)
		return s[:], nil
	case HashSHA512:
		s := sha512.Sum512(message)
		return s[:], nil
	case HashSHA3_256:
		s := sha3.Sum256(message)
		return s[:], nil
	default:
		return nil, newError(KindUnsupported, "KYA-ALG-001", "unsupported hash algorithm "+string(alg))
	}
}
