package keys

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
)

const kdfLabel = "kya-agent-keys-v1"

// DeriveAgentSeed deterministically derives an agent-specific Ed25519 seed
// from a root seed.
func DeriveAgentSeed(rootSeed []byte, agent string) ([]byte, error) {
	if len(rootSeed) != ed25519.SeedSize {
		return nil, fmt.Errorf("root seed must be %d bytes", ed25519.SeedSize)
	}
	if err := CheckKeyName(agent); err != nil {
		return nil, err
	}

	h := sha256.New()
	_, _ = h.Write(rootSeed)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(kdfLabel))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte("agent:"))
	_, _ = h.Write([]byte(agent))
	// A SHA-256 sum is exactly one Ed25519 seed.
	return h.Sum(nil), nil
}
