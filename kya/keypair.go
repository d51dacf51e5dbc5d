package kya

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
)

const (
	PublicKeySize = ed25519.PublicKeySize
	SecretKeySize = ed25519.PrivateKeySize
	SignatureSize = ed25519.SignatureSize
	SeedSize      = ed25519.SeedSize
)

// KeyPair is an agent's Ed25519 key pair. SecretKey is the 64-byte expanded
// form (seed followed by the public key).
type KeyPair struct {
	PublicKey ed25519.PublicKey
	SecretKey ed25519.PrivateKey
}

// EncodedKeyPair is the external form of a KeyPair: standard base64 strings.
type EncodedKeyPair struct {
	PublicKeyBase64  string `json:"public_key_base64"`
	PrivateKeyBase64 string `json:"private_key_base64"`
}

// GenerateKeys creates a fresh key pair. Randomness is read from r; a nil r
// uses crypto/rand.
func GenerateKeys(r io.Reader) (*KeyPair, error) {
	if r == nil {
		r = rand.Reader
	}
	seed := make([]byte, SeedSize)
	if _, err := io.ReadFull(r, seed); err != nil {
		return nil, wrapError(KindInternal, "KYA-KEY-001", "read ed25519 seed", err)
	}
	return KeyPairFromSeed(seed)
}

// KeyPairFromSeed deterministically derives the key pair for a 32-byte seed.
func KeyPairFromSeed(seed []byte) (*KeyPair, error) {
	if len(seed) != SeedSize {
		return nil, newError(KindLength, "KYA-LEN-004", fmt.Sprintf("seed must be %d bytes, got %d", SeedSize, len(seed)))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &KeyPair{PublicKey: priv.Public().(ed25519.PublicKey), SecretKey: priv}, nil
}

// PublicKeyBase64 returns the standard base64 encoding of the public key.
func (k *KeyPair) PublicKeyBase64() string {
	return base64.StdEncoding.EncodeToString(k.PublicKey)
}

// PrivateKeyBase64 returns the standard base64 encoding of the 64-byte secret key.
func (k *KeyPair) PrivateKeyBase64() string {
	return base64.StdEncoding.EncodeToString(k.SecretKey)
}

func (k *KeyPair) Encode() EncodedKeyPair {
	return EncodedKeyPair{PublicKeyBase64: k.PublicKeyBase64(), PrivateKeyBase64: k.PrivateKeyBase64()}
}

// Decode validates both halves and returns the key pair.
func (e EncodedKeyPair) Decode() (*KeyPair, error) {
	pub, err := DecodePublicKey(e.PublicKeyBase64)
	if err != nil {
		return nil, err
	}
	priv, err := DecodeSecretKey(e.PrivateKeyBase64)
	if err != nil {
		return nil, err
	}
	return &KeyPair{PublicKey: pub, SecretKey: priv}, nil
}

// DecodePublicKey decodes a base64 Ed25519 public key (exactly 32 bytes).
func DecodePublicKey(s string) (ed25519.PublicKey, error) {
	b, err := decodeBase64(s)
	if err != nil {
		return nil, wrapError(KindEncoding, "KYA-ENC-001", "invalid public key base64", err)
	}
	if len(b) != PublicKeySize {
		return nil, newError(KindLength, "KYA-LEN-001", fmt.Sprintf("public key must decode to %d bytes, got %d", PublicKeySize, len(b)))
	}
	return ed25519.PublicKey(b), nil
}

// DecodeSecretKey decodes a base64 Ed25519 secret key (exactly 64 bytes).
func DecodeSecretKey(s string) (ed25519.PrivateKey, error) {
	b, err := decodeBase64(s)
	if err != nil {
		return nil, wrapError(KindEncoding, "KYA-ENC-002", "invalid private key base64", err)
	}
	if len(b) != SecretKeySize {
		return nil, newError(KindLength, "KYA-LEN-002", fmt.Sprintf("private key must decode to %d bytes, got %d", SecretKeySize, len(b)))
	}
	return ed25519.PrivateKey(b), nil
}

// DecodeSignature decodes a base64 Ed25519 signature (exactly 64 bytes).
func DecodeSignature(s string) ([]byte, error) {
	b, err := decodeBase64(s)
	if err != nil {
		return nil, wrapError(KindEncoding, "KYA-ENC-003", "invalid signature base64", err)
	}
	if len(b) != SignatureSize {
		return nil, newError(KindLength, "KYA-LEN-003", fmt.Sprintf("signature must decode to %d bytes, got %d", SignatureSize, len(b)))
	}
	return b, nil
}

// GenerateDilithium3Keys returns a base64 Dilithium3 key pair for the
// dilithium3 suite.
func GenerateDilithium3Keys(r io.Reader) (EncodedKeyPair, error) {
	if r == nil {
		r = rand.Reader
	}
	pk, sk, err := mode3.GenerateKey(r)
	if err != nil {
		return EncodedKeyPair{}, wrapError(KindInternal, "KYA-KEY-002", "generate dilithium3 key pair", err)
	}
	pkb, err := pk.MarshalBinary()
	if err != nil {
		return EncodedKeyPair{}, wrapError(KindInternal, "KYA-KEY-002", "encode dilithium3 public key", err)
	}
	skb, err := sk.MarshalBinary()
	if err != nil {
		return EncodedKeyPair{}, wrapError(KindInternal, "KYA-KEY-002", "encode dilithium3 private key", err)
	}
	return EncodedKeyPair{
		PublicKeyBase64:  base64.StdEncoding.EncodeToString(pkb),
		PrivateKeyBase64: base64.StdEncoding.EncodeToString(skb),
	}, nil
}

func decodeBase64(s string) ([]byte, error) {
	// Prefer standard padded encoding, but accept raw encoding too.
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}
