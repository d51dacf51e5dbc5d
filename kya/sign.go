package kya

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
)

// ActionEnvelope is the fixed set of action fields that get canonicalized
// and signed.
type ActionEnvelope struct {
	AgentID       string         `json:"agent_id"`
	WorkspaceID   string         `json:"workspace_id"`
	ActionType    string         `json:"action_type"`
	TargetService string         `json:"target_service"`
	Payload       map[string]any `json:"payload"`
	CapabilityJTI string         `json:"capability_jti"`
}

// Canonical returns the canonical JSON of the envelope. A nil payload is
// signed as an empty object.
func (e ActionEnvelope) Canonical() (string, error) {
	payload := e.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	return Canonicalize(map[string]any{
		"agent_id":       e.AgentID,
		"workspace_id":   e.WorkspaceID,
		"action_type":    e.ActionType,
		"target_service": e.TargetService,
		"payload":        payload,
		"capability_jti": e.CapabilityJTI,
	})
}

// SignActionInput carries the envelope fields plus the signing key.
type SignActionInput struct {
	AgentID          string
	WorkspaceID      string
	ActionType       string
	TargetService    string
	Payload          map[string]any
	CapabilityJTI    string
	PrivateKeyBase64 string
}

func (in SignActionInput) Envelope() ActionEnvelope {
	return ActionEnvelope{
		AgentID:       in.AgentID,
		WorkspaceID:   in.WorkspaceID,
		ActionType:    in.ActionType,
		TargetService: in.TargetService,
		Payload:       in.Payload,
		CapabilityJTI: in.CapabilityJTI,
	}
}

// SignResult returns the signature together with the exact bytes it covers.
type SignResult struct {
	SignatureBase64 string `json:"signature_base64"`
	CanonicalJSON   string `json:"canonical_json"`
	Sha256Hex       string `json:"sha256_hex"`
}

// SignAction canonicalizes the envelope, hashes it with SHA-256 and signs
// the digest (not the canonical bytes) with Ed25519.
func SignAction(in SignActionInput) (*SignResult, error) {
	return SignActionWithSuite(in, DefaultSuite)
}

// SignActionWithSuite is SignAction with an explicit algorithm pair. The
// Sha256Hex field always carries the hex of the suite's digest.
func SignActionWithSuite(in SignActionInput, suite Suite) (*SignResult, error) {
	canonical, err := in.Envelope().Canonical()
	if err != nil {
		return nil, err
	}
	digest, err := Digest(suite.Hash, []byte(canonical))
	if err != nil {
		return nil, err
	}
	sig, err := SignDigest(suite.Signature, in.PrivateKeyBase64, digest)
	if err != nil {
		return nil, err
	}
	return &SignResult{
		SignatureBase64: base64.StdEncoding.EncodeToString(sig),
		CanonicalJSON:   canonical,
		Sha256Hex:       hex.EncodeToString(digest),
	}, nil
}

// SignDigest produces a detached signature over digest.
func SignDigest(alg SignatureAlg, privateKeyBase64 string, digest []byte) ([]byte, error) {
	switch alg {
	case SigEd25519:
		priv, err := DecodeSecretKey(privateKeyBase64)
		if err != nil {
			return nil, err
		}
		return ed25519.Sign(priv, digest), nil
	case SigDilithium3:
		raw, err := decodeBase64(privateKeyBase64)
		if err != nil {
			return nil, wrapError(KindEncoding, "KYA-ENC-002", "invalid private key base64", err)
		}
		if len(raw) != mode3.PrivateKeySize {
			return nil, newError(KindLength, "KYA-LEN-012", fmt.Sprintf("dilithium3 private key must decode to %d bytes, got %d", mode3.PrivateKeySize, len(raw)))
		}
		var sk mode3.PrivateKey
		if err := sk.UnmarshalBinary(raw); err != nil {
			return nil, wrapError(KindEncoding, "KYA-ENC-012", "invalid dilithium3 private key", err)
		}
		sig := make([]byte, mode3.SignatureSize)
		mode3.SignTo(&sk, digest, sig)
		return sig, nil
	default:
		return nil, newError(KindUnsupported, "KYA-ALG-002", "unsupported signature algorithm "+string(alg))
	}
}

// VerifySignature checks signatureBase64 against the SHA-256 digest of
// canonicalJSON. A well-formed but non-matching signature yields
// (false, nil); errors are reserved for malformed base64 and wrong lengths.
func VerifySignature(publicKeyBase64, signatureBase64, canonicalJSON string) (bool, error) {
	return VerifySignatureWithSuite(DefaultSuite, publicKeyBase64, signatureBase64, canonicalJSON)
}

// VerifySignatureWithSuite is VerifySignature with an explicit algorithm pair.
func VerifySignatureWithSuite(suite Suite, publicKeyBase64, signatureBase64, canonicalJSON string) (bool, error) {
	digest, err := Digest(suite.Hash, []byte(canonicalJSON))
	if err != nil {
		return false, err
	}
	return VerifyDigest(suite.Signature, publicKeyBase64, signatureBase64, digest)
}

// VerifyDigest checks a detached signature over digest.
func VerifyDigest(alg SignatureAlg, publicKeyBase64, signatureBase64 string, digest []byte) (bool, error) {
	switch alg {
	case SigEd25519:
		pub, err := DecodePublicKey(publicKeyBase64)
		if err != nil {
			return false, err
		}
		sig, err := DecodeSignature(signatureBase64)
		if err != nil {
			return false, err
		}
		return ed25519.Verify(pub, digest, sig), nil
	case SigDilithium3:
		raw, err := decodeBase64(publicKeyBase64)
		if err != nil {
			return false, wrapError(KindEncoding, "KYA-ENC-001", "invalid public key base64", err)
		}
		if len(raw) != mode3.PublicKeySize {
			return false, newError(KindLength, "KYA-LEN-011", fmt.Sprintf("dilithium3 public key must decode to %d bytes, got %d", mode3.PublicKeySize, len(raw)))
		}
		var pk mode3.PublicKey
		if err := pk.UnmarshalBinary(raw); err != nil {
			return false, wrapError(KindEncoding, "KYA-ENC-011", "invalid dilithium3 public key", err)
		}
		sig, err := decodeBase64(signatureBase64)
		if err != nil {
			return false, wrapError(KindEncoding, "KYA-ENC-003", "invalid signature base64", err)
		}
		if len(sig) != mode3.SignatureSize {
			return false, newError(KindLength, "KYA-LEN-013", fmt.Sprintf("dilithium3 signature must decode to %d bytes, got %d", mode3.SignatureSize, len(sig)))
		}
		return mode3.Verify(&pk, digest, sig), nil
	default:
		return false, newError(KindUnsupported, "KYA-ALG-002", "unsupported signature algorithm "+string(alg))
	}
}
