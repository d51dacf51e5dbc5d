package kya

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// CapabilityClaims is an unverified view of a capability token's payload.
// Nothing here has been checked against the issuer's key or the clock.
type CapabilityClaims struct {
	jwt.RegisteredClaims
	WorkspaceID   string         `json:"workspace_id,omitempty"`
	Scopes        []string       `json:"scopes,omitempty"`
	Limits        map[string]any `json:"limits,omitempty"`
	PolicyID      string         `json:"policy_id,omitempty"`
	PolicyVersion int            `json:"policy_version,omitempty"`
}

// segmentDecoder decodes base64url segments with or without padding.
var segmentDecoder = jwt.NewParser(jwt.WithPaddingAllowed())

// ExtractCapabilityJTI returns the jti claim of a compact capability token.
//
// The token is split on '.', the second segment is base64url-decoded and
// parsed as a JSON object, and its jti must be a non-empty string. No
// signature, expiry or issuer check is performed.
func ExtractCapabilityJTI(token string) (string, error) {
	payload, err := capabilityPayload(token)
	if err != nil {
		return "", err
	}
	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		return "", wrapError(KindTokenFormat, "KYA-TOK-003", "capability token payload is not a JSON object", err)
	}
	return jtiFrom(fields)
}

// ReadCapabilityClaims decodes the full payload of a capability token under
// the same rules as ExtractCapabilityJTI.
func ReadCapabilityClaims(token string) (*CapabilityClaims, error) {
	payload, err := capabilityPayload(token)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, wrapError(KindTokenFormat, "KYA-TOK-003", "capability token payload is not a JSON object", err)
	}
	if _, err := jtiFrom(fields); err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var claims CapabilityClaims
	if err := dec.Decode(&claims); err != nil {
		return nil, wrapError(KindClaim, "KYA-CLAIM-003", "capability token claims have unexpected types", err)
	}
	return &claims, nil
}

func capabilityPayload(token string) ([]byte, error) {
	parts := strings.Split(token, ".")
	if len(parts) < 2 {
		return nil, newError(KindTokenFormat, "KYA-TOK-001", "invalid capability token format: expected dot-separated segments")
	}
	payload, err := segmentDecoder.DecodeSegment(parts[1])
	if err != nil {
		return nil, wrapError(KindTokenFormat, "KYA-TOK-002", "capability token payload is not base64url", err)
	}
	return payload, nil
}

func jtiFrom(fields map[string]any) (string, error) {
	raw, ok := fields["jti"]
	if !ok {
		return "", newError(KindClaim, "KYA-CLAIM-001", "capability token has no jti claim")
	}
	jti, ok := raw.(string)
	if !ok || jti == "" {
		return "", newError(KindClaim, "KYA-CLAIM-002", "capability token jti must be a non-empty string")
	}
	return jti, nil
}
