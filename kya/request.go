package kya

import "encoding/json"

// SignedRequest is the JSON body submitted to the verify endpoint.
type SignedRequest struct {
	WorkspaceID     string         `json:"workspace_id"`
	AgentID         string         `json:"agent_id"`
	ActionType      string         `json:"action_type"`
	TargetService   string         `json:"target_service"`
	Payload         map[string]any `json:"payload"`
	Signature       string         `json:"signature"`
	CapabilityToken string         `json:"capability_token"`
	RequestContext  map[string]any `json:"request_context"`
}

// BuildSignedRequestInput carries the action fields, the capability token it
// is issued against, and the agent's signing key.
type BuildSignedRequestInput struct {
	WorkspaceID      string
	AgentID          string
	ActionType       string
	TargetService    string
	Payload          map[string]any
	CapabilityToken  string
	PrivateKeyBase64 string
	// RequestContext is forwarded unsigned; nil becomes {}.
	RequestContext map[string]any
}

// BuildSignedRequest extracts the capability jti from the token, signs the
// envelope that embeds it, and composes the request body. The token is
// forwarded unchanged.
//
// Payload and RequestContext are copied (nested map[string]any and []any
// included), so later changes to the caller's maps do not reach the signed
// body. Values of other types inside them are shared.
func BuildSignedRequest(in BuildSignedRequestInput) (*SignedRequest, error) {
	jti, err := ExtractCapabilityJTI(in.CapabilityToken)
	if err != nil {
		return nil, err
	}
	payload := cloneObject(in.Payload)
	signed, err := SignAction(SignActionInput{
		AgentID:          in.AgentID,
		WorkspaceID:      in.WorkspaceID,
		ActionType:       in.ActionType,
		TargetService:    in.TargetService,
		Payload:          payload,
		CapabilityJTI:    jti,
		PrivateKeyBase64: in.PrivateKeyBase64,
	})
	if err != nil {
		return nil, err
	}
	return &SignedRequest{
		WorkspaceID:     in.WorkspaceID,
		AgentID:         in.AgentID,
		ActionType:      in.ActionType,
		TargetService:   in.TargetService,
		Payload:         payload,
		Signature:       signed.SignatureBase64,
		CapabilityToken: in.CapabilityToken,
		RequestContext:  cloneObject(in.RequestContext),
	}, nil
}

// cloneObject deep-copies m; nil becomes an empty object.
func cloneObject(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		return cloneObject(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = cloneValue(item)
		}
		return out
	case json.RawMessage:
		return append(json.RawMessage(nil), v...)
	default:
		return v
	}
}

// Envelope rebuilds the signed envelope for r with the given capability jti.
func (r *SignedRequest) Envelope(jti string) ActionEnvelope {
	return ActionEnvelope{
		AgentID:       r.AgentID,
		WorkspaceID:   r.WorkspaceID,
		ActionType:    r.ActionType,
		TargetService: r.TargetService,
		Payload:       r.Payload,
		CapabilityJTI: jti,
	}
}

// Canonical returns the canonical JSON of the full request body, the form
// stored by content-addressed outboxes.
func (r *SignedRequest) Canonical() (string, error) {
	raw, err := json.Marshal(r.withDefaults())
	if err != nil {
		return "", wrapError(KindCanonical, "KYA-CANON-010", "value is not JSON-compatible", err)
	}
	return CanonicalizeJSON(raw)
}

func (r *SignedRequest) withDefaults() *SignedRequest {
	out := *r
	if out.Payload == nil {
		out.Payload = map[string]any{}
	}
	if out.RequestContext == nil {
		out.RequestContext = map[string]any{}
	}
	return &out
}

// MarshalJSON never emits null for payload or request_context.
func (r SignedRequest) MarshalJSON() ([]byte, error) {
	type plain SignedRequest
	return json.Marshal(plain(*r.withDefaults()))
}

// DecodeSignedRequest parses a request body, keeping payload numbers as
// written so the rebuilt envelope canonicalizes to the signed bytes.
func DecodeSignedRequest(raw []byte) (*SignedRequest, error) {
	v, err := DecodeJSON(raw)
	if err != nil {
		return nil, err
	}
	fields, ok := v.(map[string]any)
	if !ok {
		return nil, newError(KindCanonical, "KYA-REQ-001", "signed request must be a JSON object")
	}
	req := &SignedRequest{}
	strs := map[string]*string{
		"workspace_id":     &req.WorkspaceID,
		"agent_id":         &req.AgentID,
		"action_type":      &req.ActionType,
		"target_service":   &req.TargetService,
		"signature":        &req.Signature,
		"capability_token": &req.CapabilityToken,
	}
	for name, dst := range strs {
		raw, present := fields[name]
		if !present {
			continue
		}
		s, ok := raw.(string)
		if !ok {
			return nil, newError(KindCanonical, "KYA-REQ-002", "signed request field "+name+" must be a string")
		}
		*dst = s
	}
	objs := map[string]*map[string]any{
		"payload":         &req.Payload,
		"request_context": &req.RequestContext,
	}
	for name, dst := range objs {
		raw, present := fields[name]
		if !present || raw == nil {
			continue
		}
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, newError(KindCanonical, "KYA-REQ-003", "signed request field "+name+" must be an object")
		}
		*dst = m
	}
	return req.withDefaults(), nil
}

// Verification is the outcome of VerifySignedRequest.
type Verification struct {
	Valid         bool   `json:"valid"`
	CanonicalJSON string `json:"canonical_json"`
	Sha256Hex     string `json:"sha256_hex"`
	CapabilityJTI string `json:"capability_jti"`
}

// VerifySignedRequest re-derives the envelope a SignedRequest claims to sign
// and checks its signature against publicKeyBase64. request_context is not
// covered by the signature.
func VerifySignedRequest(publicKeyBase64 string, req *SignedRequest) (*Verification, error) {
	if req == nil {
		return nil, newError(KindInternal, "KYA-REQ-004", "nil signed request")
	}
	jti, err := ExtractCapabilityJTI(req.CapabilityToken)
	if err != nil {
		return nil, err
	}
	canonical, err := req.Envelope(jti).Canonical()
	if err != nil {
		return nil, err
	}
	ok, err := VerifySignature(publicKeyBase64, req.Signature, canonical)
	if err != nil {
		return nil, err
	}
	return &Verification{
		Valid:         ok,
		CanonicalJSON: canonical,
		Sha256Hex:     Sha256Hex([]byte(canonical)),
		CapabilityJTI: jti,
	}, nil
}
