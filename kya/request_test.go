package kya

import (
	"encoding/json"
	"strings"
	"testing"
)

const (
	kaRequestCanonical = `{"action_type":"purchase","agent_id":"11111111-1111-1111-1111-111111111111","capability_jti":"cap-jti-1","payload":{"amount":18,"currency":"EUR","tool":"purchase"},"target_service":"stripe_proxy","workspace_id":"22222222-2222-2222-2222-222222222222"}`
	kaRequestSignature = "dZ+dGDva7AZM93AbJ+nHO+37OjXeOTFJdnxJGl7ZmU1VP+pnyeeDgbb7ArXChABHtIpWRhalak9U+RIscWEqCQ=="
)

func testRequestInput() BuildSignedRequestInput {
	return BuildSignedRequestInput{
		WorkspaceID:      testSpace,
		AgentID:          testAgent,
		ActionType:       testAction,
		TargetService:    testTarget,
		Payload:          testPayload(),
		CapabilityToken:  fakeToken,
		PrivateKeyBase64: kaSecretKey,
	}
}

func TestBuildSignedRequest_KnownAnswer(t *testing.T) {
	req, err := BuildSignedRequest(testRequestInput())
	if err != nil {
		t.Fatalf("BuildSignedRequest: %v", err)
	}
	if req.Signature != kaRequestSignature {
		t.Fatalf("signature mismatch: %s", req.Signature)
	}
	if req.CapabilityToken != fakeToken {
		t.Fatalf("token must be forwarded unchanged")
	}
	if req.RequestContext == nil || len(req.RequestContext) != 0 {
		t.Fatalf("expected empty request_context, got %v", req.RequestContext)
	}
	canonical, err := req.Envelope("cap-jti-1").Canonical()
	if err != nil {
		t.Fatalf("Canonical: %v", err)
	}
	if canonical != kaRequestCanonical {
		t.Fatalf("envelope mismatch:\n got %s\nwant %s", canonical, kaRequestCanonical)
	}
}

func TestBuildSignedRequest_PropagatesTokenErrors(t *testing.T) {
	in := testRequestInput()
	in.CapabilityToken = "opaque"
	if _, err := BuildSignedRequest(in); !IsKind(err, KindTokenFormat) {
		t.Fatalf("expected KindTokenFormat, got %v", err)
	}
	in.CapabilityToken = tokenWithPayload(`{"sub":"x"}`)
	if _, err := BuildSignedRequest(in); !IsKind(err, KindClaim) {
		t.Fatalf("expected KindClaim, got %v", err)
	}
	in = testRequestInput()
	in.PrivateKeyBase64 = kaPublicKey
	if _, err := BuildSignedRequest(in); !IsKind(err, KindLength) {
		t.Fatalf("expected KindLength, got %v", err)
	}
}

func TestSignedRequest_MarshalNeverNull(t *testing.T) {
	b, err := json.Marshal(SignedRequest{AgentID: testAgent})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, `"payload":{}`) || !strings.Contains(s, `"request_context":{}`) {
		t.Fatalf("expected empty objects, got %s", s)
	}
	if strings.Contains(s, "null") {
		t.Fatalf("unexpected null in %s", s)
	}
}

func TestVerifySignedRequest_RoundTripThroughWire(t *testing.T) {
	in := testRequestInput()
	in.Payload = map[string]any{"amount": 18.25, "big": json.Number("12345678901234567890"), "items": []any{"a", "b"}}
	in.RequestContext = map[string]any{"ip": "10.0.0.1"}
	req, err := BuildSignedRequest(in)
	if err != nil {
		t.Fatalf("BuildSignedRequest: %v", err)
	}
	wire, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	back, err := DecodeSignedRequest(wire)
	if err != nil {
		t.Fatalf("DecodeSignedRequest: %v", err)
	}
	res, err := VerifySignedRequest(kaPublicKey, back)
	if err != nil {
		t.Fatalf("VerifySignedRequest: %v", err)
	}
	if !res.Valid {
		t.Fatalf("request did not verify: %s", res.CanonicalJSON)
	}
	if res.CapabilityJTI != "cap-jti-1" || res.Sha256Hex != Sha256Hex([]byte(res.CanonicalJSON)) {
		t.Fatalf("unexpected verification: %+v", res)
	}
}

func TestVerifySignedRequest_ContextIsUnsigned(t *testing.T) {
	req, err := BuildSignedRequest(testRequestInput())
	if err != nil {
		t.Fatalf("BuildSignedRequest: %v", err)
	}
	req.RequestContext = map[string]any{"trace": "changed"}
	res, err := VerifySignedRequest(kaPublicKey, req)
	if err != nil || !res.Valid {
		t.Fatalf("context change must not break the signature: %+v %v", res, err)
	}
}

func TestBuildSignedRequest_DetachedFromInputMaps(t *testing.T) {
	in := testRequestInput()
	in.Payload["items"] = []any{map[string]any{"sku": "a-1"}}
	in.RequestContext = map[string]any{"ip": "10.0.0.1"}
	req, err := BuildSignedRequest(in)
	if err != nil {
		t.Fatalf("BuildSignedRequest: %v", err)
	}
	body, err := req.Canonical()
	if err != nil {
		t.Fatalf("Canonical: %v", err)
	}

	in.Payload["amount"] = 99
	in.Payload["items"].([]any)[0].(map[string]any)["sku"] = "b-2"
	in.RequestContext["ip"] = "10.0.0.2"

	after, err := req.Canonical()
	if err != nil {
		t.Fatalf("Canonical: %v", err)
	}
	if after != body {
		t.Fatalf("request changed with its input:\n got %s\nwant %s", after, body)
	}
	res, err := VerifySignedRequest(kaPublicKey, req)
	if err != nil || !res.Valid {
		t.Fatalf("request no longer verifies: %+v %v", res, err)
	}
}

func TestVerifySignedRequest_DetectsTampering(t *testing.T) {
	mutations := map[string]func(*SignedRequest){
		"payload":   func(r *SignedRequest) { r.Payload["amount"] = 19 },
		"agent":     func(r *SignedRequest) { r.AgentID = testSpace },
		"action":    func(r *SignedRequest) { r.ActionType = "refund" },
		"target":    func(r *SignedRequest) { r.TargetService = "other" },
		"token":     func(r *SignedRequest) { r.CapabilityToken = tokenWithPayload(`{"jti":"cap-jti-2"}`) },
		"workspace": func(r *SignedRequest) { r.WorkspaceID = testAgent },
	}
	for name, mutate := range mutations {
		req, err := BuildSignedRequest(testRequestInput())
		if err != nil {
			t.Fatalf("BuildSignedRequest: %v", err)
		}
		mutate(req)
		res, err := VerifySignedRequest(kaPublicKey, req)
		if err != nil {
			t.Fatalf("%s: VerifySignedRequest: %v", name, err)
		}
		if res.Valid {
			t.Fatalf("%s: tampered request verified", name)
		}
	}
}

func TestVerifySignedRequest_Errors(t *testing.T) {
	if _, err := VerifySignedRequest(kaPublicKey, nil); RuleID(err) != "KYA-REQ-004" {
		t.Fatalf("expected KYA-REQ-004, got %v", err)
	}
	req, err := BuildSignedRequest(testRequestInput())
	if err != nil {
		t.Fatalf("BuildSignedRequest: %v", err)
	}
	if _, err := VerifySignedRequest("short", req); !IsKind(err, KindLength) && !IsKind(err, KindEncoding) {
		t.Fatalf("expected key decoding error, got %v", err)
	}
}

func TestDecodeSignedRequest_Errors(t *testing.T) {
	cases := []struct {
		raw  string
		rule string
	}{
		{`[]`, "KYA-REQ-001"},
		{`{"agent_id":5}`, "KYA-REQ-002"},
		{`{"payload":"x"}`, "KYA-REQ-003"},
		{`{"payload":`, "KYA-CANON-001"},
	}
	for _, tc := range cases {
		if _, err := DecodeSignedRequest([]byte(tc.raw)); RuleID(err) != tc.rule {
			t.Fatalf("%s: expected %s, got %v", tc.raw, tc.rule, err)
		}
	}
	req, err := DecodeSignedRequest([]byte(`{"payload":null}`))
	if err != nil {
		t.Fatalf("DecodeSignedRequest: %v", err)
	}
	if req.Payload == nil || req.RequestContext == nil {
		t.Fatalf("expected defaulted objects")
	}
}
