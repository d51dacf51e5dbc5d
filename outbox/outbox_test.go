package outbox

import (
	"testing"

	"kya.dev/kya/cidutil"
	"kya.dev/kya/kya"
	"kya.dev/kya/storage"
	"kya.dev/kya/storage/localfs"
)

const fakeToken = "eyJhbGciOiJub25lIiwidHlwIjoiSldUIn0.eyJqdGkiOiJjYXAtanRpLTEifQ.sig"

func signedRequest(t *testing.T, kp *kya.KeyPair, amount int) *kya.SignedRequest {
	t.Helper()
	req, err := kya.BuildSignedRequest(kya.BuildSignedRequestInput{
		WorkspaceID:      "22222222-2222-2222-2222-222222222222",
		AgentID:          "11111111-1111-1111-1111-111111111111",
		ActionType:       "purchase",
		TargetService:    "stripe_proxy",
		Payload:          map[string]any{"amount": amount, "currency": "EUR"},
		CapabilityToken:  fakeToken,
		PrivateKeyBase64: kp.PrivateKeyBase64(),
		RequestContext:   map[string]any{"attempt": 1},
	})
	if err != nil {
		t.Fatalf("BuildSignedRequest: %v", err)
	}
	return req
}

func testKeys(t *testing.T) *kya.KeyPair {
	t.Helper()
	kp, err := kya.GenerateKeys(nil)
	if err != nil {
		t.Fatalf("GenerateKeys: %v", err)
	}
	return kp
}

func TestOutbox_PutGetVerifies(t *testing.T) {
	kp := testKeys(t)
	ob := New(storage.NewMemoryCAS(), nil)
	req := signedRequest(t, kp, 18)

	id, err := ob.Put(req)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	body, err := req.Canonical()
	if err != nil {
		t.Fatalf("Canonical: %v", err)
	}
	if id.String() != cidutil.CanonicalCID(body) {
		t.Fatalf("cid does not address the canonical body")
	}

	back, err := ob.GetString(id.String())
	if err != nil {
		t.Fatalf("GetString: %v", err)
	}
	if back.Signature != req.Signature || back.CapabilityToken != req.CapabilityToken {
		t.Fatalf("stored request differs")
	}
	v, err := kya.VerifySignedRequest(kp.PublicKeyBase64(), back)
	if err != nil || !v.Valid {
		t.Fatalf("stored request no longer verifies: %+v %v", v, err)
	}
}

func TestOutbox_PutIsIdempotent(t *testing.T) {
	kp := testKeys(t)
	ob := New(storage.NewMemoryCAS(), nil)
	req := signedRequest(t, kp, 18)
	a, err := ob.Put(req)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	b, err := ob.Put(req)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if a != b || len(ob.List()) != 1 {
		t.Fatalf("expected one entry, got %d (%s vs %s)", len(ob.List()), a, b)
	}
}

func TestOutbox_ScanRecoversFromDisk(t *testing.T) {
	dir := t.TempDir()
	kp := testKeys(t)
	cas, err := localfs.New(dir)
	if err != nil {
		t.Fatalf("localfs.New: %v", err)
	}
	first := New(cas, nil)
	for _, amount := range []int{1, 2, 3} {
		if _, err := first.Put(signedRequest(t, kp, amount)); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	if _, err := cas.Put([]byte("not a request")); err != nil {
		t.Fatalf("Put stray: %v", err)
	}

	reopened, err := localfs.New(dir)
	if err != nil {
		t.Fatalf("localfs.New: %v", err)
	}
	second := New(reopened, nil)
	n, err := second.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if n != 3 {
		t.Fatalf("Scan indexed %d, want 3", n)
	}
	got := second.List()
	want := first.List()
	if len(got) != len(want) {
		t.Fatalf("List lengths differ: %d vs %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("entry %d: %+v vs %+v", i, got[i], want[i])
		}
	}
}

type plainCAS struct{ storage.CAS }

func TestOutbox_Errors(t *testing.T) {
	ob := New(storage.NewMemoryCAS(), nil)
	if _, err := ob.Put(nil); err == nil {
		t.Fatalf("expected error for nil request")
	}
	if _, err := ob.GetString("not-a-cid"); err == nil {
		t.Fatalf("expected invalid cid error")
	}
	if _, err := ob.GetString(cidutil.CanonicalCID("{}")); !storage.IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := New(plainCAS{storage.NewMemoryCAS()}, nil).Scan(); err == nil {
		t.Fatalf("expected error scanning a non-listing backend")
	}
}
