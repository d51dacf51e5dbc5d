package kya

import (
	"encoding/json"
	"math"
	"testing"
)

func mustCanonicalize(t *testing.T, v any) string {
	t.Helper()
	s, err := Canonicalize(v)
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	return s
}

func TestCanonicalize_SortsKeys(t *testing.T) {
	got := mustCanonicalize(t, map[string]any{"b": 2, "a": 1})
	if got != `{"a":1,"b":2}` {
		t.Fatalf("got %s", got)
	}
}

func TestCanonicalize_UnicodeKeyOrderIsCodePoint(t *testing.T) {
	got := mustCanonicalize(t, map[string]any{"é": 1, "z": 2, "a": 3, "ä": 4})
	want := `{"a":3,"z":2,"ä":4,"é":1}`
	if got != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestCanonicalize_AstralKeysSortByCodePoint(t *testing.T) {
	// U+1F600 (4-byte UTF-8) sorts after U+FFFD by code point.
	got := mustCanonicalize(t, map[string]any{"😀": 1, "\ufffd": 2})
	want := `{"` + "\ufffd" + `":2,"😀":1}`
	if got != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestCanonicalize_Nested(t *testing.T) {
	v := map[string]any{
		"z": []any{map[string]any{"y": true, "x": nil}, "s", 1.5},
		"a": map[string]any{"d": map[string]any{}, "c": []any{}},
	}
	got := mustCanonicalize(t, v)
	want := `{"a":{"c":[],"d":{}},"z":[{"x":null,"y":true},"s",1.5]}`
	if got != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestCanonicalize_OrderIndependent(t *testing.T) {
	a, err := CanonicalizeJSON([]byte(`{"x":{"b":[1,2],"a":"v"},"k":false}`))
	if err != nil {
		t.Fatalf("CanonicalizeJSON: %v", err)
	}
	b, err := CanonicalizeJSON([]byte(`{ "k" : false, "x" : { "a" : "v", "b" : [ 1, 2 ] } }`))
	if err != nil {
		t.Fatalf("CanonicalizeJSON: %v", err)
	}
	if a != b {
		t.Fatalf("order-dependent output: %s vs %s", a, b)
	}
}

func TestCanonicalize_Idempotent(t *testing.T) {
	inputs := []any{
		map[string]any{"b": []any{3, 2, 1}, "a": map[string]any{"ä": "ü", "z": -0.5}},
		[]any{"x", nil, true, 12345678901234567},
		"plain",
		json.Number("1e4"),
	}
	for _, in := range inputs {
		first := mustCanonicalize(t, in)
		second, err := CanonicalizeJSON([]byte(first))
		if err != nil {
			t.Fatalf("CanonicalizeJSON(%s): %v", first, err)
		}
		if first != second {
			t.Fatalf("not idempotent: %s -> %s", first, second)
		}
	}
}

func TestCanonicalize_StringEscapes(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`say "hi"`, `"say \"hi\""`},
		{`C:\temp`, `"C:\\temp"`},
		{"a\nb\tc\rd\be\ff", `"a\nb\tc\rd\be\ff"`},
		{"\u0001\u001f", `"\u0001\u001f"`},
		{"<b>&amp;</b>", `"<b>&amp;</b>"`},
		{"x\u2028y\u2029", "\"x\u2028y\u2029\""},
		{"café 日本", `"café 日本"`},
		{"\u007f", "\"\u007f\""},
	}
	for _, tc := range cases {
		got := mustCanonicalize(t, tc.in)
		if got != tc.want {
			t.Fatalf("Canonicalize(%q) = %s want %s", tc.in, got, tc.want)
		}
	}
}

func TestCanonicalize_Numbers(t *testing.T) {
	tenth, fifth := 0.1, 0.2
	cases := []struct {
		in   any
		want string
	}{
		{0, "0"},
		{-42, "-42"},
		{int64(math.MaxInt64), "9223372036854775807"},
		{uint64(math.MaxUint64), "18446744073709551615"},
		{18.0, "18"},
		{18.5, "18.5"},
		{0.1, "0.1"},
		{tenth + fifth, "0.30000000000000004"},
		{math.Copysign(0, -1), "0"},
		{1e20, "100000000000000000000"},
		{1e21, "1e+21"},
		{1.5e300, "1.5e+300"},
		{0.000001, "0.000001"},
		{1e-7, "1e-7"},
		{-1e-7, "-1e-7"},
		{123e-20, "1.23e-18"},
		{5e-324, "5e-324"},
		{123456789.125, "123456789.125"},
		{float32(0.1), "0.1"},
		{json.Number("12345678901234567890123"), "12345678901234567890123"},
		{json.Number("-0"), "0"},
		{json.Number("1.0"), "1"},
		{json.Number("2.50"), "2.5"},
		{json.Number("1E3"), "1000"},
	}
	for _, tc := range cases {
		got, err := Canonicalize(tc.in)
		if err != nil {
			t.Fatalf("Canonicalize(%v): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("Canonicalize(%v) = %s want %s", tc.in, got, tc.want)
		}
	}
}

func TestCanonicalize_RejectsNonFinite(t *testing.T) {
	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := Canonicalize(map[string]any{"v": f})
		if !IsKind(err, KindCanonical) {
			t.Fatalf("expected KindCanonical for %v, got %v", f, err)
		}
		if RuleID(err) != "KYA-CANON-005" {
			t.Fatalf("expected KYA-CANON-005, got %s", RuleID(err))
		}
	}
}

func TestCanonicalize_RejectsInvalidUTF8(t *testing.T) {
	_, err := Canonicalize(map[string]any{"k": string([]byte{0xff, 0xfe})})
	if RuleID(err) != "KYA-CANON-003" {
		t.Fatalf("expected KYA-CANON-003, got %v", err)
	}
	_, err = Canonicalize(map[string]any{string([]byte{0xc3}): 1})
	if RuleID(err) != "KYA-CANON-003" {
		t.Fatalf("expected KYA-CANON-003 for key, got %v", err)
	}
}

type labelText string

func (l labelText) MarshalText() ([]byte, error) { return []byte(l), nil }

func TestCanonicalize_RejectsInvalidUTF8InTypedValues(t *testing.T) {
	type item struct {
		Name   string `json:"name"`
		Hidden string `json:"-"`
	}
	cases := []struct {
		name string
		in   any
	}{
		{"string slice", map[string]any{"a": []string{"ok", "\xff"}}},
		{"string map key", map[string]any{"a": map[string]string{"\xff": "x"}}},
		{"string map value", map[string]string{"k": "\xc3"}},
		{"struct field", item{Name: "\xff"}},
		{"pointer to struct", &item{Name: "\xfe"}},
		{"text marshaler key", map[labelText]int{labelText("\xff"): 1}},
		{"raw message", json.RawMessage("{\"a\":\"\xff\"}")},
	}
	for _, tc := range cases {
		_, err := Canonicalize(tc.in)
		if RuleID(err) != "KYA-CANON-003" {
			t.Fatalf("%s: expected KYA-CANON-003, got %v", tc.name, err)
		}
	}

	got := mustCanonicalize(t, item{Name: "ok", Hidden: "\xff"})
	if got != `{"name":"ok"}` {
		t.Fatalf("ignored field should not be checked: got %s", got)
	}
	got = mustCanonicalize(t, map[string]any{"b": []byte{0xff}})
	if got != `{"b":"/w=="}` {
		t.Fatalf("byte slices are base64: got %s", got)
	}
}

func TestCanonicalize_RejectsBadNumberLiteral(t *testing.T) {
	_, err := Canonicalize(json.Number("0x10"))
	if RuleID(err) != "KYA-CANON-004" {
		t.Fatalf("expected KYA-CANON-004, got %v", err)
	}
}

func TestCanonicalize_StructsGoThroughJSON(t *testing.T) {
	type item struct {
		Zeta  string            `json:"zeta"`
		Alpha int               `json:"alpha"`
		Tags  map[string]string `json:"tags"`
	}
	got := mustCanonicalize(t, item{Zeta: "<z>", Alpha: 7, Tags: map[string]string{"b": "2", "a": "1"}})
	want := `{"alpha":7,"tags":{"a":"1","b":"2"},"zeta":"<z>"}`
	if got != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestCanonicalize_RawMessage(t *testing.T) {
	got := mustCanonicalize(t, map[string]any{"raw": json.RawMessage(`{"b":1, "a":[true]}`)})
	if got != `{"raw":{"a":[true],"b":1}}` {
		t.Fatalf("got %s", got)
	}
}

func TestCanonicalizeJSON_RejectsTrailingData(t *testing.T) {
	_, err := CanonicalizeJSON([]byte(`{"a":1} {"b":2}`))
	if RuleID(err) != "KYA-CANON-002" {
		t.Fatalf("expected KYA-CANON-002, got %v", err)
	}
	_, err = CanonicalizeJSON([]byte(`{"a":`))
	if RuleID(err) != "KYA-CANON-001" {
		t.Fatalf("expected KYA-CANON-001, got %v", err)
	}
}

func TestCanonicalize_Concurrent(t *testing.T) {
	v := map[string]any{"b": []any{1, 2}, "a": map[string]any{"y": "é", "x": 0.5}}
	want := mustCanonicalize(t, v)
	done := make(chan string, 16)
	for i := 0; i < cap(done); i++ {
		go func() {
			s, _ := Canonicalize(v)
			done <- s
		}()
	}
	for i := 0; i < cap(done); i++ {
		if got := <-done; got != want {
			t.Fatalf("concurrent canonicalization diverged: %s", got)
		}
	}
}
