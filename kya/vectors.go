package kya

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SignatureEncoding is the only signature encoding fixtures may declare.
const SignatureEncoding = "base64"

// Vector is a shared cross-implementation fixture.
type Vector struct {
	Name     string         `json:"name"`
	Input    map[string]any `json:"input"`
	Expected Expectation    `json:"expected"`
}

// Expectation is what every implementation must reproduce for a Vector.
type Expectation struct {
	CanonicalJSON     string `json:"canonical_json"`
	Sha256Hex         string `json:"sha256_hex"`
	SignatureEncoding string `json:"signature_encoding"`
}

// NewVector computes the expectation for input.
func NewVector(name string, input map[string]any) (*Vector, error) {
	canonical, err := Canonicalize(input)
	if err != nil {
		return nil, err
	}
	return &Vector{
		Name:  name,
		Input: input,
		Expected: Expectation{
			CanonicalJSON:     canonical,
			Sha256Hex:         Sha256Hex([]byte(canonical)),
			SignatureEncoding: SignatureEncoding,
		},
	}, nil
}

// ParseVector decodes a fixture, keeping input numbers as written.
func ParseVector(raw []byte) (*Vector, error) {
	var wire struct {
		Name     string          `json:"name"`
		Input    json.RawMessage `json:"input"`
		Expected Expectation     `json:"expected"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, wrapError(KindVector, "KYA-VEC-001", "invalid vector file", err)
	}
	if wire.Name == "" {
		return nil, newError(KindVector, "KYA-VEC-002", "vector has no name")
	}
	input, err := DecodeJSON(wire.Input)
	if err != nil {
		return nil, wrapError(KindVector, "KYA-VEC-003", "vector "+wire.Name+": invalid input", err)
	}
	obj, ok := input.(map[string]any)
	if !ok {
		return nil, newError(KindVector, "KYA-VEC-003", "vector "+wire.Name+": input must be a JSON object")
	}
	return &Vector{Name: wire.Name, Input: obj, Expected: wire.Expected}, nil
}

// LoadVectors reads every *.json fixture in dir, ordered by file name.
func LoadVectors(dir string) ([]*Vector, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("kya: read vectors dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	out := make([]*Vector, 0, len(names))
	for _, name := range names {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("kya: read vector %s: %w", name, err)
		}
		v, err := ParseVector(b)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Check recomputes the canonical JSON and digest of v.Input and compares
// them with the recorded expectation.
func (v *Vector) Check() error {
	if v.Expected.SignatureEncoding != SignatureEncoding {
		return newError(KindVector, "KYA-VEC-010", fmt.Sprintf("vector %s: signature_encoding must be %q, got %q", v.Name, SignatureEncoding, v.Expected.SignatureEncoding))
	}
	canonical, err := Canonicalize(v.Input)
	if err != nil {
		return err
	}
	if canonical != v.Expected.CanonicalJSON {
		return newError(KindVector, "KYA-VEC-011", fmt.Sprintf("vector %s: canonical_json mismatch: got %s want %s", v.Name, canonical, v.Expected.CanonicalJSON))
	}
	if got := Sha256Hex([]byte(canonical)); got != v.Expected.Sha256Hex {
		return newError(KindVector, "KYA-VEC-012", fmt.Sprintf("vector %s: sha256_hex mismatch: got %s want %s", v.Name, got, v.Expected.Sha256Hex))
	}
	return nil
}
