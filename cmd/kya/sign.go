package main

import (
	"bytes"
	"encoding/json"
	"fmt"

	"kya.dev/kya/cidutil"
	"kya.dev/kya/kya"
)

func cmdKeygen(e *env, args []string) int {
	fs := newFlagSet(e, "keygen")
	alg := fs.String("alg", string(kya.SigEd25519), "Signature algorithm: ed25519 or dilithium3")
	if code := parseFlags(fs, args); code >= 0 {
		return code
	}
	var enc kya.EncodedKeyPair
	switch kya.SignatureAlg(*alg) {
	case kya.SigEd25519:
		kp, err := kya.GenerateKeys(nil)
		if err != nil {
			fmt.Fprintf(e.errOut, "keygen: %v\n", err)
			return 1
		}
		enc = kp.Encode()
	case kya.SigDilithium3:
		var err error
		if enc, err = kya.GenerateDilithium3Keys(nil); err != nil {
			fmt.Fprintf(e.errOut, "keygen: %v\n", err)
			return 1
		}
	default:
		fmt.Fprintf(e.errOut, "invalid --alg %q (want ed25519 or dilithium3)\n", *alg)
		return 2
	}
	if err := writeJSON(e.out, enc); err != nil {
		fmt.Fprintf(e.errOut, "write: %v\n", err)
		return 1
	}
	return 0
}

func cmdCanonicalize(e *env, args []string) int {
	fs := newFlagSet(e, "canonicalize")
	if code := parseFlags(fs, args); code >= 0 {
		return code
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(e.errOut, "usage: kya canonicalize <file|->")
		return 2
	}
	canonical, code := canonicalFromFile(e, fs.Arg(0))
	if code >= 0 {
		return code
	}
	_, _ = fmt.Fprint(e.out, canonical)
	return 0
}

func cmdDigest(e *env, args []string) int {
	fs := newFlagSet(e, "digest")
	if code := parseFlags(fs, args); code >= 0 {
		return code
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(e.errOut, "usage: kya digest <file|->")
		return 2
	}
	canonical, code := canonicalFromFile(e, fs.Arg(0))
	if code >= 0 {
		return code
	}
	fmt.Fprintf(e.out, "sha256: %s\n", kya.Sha256Hex([]byte(canonical)))
	fmt.Fprintf(e.out, "cid: %s\n", cidutil.CanonicalCID(canonical))
	return 0
}

func canonicalFromFile(e *env, path string) (string, int) {
	b, err := readInput(path)
	if err != nil {
		fmt.Fprintf(e.errOut, "read %s: %v\n", path, err)
		return "", 1
	}
	canonical, err := kya.CanonicalizeJSON(b)
	if err != nil {
		fmt.Fprintf(e.errOut, "canonicalize: %v\n", err)
		return "", 1
	}
	return canonical, -1
}

func cmdSign(e *env, args []string) int {
	fs := newFlagSet(e, "sign")
	keyRef := fs.String("key", "", "Stored key: <name> or <name>/<agent>")
	privateKey := fs.String("private-key", "", "Base64 secret key")
	input := fs.String("input", "", "Envelope JSON file, or - for stdin")
	suiteName := fs.String("suite", kya.DefaultSuite.String(), "Signature suite")
	if code := parseFlags(fs, args); code >= 0 {
		return code
	}
	if *input == "" {
		fmt.Fprintln(e.errOut, "missing --input")
		return 2
	}
	if (*keyRef == "") == (*privateKey == "") {
		fmt.Fprintln(e.errOut, "exactly one of --key or --private-key is required")
		return 2
	}
	suite, err := kya.ParseSuite(*suiteName)
	if err != nil {
		fmt.Fprintf(e.errOut, "invalid --suite: %v\n", err)
		return 2
	}
	raw, err := readInput(*input)
	if err != nil {
		fmt.Fprintf(e.errOut, "read --input: %v\n", err)
		return 1
	}
	envelope, err := decodeEnvelope(raw)
	if err != nil {
		fmt.Fprintf(e.errOut, "invalid envelope: %v\n", err)
		return 1
	}
	in := kya.SignActionInput{
		AgentID:          envelope.AgentID,
		WorkspaceID:      envelope.WorkspaceID,
		ActionType:       envelope.ActionType,
		TargetService:    envelope.TargetService,
		Payload:          envelope.Payload,
		CapabilityJTI:    envelope.CapabilityJTI,
		PrivateKeyBase64: *privateKey,
	}

	var res *kya.SignResult
	if *keyRef != "" {
		if suite != kya.DefaultSuite {
			fmt.Fprintln(e.errOut, "stored keys are ed25519; use --private-key for other suites")
			return 2
		}
		ks, kerr := e.keyStore()
		if kerr != nil {
			fmt.Fprintf(e.errOut, "keys: %v\n", kerr)
			return 1
		}
		res, err = ks.SignAction(*keyRef, in)
	} else {
		res, err = kya.SignActionWithSuite(in, suite)
	}
	if err != nil {
		fmt.Fprintf(e.errOut, "sign: %v\n", err)
		return 1
	}
	e.logger.Debug("signed envelope", "suite", suite.String(), "sha256", res.Sha256Hex)
	if err := writeJSON(e.out, res); err != nil {
		fmt.Fprintf(e.errOut, "write: %v\n", err)
		return 1
	}
	return 0
}

func decodeEnvelope(raw []byte) (kya.ActionEnvelope, error) {
	var out kya.ActionEnvelope
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}

func cmdVerify(e *env, args []string) int {
	fs := newFlagSet(e, "verify")
	publicKey := fs.String("public-key", "", "Base64 public key")
	signature := fs.String("signature", "", "Base64 signature")
	canonicalPath := fs.String("canonical", "", "File holding the exact signed bytes, or - for stdin")
	suiteName := fs.String("suite", kya.DefaultSuite.String(), "Signature suite")
	if code := parseFlags(fs, args); code >= 0 {
		return code
	}
	if *publicKey == "" || *signature == "" || *canonicalPath == "" {
		fmt.Fprintln(e.errOut, "usage: kya verify --public-key <b64> --signature <b64> --canonical <file|->")
		return 2
	}
	suite, err := kya.ParseSuite(*suiteName)
	if err != nil {
		fmt.Fprintf(e.errOut, "invalid --suite: %v\n", err)
		return 2
	}
	canonical, err := readInput(*canonicalPath)
	if err != nil {
		fmt.Fprintf(e.errOut, "read --canonical: %v\n", err)
		return 1
	}
	// The bytes are verified as given; a trailing newline is part of them.
	ok, err := kya.VerifySignatureWithSuite(suite, *publicKey, *signature, string(canonical))
	if err != nil {
		fmt.Fprintf(e.errOut, "verify: %v\n", err)
		return 1
	}
	if !ok {
		fmt.Fprintln(e.out, "invalid")
		return 1
	}
	fmt.Fprintln(e.out, "valid")
	return 0
}

func cmdJTI(e *env, args []string) int {
	fs := newFlagSet(e, "jti")
	if code := parseFlags(fs, args); code >= 0 {
		return code
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(e.errOut, "usage: kya jti <token>")
		return 2
	}
	jti, err := kya.ExtractCapabilityJTI(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(e.errOut, "jti: %v (%s)\n", err, kya.RuleID(err))
		return 1
	}
	fmt.Fprintln(e.out, jti)
	return 0
}
