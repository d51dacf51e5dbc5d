package main

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"kya.dev/kya/kya"
)

// requestFields is the input of request build: a SignedRequest without the
// signature.
type requestFields struct {
	WorkspaceID     string         `json:"workspace_id"`
	AgentID         string         `json:"agent_id"`
	ActionType      string         `json:"action_type"`
	TargetService   string         `json:"target_service"`
	Payload         map[string]any `json:"payload"`
	CapabilityToken string         `json:"capability_token"`
	RequestContext  map[string]any `json:"request_context"`
}

func cmdRequest(e *env, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(e.errOut, "usage: kya request <subcommand> ...")
		fmt.Fprintln(e.errOut, "subcommands: build, verify")
		return 2
	}
	switch args[0] {
	case "build":
		return cmdRequestBuild(e, args[1:])
	case "verify":
		return cmdRequestVerify(e, args[1:])
	default:
		fmt.Fprintf(e.errOut, "unknown request subcommand: %s\n", args[0])
		return 2
	}
}

func cmdRequestBuild(e *env, args []string) int {
	fs := newFlagSet(e, "request build")
	keyRef := fs.String("key", "", "Stored key: <name> or <name>/<agent>")
	privateKey := fs.String("private-key", "", "Base64 secret key")
	input := fs.String("input", "", "Request fields JSON file, or - for stdin")
	store := fs.Bool("store", false, "Keep the signed body in the outbox")
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
	raw, err := readInput(*input)
	if err != nil {
		fmt.Fprintf(e.errOut, "read --input: %v\n", err)
		return 1
	}
	var f requestFields
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		fmt.Fprintf(e.errOut, "invalid request fields: %v\n", err)
		return 1
	}
	if f.WorkspaceID == "" {
		f.WorkspaceID = e.cfg.WorkspaceID
	}
	if f.AgentID == "" {
		f.AgentID = e.cfg.AgentID
	}
	// The backend keys workspaces and agents by UUID; anything else is
	// signed as given but will be rejected there.
	for name, v := range map[string]string{"workspace_id": f.WorkspaceID, "agent_id": f.AgentID} {
		if _, err := uuid.Parse(v); err != nil {
			e.logger.Warn("request field is not a UUID", "field", name, "value", v)
		}
	}

	in := kya.BuildSignedRequestInput{
		WorkspaceID:      f.WorkspaceID,
		AgentID:          f.AgentID,
		ActionType:       f.ActionType,
		TargetService:    f.TargetService,
		Payload:          f.Payload,
		CapabilityToken:  f.CapabilityToken,
		PrivateKeyBase64: *privateKey,
		RequestContext:   f.RequestContext,
	}
	var req *kya.SignedRequest
	if *keyRef != "" {
		ks, kerr := e.keyStore()
		if kerr != nil {
			fmt.Fprintf(e.errOut, "keys: %v\n", kerr)
			return 1
		}
		req, err = ks.BuildSignedRequest(*keyRef, in)
	} else {
		req, err = kya.BuildSignedRequest(in)
	}
	if err != nil {
		fmt.Fprintf(e.errOut, "build request: %v (%s)\n", err, kya.RuleID(err))
		return 1
	}
	body, err := req.Canonical()
	if err != nil {
		fmt.Fprintf(e.errOut, "encode request: %v\n", err)
		return 1
	}

	if *store {
		ob, err := e.outbox()
		if err != nil {
			fmt.Fprintf(e.errOut, "outbox: %v\n", err)
			return 1
		}
		id, err := ob.Put(req)
		if err != nil {
			fmt.Fprintf(e.errOut, "outbox: %v\n", err)
			return 1
		}
		e.logger.Info("stored signed request", "cid", id.String())
	}
	fmt.Fprintln(e.out, body)
	return 0
}

func cmdRequestVerify(e *env, args []string) int {
	fs := newFlagSet(e, "request verify")
	publicKey := fs.String("public-key", "", "Base64 public key of the agent")
	if code := parseFlags(fs, args); code >= 0 {
		return code
	}
	if *publicKey == "" || fs.NArg() != 1 {
		fmt.Fprintln(e.errOut, "usage: kya request verify --public-key <b64> <request.json|->")
		return 2
	}
	raw, err := readInput(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(e.errOut, "read %s: %v\n", fs.Arg(0), err)
		return 1
	}
	req, err := kya.DecodeSignedRequest(raw)
	if err != nil {
		fmt.Fprintf(e.errOut, "invalid request: %v\n", err)
		return 1
	}
	return reportVerification(e, *publicKey, req)
}

func reportVerification(e *env, publicKey string, req *kya.SignedRequest) int {
	v, err := kya.VerifySignedRequest(publicKey, req)
	if err != nil {
		fmt.Fprintf(e.errOut, "verify: %v (%s)\n", err, kya.RuleID(err))
		return 1
	}
	e.logger.Debug("verified request", "jti", v.CapabilityJTI, "sha256", v.Sha256Hex, "valid", v.Valid)
	if !v.Valid {
		fmt.Fprintln(e.out, "invalid")
		return 1
	}
	fmt.Fprintf(e.out, "valid jti=%s sha256=%s\n", v.CapabilityJTI, v.Sha256Hex)
	return 0
}
