package main

import (
	"fmt"

	"kya.dev/kya/storage"
)

func cmdOutbox(e *env, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(e.errOut, "usage: kya outbox <subcommand> ...")
		fmt.Fprintln(e.errOut, "subcommands: list, show, verify")
		return 2
	}
	switch args[0] {
	case "list":
		return cmdOutboxList(e, args[1:])
	case "show":
		return cmdOutboxShow(e, args[1:])
	case "verify":
		return cmdOutboxVerify(e, args[1:])
	default:
		fmt.Fprintf(e.errOut, "unknown outbox subcommand: %s\n", args[0])
		return 2
	}
}

func cmdOutboxList(e *env, args []string) int {
	fs := newFlagSet(e, "outbox list")
	if code := parseFlags(fs, args); code >= 0 {
		return code
	}
	ob, err := e.outbox()
	if err != nil {
		fmt.Fprintf(e.errOut, "outbox: %v\n", err)
		return 1
	}
	if _, err := ob.Scan(); err != nil {
		fmt.Fprintf(e.errOut, "%v\n", err)
		return 1
	}
	for _, entry := range ob.List() {
		fmt.Fprintf(e.out, "%s %s %s %s\n", entry.CID, entry.AgentID, entry.ActionType, entry.TargetService)
	}
	return 0
}

func cmdOutboxShow(e *env, args []string) int {
	fs := newFlagSet(e, "outbox show")
	if code := parseFlags(fs, args); code >= 0 {
		return code
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(e.errOut, "usage: kya outbox show <cid>")
		return 2
	}
	ob, err := e.outbox()
	if err != nil {
		fmt.Fprintf(e.errOut, "outbox: %v\n", err)
		return 1
	}
	req, err := ob.GetString(fs.Arg(0))
	if err != nil {
		reportOutboxError(e, fs.Arg(0), err)
		return 1
	}
	body, err := req.Canonical()
	if err != nil {
		fmt.Fprintf(e.errOut, "encode request: %v\n", err)
		return 1
	}
	fmt.Fprintln(e.out, body)
	return 0
}

func cmdOutboxVerify(e *env, args []string) int {
	fs := newFlagSet(e, "outbox verify")
	publicKey := fs.String("public-key", "", "Base64 public key of the agent")
	if code := parseFlags(fs, args); code >= 0 {
		return code
	}
	if *publicKey == "" || fs.NArg() != 1 {
		fmt.Fprintln(e.errOut, "usage: kya outbox verify --public-key <b64> <cid>")
		return 2
	}
	ob, err := e.outbox()
	if err != nil {
		fmt.Fprintf(e.errOut, "outbox: %v\n", err)
		return 1
	}
	req, err := ob.GetString(fs.Arg(0))
	if err != nil {
		reportOutboxError(e, fs.Arg(0), err)
		return 1
	}
	return reportVerification(e, *publicKey, req)
}

func reportOutboxError(e *env, id string, err error) {
	switch {
	case storage.IsNotFound(err):
		fmt.Fprintf(e.errOut, "outbox: %s not found\n", id)
	case storage.IsCorrupt(err):
		e.logger.Error("outbox object is corrupted", "cid", id, "err", err)
		fmt.Fprintf(e.errOut, "outbox: %s is corrupted: %v\n", id, err)
	default:
		fmt.Fprintf(e.errOut, "%v\n", err)
	}
}
