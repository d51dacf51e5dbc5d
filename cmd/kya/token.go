package main

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"kya.dev/kya/kya"
)

func cmdToken(e *env, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(e.errOut, "usage: kya token <subcommand> ...")
		fmt.Fprintln(e.errOut, "subcommands: mint, show")
		return 2
	}
	switch args[0] {
	case "mint":
		return cmdTokenMint(e, args[1:])
	case "show":
		return cmdTokenShow(e, args[1:])
	default:
		fmt.Fprintf(e.errOut, "unknown token subcommand: %s\n", args[0])
		return 2
	}
}

// cmdTokenMint issues an EdDSA capability token shaped like the backend's,
// for exercising request building without a backend.
func cmdTokenMint(e *env, args []string) int {
	fs := newFlagSet(e, "token mint")
	keyRef := fs.String("key", "", "Stored key used as the issuer")
	subject := fs.String("subject", e.cfg.AgentID, "Agent id (sub claim)")
	workspace := fs.String("workspace", e.cfg.WorkspaceID, "Workspace id")
	scopes := fs.StringSlice("scope", nil, "Granted scope (repeatable)")
	ttl := fs.Duration("ttl", 15*time.Minute, "Token lifetime")
	jti := fs.String("jti", "", "Token id (default: random UUID)")
	policyID := fs.String("policy-id", "", "Policy id claim")
	policyVersion := fs.Int("policy-version", 0, "Policy version claim")
	if code := parseFlags(fs, args); code >= 0 {
		return code
	}
	if *keyRef == "" || *subject == "" || *workspace == "" {
		fmt.Fprintln(e.errOut, "usage: kya token mint --key <name> --subject <agent> --workspace <id> [--scope <s> ...] [--ttl 15m]")
		return 2
	}
	if *jti == "" {
		*jti = uuid.NewString()
	}
	ks, err := e.keyStore()
	if err != nil {
		fmt.Fprintf(e.errOut, "keys: %v\n", err)
		return 1
	}
	kp, err := ks.Load(*keyRef)
	if err != nil {
		fmt.Fprintf(e.errOut, "load key %s: %v\n", *keyRef, err)
		return 1
	}

	now := time.Now()
	claims := kya.CapabilityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        *jti,
			Subject:   *subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(*ttl)),
		},
		WorkspaceID:   *workspace,
		Scopes:        *scopes,
		PolicyID:      *policyID,
		PolicyVersion: *policyVersion,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(kp.SecretKey)
	if err != nil {
		fmt.Fprintf(e.errOut, "mint token: %v\n", err)
		return 1
	}
	e.logger.Debug("minted capability token", "jti", *jti, "sub", *subject, "exp", claims.ExpiresAt.Time)
	fmt.Fprintln(e.out, token)
	return 0
}

func cmdTokenShow(e *env, args []string) int {
	fs := newFlagSet(e, "token show")
	if code := parseFlags(fs, args); code >= 0 {
		return code
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(e.errOut, "usage: kya token show <token>")
		return 2
	}
	claims, err := kya.ReadCapabilityClaims(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(e.errOut, "token: %v (%s)\n", err, kya.RuleID(err))
		return 1
	}
	if err := writeJSON(e.out, claims); err != nil {
		fmt.Fprintf(e.errOut, "write: %v\n", err)
		return 1
	}
	return 0
}
