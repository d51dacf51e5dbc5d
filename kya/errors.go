package kya

import "errors"

// Kind is a stable category for programmatic error handling.
//
// Callers should branch on Kind/RuleID rather than matching error strings.
// Error() strings are human-readable and may evolve.
type Kind string

const (
	// KindEncoding: input is not valid base64 or base64url.
	KindEncoding Kind = "Encoding"
	// KindLength: a decoded key or signature has the wrong byte count.
	KindLength Kind = "Length"
	// KindTokenFormat: the capability token has fewer than two segments or an
	// undecodable payload segment.
	KindTokenFormat Kind = "TokenFormat"
	// KindClaim: the decoded token payload lacks a valid non-empty jti.
	KindClaim       Kind = "Claim"
	KindCanonical   Kind = "Canonical"
	KindUnsupported Kind = "Unsupported"
	KindVector      Kind = "Vector"
	KindInternal    Kind = "Internal"
)

// Error is the library's structured error type.
//
// RuleID is a stable identifier (e.g. KYA-ENC-001, KYA-LEN-002, KYA-CLAIM-001)
// naming the violated rule. Message is intended for humans; do not match on it.
type Error struct {
	Kind    Kind
	RuleID  string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func newError(kind Kind, ruleID, msg string) error {
	return &Error{Kind: kind, RuleID: ruleID, Message: msg}
}

func wrapError(kind Kind, ruleID, msg string, cause error) error {
	if cause == nil {
		return newError(kind, ruleID, msg)
	}
	return &Error{Kind: kind, RuleID: ruleID, Message: msg, Cause: cause}
}

// IsKind reports whether err is (or wraps) a *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// RuleID returns the stable RuleID for a structured error, or "" if unknown.
func RuleID(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.RuleID
}
