// Package kya implements the client side of the KYA action-signing protocol.
//
// An agent holds an Ed25519 key pair and a capability token issued by the
// authorization backend. To perform an action it builds an envelope
//
//	{agent_id, workspace_id, action_type, target_service, payload, capability_jti}
//
// serializes it as canonical JSON, hashes the UTF-8 bytes with SHA-256 and
// signs the 32-byte digest. The backend repeats the canonicalization and
// digest and verifies the detached signature against the agent's registered
// public key.
//
// Canonical JSON sorts object keys by Unicode code point at every level and
// emits no whitespace. It must be byte-identical across the Go, JavaScript
// and Python implementations; the fixtures in testdata/vectors/verify pin it.
//
// Every operation is a pure function of its inputs. Nothing here performs
// I/O (other than LoadVectors), keeps state, or validates capability tokens:
// ExtractCapabilityJTI only reads the claimed identifier.
//
// Errors are *Error values carrying a stable Kind and RuleID.
package kya
