package storage

import "errors"

var (
	// ErrNotFound: no object is stored under the CID.
	ErrNotFound = errors.New("storage: not found")
	// ErrInvalidCID: the CID is undefined or not a CIDv1 raw sha2-256 CID.
	ErrInvalidCID = errors.New("storage: invalid cid")
	// ErrCIDMismatch: stored bytes no longer hash to their CID, or a replica
	// computed a different CID for the same write.
	ErrCIDMismatch = errors.New("storage: cid mismatch")
	// ErrImmutable: a write found different bytes already under the CID.
	ErrImmutable  = errors.New("storage: immutable object mismatch")
	ErrNoBackends = errors.New("storage: no backends configured")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsCorrupt reports whether err means a stored object was altered after it
// was written.
func IsCorrupt(err error) bool {
	return errors.Is(err, ErrCIDMismatch) || errors.Is(err, ErrImmutable)
}
