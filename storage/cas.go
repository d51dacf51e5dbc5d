// Package storage defines the content-addressed store used to keep signed
// request bodies, and the sentinel errors its backends return.
package storage

import "github.com/ipfs/go-cid"

// CAS is a minimal content-addressable storage interface.
//
// Contract:
//   - Put MUST be idempotent.
//   - Stored objects MUST be immutable.
//   - CIDs are CIDv1 raw + sha2-256 over the bytes written; callers supply canonical bytes.
//   - Get MUST return ErrNotFound when the CID is absent and ErrCIDMismatch when
//     the stored bytes no longer hash to the CID.
type CAS interface {
	Put(bytes []byte) (cid.Cid, error)
	Get(id cid.Cid) ([]byte, error)
	Has(id cid.Cid) bool
}

// Lister is implemented by backends that can enumerate what they hold.
// List returns CIDs in ascending string order.
type Lister interface {
	List() ([]cid.Cid, error)
}
