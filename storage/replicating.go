package storage

import (
	"fmt"

	"github.com/ipfs/go-cid"

	"kya.dev/kya/cidutil"
)

// NamedCAS associates a CAS with a stable backend name for reporting.
type NamedCAS struct {
	Name string
	CAS  CAS
}

// ReplicatingCAS writes every object to all backends and reads from the
// first backend that has it, in slice order.
type ReplicatingCAS struct {
	Backends []NamedCAS
}

var (
	_ CAS    = ReplicatingCAS{}
	_ Lister = ReplicatingCAS{}
)

// PutAll writes b to every backend and returns the CID each one reported.
// A backend reporting a different CID fails the write with ErrCIDMismatch.
func (r ReplicatingCAS) PutAll(b []byte) (cid.Cid, map[string]cid.Cid, error) {
	want, err := cidutil.CIDv1RawSHA256CID(b)
	if err != nil {
		return cid.Undef, nil, err
	}
	if len(r.Backends) == 0 {
		return cid.Undef, nil, ErrNoBackends
	}

	out := make(map[string]cid.Cid, len(r.Backends))
	for _, nb := range r.Backends {
		if nb.CAS == nil {
			return cid.Undef, nil, fmt.Errorf("storage: nil CAS for backend %q", nb.Name)
		}
		got, err := nb.CAS.Put(b)
		if err != nil {
			return cid.Undef, out, fmt.Errorf("storage: backend %q: %w", nb.Name, err)
		}
		out[nb.Name] = got
		if got != want {
			return cid.Undef, out, ErrCIDMismatch
		}
	}
	return want, out, nil
}

func (r ReplicatingCAS) Put(b []byte) (cid.Cid, error) {
	id, _, err := r.PutAll(b)
	return id, err
}

func (r ReplicatingCAS) Get(id cid.Cid) ([]byte, error) {
	for _, nb := range r.Backends {
		if nb.CAS == nil {
			continue
		}
		out, err := nb.CAS.Get(id)
		if err == nil {
			return out, nil
		}
		if IsNotFound(err) {
			continue
		}
		return nil, err
	}
	return nil, ErrNotFound
}

func (r ReplicatingCAS) Has(id cid.Cid) bool {
	for _, nb := range r.Backends {
		if nb.CAS != nil && nb.CAS.Has(id) {
			return true
		}
	}
	return false
}

// List returns the union of every listable backend's contents.
func (r ReplicatingCAS) List() ([]cid.Cid, error) {
	seen := make(map[cid.Cid]struct{})
	var out []cid.Cid
	for _, nb := range r.Backends {
		l, ok := nb.CAS.(Lister)
		if !ok {
			continue
		}
		ids, err := l.List()
		if err != nil {
			return nil, fmt.Errorf("storage: backend %q: %w", nb.Name, err)
		}
		for _, id := range ids {
			if _, dup := seen[id]; !dup {
				seen[id] = struct{}{}
				out = append(out, id)
			}
		}
	}
	SortCIDs(out)
	return out, nil
}
