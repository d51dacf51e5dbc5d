// Package outbox keeps signed request bodies in a content-addressed store so
// they can be inspected or resubmitted after the fact.
//
// Each request is stored as the canonical JSON of its full body and keyed by
// the CID of those bytes, so the same request always lands at the same key.
package outbox

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/ipfs/go-cid"

	"kya.dev/kya/kya"
	"kya.dev/kya/storage"
)

// Entry summarizes a stored request.
type Entry struct {
	CID           string `json:"cid"`
	AgentID       string `json:"agent_id"`
	WorkspaceID   string `json:"workspace_id"`
	ActionType    string `json:"action_type"`
	TargetService string `json:"target_service"`
}

// Outbox is safe for concurrent use.
type Outbox struct {
	cas    storage.CAS
	logger *slog.Logger

	mu    sync.RWMutex
	index map[cid.Cid]Entry
}

// New wraps cas. A nil logger discards log output.
func New(cas storage.CAS, logger *slog.Logger) *Outbox {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Outbox{cas: cas, logger: logger, index: make(map[cid.Cid]Entry)}
}

// Put stores req and returns its CID.
func (o *Outbox) Put(req *kya.SignedRequest) (cid.Cid, error) {
	if req == nil {
		return cid.Undef, fmt.Errorf("outbox: nil request")
	}
	body, err := req.Canonical()
	if err != nil {
		return cid.Undef, fmt.Errorf("outbox: canonicalize request: %w", err)
	}
	id, err := o.cas.Put([]byte(body))
	if err != nil {
		return cid.Undef, fmt.Errorf("outbox: store request: %w", err)
	}
	o.remember(id, req)
	o.logger.Debug("outbox put", "cid", id.String(), "agent_id", req.AgentID, "action_type", req.ActionType)
	return id, nil
}

// Get loads the request stored under id.
func (o *Outbox) Get(id cid.Cid) (*kya.SignedRequest, error) {
	body, err := o.cas.Get(id)
	if err != nil {
		return nil, fmt.Errorf("outbox: %s: %w", id, err)
	}
	req, err := kya.DecodeSignedRequest(body)
	if err != nil {
		return nil, fmt.Errorf("outbox: %s: decode request: %w", id, err)
	}
	o.remember(id, req)
	return req, nil
}

// GetString is Get for a CID in string form.
func (o *Outbox) GetString(s string) (*kya.SignedRequest, error) {
	id, err := cid.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("outbox: %w: %v", storage.ErrInvalidCID, err)
	}
	return o.Get(id)
}

// List returns the requests stored or read through this Outbox, ordered by CID.
func (o *Outbox) List() []Entry {
	o.mu.RLock()
	ids := make([]cid.Cid, 0, len(o.index))
	for id := range o.index {
		ids = append(ids, id)
	}
	o.mu.RUnlock()
	storage.SortCIDs(ids)

	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]Entry, 0, len(ids))
	for _, id := range ids {
		out = append(out, o.index[id])
	}
	return out
}

// Scan rebuilds the index from a backend that implements storage.Lister and
// returns the number of requests indexed. Objects that are not signed
// requests are skipped with a warning.
func (o *Outbox) Scan() (int, error) {
	l, ok := o.cas.(storage.Lister)
	if !ok {
		return 0, fmt.Errorf("outbox: backend %T cannot list its contents", o.cas)
	}
	ids, err := l.List()
	if err != nil {
		return 0, fmt.Errorf("outbox: scan: %w", err)
	}
	n := 0
	for _, id := range ids {
		if _, err := o.Get(id); err != nil {
			o.logger.Warn("outbox scan skipped object", "cid", id.String(), "err", err)
			continue
		}
		n++
	}
	return n, nil
}

func (o *Outbox) remember(id cid.Cid, req *kya.SignedRequest) {
	o.mu.Lock()
	o.index[id] = Entry{
		CID:           id.String(),
		AgentID:       req.AgentID,
		WorkspaceID:   req.WorkspaceID,
		ActionType:    req.ActionType,
		TargetService: req.TargetService,
	}
	o.mu.Unlock()
}
