// Package journal implements the staged-write transaction abstraction
// described in spec §4.5: puts and deletes accumulate against a base
// commit (or two, for a merge) until Commit seals them into a new
// Commit record, or Rollback discards them.
package journal

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/code-mvp/ledger/applog"
	"github.com/code-mvp/ledger/btree"
	"github.com/code-mvp/ledger/commit"
	"github.com/code-mvp/ledger/hashutil"
	"github.com/code-mvp/ledger/objectstore"
	"github.com/code-mvp/ledger/status"
)

var log = applog.NewNamed("journal")

// State is the journal's lifecycle state (spec §4.5): OPEN is the only
// non-terminal state.
type State int

const (
	Open State = iota
	Committed
	RolledBack
)

func (s State) String() string {
	switch s {
	case Open:
		return "OPEN"
	case Committed:
		return "COMMITTED"
	case RolledBack:
		return "ROLLED_BACK"
	default:
		return "UNKNOWN"
	}
}

// Type selects whether the journal must be explicitly finalized by its
// caller (Explicit) or auto-commits when closed (Implicit). pageledger
// does not itself drive "close" — that belongs to the excluded outward
// RPC surface (spec §1) — so Type is recorded for observers (Type()),
// not enforced as a lifecycle trigger here. Commit behaves the same for
// both types.
type Type int

const (
	Explicit Type = iota
	Implicit
)

type opKind int

const (
	opPut opKind = iota
	opDelete
)

type pendingOp struct {
	kind     opKind
	valueID  hashutil.ID
	priority btree.Priority
}

// Registrar performs the atomic commit-registration step spec §4.5
// step 5 describes: write commit bytes, update the head set, enqueue
// the commit as unsynced, and fan out to watchers. PageStorage
// implements it; Journal never touches PageStorage's indexes directly.
type Registrar interface {
	RegisterLocalCommit(ctx context.Context, c *commit.Commit) error
}

// Journal is the mutable staging buffer over a base commit (or two, for
// a merge journal).
type Journal struct {
	mu        sync.Mutex
	id        uuid.UUID
	typ       Type
	state     State
	store     objectstore.ObjectStore
	registrar Registrar
	bases     []*commit.Commit
	pending   map[string]pendingOp
	now       func() time.Time
}

// New constructs a journal staging writes on top of bases (one element
// for a normal commit journal, two for a merge journal).
func New(typ Type, store objectstore.ObjectStore, registrar Registrar, bases []*commit.Commit, now func() time.Time) (*Journal, error) {
	if len(bases) == 0 {
		return nil, status.New(status.InternalError, "journal requires at least one base commit")
	}
	if now == nil {
		now = time.Now
	}
	return &Journal{
		id:        uuid.New(),
		typ:       typ,
		state:     Open,
		store:     store,
		registrar: registrar,
		bases:     bases,
		pending:   make(map[string]pendingOp),
		now:       now,
	}, nil
}

// ID is a debugging/logging handle, not a content address.
func (j *Journal) ID() uuid.UUID { return j.id }

// Type reports whether this is an explicit or implicit journal.
func (j *Journal) Type() Type { return j.typ }

// State reports the journal's current lifecycle state.
func (j *Journal) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Put records (or overwrites) a pending write for key.
func (j *Journal) Put(key string, valueID hashutil.ID, priority btree.Priority) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != Open {
		return illegalState(j.state)
	}
	j.pending[key] = pendingOp{kind: opPut, valueID: valueID, priority: priority}
	return nil
}

// Delete records (or overwrites) a pending deletion for key. Deleting a
// key with no prior entry is not an error (spec §4.5): the net effect
// on commit is "the key is absent", which already held.
func (j *Journal) Delete(key string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != Open {
		return illegalState(j.state)
	}
	j.pending[key] = pendingOp{kind: opDelete}
	return nil
}

// Rollback discards staged operations and transitions to ROLLED_BACK.
func (j *Journal) Rollback() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != Open {
		return illegalState(j.state)
	}
	j.state = RolledBack
	j.pending = nil
	return nil
}

// Commit seals the journal, reading every entry of the first base's
// tree, applying the pending operations, rebuilding the whole tree with
// btree.Build, and registering the new Commit with the owning
// PageStorage (spec §4.5 step 1-6). On success the journal moves to COMMITTED and
// the new commit is returned. On failure the journal is left OPEN so
// the caller may retry or roll back (spec §9 open question, resolved:
// a failed Commit does not itself transition the journal).
func (j *Journal) Commit(ctx context.Context) (*commit.Commit, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.state != Open {
		return nil, illegalState(j.state)
	}

	if len(j.pending) == 0 && len(j.bases) == 1 {
		// Nothing staged on a single-base journal: no new commit is
		// emitted, the base id stands in for the result (spec §4.5 step
		// 3). A merge journal always emits its two-parent commit.
		j.state = Committed
		return j.bases[0], nil
	}

	baseRoot := j.bases[0].RootTreeID
	entries, err := btree.ToMap(ctx, j.store, baseRoot)
	if err != nil {
		return nil, err
	}

	for key, op := range j.pending {
		switch op.kind {
		case opPut:
			entries[key] = btree.Entry{Key: key, ValueID: op.valueID, Priority: op.priority}
		case opDelete:
			delete(entries, key)
		}
	}

	flat := make([]btree.Entry, 0, len(entries))
	for _, e := range entries {
		flat = append(flat, e)
	}

	rootID, err := btree.Build(ctx, j.store, flat)
	if err != nil {
		return nil, err
	}

	newCommit, err := commit.FromContentAndParents(rootID, j.bases, j.now().UnixNano())
	if err != nil {
		return nil, err
	}

	if err := j.registrar.RegisterLocalCommit(ctx, newCommit); err != nil {
		return nil, err
	}

	j.state = Committed
	log.Debug("journal committed", logFields(j, newCommit)...)
	return newCommit, nil
}

func illegalState(s State) error {
	return status.New(status.IllegalState, "journal is "+s.String())
}
