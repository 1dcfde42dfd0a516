// Package pagestorage implements the per-page storage engine described
// in spec §4.6: it orchestrates the object store, the persistent
// B-tree, commits, and journals into a single page, tracking heads,
// unsynced commits, and commit watchers.
package pagestorage

import (
	"context"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/code-mvp/ledger/applog"
	"github.com/code-mvp/ledger/btree"
	"github.com/code-mvp/ledger/commit"
	"github.com/code-mvp/ledger/hashutil"
	"github.com/code-mvp/ledger/journal"
	"github.com/code-mvp/ledger/objectstore"
	"github.com/code-mvp/ledger/pageconfig"
	"github.com/code-mvp/ledger/status"
)

var log = applog.NewNamed("pagestorage")

// PageStorage is the per-page engine (spec §4.6). One value owns one
// directory root, its in-memory indexes, and its watcher list; there is
// no global state (spec §9).
type PageStorage struct {
	id     string
	layout layout
	store  objectstore.ObjectStore
	now    func() time.Time

	mu       sync.Mutex
	commits  map[hashutil.ID]*commit.Commit
	unsynced map[hashutil.ID]struct{}

	heads    *headTracker
	watchers *watcherList

	localCommitCount atomic.Int64
}

// Option customizes PageStorage construction; mirrors the teacher's
// functional-option style (app/ocache.Option).
type Option func(*PageStorage)

// WithClock overrides the clock used to timestamp new commits. Tests
// use this for deterministic fixtures.
func WithClock(now func() time.Time) Option {
	return func(ps *PageStorage) { ps.now = now }
}

// WithObjectStore overrides the object store (e.g. an in-memory one for
// tests or ephemeral embedding).
func WithObjectStore(store objectstore.ObjectStore) Option {
	return func(ps *PageStorage) { ps.store = store }
}

// New constructs a PageStorage for id rooted at cfg.RootDir. Call Init
// before any other method.
func New(id string, cfg pageconfig.Config, opts ...Option) (*PageStorage, error) {
	ps := &PageStorage{
		id:       id,
		layout:   newLayout(cfg.RootDir),
		now:      time.Now,
		commits:  make(map[hashutil.ID]*commit.Commit),
		unsynced: make(map[hashutil.ID]struct{}),
		heads:    newHeadTracker(),
		watchers: &watcherList{},
	}
	for _, o := range opts {
		o(ps)
	}
	if ps.store == nil {
		if cfg.KeepNodesInMemory {
			ps.store = objectstore.NewMemStore()
		} else {
			fs, err := objectstore.NewFS(cfg.RootDir)
			if err != nil {
				return nil, err
			}
			ps.store = fs
		}
	}
	return ps, nil
}

// GetId returns the page's caller-supplied identifier.
func (ps *PageStorage) GetId() string { return ps.id }

// Init opens (or creates, if empty) the on-disk state under the page's
// directory root, reconstructing the head set and unsynced set from
// the commits/, heads/, and unsynced/ directories (spec §4.6, §6). If
// the directories are empty, it synthesizes the initial commit
// (generation 0, empty root tree, no parents) and installs it as the
// sole head.
func (ps *PageStorage) Init(ctx context.Context) error {
	if err := ps.layout.ensureDirs(); err != nil {
		return err
	}

	commitIDs, err := listMarkers(ps.layout.commitsDir())
	if err != nil {
		return err
	}

	if len(commitIDs) == 0 {
		return ps.seedInitialCommit(ctx)
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()

	loaded := make([]*commit.Commit, 0, len(commitIDs))
	for _, id := range commitIDs {
		data, err := readFile(ps.layout.commitPath(id))
		if err != nil {
			return err
		}
		c, err := commit.Parse(data)
		if err != nil {
			return err
		}
		loaded = append(loaded, c)
	}
	// Replay in generation order so every parent is known before its
	// children update the head set.
	sort.Slice(loaded, func(i, j int) bool { return loaded[i].Generation < loaded[j].Generation })

	headIDs, err := listMarkers(ps.layout.headsDir())
	if err != nil {
		return err
	}
	headSet := make(map[hashutil.ID]struct{}, len(headIDs))
	for _, id := range headIDs {
		headSet[id] = struct{}{}
	}

	unsyncedIDs, err := listMarkers(ps.layout.unsyncedDir())
	if err != nil {
		return err
	}
	for _, id := range unsyncedIDs {
		ps.unsynced[id] = struct{}{}
	}

	for _, c := range loaded {
		ps.commits[c.ID] = c
		provenance := Sync
		if _, isUnsynced := ps.unsynced[c.ID]; isUnsynced {
			provenance = Local
		}
		ps.heads.observe(c, provenance)
	}

	// The heads/ markers are advisory (heads are always recomputable
	// from the commit DAG, as above); reconcile them with the
	// recomputed set rather than trusting them blindly, in case the
	// process crashed mid-write.
	want := make(map[hashutil.ID]struct{})
	for _, id := range ps.heads.ids() {
		want[id] = struct{}{}
	}
	for id := range headSet {
		if _, ok := want[id]; !ok {
			if err := removeMarker(ps.layout.headPath(id)); err != nil {
				return err
			}
		}
	}
	for id := range want {
		if _, ok := headSet[id]; !ok {
			if err := writeMarker(ps.layout.headPath(id)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (ps *PageStorage) seedInitialCommit(ctx context.Context) error {
	emptyTree, err := btree.EmptyTree(ctx, ps.store)
	if err != nil {
		return err
	}
	initial, err := commit.InitialCommit(emptyTree, ps.now().UnixNano())
	if err != nil {
		return err
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()

	if err := ps.insertCommitLocked(initial); err != nil {
		return err
	}
	if err := writeMarker(ps.layout.unsyncedPath(initial.ID)); err != nil {
		return err
	}
	ps.unsynced[initial.ID] = struct{}{}
	ps.localCommitCount.Inc()
	_, _ = ps.heads.observe(initial, Local)
	return writeMarker(ps.layout.headPath(initial.ID))
}

// GetHeadCommitIds returns at least one head id (spec §4.6); order is
// unspecified by the spec, returned here lexicographically for
// determinism in tests.
func (ps *PageStorage) GetHeadCommitIds() []hashutil.ID {
	return ps.heads.ids()
}

// GetCommit returns the commit addressed by id.
func (ps *PageStorage) GetCommit(id hashutil.ID) (*commit.Commit, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	c, ok := ps.commits[id]
	if !ok {
		return nil, status.New(status.NotFound, "commit not found: "+id.Hex())
	}
	return c, nil
}

func (ps *PageStorage) knownLocked(id hashutil.ID) (*commit.Commit, bool) {
	c, ok := ps.commits[id]
	return c, ok
}

// AddCommitFromLocal ingests a commit produced by this page's own
// journals (spec §4.6): every parent must already be known; the commit
// is written, added to the unsynced set, heads are updated, and
// watchers are notified with provenance Local.
func (ps *PageStorage) AddCommitFromLocal(c *commit.Commit) error {
	ps.mu.Lock()
	if _, exists := ps.commits[c.ID]; exists {
		ps.mu.Unlock()
		return nil
	}
	for _, p := range c.ParentIDs {
		if _, ok := ps.commits[p]; !ok {
			ps.mu.Unlock()
			return status.New(status.NotFound, "unknown parent: "+p.Hex())
		}
	}
	if err := ps.insertCommitLocked(c); err != nil {
		ps.mu.Unlock()
		return err
	}
	if err := writeMarker(ps.layout.unsyncedPath(c.ID)); err != nil {
		ps.mu.Unlock()
		return err
	}
	ps.unsynced[c.ID] = struct{}{}
	ps.mu.Unlock()

	ps.localCommitCount.Inc()
	if err := ps.updateHeadMarkers(c, Local); err != nil {
		return err
	}
	ps.watchers.notify(c, Local)
	return nil
}

// LocalCommitCount reports how many commits this page has produced
// locally since construction (not persisted across restarts; a
// lightweight counter for callers wiring up metrics/logging, updated
// without holding ps.mu so it never contends with the read/write path).
func (ps *PageStorage) LocalCommitCount() int64 {
	return ps.localCommitCount.Load()
}

// RegisterLocalCommit implements journal.Registrar.
func (ps *PageStorage) RegisterLocalCommit(ctx context.Context, c *commit.Commit) error {
	return ps.AddCommitFromLocal(c)
}

// AddCommitFromSync ingests a commit from the remote replica (spec
// §4.6): idempotent, never adds to the unsynced set, fans out with
// provenance Sync.
func (ps *PageStorage) AddCommitFromSync(id hashutil.ID, data []byte) error {
	c, err := commit.Parse(data)
	if err != nil {
		return err
	}
	if c.ID != id {
		return status.New(status.FormatError, "commit id does not match its bytes")
	}

	ps.mu.Lock()
	if _, exists := ps.commits[c.ID]; exists {
		ps.mu.Unlock()
		return nil
	}
	for _, p := range c.ParentIDs {
		if _, ok := ps.commits[p]; !ok {
			ps.mu.Unlock()
			return status.New(status.NotFound, "unknown parent: "+p.Hex())
		}
	}
	if err := ps.insertCommitLocked(c); err != nil {
		ps.mu.Unlock()
		return err
	}
	ps.mu.Unlock()

	if err := ps.updateHeadMarkers(c, Sync); err != nil {
		return err
	}
	ps.watchers.notify(c, Sync)
	return nil
}

// updateHeadMarkers observes c's effect on the head set and keeps the
// heads/ marker directory consistent with it.
func (ps *PageStorage) updateHeadMarkers(c *commit.Commit, provenance Provenance) error {
	removed, becameHead := ps.heads.observe(c, provenance)
	for _, id := range removed {
		if err := removeMarker(ps.layout.headPath(id)); err != nil {
			return err
		}
	}
	if becameHead {
		if err := writeMarker(ps.layout.headPath(c.ID)); err != nil {
			return err
		}
	}
	return nil
}

// insertCommitLocked writes the commit record and indexes it in
// memory. Caller holds ps.mu.
func (ps *PageStorage) insertCommitLocked(c *commit.Commit) error {
	data := commit.Encode(c)
	if err := writeRecord(ps.layout.commitPath(c.ID), data); err != nil {
		return err
	}
	ps.commits[c.ID] = c
	return nil
}

// StartCommit opens a journal on top of base (the local-branch head if
// base is the zero ID).
func (ps *PageStorage) StartCommit(base hashutil.ID, typ journal.Type) (*journal.Journal, error) {
	if base.IsZero() {
		picked, ok := ps.heads.pick(ps.lookupForPick())
		if !ok {
			return nil, status.New(status.InternalError, "page has no heads")
		}
		base = picked
	}
	baseCommit, err := ps.GetCommit(base)
	if err != nil {
		return nil, err
	}
	return journal.New(typ, ps.store, ps, []*commit.Commit{baseCommit}, ps.now)
}

// StartMergeCommit opens a merge journal with two parents.
func (ps *PageStorage) StartMergeCommit(left, right hashutil.ID) (*journal.Journal, error) {
	leftCommit, err := ps.GetCommit(left)
	if err != nil {
		return nil, err
	}
	rightCommit, err := ps.GetCommit(right)
	if err != nil {
		return nil, err
	}
	return journal.New(journal.Explicit, ps.store, ps, []*commit.Commit{leftCommit, rightCommit}, ps.now)
}

func (ps *PageStorage) lookupForPick() func(hashutil.ID) (*commit.Commit, bool) {
	return func(id hashutil.ID) (*commit.Commit, bool) {
		ps.mu.Lock()
		defer ps.mu.Unlock()
		return ps.knownLocked(id)
	}
}

// GetUnsyncedCommits returns every locally-produced commit not yet
// acknowledged by the remote, in topological order (parents first),
// per the sync consumer interface (spec §6).
func (ps *PageStorage) GetUnsyncedCommits() []*commit.Commit {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	out := make([]*commit.Commit, 0, len(ps.unsynced))
	for id := range ps.unsynced {
		out = append(out, ps.commits[id])
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Generation != out[j].Generation {
			return out[i].Generation < out[j].Generation
		}
		return out[i].ID.Hex() < out[j].ID.Hex()
	})
	return out
}

// MarkCommitSynced removes id from the unsynced set (spec §6).
func (ps *PageStorage) MarkCommitSynced(id hashutil.ID) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if _, ok := ps.unsynced[id]; !ok {
		return nil
	}
	if err := removeMarker(ps.layout.unsyncedPath(id)); err != nil {
		return err
	}
	delete(ps.unsynced, id)
	return nil
}

// AddCommitWatcher registers w to observe future commits.
func (ps *PageStorage) AddCommitWatcher(w CommitWatcher) {
	ps.watchers.add(w)
}

// RemoveCommitWatcher deregisters w.
func (ps *PageStorage) RemoveCommitWatcher(w CommitWatcher) {
	ps.watchers.remove(w)
}

// AddObjectFromLocal drains r, hashing it into the object store.
func (ps *PageStorage) AddObjectFromLocal(ctx context.Context, r io.Reader, expectedSize int64) (hashutil.ID, error) {
	return ps.store.AddObjectFromStream(ctx, r, expectedSize)
}

// AddObjectSynchronous is the blocking variant for bootstrap/test
// callers not running on the owning task runner (spec §5).
func (ps *PageStorage) AddObjectSynchronous(data []byte) (objectstore.Object, error) {
	id, err := ps.store.AddObject(data)
	if err != nil {
		return nil, err
	}
	return ps.store.GetObjectSync(id)
}

// GetObject returns the object addressed by id.
func (ps *PageStorage) GetObject(ctx context.Context, id hashutil.ID) (objectstore.Object, error) {
	return ps.store.GetObject(ctx, id)
}

// GetObjectSynchronous is the blocking variant.
func (ps *PageStorage) GetObjectSynchronous(id hashutil.ID) (objectstore.Object, error) {
	return ps.store.GetObjectSync(id)
}

// ObjectStore exposes the underlying store, e.g. for btree.Load callers
// outside this package (journal uses it directly; external read paths
// such as a tree browser would go through here).
func (ps *PageStorage) ObjectStore() objectstore.ObjectStore {
	return ps.store
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, status.Wrap(status.IOError, "read "+path, err)
	}
	return data, nil
}
