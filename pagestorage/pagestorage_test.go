package pagestorage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-mvp/ledger/btree"
	"github.com/code-mvp/ledger/commit"
	"github.com/code-mvp/ledger/hashutil"
	"github.com/code-mvp/ledger/journal"
	"github.com/code-mvp/ledger/objectstore"
	"github.com/code-mvp/ledger/pageconfig"
)

type watcherCall struct {
	commit     *commit.Commit
	provenance Provenance
}

type recordingWatcher struct {
	calls []watcherCall
}

func (w *recordingWatcher) OnCommit(c *commit.Commit, p Provenance) {
	w.calls = append(w.calls, watcherCall{commit: c, provenance: p})
}

func newTestStorage(t *testing.T) *PageStorage {
	t.Helper()
	clock := time.Unix(0, 0)
	ps, err := New("test-page", pageconfig.Default(t.TempDir()), WithClock(func() time.Time { return clock }))
	require.NoError(t, err)
	require.NoError(t, ps.Init(context.Background()))
	return ps
}

func TestInitSeedsSingleHead(t *testing.T) {
	ps := newTestStorage(t)
	heads := ps.GetHeadCommitIds()
	require.Len(t, heads, 1)

	c, err := ps.GetCommit(heads[0])
	require.NoError(t, err)
	assert.Equal(t, uint64(0), c.Generation)
	assert.Empty(t, c.ParentIDs)
}

func TestPutCommitAdvancesHead(t *testing.T) {
	ps := newTestStorage(t)
	initialHeads := ps.GetHeadCommitIds()
	require.Len(t, initialHeads, 1)

	obj, err := ps.AddObjectSynchronous([]byte("value"))
	require.NoError(t, err)

	j, err := ps.StartCommit(hashutil.Zero, journal.Explicit)
	require.NoError(t, err)
	require.NoError(t, j.Put("k", obj.ID(), btree.Eager))
	newCommit, err := j.Commit(context.Background())
	require.NoError(t, err)

	heads := ps.GetHeadCommitIds()
	require.Len(t, heads, 1)
	assert.Equal(t, newCommit.ID, heads[0])
	assert.NotEqual(t, initialHeads[0], heads[0])
}

func TestWatcherReceivesLocalCommitsInOrder(t *testing.T) {
	ps := newTestStorage(t)
	w1 := &recordingWatcher{}
	w2 := &recordingWatcher{}
	ps.AddCommitWatcher(w1)
	ps.AddCommitWatcher(w2)

	obj, err := ps.AddObjectSynchronous([]byte("x"))
	require.NoError(t, err)
	j, err := ps.StartCommit(hashutil.Zero, journal.Explicit)
	require.NoError(t, err)
	require.NoError(t, j.Put("k", obj.ID(), btree.Eager))
	newCommit, err := j.Commit(context.Background())
	require.NoError(t, err)

	require.Len(t, w1.calls, 1)
	require.Len(t, w2.calls, 1)
	assert.Equal(t, newCommit.ID, w1.calls[0].commit.ID)
	assert.Equal(t, Local, w1.calls[0].provenance)
}

func TestRemovedWatcherStopsReceivingFutureCommits(t *testing.T) {
	ps := newTestStorage(t)
	w := &recordingWatcher{}
	ps.AddCommitWatcher(w)
	ps.RemoveCommitWatcher(w)

	obj, err := ps.AddObjectSynchronous([]byte("x"))
	require.NoError(t, err)
	j, err := ps.StartCommit(hashutil.Zero, journal.Explicit)
	require.NoError(t, err)
	require.NoError(t, j.Put("k", obj.ID(), btree.Eager))
	_, err = j.Commit(context.Background())
	require.NoError(t, err)

	assert.Empty(t, w.calls)
}

func TestAddCommitFromSyncIsIdempotentAndTaggedSync(t *testing.T) {
	ps := newTestStorage(t)
	w := &recordingWatcher{}
	ps.AddCommitWatcher(w)

	heads := ps.GetHeadCommitIds()
	base, err := ps.GetCommit(heads[0])
	require.NoError(t, err)

	emptyTree, err := btree.EmptyTree(context.Background(), ps.ObjectStore())
	require.NoError(t, err)
	remote, err := commit.FromContentAndParents(emptyTree, []*commit.Commit{base}, 99)
	require.NoError(t, err)

	require.NoError(t, ps.AddCommitFromSync(remote.ID, commit.Encode(remote)))
	require.NoError(t, ps.AddCommitFromSync(remote.ID, commit.Encode(remote)))

	assert.Len(t, w.calls, 1)
	assert.Equal(t, Sync, w.calls[0].provenance)

	newHeads := ps.GetHeadCommitIds()
	require.Len(t, newHeads, 1)
	assert.Equal(t, remote.ID, newHeads[0])
}

func TestUnsyncedCommitsOrderedByGenerationAndMarkSynced(t *testing.T) {
	ps := newTestStorage(t)

	for i := 0; i < 3; i++ {
		obj, err := ps.AddObjectSynchronous([]byte{byte(i)})
		require.NoError(t, err)
		j, err := ps.StartCommit(hashutil.Zero, journal.Explicit)
		require.NoError(t, err)
		require.NoError(t, j.Put("k", obj.ID(), btree.Eager))
		_, err = j.Commit(context.Background())
		require.NoError(t, err)
	}

	unsynced := ps.GetUnsyncedCommits()
	require.Len(t, unsynced, 4) // the seeded initial commit plus 3 puts
	for i := 1; i < len(unsynced); i++ {
		assert.LessOrEqual(t, unsynced[i-1].Generation, unsynced[i].Generation)
	}

	require.NoError(t, ps.MarkCommitSynced(unsynced[0].ID))
	remaining := ps.GetUnsyncedCommits()
	assert.Len(t, remaining, 3)
}

func TestStartMergeCommitProducesTwoParentCommit(t *testing.T) {
	ps := newTestStorage(t)
	heads := ps.GetHeadCommitIds()
	base := heads[0]

	leftObj, err := ps.AddObjectSynchronous([]byte("left"))
	require.NoError(t, err)
	leftJournal, err := ps.StartCommit(base, journal.Explicit)
	require.NoError(t, err)
	require.NoError(t, leftJournal.Put("a", leftObj.ID(), btree.Eager))
	left, err := leftJournal.Commit(context.Background())
	require.NoError(t, err)

	rightObj, err := ps.AddObjectSynchronous([]byte("right"))
	require.NoError(t, err)
	rightJournal, err := ps.StartCommit(base, journal.Explicit)
	require.NoError(t, err)
	require.NoError(t, rightJournal.Put("b", rightObj.ID(), btree.Eager))
	right, err := rightJournal.Commit(context.Background())
	require.NoError(t, err)

	mergeJournal, err := ps.StartMergeCommit(left.ID, right.ID)
	require.NoError(t, err)
	merged, err := mergeJournal.Commit(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []hashutil.ID{left.ID, right.ID}, merged.ParentIDs)

	entries, err := btree.ToMap(context.Background(), ps.ObjectStore(), merged.RootTreeID)
	require.NoError(t, err)
	assert.Contains(t, entries, "a")
	assert.Contains(t, entries, "b")
}

func TestReopenReconstructsHeadsFromDisk(t *testing.T) {
	root := t.TempDir()
	clock := time.Unix(0, 0)
	cfg := pageconfig.Default(root)

	ps1, err := New("page", cfg, WithClock(func() time.Time { return clock }))
	require.NoError(t, err)
	require.NoError(t, ps1.Init(context.Background()))

	obj, err := ps1.AddObjectSynchronous([]byte("durable"))
	require.NoError(t, err)
	j, err := ps1.StartCommit(hashutil.Zero, journal.Explicit)
	require.NoError(t, err)
	require.NoError(t, j.Put("k", obj.ID(), btree.Eager))
	newCommit, err := j.Commit(context.Background())
	require.NoError(t, err)

	ps2, err := New("page", cfg, WithClock(func() time.Time { return clock }))
	require.NoError(t, err)
	require.NoError(t, ps2.Init(context.Background()))

	heads := ps2.GetHeadCommitIds()
	require.Len(t, heads, 1)
	assert.Equal(t, newCommit.ID, heads[0])

	entries, err := btree.ToMap(context.Background(), ps2.ObjectStore(), newCommit.RootTreeID)
	require.NoError(t, err)
	assert.Contains(t, entries, "k")
}

func TestKeepNodesInMemorySkipsDiskObjectStore(t *testing.T) {
	root := t.TempDir()
	cfg := pageconfig.Default(root)
	cfg.KeepNodesInMemory = true
	ps, err := New("mem-page", cfg)
	require.NoError(t, err)
	require.NoError(t, ps.Init(context.Background()))

	assert.IsType(t, &objectstore.MemStore{}, ps.ObjectStore())
	_, statErr := os.Stat(filepath.Join(root, "objects"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestLocalCommitCountTracksLocalCommitsOnly(t *testing.T) {
	ps := newTestStorage(t)
	assert.Equal(t, int64(1), ps.LocalCommitCount()) // the seeded initial commit

	obj, err := ps.AddObjectSynchronous([]byte("x"))
	require.NoError(t, err)
	j, err := ps.StartCommit(hashutil.Zero, journal.Explicit)
	require.NoError(t, err)
	require.NoError(t, j.Put("k", obj.ID(), btree.Eager))
	_, err = j.Commit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(2), ps.LocalCommitCount())
}

func TestAddObjectFromLocalStreams(t *testing.T) {
	ps := newTestStorage(t)
	id, err := ps.AddObjectFromLocal(context.Background(), bytes.NewReader([]byte("streamed")), 8)
	require.NoError(t, err)

	obj, err := ps.GetObjectSynchronous(id)
	require.NoError(t, err)
	assert.Equal(t, []byte("streamed"), obj.Data())
}
