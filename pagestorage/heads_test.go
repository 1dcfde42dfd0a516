package pagestorage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-mvp/ledger/commit"
	"github.com/code-mvp/ledger/hashutil"
)

func mkCommit(t *testing.T, seed string, generation uint64, parents ...hashutil.ID) *commit.Commit {
	t.Helper()
	var root hashutil.ID
	copy(root[:], seed)
	var id hashutil.ID
	copy(id[:], seed+"-id")
	return &commit.Commit{ID: id, RootTreeID: root, Generation: generation, ParentIDs: parents}
}

func TestHeadTrackerSingleRootIsHead(t *testing.T) {
	h := newHeadTracker()
	root := mkCommit(t, "root", 0)
	h.observe(root, Local)
	assert.Equal(t, []hashutil.ID{root.ID}, h.ids())
}

func TestHeadTrackerChildReplacesParentAsHead(t *testing.T) {
	h := newHeadTracker()
	root := mkCommit(t, "root", 0)
	h.observe(root, Local)

	child := mkCommit(t, "child", 1, root.ID)
	removed, becameHead := h.observe(child, Local)
	assert.Equal(t, []hashutil.ID{root.ID}, removed)
	assert.True(t, becameHead)
	assert.Equal(t, []hashutil.ID{child.ID}, h.ids())
}

func TestHeadTrackerDivergingBranchesAreBothHeads(t *testing.T) {
	h := newHeadTracker()
	root := mkCommit(t, "root", 0)
	h.observe(root, Local)

	left := mkCommit(t, "left", 1, root.ID)
	right := mkCommit(t, "right", 1, root.ID)
	h.observe(left, Local)
	h.observe(right, Sync)

	heads := h.ids()
	assert.ElementsMatch(t, []hashutil.ID{left.ID, right.ID}, heads)
}

func TestHeadTrackerOutOfOrderIngestionDoesNotResurrectHead(t *testing.T) {
	h := newHeadTracker()
	root := mkCommit(t, "root", 0)
	child := mkCommit(t, "child", 1, root.ID)

	// child arrives (e.g. via sync) before root is (re-)observed.
	h.observe(child, Sync)
	h.observe(root, Sync)

	assert.Equal(t, []hashutil.ID{child.ID}, h.ids())
}

func TestPickPrefersHighestGeneration(t *testing.T) {
	h := newHeadTracker()
	low := mkCommit(t, "low", 1)
	high := mkCommit(t, "high", 5)
	h.observe(low, Local)
	h.observe(high, Local)

	byID := func(id hashutil.ID) (*commit.Commit, bool) {
		for _, c := range []*commit.Commit{low, high} {
			if c.ID == id {
				return c, true
			}
		}
		return nil, false
	}

	picked, ok := h.pick(byID)
	require.True(t, ok)
	assert.Equal(t, high.ID, picked)
}

func TestPickPrefersLocalOverSyncOnGenerationTie(t *testing.T) {
	h := newHeadTracker()
	local := mkCommit(t, "local", 3)
	sync := mkCommit(t, "sync", 3)
	h.observe(local, Local)
	h.observe(sync, Sync)

	byID := func(id hashutil.ID) (*commit.Commit, bool) {
		for _, c := range []*commit.Commit{local, sync} {
			if c.ID == id {
				return c, true
			}
		}
		return nil, false
	}

	picked, ok := h.pick(byID)
	require.True(t, ok)
	assert.Equal(t, local.ID, picked)
}

func TestPickBreaksRemainingTiesLexicographically(t *testing.T) {
	h := newHeadTracker()
	a := mkCommit(t, "aaa", 3)
	b := mkCommit(t, "bbb", 3)
	h.observe(a, Local)
	h.observe(b, Local)

	byID := func(id hashutil.ID) (*commit.Commit, bool) {
		for _, c := range []*commit.Commit{a, b} {
			if c.ID == id {
				return c, true
			}
		}
		return nil, false
	}

	picked, ok := h.pick(byID)
	require.True(t, ok)
	var want hashutil.ID
	if a.ID.Hex() < b.ID.Hex() {
		want = a.ID
	} else {
		want = b.ID
	}
	assert.Equal(t, want, picked)
}

func TestPickWithNoHeadsReturnsFalse(t *testing.T) {
	h := newHeadTracker()
	_, ok := h.pick(func(hashutil.ID) (*commit.Commit, bool) { return nil, false })
	assert.False(t, ok)
}
