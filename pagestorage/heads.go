package pagestorage

import (
	"sort"
	"sync"

	"github.com/code-mvp/ledger/commit"
	"github.com/code-mvp/ledger/hashutil"
)

// headTracker maintains the head set (spec §3, §4.6): a commit is a
// head iff no known commit names it as a parent. It also remembers
// which provenance produced each head, since the local-branch-head
// selector (spec §4.6) must prefer a head that isn't solely reachable
// from a remotely-ingested branch.
type headTracker struct {
	mu             sync.Mutex
	heads          map[hashutil.ID]Provenance
	childrenOf     map[hashutil.ID][]hashutil.ID // parent id -> ids that name it as a parent
}

func newHeadTracker() *headTracker {
	return &headTracker{
		heads:      make(map[hashutil.ID]Provenance),
		childrenOf: make(map[hashutil.ID][]hashutil.ID),
	}
}

// observe updates the head set for a newly inserted commit c. A commit
// becomes a head unless some already-known commit lists it as a
// parent; inserting c also removes any of its parents from the head
// set (spec §4.6). It returns the parent ids that dropped out of the
// head set and whether c itself became one, so the caller can keep the
// on-disk heads/ markers in sync.
func (h *headTracker) observe(c *commit.Commit, provenance Provenance) (removedHeads []hashutil.ID, becameHead bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, p := range c.ParentIDs {
		if _, wasHead := h.heads[p]; wasHead {
			removedHeads = append(removedHeads, p)
			delete(h.heads, p)
		}
		h.childrenOf[p] = append(h.childrenOf[p], c.ID)
	}
	if len(h.childrenOf[c.ID]) == 0 {
		h.heads[c.ID] = provenance
		becameHead = true
	}
	return removedHeads, becameHead
}

func (h *headTracker) ids() []hashutil.ID {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]hashutil.ID, 0, len(h.heads))
	for id := range h.heads {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Hex() < ids[j].Hex() })
	return ids
}

func (h *headTracker) provenanceOf(id hashutil.ID) (Provenance, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.heads[id]
	return p, ok
}

// pick implements the local-branch-head selector (spec §4.6): the head
// with the greatest generation, preferring a head that is not solely
// reachable from a remotely-ingested branch (i.e. provenance Local over
// Sync), breaking remaining ties by the lexicographically least
// CommitId. byID resolves a head's generation by id.
func (h *headTracker) pick(byID func(hashutil.ID) (*commit.Commit, bool)) (hashutil.ID, bool) {
	h.mu.Lock()
	type candidate struct {
		id         hashutil.ID
		generation uint64
		provenance Provenance
	}
	candidates := make([]candidate, 0, len(h.heads))
	for id, prov := range h.heads {
		c, ok := byID(id)
		if !ok {
			continue
		}
		candidates = append(candidates, candidate{id: id, generation: c.Generation, provenance: prov})
	}
	h.mu.Unlock()

	if len(candidates) == 0 {
		return hashutil.Zero, false
	}

	sort.Slice(candidates, func(i, j int) bool {
		ci, cj := candidates[i], candidates[j]
		if ci.generation != cj.generation {
			return ci.generation > cj.generation
		}
		if ci.provenance != cj.provenance {
			return ci.provenance == Local
		}
		return ci.id.Hex() < cj.id.Hex()
	})
	return candidates[0].id, true
}
