package pagestorage

import (
	"sync"

	"github.com/code-mvp/ledger/commit"
)

// Provenance tells a CommitWatcher whether a commit originated locally
// or was ingested from the remote replica (spec §4.6, §8 S6).
type Provenance int

const (
	Local Provenance = iota
	Sync
)

func (p Provenance) String() string {
	if p == Sync {
		return "SYNC"
	}
	return "LOCAL"
}

// CommitWatcher observes newly committed changes. OnCommit is called
// synchronously, once per commit, in registration order (spec §4.6).
type CommitWatcher interface {
	OnCommit(c *commit.Commit, provenance Provenance)
}

type watcherEntry struct {
	w       CommitWatcher
	removed bool
}

// watcherList is registration-ordered and removal-safe: a watcher
// removed mid fan-out stops receiving subsequent notifications but any
// call already in flight for it runs to completion (spec §4.6, §5).
type watcherList struct {
	mu      sync.Mutex
	entries []*watcherEntry
}

func (l *watcherList) add(w CommitWatcher) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, &watcherEntry{w: w})
}

func (l *watcherList) remove(w CommitWatcher) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.entries[:0]
	for _, e := range l.entries {
		if e.w == w {
			e.removed = true
			continue
		}
		kept = append(kept, e)
	}
	l.entries = kept
}

// notify fans c out to every watcher registered at the time notify was
// called, skipping any that were removed before their turn.
func (l *watcherList) notify(c *commit.Commit, provenance Provenance) {
	l.mu.Lock()
	snapshot := make([]*watcherEntry, len(l.entries))
	copy(snapshot, l.entries)
	l.mu.Unlock()

	for _, e := range snapshot {
		l.mu.Lock()
		removed := e.removed
		l.mu.Unlock()
		if removed {
			continue
		}
		e.w.OnCommit(c, provenance)
	}
}
