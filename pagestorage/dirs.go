package pagestorage

import (
	"os"
	"path/filepath"

	"github.com/code-mvp/ledger/hashutil"
	"github.com/code-mvp/ledger/status"
)

// layout is the on-disk directory structure spec §6 prescribes:
//
//	objects/<hex(id)>   raw object bytes (owned by objectstore)
//	heads/<hex(id)>     zero-byte marker files; the set of files is the head set
//	commits/<hex(id)>   commit record bytes
//	unsynced/<hex(id)>  zero-byte markers for commits not yet acked by sync
type layout struct {
	root string
}

func newLayout(root string) layout { return layout{root: root} }

func (l layout) commitsDir() string  { return filepath.Join(l.root, "commits") }
func (l layout) headsDir() string    { return filepath.Join(l.root, "heads") }
func (l layout) unsyncedDir() string { return filepath.Join(l.root, "unsynced") }

func (l layout) ensureDirs() error {
	for _, d := range []string{l.commitsDir(), l.headsDir(), l.unsyncedDir()} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return status.Wrap(status.IOError, "create "+d, err)
		}
	}
	return nil
}

func (l layout) commitPath(id hashutil.ID) string  { return filepath.Join(l.commitsDir(), id.Hex()) }
func (l layout) headPath(id hashutil.ID) string     { return filepath.Join(l.headsDir(), id.Hex()) }
func (l layout) unsyncedPath(id hashutil.ID) string { return filepath.Join(l.unsyncedDir(), id.Hex()) }

func writeMarker(path string) error {
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		return status.Wrap(status.IOError, "write marker "+path, err)
	}
	return nil
}

func removeMarker(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return status.Wrap(status.IOError, "remove marker "+path, err)
	}
	return nil
}

func writeRecord(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return status.Wrap(status.IOError, "write record "+path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return status.Wrap(status.IOError, "finalize record "+path, err)
	}
	return nil
}

func listMarkers(dir string) ([]hashutil.ID, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, status.Wrap(status.IOError, "list "+dir, err)
	}
	ids := make([]hashutil.ID, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		id, err := hashutil.FromHex(e.Name())
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
