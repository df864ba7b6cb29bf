// Package source feeds the engine: it scans a directory tree into snapshots
// and watches it for changes, emitting incremental diffs.
package source

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/suxatcode/fsgraph/fstree"
)

// RootID is the snapshot ID of the scanned root directory. All other IDs
// are slash-separated paths relative to the root, so they stay stable
// across rescans.
const RootID = "/"

// Scan walks the directory tree rooted at dir and returns a validated
// snapshot. Unreadable entries are skipped with a warning, never fatal.
func Scan(dir string) (*fstree.Snapshot, error) {
	nodes := []fstree.Node{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("skipping unreadable entry")
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		id, parentID := idsFor(dir, path)
		node := fstree.Node{ID: id, ParentID: parentID}
		if d.IsDir() {
			node.Type = fstree.Directory
		} else {
			info, err := d.Info()
			if err != nil {
				log.Warn().Err(err).Str("path", path).Msg("skipping entry without file info")
				return nil
			}
			node.Type = fstree.File
			node.Size = info.Size()
		}
		nodes = append(nodes, node)
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "walking %q", dir)
	}
	snapshot, err := fstree.NewSnapshot(nodes)
	if err != nil {
		return nil, errors.Wrapf(err, "scanning %q", dir)
	}
	return snapshot, nil
}

func idsFor(root, path string) (id, parentID string) {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return RootID, ""
	}
	id = filepath.ToSlash(rel)
	if i := strings.LastIndex(id, "/"); i >= 0 {
		return id, id[:i]
	}
	return id, RootID
}
