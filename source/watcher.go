package source

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/suxatcode/fsgraph/fstree"
)

// Watcher observes a directory tree and emits a diff whenever the tree
// changed. fsnotify does not watch recursively, so every directory of the
// tree is registered individually and new directories are added as they
// appear. Events are debounced: a burst of filesystem activity produces a
// single rescan.
type Watcher struct {
	root     string
	watcher  *fsnotify.Watcher
	last     *fstree.Snapshot
	diffs    chan fstree.Diff
	debounce time.Duration
}

func NewWatcher(root string, initial *fstree.Snapshot) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "creating fsnotify watcher")
	}
	w := &Watcher{
		root:     root,
		watcher:  fsw,
		last:     initial,
		diffs:    make(chan fstree.Diff, 16),
		debounce: 250 * time.Millisecond,
	}
	if err := w.watchDirs(initial); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Diffs delivers one diff per observed change burst. Closed when Run
// returns.
func (w *Watcher) Diffs() <-chan fstree.Diff { return w.diffs }

// Run blocks until ctx is done, rescanning the tree after each burst of
// filesystem events. A failed rescan keeps the previous snapshot and is
// retried on the next event.
func (w *Watcher) Run(ctx context.Context) {
	defer close(w.diffs)
	defer w.watcher.Close()
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	// buffered, with a non-blocking send: the timer callback must not hang
	// forever when Run already returned
	pending := make(chan time.Time, 1)
	fire := func() {
		select {
		case pending <- time.Now():
		default:
		}
	}
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			log.Debug().Str("op", event.Op.String()).Str("name", event.Name).Msg("filesystem event")
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("fsnotify error")
		case <-pending:
			timer = nil
			w.rescan(ctx)
		}
	}
}

func (w *Watcher) rescan(ctx context.Context) {
	next, err := Scan(w.root)
	if err != nil {
		log.Warn().Err(err).Str("root", w.root).Msg("rescan failed, keeping previous snapshot")
		return
	}
	diff := fstree.DiffSnapshots(w.last, next)
	if diff.Empty() {
		return
	}
	w.last = next
	if err := w.watchDirs(next); err != nil {
		log.Warn().Err(err).Msg("updating directory watches")
	}
	select {
	case w.diffs <- diff:
	case <-ctx.Done():
	}
}

func (w *Watcher) watchDirs(s *fstree.Snapshot) error {
	for _, n := range s.Nodes {
		if n.Type != fstree.Directory {
			continue
		}
		path := w.root
		if n.ID != RootID {
			path = w.root + "/" + n.ID
		}
		// Add is idempotent for already-watched paths
		if err := w.watcher.Add(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("cannot watch directory")
		}
	}
	return nil
}
