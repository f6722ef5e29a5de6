package cli

import (
	"context"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/deciduous/pkg/cache"
	"github.com/matzehuels/deciduous/pkg/pipeline"
)

// watcher polls a document and re-runs the pipeline whenever its content
// changes. Runs happen one at a time on the polling goroutine, so each
// published snapshot supersedes the previous one.
type watcher struct {
	path     string
	interval time.Duration
	runner   *pipeline.Runner
	opts     pipeline.Options
	current  *pipeline.Current
	logger   *log.Logger

	// onSnapshot is called with every published snapshot.
	onSnapshot func(*pipeline.Snapshot)

	modTime  time.Time
	size     int64
	lastHash string
	missing  bool
}

// Run polls until ctx is cancelled. The document is compiled once
// immediately.
func (w *watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// poll runs the pipeline if the document changed since the last run. A
// change of modification time alone (a save without edits) does not trigger
// a run.
func (w *watcher) poll(ctx context.Context) {
	info, err := os.Stat(w.path)
	if err != nil {
		// Editors that save by rename briefly remove the file.
		if !w.missing {
			w.logger.Debug("document unavailable", "path", w.path, "err", err)
		}
		w.missing = true
		return
	}
	w.missing = false
	if info.ModTime().Equal(w.modTime) && info.Size() == w.size {
		return
	}
	w.modTime, w.size = info.ModTime(), info.Size()

	src, err := os.ReadFile(w.path)
	if err != nil {
		w.logger.Debug("read failed", "path", w.path, "err", err)
		return
	}
	hash := cache.Hash(src)
	if hash == w.lastHash {
		return
	}
	w.lastHash = hash

	snap := w.runner.Run(ctx, src, w.opts)
	if ctx.Err() != nil {
		return
	}
	if w.current.Publish(snap) && w.onSnapshot != nil {
		w.onSnapshot(snap)
	}
}
