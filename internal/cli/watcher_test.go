package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/deciduous/pkg/document"
	"github.com/matzehuels/deciduous/pkg/errors"
	"github.com/matzehuels/deciduous/pkg/pipeline"
)

type fakeLayout struct{ calls atomic.Int32 }

func (f *fakeLayout) layout(_ context.Context, _, _ string) ([]byte, error) {
	f.calls.Add(1)
	return []byte(`<svg xmlns="http://www.w3.org/2000/svg"></svg>`), nil
}

func newTestWatcher(t *testing.T, path string) (*watcher, *[]*pipeline.Snapshot) {
	t.Helper()
	logger := log.New(io.Discard)
	runner := pipeline.NewRunner(nil, nil, logger)
	runner.Layout = (&fakeLayout{}).layout

	var seen []*pipeline.Snapshot
	w := &watcher{
		path:     path,
		interval: 10 * time.Millisecond,
		runner:   runner,
		opts:     pipeline.Options{Formats: []string{"svg"}, Embed: true, Logger: logger},
		current:  &pipeline.Current{},
		logger:   logger,
		onSnapshot: func(s *pipeline.Snapshot) {
			seen = append(seen, s)
		},
	}
	return w, &seen
}

// touch rewrites path with data and moves its modification time forward,
// so coarse filesystem timestamps still register the write.
func touch(t *testing.T, path string, data string, at time.Time) {
	t.Helper()
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, at, at); err != nil {
		t.Fatal(err)
	}
}

func TestWatcherPoll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "threats.yaml")
	now := time.Now()
	touch(t, path, document.Sample, now)

	w, seen := newTestWatcher(t, path)
	ctx := context.Background()

	w.poll(ctx)
	if len(*seen) != 1 || !(*seen)[0].OK() {
		t.Fatalf("first poll should publish a good snapshot, got %d", len(*seen))
	}
	if w.current.Load() != (*seen)[0] {
		t.Error("published snapshot should be current")
	}

	w.poll(ctx)
	if len(*seen) != 1 {
		t.Error("unchanged file should not trigger a run")
	}

	// Saved without edits: new timestamp, same content.
	touch(t, path, document.Sample, now.Add(time.Second))
	w.poll(ctx)
	if len(*seen) != 1 {
		t.Error("identical content should not trigger a run")
	}

	touch(t, path, duplicateDoc, now.Add(2*time.Second))
	w.poll(ctx)
	if len(*seen) != 2 {
		t.Fatalf("edit should trigger a run, got %d snapshots", len(*seen))
	}
	failed := (*seen)[1]
	if failed.OK() {
		t.Fatal("invalid document should publish a failed snapshot")
	}
	if !errors.Is(failed.Err, errors.ErrCodeDuplicateID) {
		t.Errorf("snapshot error = %v, want DUPLICATE_ID", failed.Err)
	}
	if failed.Seq <= (*seen)[0].Seq {
		t.Error("later snapshots should carry higher sequence numbers")
	}

	touch(t, path, document.Sample, now.Add(3*time.Second))
	w.poll(ctx)
	if len(*seen) != 3 || !(*seen)[2].OK() {
		t.Error("fixing the document should publish a good snapshot again")
	}
}

func TestWatcherMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "threats.yaml")
	w, seen := newTestWatcher(t, path)

	w.poll(context.Background())
	if len(*seen) != 0 || !w.missing {
		t.Fatal("a missing file should be skipped")
	}

	touch(t, path, document.Sample, time.Now())
	w.poll(context.Background())
	if len(*seen) != 1 || w.missing {
		t.Error("the file should be picked up once it appears")
	}
}

func TestWatcherRunStopsOnCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "threats.yaml")
	touch(t, path, document.Sample, time.Now())
	w, seen := newTestWatcher(t, path)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for w.current.Load() == nil {
		select {
		case <-deadline:
			t.Fatal("watcher did not compile the document")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v, want nil on cancel", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
	if len(*seen) != 1 {
		t.Errorf("got %d snapshots, want 1", len(*seen))
	}
}
