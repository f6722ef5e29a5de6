package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/deciduous/pkg/errors"
)

// Snapshot is the immutable outcome of one pipeline run over one version of
// a document. A failed run is a snapshot too: Err is set and the host shows
// "no graph" instead of the previous render.
type Snapshot struct {
	// ID identifies the run.
	ID uuid.UUID
	// Seq orders snapshots produced by the same Runner.
	Seq uint64
	// Created is when the run started.
	Created time.Time
	// Source is the document text the run compiled.
	Source []byte
	// Compiled is nil when Err is set.
	Compiled *Compiled
	// Artifacts holds the rendered outputs keyed by format.
	Artifacts map[string][]byte
	// Err is the decode, validation or layout failure, if any.
	Err error
}

// OK reports whether the run produced a graph.
func (s *Snapshot) OK() bool { return s != nil && s.Err == nil && s.Compiled != nil }

// Artifact returns the rendered output for format.
func (s *Snapshot) Artifact(format string) ([]byte, error) {
	if !s.OK() {
		return nil, errors.New(errors.ErrCodeNoSource, "no graph to export")
	}
	data, ok := s.Artifacts[format]
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidFormat, "format %q was not rendered", format)
	}
	return data, nil
}

// Run executes the pipeline over src and returns the outcome as a
// snapshot. It never returns a nil snapshot; failures are recorded in Err.
func (r *Runner) Run(ctx context.Context, src []byte, opts Options) *Snapshot {
	s := &Snapshot{
		ID:      uuid.New(),
		Seq:     r.seq.next(),
		Created: time.Now(),
		Source:  append([]byte(nil), src...),
	}
	res, err := r.Execute(ctx, s.Source, opts)
	if err != nil {
		s.Err = err
		return s
	}
	s.Compiled = res.Compiled
	s.Artifacts = res.Artifacts
	return s
}

type sequence struct{ n atomic.Uint64 }

func (s *sequence) next() uint64 { return s.n.Add(1) }

// Current holds the most recently published snapshot. The zero value is
// ready to use and holds no snapshot.
type Current struct {
	p atomic.Pointer[Snapshot]
}

// Load returns the current snapshot, or nil if none has been published.
func (c *Current) Load() *Snapshot { return c.p.Load() }

// Publish replaces the current snapshot with s unless a snapshot with a
// higher sequence number is already current, in which case s is dropped.
// It reports whether s was published.
func (c *Current) Publish(s *Snapshot) bool {
	for {
		old := c.p.Load()
		if old != nil && old.Seq > s.Seq {
			return false
		}
		if c.p.CompareAndSwap(old, s) {
			return true
		}
	}
}
