// Package pipeline runs the attack-tree compiler end to end for the CLI and
// the HTTP host.
//
// # Architecture
//
// A run has three stages:
//
//  1. Compile: decode and validate the document, build the graph, apply the
//     path filter and emit DOT ([Compile])
//  2. Layout: lay the DOT out with Graphviz, once per output format,
//     memoised in a [cache.Cache]
//  3. Embed: attach the authored source to each artifact so it can be
//     recovered later
//
// Compile is pure and needs no Runner. Layout is the only expensive stage;
// [Runner] deduplicates concurrent layouts of the same description and
// lays out several formats in parallel.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	result, err := runner.Execute(ctx, src, pipeline.Options{
//	    Formats: []string{"svg", "png"},
//	    Embed:   true,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svg := result.Artifacts["svg"]
//
// # Snapshots
//
// Long-running hosts (watch, serve) re-run the pipeline on every edit and
// publish the outcome as an immutable [Snapshot] through [Current]. Readers
// always observe a complete run, never a partially built one.
package pipeline

import (
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/deciduous/pkg/errors"
)

// DefaultFormats is used when Options.Formats is empty.
var DefaultFormats = []string{errors.FormatSVG}

// Options contains all configuration for a pipeline run.
// This struct supports JSON serialization for API requests.
type Options struct {
	CompileOptions

	// Formats lists the artifacts to produce: "dot", "svg", "png".
	Formats []string `json:"formats,omitempty"`
	// Embed attaches the authored source to every artifact.
	Embed bool `json:"embed,omitempty"`
	// Refresh bypasses cached layouts (results are still stored).
	Refresh bool `json:"refresh,omitempty"`

	// Logger receives stage timings. Defaults to the runner's logger.
	Logger *log.Logger `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool
}

// ValidateAndSetDefaults checks the formats and applies defaults.
// This method is idempotent - calling it multiple times has the same effect as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if len(o.Formats) == 0 {
		o.Formats = append([]string(nil), DefaultFormats...)
	}
	if err := errors.ValidateFormats(o.Formats); err != nil {
		return err
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Compiled is the compiled document.
	Compiled *Compiled

	// Artifacts contains rendered outputs keyed by format. Layout formats
	// are absent when the graph is not worth rendering.
	Artifacts map[string][]byte

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo tracks cache hits.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	NodeCount   int
	EdgeCount   int
	CompileTime time.Duration
	LayoutTime  time.Duration
}

// CacheInfo tracks which layouts came from the cache.
type CacheInfo struct {
	// LayoutHit is true when every laid-out format was served from cache.
	LayoutHit bool
}
