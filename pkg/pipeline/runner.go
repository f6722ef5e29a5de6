package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/deciduous/pkg/cache"
	"github.com/matzehuels/deciduous/pkg/errors"
	"github.com/matzehuels/deciduous/pkg/observability"
	"github.com/matzehuels/deciduous/pkg/provenance"
	"github.com/matzehuels/deciduous/pkg/render/nodelink"
)

// LayoutFunc lays out a DOT description in the given format.
type LayoutFunc func(ctx context.Context, dot, format string) ([]byte, error)

// Runner encapsulates pipeline execution with caching.
// Both CLI and API can use this to avoid duplicating caching logic.
//
// The Runner keeps no results of its own beyond the cache. Multiple
// goroutines can safely use the same Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
	// Layout performs the actual layout; defaults to [nodelink.Layout].
	Layout LayoutFunc
	// TTL bounds the lifetime of cached layouts; defaults to
	// [cache.TTLArtifact].
	TTL time.Duration

	group singleflight.Group
	seq   sequence
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
		Layout: nodelink.Layout,
		TTL:    cache.TTLArtifact,
	}
}

// Execute compiles src and produces the requested artifacts.
//
// Validation failures are returned unchanged (see [errors.IsValidation]).
// When the compiled graph is empty, only the "dot" artifact is produced.
func (r *Runner) Execute(ctx context.Context, src []byte, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	compileStart := time.Now()
	compiled, err := Compile(src, opts.CompileOptions)
	if err != nil {
		return nil, err
	}
	result := &Result{
		Compiled:  compiled,
		Artifacts: make(map[string][]byte, len(opts.Formats)),
		Stats: Stats{
			NodeCount:   compiled.Graph.NodeCount(),
			EdgeCount:   compiled.Graph.EdgeCount(),
			CompileTime: time.Since(compileStart),
		},
	}

	opts.Logger.Info("compiled document",
		"nodes", result.Stats.NodeCount,
		"edges", result.Stats.EdgeCount,
		"duration", result.Stats.CompileTime)
	if compiled.Graph.HasCycle() {
		opts.Logger.Debug("graph contains a cycle")
	}

	layoutStart := time.Now()
	artifacts, hit, err := r.RenderWithCacheInfo(ctx, compiled, src, opts)
	observability.Pipeline().OnRender(ctx, opts.Formats, hit, time.Since(layoutStart), err)
	if err != nil {
		return nil, err
	}
	result.Artifacts = artifacts
	result.Stats.LayoutTime = time.Since(layoutStart)
	result.CacheInfo.LayoutHit = hit

	opts.Logger.Info("rendered outputs",
		"formats", opts.Formats,
		"cached", hit,
		"duration", result.Stats.LayoutTime)

	return result, nil
}

// RenderWithCacheInfo lays out every requested format concurrently and
// embeds src when opts.Embed is set. The returned bool is true when every
// laid-out format came from the cache.
func (r *Runner) RenderWithCacheInfo(ctx context.Context, c *Compiled, src []byte, opts Options) (map[string][]byte, bool, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, false, err
	}

	var (
		mu        sync.Mutex
		artifacts = make(map[string][]byte, len(opts.Formats))
		allHit    = true
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, format := range opts.Formats {
		if format != errors.FormatDOT && !c.Worth() {
			opts.Logger.Debug("nothing to lay out", "format", format)
			continue
		}
		g.Go(func() error {
			data, hit, err := r.LayoutWithCacheInfo(gctx, c.DOT, format, opts.Refresh)
			if err != nil {
				return err
			}
			if opts.Embed {
				data = embed(format, data, string(src))
			}
			mu.Lock()
			defer mu.Unlock()
			artifacts[format] = data
			if format != errors.FormatDOT {
				allHit = allHit && hit
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, false, err
	}
	return artifacts, allHit && c.Worth(), nil
}

// LayoutWithCacheInfo lays out dot in the given format, consulting the cache
// first unless refresh is set. Concurrent calls for the same description
// and format share a single Graphviz invocation.
//
// The returned slice may be shared with other callers and must not be
// modified.
func (r *Runner) LayoutWithCacheInfo(ctx context.Context, dot, format string, refresh bool) ([]byte, bool, error) {
	if format == errors.FormatDOT {
		return []byte(dot), false, nil
	}
	if err := errors.ValidateFormat(format); err != nil {
		return nil, false, err
	}

	key := r.Keyer.ArtifactKey(cache.Hash([]byte(dot)), format)
	if !refresh {
		data, hit, err := r.Cache.Get(ctx, key)
		switch {
		case err != nil:
			r.Logger.Warn("cache read failed", "err", err)
		case hit:
			observability.Cache().OnCacheHit(ctx, format)
			return data, true, nil
		}
		observability.Cache().OnCacheMiss(ctx, format)
	}

	v, err, shared := r.group.Do(key, func() (any, error) {
		start := time.Now()
		data, err := r.layoutFunc()(ctx, dot, format)
		observability.Pipeline().OnLayout(ctx, format, time.Since(start), err)
		if err != nil {
			return nil, err
		}
		if err := r.Cache.Set(ctx, key, data, r.ttl()); err != nil {
			r.Logger.Warn("cache write failed", "err", err)
		} else {
			observability.Cache().OnCacheSet(ctx, format, len(data))
		}
		return data, nil
	})
	if err != nil {
		return nil, false, err
	}
	if shared {
		r.Logger.Debug("shared layout", "format", format)
	}
	return v.([]byte), false, nil
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

func (r *Runner) ttl() time.Duration {
	if r.TTL > 0 {
		return r.TTL
	}
	return cache.TTLArtifact
}

func (r *Runner) layoutFunc() LayoutFunc {
	if r.Layout != nil {
		return r.Layout
	}
	return nodelink.Layout
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

func embed(format string, data []byte, src string) []byte {
	switch format {
	case errors.FormatDOT:
		return []byte(provenance.EmbedDOT(string(data), src))
	case errors.FormatSVG:
		return []byte(provenance.EmbedSVG(string(data), src))
	case errors.FormatPNG:
		return provenance.AppendPNG(data, src)
	}
	return data
}
