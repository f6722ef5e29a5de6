package pipeline

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matzehuels/deciduous/pkg/cache"
	"github.com/matzehuels/deciduous/pkg/document"
	"github.com/matzehuels/deciduous/pkg/errors"
	"github.com/matzehuels/deciduous/pkg/graph"
	"github.com/matzehuels/deciduous/pkg/observability"
	"github.com/matzehuels/deciduous/pkg/provenance"
)

func TestOptions_ValidateAndSetDefaults(t *testing.T) {
	var o Options
	if err := o.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("ValidateAndSetDefaults() error: %v", err)
	}
	if len(o.Formats) != 1 || o.Formats[0] != "svg" {
		t.Errorf("default Formats = %v, want [svg]", o.Formats)
	}
	if o.Logger == nil {
		t.Error("default Logger not set")
	}

	bad := Options{Formats: []string{"svg", "pdf"}}
	if err := bad.ValidateAndSetDefaults(); !errors.Is(err, errors.ErrCodeInvalidFormat) {
		t.Errorf("ValidateAndSetDefaults(pdf) error = %v", err)
	}
}

func TestCompile_Sample(t *testing.T) {
	c, err := Compile([]byte(document.Sample), CompileOptions{})
	if err != nil {
		t.Fatalf("Compile(Sample) error: %v", err)
	}
	if c.Title != "Attack Tree for a Release Signing Key" {
		t.Errorf("Title = %q", c.Title)
	}
	if !c.Worth() {
		t.Error("sample is not worth rendering")
	}
	if _, ok := c.Graph.Node("deface_site"); ok {
		t.Error("document filter did not drop deface_site")
	}
	if !strings.Contains(c.DOT, `"reality" [label="Reality"`) {
		t.Error("implicit reality node not emitted")
	}

	all, err := Compile([]byte(document.Sample), CompileOptions{NoFilter: true})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := all.Graph.Node("deface_site"); !ok {
		t.Error("NoFilter still dropped deface_site")
	}
}

func TestCompile_Focus(t *testing.T) {
	c, err := Compile([]byte(document.Sample), CompileOptions{Focus: []string{"deface_site"}})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"reality", "steal_maintainer_token", "push_to_main", "branch_protection", "deface_site"}
	got := graph.NodeIDs(c.Graph.Nodes())
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("focus deface_site kept %v, want %v", got, want)
	}

	_, err = Compile([]byte(document.Sample), CompileOptions{Focus: []string{"nope"}})
	if !errors.Is(err, errors.ErrCodeUnknownFilter) || errors.NodeID(err) != "nope" {
		t.Errorf("unknown focus error = %v", err)
	}
}

func TestCompile_Rejects(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code errors.Code
	}{
		{"decode", "facts: [", errors.ErrCodeDecode},
		{"unknown ref", "goals:\n- g:\n  from: [ghost]\n", errors.ErrCodeUnknownRef},
		{"duplicate", "attacks:\n- x:\nmitigations:\n- x:\n", errors.ErrCodeDuplicateID},
		{"filter", "facts:\n- a:\nfilter: [b]\n", errors.ErrCodeUnknownFilter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Compile([]byte(tt.src), CompileOptions{})
			if c != nil {
				t.Error("partial result returned with error")
			}
			if !errors.Is(err, tt.code) {
				t.Errorf("error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestCompile_Empty(t *testing.T) {
	for _, src := range []string{"", "title: Later\n", "# only a comment\n"} {
		c, err := Compile([]byte(src), CompileOptions{})
		if err != nil {
			t.Fatalf("Compile(%q) error: %v", src, err)
		}
		if c.Worth() {
			t.Errorf("Compile(%q) is worth rendering", src)
		}
	}
}

// fakeLayout counts layouts and returns a minimal artifact per format.
type fakeLayout struct {
	calls atomic.Int32
	gate  chan struct{}
}

func (f *fakeLayout) layout(ctx context.Context, dot, format string) ([]byte, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	switch format {
	case "svg":
		return []byte(`<svg xmlns="http://www.w3.org/2000/svg"><g/></svg>`), nil
	case "png":
		return pngFixture(), nil
	}
	return nil, errors.New(errors.ErrCodeInvalidFormat, "unexpected %s", format)
}

// pngFixture is the smallest PNG with a valid chunk structure.
func pngFixture() []byte {
	return []byte("\x89PNG\r\n\x1a\n" +
		"\x00\x00\x00\x00IEND\xae\x42\x60\x82")
}

func newTestRunner(t *testing.T, f *fakeLayout) *Runner {
	t.Helper()
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	r := NewRunner(c, nil, nil)
	r.Layout = f.layout
	return r
}

func TestRunner_Execute(t *testing.T) {
	f := &fakeLayout{}
	r := newTestRunner(t, f)
	ctx := context.Background()
	src := []byte(document.Sample)
	opts := Options{Formats: []string{"dot", "svg", "png"}, Embed: true}

	res, err := r.Execute(ctx, src, opts)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if len(res.Artifacts) != 3 {
		t.Fatalf("Artifacts = %d formats, want 3", len(res.Artifacts))
	}
	if res.CacheInfo.LayoutHit {
		t.Error("first run reported a cache hit")
	}
	for format, data := range res.Artifacts {
		got, detected, err := provenance.Extract(data)
		if err != nil {
			t.Errorf("%s: Extract() error: %v", format, err)
			continue
		}
		if detected != format || got != document.Sample {
			t.Errorf("%s: extracted format %s, source match %t", format, detected, got == document.Sample)
		}
	}

	res, err = r.Execute(ctx, src, opts)
	if err != nil {
		t.Fatal(err)
	}
	if !res.CacheInfo.LayoutHit {
		t.Error("second run missed the cache")
	}
	if n := f.calls.Load(); n != 2 {
		t.Errorf("layout ran %d times, want 2 (svg and png once each)", n)
	}

	opts.Refresh = true
	if _, err := r.Execute(ctx, src, opts); err != nil {
		t.Fatal(err)
	}
	if n := f.calls.Load(); n != 4 {
		t.Errorf("refresh: layout ran %d times, want 4", n)
	}
}

func TestRunner_NoEmbed(t *testing.T) {
	r := newTestRunner(t, &fakeLayout{})
	res, err := r.Execute(context.Background(), []byte(document.Sample), Options{Formats: []string{"dot"}})
	if err != nil {
		t.Fatal(err)
	}
	if string(res.Artifacts["dot"]) != res.Compiled.DOT {
		t.Error("dot artifact differs from compiled DOT without embedding")
	}
}

func TestRunner_EmptyGraph(t *testing.T) {
	f := &fakeLayout{}
	r := newTestRunner(t, f)
	res, err := r.Execute(context.Background(), []byte("title: Empty\n"), Options{Formats: []string{"dot", "svg"}})
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if _, ok := res.Artifacts["svg"]; ok {
		t.Error("empty graph was laid out")
	}
	if _, ok := res.Artifacts["dot"]; !ok {
		t.Error("dot artifact missing for empty graph")
	}
	if f.calls.Load() != 0 {
		t.Error("layout invoked for empty graph")
	}
}

func TestRunner_SharedLayout(t *testing.T) {
	f := &fakeLayout{gate: make(chan struct{})}
	r := NewRunner(nil, nil, nil)
	r.Layout = f.layout

	const n = 8
	var wg sync.WaitGroup
	results := make([][]byte, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _, _ = r.LayoutWithCacheInfo(context.Background(), "digraph {}", "svg", false)
		}()
	}
	// Let the callers pile up on the single in-flight layout.
	for f.calls.Load() == 0 {
		runtime.Gosched()
	}
	close(f.gate)
	wg.Wait()

	for i, res := range results {
		if len(res) == 0 {
			t.Errorf("caller %d got no result", i)
		}
	}
	if c := f.calls.Load(); c < 1 || c > n {
		t.Errorf("layout ran %d times", c)
	}
}

func TestRunner_ValidationError(t *testing.T) {
	r := newTestRunner(t, &fakeLayout{})
	_, err := r.Execute(context.Background(), []byte("goals:\n- g:\n  from: [x]\n"), Options{})
	if !errors.IsValidation(err) {
		t.Errorf("Execute() error = %v, want validation error", err)
	}
}

func TestRunner_Run(t *testing.T) {
	r := newTestRunner(t, &fakeLayout{})
	ctx := context.Background()

	ok := r.Run(ctx, []byte(document.Sample), Options{})
	if !ok.OK() {
		t.Fatalf("Run() failed: %v", ok.Err)
	}
	if _, err := ok.Artifact("svg"); err != nil {
		t.Errorf("Artifact(svg) error: %v", err)
	}
	if _, err := ok.Artifact("png"); !errors.Is(err, errors.ErrCodeInvalidFormat) {
		t.Errorf("Artifact(png) error = %v", err)
	}

	bad := r.Run(ctx, []byte("facts: ["), Options{})
	if bad.OK() || bad.Err == nil {
		t.Error("Run() on malformed input reported success")
	}
	if _, err := bad.Artifact("svg"); !errors.Is(err, errors.ErrCodeNoSource) {
		t.Errorf("Artifact() on failed snapshot error = %v", err)
	}
	if bad.Seq <= ok.Seq || bad.ID == ok.ID {
		t.Error("snapshots are not ordered or share an ID")
	}
}

func TestCurrent_Publish(t *testing.T) {
	var cur Current
	if cur.Load() != nil {
		t.Fatal("zero Current holds a snapshot")
	}

	s1 := &Snapshot{Seq: 1}
	s2 := &Snapshot{Seq: 2}
	if !cur.Publish(s2) {
		t.Error("Publish(s2) rejected")
	}
	if cur.Publish(s1) {
		t.Error("stale snapshot was published")
	}
	if cur.Load() != s2 {
		t.Error("Load() did not return the newest snapshot")
	}
}

func TestCurrent_ConcurrentReaders(t *testing.T) {
	r := newTestRunner(t, &fakeLayout{})
	var cur Current
	ctx := context.Background()

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if s := cur.Load(); s != nil && s.OK() && s.Artifacts["svg"] == nil {
					t.Error("observed a snapshot without its artifacts")
					return
				}
			}
		}()
	}
	for i := range 20 {
		src := document.Sample
		if i%3 == 0 {
			src = "facts: ["
		}
		cur.Publish(r.Run(ctx, []byte(src), Options{}))
	}
	close(stop)
	wg.Wait()

	if cur.Load().Seq != 20 {
		t.Errorf("final Seq = %d, want 20", cur.Load().Seq)
	}
}

type recordingHooks struct {
	observability.NoopPipelineHooks
	observability.NoopCacheHooks

	mu      sync.Mutex
	events  []string
	renders []bool
}

func (h *recordingHooks) record(e string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, e)
}

func (h *recordingHooks) OnLayout(_ context.Context, format string, _ time.Duration, _ error) {
	h.record("layout:" + format)
}

func (h *recordingHooks) OnRender(_ context.Context, _ []string, cached bool, _ time.Duration, _ error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.renders = append(h.renders, cached)
}

func (h *recordingHooks) OnCacheHit(_ context.Context, format string) { h.record("hit:" + format) }

func (h *recordingHooks) OnCacheMiss(_ context.Context, format string) { h.record("miss:" + format) }

func TestRunner_Hooks(t *testing.T) {
	hooks := &recordingHooks{}
	observability.SetPipelineHooks(hooks)
	observability.SetCacheHooks(hooks)
	t.Cleanup(observability.Reset)

	r := newTestRunner(t, &fakeLayout{})
	ctx := context.Background()
	opts := Options{Formats: []string{"svg"}}
	for range 2 {
		if _, err := r.Execute(ctx, []byte(document.Sample), opts); err != nil {
			t.Fatal(err)
		}
	}

	want := []string{"miss:svg", "layout:svg", "hit:svg"}
	if strings.Join(hooks.events, ",") != strings.Join(want, ",") {
		t.Errorf("events = %v, want %v", hooks.events, want)
	}
	if len(hooks.renders) != 2 || hooks.renders[0] || !hooks.renders[1] {
		t.Errorf("render cached flags = %v, want [false true]", hooks.renders)
	}
}
