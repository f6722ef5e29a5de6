package nodelink

import (
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/matzehuels/deciduous/pkg/document"
	"github.com/matzehuels/deciduous/pkg/graph"
	"github.com/matzehuels/deciduous/pkg/graph/transform"
)

func build(t testing.TB, src string) *graph.Graph {
	t.Helper()
	doc, err := document.Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	return graph.Build(doc)
}

const bank = `title: Bank
facts:
- email: Staff use email
attacks:
- phish: Phishing
  from:
  - email
  - reality
  - twofa:
      backwards: true
mitigations:
- twofa: 2FA
  from:
  - phish
- hsm: HSM
  from:
  - phish:
      implemented: false
goals:
- money: Steal money
  from:
  - phish: '#yolosec'
  - phish: '#again'
`

func TestEmit_Statements(t *testing.T) {
	res := Emit(build(t, bank))

	wantLines := []string{
		`  label="Bank";`,
		`  "reality" [label="Reality" fillcolor="#2B303A" color="#2B303A" fontcolor="#FFFFFF"];`,
		`  "email" [label="Staff use email" fillcolor="#DDDDDD" color="#888888"];`,
		`  "money" [label="Steal money" fillcolor="#5F00C2" color="#5F00C2" fontcolor="#FFFFFF"];`,
		`  "email" -> "phish" [color="#DB2955"];`,
		`  "phish" -> "twofa" [color="#DB2955" dir="back"];`,
		`  "phish" -> "hsm" [color="#7692FF" style="dashed"];`,
		`  "phish" -> "money" [color="#2B303A" xlabel="#yolosec"];`,
		`  "phish" -> "money" [color="#2B303A" xlabel="#again"];`,
	}
	for _, line := range wantLines {
		if !strings.Contains(res.DOT, line+"\n") {
			t.Errorf("DOT missing line %q\n%s", line, res.DOT)
		}
	}
	if !strings.HasPrefix(res.DOT, "digraph {\n") || !strings.HasSuffix(res.DOT, "}\n") {
		t.Errorf("DOT is not a single digraph statement:\n%s", res.DOT)
	}
	if !res.HasTitle || !res.Worth() {
		t.Errorf("HasTitle=%t Worth=%t, want both true", res.HasTitle, res.Worth())
	}
	if len(res.Categories) != 4 {
		t.Errorf("Categories = %v, want all four", res.Categories)
	}
}

func TestEmit_CreationOrder(t *testing.T) {
	res := Emit(build(t, bank))
	order := []string{`"reality" [`, `"email" [`, `"phish" [`, `"twofa" [`, `"hsm" [`, `"money" [`}
	last := -1
	for _, s := range order {
		i := strings.Index(res.DOT, s)
		if i < last {
			t.Errorf("%s emitted out of order", s)
		}
		last = i
	}
}

func TestEmit_Escaping(t *testing.T) {
	src := "facts:\n" +
		"- 'a\"b': 'say \"hi\"\\n'\n" +
		"- 'c\\d': \"line1\\nline2\"\n" +
		"attacks:\n" +
		"- 'x -> y; }':\n" +
		"  from:\n" +
		"  - 'a\"b': 'tag \"q\"'\n"
	res := Emit(build(t, src))

	for _, want := range []string{
		`"a\"b" [label="say \"hi\"\\n"`,
		`"c\\d" [label="line1\nline2"`,
		`"x -> y; }" [label="x -> y; }"`,
		`"a\"b" -> "x -> y; }" [color="#DB2955" xlabel="tag \"q\""];`,
	} {
		if !strings.Contains(res.DOT, want) {
			t.Errorf("DOT missing %q\n%s", want, res.DOT)
		}
	}
	for _, line := range strings.Split(strings.TrimSuffix(res.DOT, "\n"), "\n") {
		switch {
		case line == "", line == "digraph {", line == "}", strings.HasSuffix(line, ";"):
		default:
			t.Errorf("authored newline leaked into DOT line %q", line)
		}
	}
}

func TestEmit_LineEndingIDsStayDistinct(t *testing.T) {
	src := "facts:\n" +
		"- \"a\\nb\": first\n" +
		"- \"a\\rb\": second\n" +
		"- \"a\\r\\nb\": third\n"
	g := build(t, src)
	if g.NodeCount() != 3 {
		t.Fatalf("NodeCount() = %d, want 3", g.NodeCount())
	}
	res := Emit(g)

	for _, want := range []string{
		`"a\nb" [label="first"`,
		`"a\rb" [label="second"`,
		`"a\r\nb" [label="third"`,
	} {
		if strings.Count(res.DOT, want) != 1 {
			t.Errorf("DOT should contain %q exactly once\n%s", want, res.DOT)
		}
	}
	if strings.ContainsRune(res.DOT, '\r') {
		t.Errorf("raw carriage return leaked into DOT:\n%q", res.DOT)
	}
}

func TestEmit_Empty(t *testing.T) {
	tests := []struct {
		name      string
		src       string
		wantTitle bool
	}{
		{"empty", "", false},
		{"title only", "title: Nothing yet\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Emit(build(t, tt.src))
			if res.Worth() {
				t.Error("Worth() = true for a graph without nodes")
			}
			if res.HasTitle != tt.wantTitle {
				t.Errorf("HasTitle = %t, want %t", res.HasTitle, tt.wantTitle)
			}
			if strings.Contains(res.DOT, "->") {
				t.Errorf("empty graph emitted edges:\n%s", res.DOT)
			}
		})
	}
}

func TestEmit_NoFilterIdentity(t *testing.T) {
	g := build(t, bank)
	if Emit(transform.FilterThrough(g, nil)).DOT != Emit(g).DOT {
		t.Error("empty focus changed the emitted description")
	}
}

func TestEmit_Filtered(t *testing.T) {
	g := build(t, bank+"filter:\n- hsm\n")
	res := Emit(transform.FilterThrough(g, g.FilterSet()))
	if strings.Contains(res.DOT, `"money" [`) {
		t.Errorf("goal outside the hsm cones was emitted:\n%s", res.DOT)
	}
	if !strings.Contains(res.DOT, `"phish" -> "hsm"`) {
		t.Errorf("edge into focus dropped:\n%s", res.DOT)
	}
}

func TestEmit_Deterministic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("emitting twice is byte-identical", prop.ForAll(
		func(labels []string, seeds []int) bool {
			if len(labels) == 0 {
				return true
			}
			var nodes []graph.Node
			for i, l := range labels {
				nodes = append(nodes, graph.Node{
					ID:       fmt.Sprintf("n%d", i),
					Category: document.Categories[i%len(document.Categories)],
					Label:    l,
				})
			}
			var edges []graph.Edge
			for i := 0; i+1 < len(seeds); i += 2 {
				edges = append(edges, graph.Edge{
					From:        nodes[seeds[i]%len(nodes)].ID,
					To:          nodes[seeds[i+1]%len(nodes)].ID,
					Tag:         labels[seeds[i]%len(labels)],
					Backwards:   seeds[i]%2 == 0,
					Implemented: seeds[i+1]%3 != 0,
				})
			}
			g, err := graph.New("title", nil, nodes, edges)
			if err != nil {
				return false
			}
			return Emit(g).DOT == Emit(g).DOT
		},
		gen.SliceOf(gen.AnyString()),
		gen.SliceOf(gen.IntRange(0, 1000)),
	))

	properties.TestingRun(t)
}

func TestQuoteID(t *testing.T) {
	tests := []struct{ in, want string }{
		{"plain", `"plain"`},
		{`a"b`, `"a\"b"`},
		{"two\nlines", `"two\nlines"`},
		{"cr\rend", `"cr\rend"`},
		{"crlf\r\nend", `"crlf\r\nend"`},
		{`lit\r`, `"lit\\r"`},
	}
	for _, tt := range tests {
		if got := quoteID(tt.in); got != tt.want {
			t.Errorf("quoteID(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestQuote(t *testing.T) {
	tests := []struct{ in, want string }{
		{"plain", `"plain"`},
		{`a"b`, `"a\"b"`},
		{`back\slash`, `"back\\slash"`},
		{"two\nlines", `"two\nlines"`},
		{"crlf\r\nend", `"crlf\nend"`},
		{`trailing\`, `"trailing\\"`},
		{"", `""`},
	}
	for _, tt := range tests {
		if got := quote(tt.in); got != tt.want {
			t.Errorf("quote(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
