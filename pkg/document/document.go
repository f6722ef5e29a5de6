package document

// Category is the closed classification of an authored node. It drives the
// default visual style and the semantic role of a node.
type Category string

const (
	Fact       Category = "fact"
	Attack     Category = "attack"
	Mitigation Category = "mitigation"
	Goal       Category = "goal"
)

// Categories lists every category in section order. Walking sections in this
// order fixes the node creation order used for stable emission.
var Categories = []Category{Fact, Attack, Mitigation, Goal}

// Section returns the top-level document key holding nodes of this category.
func (c Category) Section() string { return string(c) + "s" }

// Valid reports whether c is one of the four known categories.
func (c Category) Valid() bool {
	switch c {
	case Fact, Attack, Mitigation, Goal:
		return true
	}
	return false
}

// RealityID names the implicit root fact. Documents may reference it in
// from lists without declaring it.
const (
	RealityID    = "reality"
	RealityLabel = "Reality"
)

// EdgeRef is one entry of a node's from list. It is a closed variant:
// [PlainRef], [TaggedRef] or [FlaggedRef].
type EdgeRef interface {
	// Target returns the id of the prerequisite node.
	Target() string
	edgeRef()
}

// PlainRef is a bare reference: `- phishing`.
type PlainRef struct {
	ID string
}

// TaggedRef carries a free-form annotation: `- phishing: '#yolosec'`.
type TaggedRef struct {
	ID  string
	Tag string
}

// FlaggedRef carries edge flags: `- phishing: {backwards: true}`.
// Implemented defaults to true and Backwards to false when not authored.
// Tag is set when the sibling form also names an annotation.
type FlaggedRef struct {
	ID          string
	Tag         string
	Implemented bool
	Backwards   bool
}

func (r PlainRef) Target() string   { return r.ID }
func (r TaggedRef) Target() string  { return r.ID }
func (r FlaggedRef) Target() string { return r.ID }

func (PlainRef) edgeRef()   {}
func (TaggedRef) edgeRef()  {}
func (FlaggedRef) edgeRef() {}

// NodeDef is one authored entry of a category section.
type NodeDef struct {
	ID       string
	Category Category
	Label    string // defaults to ID
	From     []EdgeRef
}

// Document is a validated threat-model document.
//
// The zero value is a valid empty document. Use [Decode] or [Parse] to build
// one from authored input; both reject documents that violate the id and
// reference rules, so a *Document is always internally consistent.
type Document struct {
	Title  string
	Filter []string

	sections map[Category][]NodeDef
	reality  bool
}

// Section returns the entries of one category section in authored order.
func (d *Document) Section(c Category) []NodeDef {
	return d.sections[c]
}

// NodeCount returns the number of authored entries across all sections.
func (d *Document) NodeCount() int {
	n := 0
	for _, defs := range d.sections {
		n += len(defs)
	}
	return n
}

// UsesReality reports whether some from entry references the implicit
// [RealityID] node without the document declaring it.
func (d *Document) UsesReality() bool { return d.reality }

// Empty reports whether the document declares no nodes.
func (d *Document) Empty() bool { return d.NodeCount() == 0 && !d.reality }
