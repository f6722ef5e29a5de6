package document

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/matzehuels/deciduous/pkg/errors"
)

// Reserved keys inside entries.
const (
	keyTitle       = "title"
	keyFilter      = "filter"
	keyFrom        = "from"
	keyImplemented = "implemented"
	keyBackwards   = "backwards"
)

// Parse decodes YAML document text and validates it with [Decode].
// Malformed YAML is reported as [errors.ErrCodeDecode]; an empty document
// yields an empty, valid Document.
func Parse(src []byte) (*Document, error) {
	var tree any
	if err := yaml.Unmarshal(src, &tree); err != nil {
		return nil, errors.Wrap(errors.ErrCodeDecode, err, "decode document")
	}
	return Decode(tree)
}

// Decode validates a decoded value tree (maps, sequences and scalars as
// produced by a YAML or JSON decoder) and returns the Document.
//
// Validation runs in three passes and stops at the first failure:
//
//  1. Every category section is a sequence of entries, each declaring an id
//     that is unique across the whole document.
//  2. Every from entry names a declared id (or the implicit reality node).
//  3. Every filter entry names a declared node; otherwise a
//     [errors.FilterError] is returned.
//
// No partial document is ever returned alongside an error.
func Decode(tree any) (*Document, error) {
	doc := &Document{sections: make(map[Category][]NodeDef)}
	if tree == nil {
		return doc, nil
	}
	root, ok := asMap(tree)
	if !ok {
		return nil, errors.Invalid(errors.ErrCodeInvalidDocument, "", "document must be a mapping, got %s", kindOf(tree))
	}

	if raw, ok := root[keyTitle]; ok && raw != nil {
		title, ok := scalar(raw)
		if !ok {
			return nil, errors.Invalid(errors.ErrCodeInvalidDocument, "", "title must be a string, got %s", kindOf(raw))
		}
		doc.Title = title
	}

	declared := make(map[string]Category)
	for _, c := range Categories {
		raw, ok := root[c.Section()]
		if !ok || raw == nil {
			continue
		}
		entries, ok := raw.([]any)
		if !ok {
			return nil, errors.Invalid(errors.ErrCodeInvalidDocument, "", "%s must be a sequence, got %s", c.Section(), kindOf(raw))
		}
		for i, entry := range entries {
			def, err := decodeEntry(c, i, entry)
			if err != nil {
				return nil, err
			}
			if prev, dup := declared[def.ID]; dup {
				if prev == c {
					return nil, errors.Invalid(errors.ErrCodeDuplicateID, def.ID, "declared twice in %s", c.Section())
				}
				return nil, errors.Invalid(errors.ErrCodeDuplicateID, def.ID, "declared in both %s and %s", prev.Section(), c.Section())
			}
			declared[def.ID] = c
			doc.sections[c] = append(doc.sections[c], def)
		}
	}

	for _, c := range Categories {
		for _, def := range doc.sections[c] {
			for _, ref := range def.From {
				id := ref.Target()
				if _, ok := declared[id]; ok {
					continue
				}
				if id == RealityID {
					doc.reality = true
					continue
				}
				return nil, errors.Invalid(errors.ErrCodeUnknownRef, id, "referenced from %q but never declared", def.ID)
			}
		}
	}

	filter, err := decodeFilter(root[keyFilter], func(id string) bool {
		_, ok := declared[id]
		return ok || (id == RealityID && doc.reality)
	})
	if err != nil {
		return nil, err
	}
	doc.Filter = filter
	return doc, nil
}

// decodeEntry decodes `- id: label` with an optional sibling `from` list.
// A bare scalar entry (`- id`) declares a node without label or edges.
func decodeEntry(c Category, index int, entry any) (NodeDef, error) {
	if id, ok := scalar(entry); ok {
		if err := errors.ValidateNodeID(id); err != nil {
			return NodeDef{}, err
		}
		return NodeDef{ID: id, Category: c, Label: id}, nil
	}

	m, ok := asMap(entry)
	if !ok {
		return NodeDef{}, errors.Invalid(errors.ErrCodeInvalidDocument, "", "entry %d in %s must be a mapping, got %s", index, c.Section(), kindOf(entry))
	}

	var (
		def   = NodeDef{Category: c}
		label any
		found bool
	)
	for _, k := range slices.Sorted(maps.Keys(m)) {
		if k == keyFrom {
			continue
		}
		if found {
			return NodeDef{}, errors.Invalid(errors.ErrCodeInvalidDocument, def.ID, "entry %d in %s declares more than one id (%q and %q)", index, c.Section(), def.ID, k)
		}
		def.ID, label, found = k, m[k], true
	}
	if !found {
		return NodeDef{}, errors.Invalid(errors.ErrCodeInvalidDocument, "", "entry %d in %s has no id", index, c.Section())
	}
	if err := errors.ValidateNodeID(def.ID); err != nil {
		return NodeDef{}, err
	}

	def.Label = def.ID
	if label != nil {
		s, ok := scalar(label)
		if !ok {
			return NodeDef{}, errors.Invalid(errors.ErrCodeInvalidDocument, def.ID, "label must be a string, got %s", kindOf(label))
		}
		def.Label = s
	}

	refs, err := decodeFrom(def.ID, m[keyFrom])
	if err != nil {
		return NodeDef{}, err
	}
	def.From = refs
	return def, nil
}

func decodeFrom(owner string, raw any) ([]EdgeRef, error) {
	if raw == nil {
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, errors.Invalid(errors.ErrCodeInvalidDocument, owner, "from must be a sequence, got %s", kindOf(raw))
	}
	refs := make([]EdgeRef, 0, len(items))
	for _, item := range items {
		ref, err := decodeRef(owner, item)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// decodeRef turns one from entry into its variant. Accepted shapes:
//
//	- id                      PlainRef
//	- id:                     PlainRef
//	- id: '#tag'              TaggedRef
//	- id: {backwards: true}   FlaggedRef
//	- id: '#tag'              FlaggedRef (sibling form)
//	  implemented: false
func decodeRef(owner string, item any) (EdgeRef, error) {
	if id, ok := scalar(item); ok {
		return PlainRef{ID: id}, nil
	}
	m, ok := asMap(item)
	if !ok || len(m) == 0 {
		return nil, errors.Invalid(errors.ErrCodeInvalidDocument, owner, "from entry must be an id or a one-key mapping, got %s", kindOf(item))
	}

	if len(m) == 1 {
		for id, v := range m {
			return refWithValue(owner, id, v)
		}
	}

	// Sibling form: one id key next to flag keys.
	var (
		id    string
		value any
		flags = make(map[string]any)
	)
	for _, k := range slices.Sorted(maps.Keys(m)) {
		switch k {
		case keyImplemented, keyBackwards:
			flags[k] = m[k]
		default:
			if id != "" {
				return nil, errors.Invalid(errors.ErrCodeInvalidDocument, owner, "from entry names more than one node (%q and %q)", id, k)
			}
			id, value = k, m[k]
		}
	}
	if id == "" {
		return nil, errors.Invalid(errors.ErrCodeInvalidDocument, owner, "from entry has flags but no node id")
	}
	ref := FlaggedRef{ID: id, Implemented: true}
	if value != nil {
		tag, ok := scalar(value)
		if !ok {
			return nil, errors.Invalid(errors.ErrCodeInvalidDocument, owner, "edge from %q: tag must be a string, got %s", id, kindOf(value))
		}
		ref.Tag = tag
	}
	if err := applyFlags(owner, &ref, flags); err != nil {
		return nil, err
	}
	return ref, nil
}

func refWithValue(owner, id string, v any) (EdgeRef, error) {
	if v == nil {
		return PlainRef{ID: id}, nil
	}
	if tag, ok := scalar(v); ok {
		return TaggedRef{ID: id, Tag: tag}, nil
	}
	flags, ok := asMap(v)
	if !ok {
		return nil, errors.Invalid(errors.ErrCodeInvalidDocument, owner, "edge from %q must carry a tag or flags, got %s", id, kindOf(v))
	}
	ref := FlaggedRef{ID: id, Implemented: true}
	if err := applyFlags(owner, &ref, flags); err != nil {
		return nil, err
	}
	return ref, nil
}

func applyFlags(owner string, ref *FlaggedRef, flags map[string]any) error {
	for _, k := range slices.Sorted(maps.Keys(flags)) {
		if k != keyImplemented && k != keyBackwards {
			return errors.Invalid(errors.ErrCodeInvalidDocument, owner, "edge from %q: unknown attribute %q", ref.ID, k)
		}
		v := flags[k]
		if v == nil {
			continue
		}
		b, ok := v.(bool)
		if !ok {
			return errors.Invalid(errors.ErrCodeInvalidDocument, owner, "edge from %q: %s must be a boolean, got %s", ref.ID, k, kindOf(v))
		}
		switch k {
		case keyImplemented:
			ref.Implemented = b
		case keyBackwards:
			ref.Backwards = b
		}
	}
	return nil
}

func decodeFilter(raw any, known func(string) bool) ([]string, error) {
	if raw == nil {
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, errors.Invalid(errors.ErrCodeInvalidDocument, "", "filter must be a sequence, got %s", kindOf(raw))
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		id, ok := scalar(item)
		if !ok {
			return nil, errors.Invalid(errors.ErrCodeInvalidDocument, "", "filter entries must be node ids, got %s", kindOf(item))
		}
		if !known(id) {
			return nil, &errors.FilterError{NodeID: id}
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// asMap normalizes the two mapping shapes YAML decoders produce.
func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			s, ok := scalar(k)
			if !ok {
				return nil, false
			}
			out[s] = val
		}
		return out, true
	}
	return nil, false
}

// scalar renders a YAML scalar as authored text. Nil and composite values
// are not scalars.
func scalar(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case bool:
		return strconv.FormatBool(s), true
	case int:
		return strconv.Itoa(s), true
	case int64:
		return strconv.FormatInt(s, 10), true
	case uint64:
		return strconv.FormatUint(s, 10), true
	case float64:
		return strconv.FormatFloat(s, 'g', -1, 64), true
	case time.Time:
		if s.Hour() == 0 && s.Minute() == 0 && s.Second() == 0 && s.Nanosecond() == 0 {
			return s.Format(time.DateOnly), true
		}
		return s.Format(time.RFC3339), true
	}
	return "", false
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "a sequence"
	case map[string]any, map[any]any:
		return "a mapping"
	case string:
		return "a string"
	case bool:
		return "a boolean"
	case int, int64, uint64, float64:
		return "a number"
	}
	return fmt.Sprintf("%T", v)
}
