package category

import (
	"sort"

	"categorywatch/internal/domain/wikititle"
)

// Set is an unordered, deduplicated set of normalised category names.
type Set map[string]struct{}

// NewSet builds a Set from raw names. Names are normalised; blank names are dropped.
// PRE: none
// POST: Returns a Set with one entry per distinct normalised name
func NewSet(names ...string) Set {
	s := make(Set, len(names))
	for _, n := range names {
		s.Add(n)
	}
	return s
}

// Add inserts name after normalising it.
// PRE: s is non-nil
// POST: s contains Normalize(name) unless it is blank
func (s Set) Add(name string) {
	if norm := wikititle.Normalize(name); norm != "" {
		s[norm] = struct{}{}
	}
}

// Has reports whether name is a member.
func (s Set) Has(name string) bool {
	_, ok := s[wikititle.Normalize(name)]
	return ok
}

// Len returns the number of members.
func (s Set) Len() int {
	return len(s)
}

// Sorted returns the members in lexical order.
// INVARIANT: s is not mutated
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Only returns the single member of a one-element set.
func (s Set) Only() (string, bool) {
	if len(s) != 1 {
		return "", false
	}
	for n := range s {
		return n, true
	}
	return "", false
}

// minus returns the members of s not in other.
func (s Set) minus(other Set) Set {
	out := make(Set)
	for n := range s {
		if _, ok := other[n]; !ok {
			out[n] = struct{}{}
		}
	}
	return out
}

// Delta is the change in category membership caused by one edit.
// INVARIANT: Added and Removed are disjoint
type Delta struct {
	Added   Set
	Removed Set
}

// IsEmpty reports whether the edit changed no categories.
func (d Delta) IsEmpty() bool {
	return d.Added.Len() == 0 && d.Removed.Len() == 0
}

// Diff computes the categories added and removed between two revisions.
// Either sequence may be empty (a new page has no "before"). Order and duplicates are ignored.
// PRE: none
// POST: Added = after \ before, Removed = before \ after; the two are disjoint
func Diff(before, after []string) Delta {
	b := NewSet(before...)
	a := NewSet(after...)
	return Delta{
		Added:   a.minus(b),
		Removed: b.minus(a),
	}
}

// Kind tags a Classification.
type Kind int

const (
	NoChange Kind = iota
	Move
	MultiChange
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case NoChange:
		return "no_change"
	case Move:
		return "move"
	case MultiChange:
		return "multi_change"
	default:
		return "unknown"
	}
}

// Classification is the interpretation of a Delta. Exactly one Kind holds.
type Classification struct {
	Kind    Kind
	From    string // Move only: the removed category
	To      string // Move only: the added category
	Added   Set    // MultiChange only
	Removed Set    // MultiChange only
}

// Classify interprets a Delta.
// One category added and one removed is a move; anything else that changes membership is a MultiChange.
// PRE: d.Added and d.Removed are disjoint
// POST: Returns exactly one of NoChange, Move, MultiChange
func Classify(d Delta) Classification {
	if d.IsEmpty() {
		return Classification{Kind: NoChange}
	}
	to, addOK := d.Added.Only()
	from, subOK := d.Removed.Only()
	if addOK && subOK {
		return Classification{Kind: Move, From: from, To: to}
	}
	return Classification{Kind: MultiChange, Added: d.Added, Removed: d.Removed}
}

// Targets returns the categories whose watchers are notified, in a stable order.
// A move notifies the destination category only. A MultiChange notifies each added category;
// removals outside a 1:1 move are not announced.
// INVARIANT: c is not mutated
func (c Classification) Targets() []string {
	switch c.Kind {
	case Move:
		return []string{c.To}
	case MultiChange:
		return c.Added.Sorted()
	default:
		return nil
	}
}
