// Package roles resolves the role-inclusion graph into flattened capability sets.
//
// A role's capability set is the closure of the role under inclusion, including the role
// itself. Authorization checks consult only the flattened Table, never the raw Graph.
package roles

import (
	"sort"
	"sync/atomic"
)

// Graph maps a role to the roles it includes. A nil (or absent) entry means no inclusions.
type Graph map[string][]string

// Set is a set of role names; membership is a capability grant.
type Set map[string]struct{}

// NewSet builds a Set from names.
func NewSet(names ...string) Set {
	s := make(Set, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Has reports whether name is in the set. A nil set has no members.
func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Sorted returns the members in ascending order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Flatten returns the closure of role under g.
//
// Traversal is depth-first with a single visited set shared by every branch, so cyclic
// graphs terminate. A role that is missing from g, has no inclusions, or was already
// visited contributes only itself.
func Flatten(g Graph, role string) Set {
	out := make(Set)
	flatten(g, role, make(map[string]struct{}), out)
	return out
}

func flatten(g Graph, role string, visited map[string]struct{}, out Set) {
	out[role] = struct{}{}

	children, ok := g[role]
	if !ok || children == nil {
		return
	}
	if _, seen := visited[role]; seen {
		return
	}
	visited[role] = struct{}{}

	for _, child := range children {
		flatten(g, child, visited, out)
	}
}

// Table is an immutable role -> flattened set mapping.
type Table struct {
	sets  map[string]Set
	names []string
}

// Resolve flattens every role declared in g.
func Resolve(g Graph) *Table {
	t := &Table{
		sets:  make(map[string]Set, len(g)),
		names: make([]string, 0, len(g)),
	}
	for role := range g {
		t.sets[role] = Flatten(g, role)
		t.names = append(t.names, role)
	}
	sort.Strings(t.names)
	return t
}

// Capabilities returns the flattened set of role. ok is false for undeclared roles.
// Callers must not mutate the returned set.
func (t *Table) Capabilities(role string) (Set, bool) {
	if t == nil {
		return nil, false
	}
	s, ok := t.sets[role]
	return s, ok
}

// Roles returns the declared role names, sorted.
func (t *Table) Roles() []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.names...)
}

// Graph returns the table as a graph of already-flat sets.
// Resolving it again yields the same table.
func (t *Table) Graph() Graph {
	g := make(Graph, len(t.sets))
	for role, s := range t.sets {
		g[role] = s.Sorted()
	}
	return g
}

// Holder publishes the current Table. Updates replace the whole table atomically,
// so in-flight requests see either the old or the new table, never a mix.
type Holder struct {
	p atomic.Pointer[Table]
}

// NewHolder returns a Holder serving an empty table.
func NewHolder() *Holder {
	h := &Holder{}
	h.p.Store(Resolve(nil))
	return h
}

// Load returns the current table.
func (h *Holder) Load() *Table { return h.p.Load() }

// Store replaces the current table.
func (h *Holder) Store(t *Table) {
	if t == nil {
		t = Resolve(nil)
	}
	h.p.Store(t)
}
