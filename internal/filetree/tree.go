// Package filetree builds the hierarchical view of a project's flat records
// and validates re-parent operations against it.
//
// Trees are always rebuilt from a complete snapshot of records; nothing here
// mutates its input or keeps state between calls.
package filetree

import (
	"cmp"
	"path"
	"slices"

	"github.com/starford/texflow/internal/models"
)

// Node is one record in the tree. Only folders have children.
type Node struct {
	Record   models.Record `json:"record"`
	Children []*Node       `json:"children,omitempty"`
}

// Build turns a flat record list into root nodes with nested children.
//
// A record whose parent is missing from records (or is itself) becomes a
// root. Records caught in a parent cycle are promoted to roots as well, so
// every record appears exactly once. Siblings are ordered folders first,
// then by name, then by ID.
func Build(records []models.Record) []*Node {
	byID := make(map[string]models.Record, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}

	children := make(map[string][]models.Record)
	var roots []models.Record
	for _, r := range records {
		if _, ok := byID[r.ParentID]; !ok || r.ParentID == r.ID {
			roots = append(roots, r)
			continue
		}
		children[r.ParentID] = append(children[r.ParentID], r)
	}

	visited := make(map[string]bool, len(records))
	var grow func(r models.Record) *Node
	grow = func(r models.Record) *Node {
		visited[r.ID] = true
		n := &Node{Record: r}
		kids := slices.Clone(children[r.ID])
		slices.SortFunc(kids, compare)
		for _, k := range kids {
			if visited[k.ID] {
				continue
			}
			n.Children = append(n.Children, grow(k))
		}
		return n
	}

	slices.SortFunc(roots, compare)
	out := make([]*Node, 0, len(roots))
	for _, r := range roots {
		out = append(out, grow(r))
	}

	// Anything not reached sits on a parent cycle.
	rest := make([]models.Record, 0)
	for _, r := range records {
		if !visited[r.ID] {
			rest = append(rest, r)
		}
	}
	if len(rest) > 0 {
		slices.SortFunc(rest, compare)
		for _, r := range rest {
			if !visited[r.ID] {
				out = append(out, grow(r))
			}
		}
		slices.SortFunc(out, func(a, b *Node) int { return compare(a.Record, b.Record) })
	}
	return out
}

// compare orders folders before files, then by name, then by ID.
func compare(a, b models.Record) int {
	if a.IsFolder() != b.IsFolder() {
		if a.IsFolder() {
			return -1
		}
		return 1
	}
	if c := cmp.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// Walk visits nodes depth-first in tree order. p is the slash-separated path
// of the node from the root. Returning false from fn skips the node's
// children.
func Walk(nodes []*Node, fn func(p string, n *Node) bool) {
	walk("", nodes, fn)
}

func walk(prefix string, nodes []*Node, fn func(string, *Node) bool) {
	for _, n := range nodes {
		p := path.Join(prefix, n.Record.Name)
		if fn(p, n) {
			walk(p, n.Children, fn)
		}
	}
}

// Find returns the node holding the record id, or nil.
func Find(nodes []*Node, id string) *Node {
	var found *Node
	Walk(nodes, func(_ string, n *Node) bool {
		if n.Record.ID == id {
			found = n
		}
		return found == nil
	})
	return found
}

// PathIndex maps the slash-joined tree path of every record to the record.
// When two records share a path the first in tree order wins.
func PathIndex(records []models.Record) map[string]models.Record {
	out := make(map[string]models.Record, len(records))
	Walk(Build(records), func(p string, n *Node) bool {
		if _, dup := out[p]; !dup {
			out[p] = n.Record
		}
		return true
	})
	return out
}
