// Package graph builds a directed dependency graph over backlog items and
// derives structural facts used by prioritization and sprint composition:
// cycles, topological execution order, the effort-weighted critical path, and
// orphan items with no unresolved blockers.
package graph

import (
	"fmt"
	"strings"

	"github.com/kunwarVivek/mcp-github-project-manager-sub003/internal/backlog"
)

// DefaultSimilarityThreshold is the minimum textual similarity for inferring
// an implicit dependency edge between two items.
const DefaultSimilarityThreshold = 0.5

// Graph is a directed dependency graph over backlog items. Edges point from
// an item to the items it depends on. Explicit edges come from the items'
// declared dependencies; implicit edges may be added by
// DetectImplicitDependencies and are tracked separately so they can never
// displace an explicit edge.
type Graph struct {
	nodes    map[string]*backlog.Item
	order    []string            // insertion order, used for deterministic tie-breaks
	forward  map[string][]string // item -> depends on (explicit then inferred)
	reverse  map[string][]string // item -> blocks
	explicit map[string]map[string]bool
}

// New returns an empty dependency graph.
func New() *Graph {
	return &Graph{
		nodes:    make(map[string]*backlog.Item),
		forward:  make(map[string][]string),
		reverse:  make(map[string][]string),
		explicit: make(map[string]map[string]bool),
	}
}

// AddItems ingests items as nodes plus their declared dependency edges.
// Dependencies that reference IDs outside the ingested set are kept: they are
// treated as externally satisfied by analysis, but recorded so callers can
// distinguish them. Duplicate items and duplicate edges are ignored.
func (g *Graph) AddItems(items []backlog.Item) error {
	if err := backlog.ValidateItems(items); err != nil {
		return err
	}

	for i := range items {
		item := backlog.CloneItem(items[i])
		if _, exists := g.nodes[item.ID]; exists {
			return fmt.Errorf("%w: item %q already in graph", backlog.ErrInvalidItem, item.ID)
		}
		g.nodes[item.ID] = &item
		g.order = append(g.order, item.ID)
		if _, ok := g.forward[item.ID]; !ok {
			g.forward[item.ID] = make([]string, 0)
		}
	}

	for i := range items {
		id := items[i].ID
		for _, dep := range items[i].Dependencies {
			dep = strings.TrimSpace(dep)
			if dep == "" {
				continue
			}
			g.addEdge(id, dep, true)
		}
	}
	return nil
}

// addEdge records id -> dep. Explicit edges are never demoted to inferred.
func (g *Graph) addEdge(id, dep string, explicit bool) {
	if g.hasEdge(id, dep) {
		if explicit {
			g.markExplicit(id, dep)
		}
		return
	}
	g.forward[id] = append(g.forward[id], dep)
	g.reverse[dep] = append(g.reverse[dep], id)
	if explicit {
		g.markExplicit(id, dep)
	}
}

func (g *Graph) hasEdge(id, dep string) bool {
	for _, d := range g.forward[id] {
		if d == dep {
			return true
		}
	}
	return false
}

func (g *Graph) markExplicit(id, dep string) {
	if g.explicit[id] == nil {
		g.explicit[id] = make(map[string]bool)
	}
	g.explicit[id][dep] = true
}

// Len returns the number of items in the graph.
func (g *Graph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.nodes)
}

// Item returns the item for id, or nil if absent. The returned pointer shares
// storage with the graph; callers must not mutate it.
func (g *Graph) Item(id string) *backlog.Item {
	if g == nil {
		return nil
	}
	return g.nodes[id]
}

// DependsOnIDs returns the IDs id depends on, explicit edges first in
// declaration order, then inferred edges in inference order.
func (g *Graph) DependsOnIDs(id string) []string {
	if g == nil || g.forward == nil {
		return nil
	}
	return cloneStrings(g.forward[id])
}

// BlocksIDs returns the IDs directly blocked by id.
func (g *Graph) BlocksIDs(id string) []string {
	if g == nil || g.reverse == nil {
		return nil
	}
	return cloneStrings(g.reverse[id])
}

// IsExplicitEdge reports whether id -> dep was declared on the item itself
// rather than inferred from textual similarity.
func (g *Graph) IsExplicitEdge(id, dep string) bool {
	return g != nil && g.explicit[id] != nil && g.explicit[id][dep]
}

// unresolvedDeps returns the subset of id's dependencies that exist in the
// graph. Dependencies on absent IDs are considered externally satisfied.
func (g *Graph) unresolvedDeps(id string) []string {
	deps := g.forward[id]
	if len(deps) == 0 {
		return nil
	}
	in := make([]string, 0, len(deps))
	for _, dep := range deps {
		if _, ok := g.nodes[dep]; ok {
			in = append(in, dep)
		}
	}
	return in
}

func cloneStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	cp := make([]string, len(values))
	copy(cp, values)
	return cp
}
