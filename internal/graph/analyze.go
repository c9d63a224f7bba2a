package graph

import "fmt"

// Analysis is the structural result of analyzing a dependency graph. It is
// derived, read-only data, recomputed on every Analyze call.
type Analysis struct {
	// Cycles lists each detected dependency cycle as the full node path,
	// e.g. ["A", "B", "C", "A"].
	Cycles [][]string `json:"cycles,omitempty"`

	// ExecutionOrder is a valid topological order over the acyclic portion of
	// the graph: every item appears after all of its in-graph dependencies.
	// Ties are broken by ingestion order. Cycle-affected items are excluded.
	ExecutionOrder []string `json:"execution_order"`

	// CriticalPath is the longest dependency chain by cumulative points over
	// the acyclic portion, blocker first. Empty for an empty graph.
	CriticalPath []string `json:"critical_path,omitempty"`

	// CriticalPathPoints is the total effort along CriticalPath.
	CriticalPathPoints int `json:"critical_path_points"`

	// Orphans are items with zero unresolved in-graph dependencies, in
	// ingestion order.
	Orphans []string `json:"orphans,omitempty"`

	// Warnings records best-effort degradations, e.g. critical path computed
	// on the acyclic remainder because cycles were present.
	Warnings []string `json:"warnings,omitempty"`
}

// HasCycles reports whether any dependency cycle was detected.
func (a Analysis) HasCycles() bool { return len(a.Cycles) > 0 }

// OnCriticalPath reports whether id lies on the critical path.
func (a Analysis) OnCriticalPath(id string) bool {
	for _, n := range a.CriticalPath {
		if n == id {
			return true
		}
	}
	return false
}

// Analyze computes cycles, execution order, critical path, and orphans.
// Structural problems are reported as data, never as errors: a cyclic graph
// still yields a best-effort order and critical path over the acyclic
// remainder, with a warning recorded.
func (g *Graph) Analyze() Analysis {
	var result Analysis
	if g == nil || len(g.nodes) == 0 {
		result.ExecutionOrder = []string{}
		return result
	}

	result.Cycles = g.findCycles()
	inCycle := make(map[string]bool)
	for _, cycle := range result.Cycles {
		for _, id := range cycle {
			inCycle[id] = true
		}
	}

	result.ExecutionOrder = g.topoOrder(inCycle)
	result.CriticalPath, result.CriticalPathPoints = g.criticalPath(result.ExecutionOrder)
	if len(result.Cycles) > 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"detected %d dependency cycle(s); execution order and critical path computed on the acyclic remainder",
			len(result.Cycles)))
	}

	for _, id := range g.order {
		if len(g.unresolvedDeps(id)) == 0 {
			result.Orphans = append(result.Orphans, id)
		}
	}
	return result
}

// findCycles runs a depth-first search with an explicit recursion stack and
// reports each cycle as its full path. Nodes are visited in ingestion order
// so output is deterministic.
func (g *Graph) findCycles() [][]string {
	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	state := make(map[string]int, len(g.nodes))
	var stack []string
	var cycles [][]string

	var visit func(id string)
	visit = func(id string) {
		state[id] = inStack
		stack = append(stack, id)

		for _, dep := range g.unresolvedDeps(id) {
			switch state[dep] {
			case unvisited:
				visit(dep)
			case inStack:
				// Slice the stack from dep to the current node, then close
				// the loop so callers see the full path.
				for i, on := range stack {
					if on == dep {
						cycle := make([]string, 0, len(stack)-i+1)
						cycle = append(cycle, stack[i:]...)
						cycle = append(cycle, dep)
						cycles = append(cycles, cycle)
						break
					}
				}
			}
		}

		stack = stack[:len(stack)-1]
		state[id] = done
	}

	for _, id := range g.order {
		if state[id] == unvisited {
			visit(id)
		}
	}
	return cycles
}

// topoOrder is a Kahn-style topological sort over the acyclic portion of the
// graph. Among simultaneously-ready nodes, ingestion order wins.
func (g *Graph) topoOrder(skip map[string]bool) []string {
	index := make(map[string]int, len(g.order))
	for i, id := range g.order {
		index[id] = i
	}

	indegree := make(map[string]int, len(g.nodes))
	for _, id := range g.order {
		if skip[id] {
			continue
		}
		for _, dep := range g.unresolvedDeps(id) {
			if !skip[dep] {
				indegree[id]++
			}
		}
	}

	ready := make([]string, 0, len(g.order))
	for _, id := range g.order {
		if !skip[id] && indegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	order := make([]string, 0, len(g.order))
	for len(ready) > 0 {
		// Take the earliest-ingested ready node.
		pick := 0
		for i := 1; i < len(ready); i++ {
			if index[ready[i]] < index[ready[pick]] {
				pick = i
			}
		}
		id := ready[pick]
		ready = append(ready[:pick], ready[pick+1:]...)
		order = append(order, id)

		for _, dependent := range g.reverse[id] {
			if skip[dependent] {
				continue
			}
			indegree[dependent]--
			if indegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}
	return order
}

// criticalPath computes the longest path by cumulative points over items in
// topological order, returning the chain blocker-first plus its total effort.
func (g *Graph) criticalPath(order []string) ([]string, int) {
	if len(order) == 0 {
		return nil, 0
	}
	inOrder := make(map[string]bool, len(order))
	for _, id := range order {
		inOrder[id] = true
	}

	dist := make(map[string]int, len(order))
	prev := make(map[string]string, len(order))
	best, bestID := -1, ""

	for _, id := range order {
		points := g.nodes[id].Points
		dist[id] = points
		for _, dep := range g.unresolvedDeps(id) {
			if !inOrder[dep] {
				continue
			}
			if dist[dep]+points > dist[id] {
				dist[id] = dist[dep] + points
				prev[id] = dep
			}
		}
		if dist[id] > best {
			best, bestID = dist[id], id
		}
	}

	var path []string
	for id := bestID; id != ""; id = prev[id] {
		path = append(path, id)
	}
	// Reverse so the deepest blocker comes first.
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, best
}
