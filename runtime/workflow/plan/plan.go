// Package plan turns a stored workflow graph into an executable plan: the
// topologically ordered list of nodes reachable from trigger nodes over
// main-flow edges. Sub-node edges are invisible here; they are consumed by
// individual executors at run time.
package plan

import (
	"fmt"
	"sort"

	"github.com/loomworks/loom/runtime/workflow/graph"
)

// CycleError reports a cycle among the main-flow edges of the reachable
// sub-graph. The run never starts when planning fails.
type CycleError struct {
	// Remaining lists node ids that could not be ordered, sorted for
	// deterministic messages.
	Remaining []string
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	return fmt.Sprintf("workflow graph contains a cycle among nodes %v", e.Remaining)
}

// Build computes the execution plan for one workflow. It partitions
// connections into main and sub-node edges, finds the nodes reachable from
// any trigger over main edges, and topologically sorts the induced
// sub-graph. Node id is the secondary sort key so the same inputs always
// yield the same order. A workflow without triggers plans to an empty list.
func Build(nodes []graph.Node, conns []graph.Connection) ([]graph.Node, error) {
	byID := make(map[string]graph.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}

	main := graph.MainEdges(conns)
	succ := make(map[string][]string, len(main))
	for _, c := range main {
		if _, ok := byID[c.FromNodeID]; !ok {
			continue
		}
		if _, ok := byID[c.ToNodeID]; !ok {
			continue
		}
		succ[c.FromNodeID] = append(succ[c.FromNodeID], c.ToNodeID)
	}

	// Breadth-first reachability from every trigger node.
	reachable := make(map[string]struct{})
	var queue []string
	for _, n := range nodes {
		if n.Kind.IsTrigger() {
			reachable[n.ID] = struct{}{}
			queue = append(queue, n.ID)
		}
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range succ[cur] {
			if _, seen := reachable[next]; seen {
				continue
			}
			reachable[next] = struct{}{}
			queue = append(queue, next)
		}
	}
	if len(reachable) == 0 {
		return nil, nil
	}

	// Kahn's algorithm on the induced sub-graph, draining ready nodes in
	// id order so plans are stable across invocations.
	indeg := make(map[string]int, len(reachable))
	for id := range reachable {
		indeg[id] = 0
	}
	for from, targets := range succ {
		if _, ok := reachable[from]; !ok {
			continue
		}
		for _, to := range targets {
			if _, ok := reachable[to]; ok {
				indeg[to]++
			}
		}
	}

	ready := make([]string, 0, len(indeg))
	for id, d := range indeg {
		if d == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	ordered := make([]graph.Node, 0, len(reachable))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		ordered = append(ordered, byID[id])
		released := make([]string, 0, len(succ[id]))
		for _, to := range succ[id] {
			if _, ok := reachable[to]; !ok {
				continue
			}
			indeg[to]--
			if indeg[to] == 0 {
				released = append(released, to)
			}
		}
		sort.Strings(released)
		ready = mergeSorted(ready, released)
	}

	if len(ordered) != len(reachable) {
		remaining := make([]string, 0, len(reachable)-len(ordered))
		for id, d := range indeg {
			if d > 0 {
				remaining = append(remaining, id)
			}
		}
		sort.Strings(remaining)
		return nil, &CycleError{Remaining: remaining}
	}
	return ordered, nil
}

// mergeSorted merges two id-sorted slices preserving order.
func mergeSorted(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i] <= b[j] {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}
