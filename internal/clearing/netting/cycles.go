package netting

import (
	"sort"

	"github.com/shopspring/decimal"
)

// cycle is one elementary cycle expressed as a sequence of node
// indices (not repeating the start node at the end) plus the minimum
// edge weight along it.
type cycle struct {
	nodes   []int
	minEdge decimal.Decimal
}

// findCycles enumerates elementary cycles reachable from each node in
// an SCC via bounded DFS, stopping once cap cycles have been
// collected. Good enough for the obligation volumes a single clearing
// window accumulates; unlike Johnson's algorithm this does not
// guarantee finding the globally shortest cycle first, so selection
// happens afterward via selectCycle.
func findCycles(sccNodes []int, adj [][]int, weight func(from, to int) (decimal.Decimal, bool), cap int) []cycle {
	inSCC := make(map[int]bool, len(sccNodes))
	for _, n := range sccNodes {
		inSCC[n] = true
	}

	var found []cycle
	sort.Ints(sccNodes)

	for _, start := range sccNodes {
		if len(found) >= cap {
			break
		}
		visited := make(map[int]bool)
		var path []int
		var dfs func(node int) bool
		dfs = func(node int) bool {
			if len(found) >= cap {
				return true
			}
			path = append(path, node)
			visited[node] = true

			for _, next := range adj[node] {
				if !inSCC[next] {
					continue
				}
				if next == start && len(path) > 1 {
					c := cycle{nodes: append([]int(nil), path...)}
					c.minEdge = minWeight(c.nodes, start, weight)
					found = append(found, c)
					if len(found) >= cap {
						return true
					}
					continue
				}
				if !visited[next] {
					if dfs(next) {
						return true
					}
				}
			}

			visited[node] = false
			path = path[:len(path)-1]
			return false
		}
		dfs(start)
	}

	return found
}

func minWeight(nodes []int, start int, weight func(from, to int) (decimal.Decimal, bool)) decimal.Decimal {
	min := decimal.Decimal{}
	first := true
	for i := 0; i < len(nodes); i++ {
		from := nodes[i]
		to := start
		if i+1 < len(nodes) {
			to = nodes[i+1]
		}
		w, ok := weight(from, to)
		if !ok {
			continue
		}
		if first || w.LessThan(min) {
			min = w
			first = false
		}
	}
	return min
}

// selectCycle picks the cycle to reduce next: shortest length first,
// then largest minimum edge weight, then lexicographically smallest
// node-index sequence as a deterministic tie-break.
func selectCycle(cycles []cycle) (cycle, bool) {
	if len(cycles) == 0 {
		return cycle{}, false
	}
	best := cycles[0]
	for _, c := range cycles[1:] {
		if better(c, best) {
			best = c
		}
	}
	return best, true
}

func better(a, b cycle) bool {
	if len(a.nodes) != len(b.nodes) {
		return len(a.nodes) < len(b.nodes)
	}
	if !a.minEdge.Equal(b.minEdge) {
		return a.minEdge.GreaterThan(b.minEdge)
	}
	for i := 0; i < len(a.nodes) && i < len(b.nodes); i++ {
		if a.nodes[i] != b.nodes[i] {
			return a.nodes[i] < b.nodes[i]
		}
	}
	return false
}
