package netting

import (
	"sort"

	"github.com/paynet/nexus-clearing/internal/clearing/graph"
	"github.com/paynet/nexus-clearing/internal/domain"
)

// adjacency builds a node-indexed adjacency list from the graph's
// current edges, plus a stable index assignment for deterministic
// traversal order.
func adjacency(g *graph.Graph) (nodes []domain.BankID, index map[domain.BankID]int, adj [][]int) {
	nodes = g.Nodes()
	index = make(map[domain.BankID]int, len(nodes))
	for i, n := range nodes {
		index[n] = i
	}
	adj = make([][]int, len(nodes))
	for _, e := range g.Edges() {
		from := index[e.Payer]
		to := index[e.Payee]
		adj[from] = append(adj[from], to)
	}
	for i := range adj {
		sort.Ints(adj[i])
	}
	return nodes, index, adj
}

// tarjanSCC returns the strongly connected components of the graph
// implied by adj, using Tarjan's algorithm with an explicit stack
// instead of recursion (the window's obligation count is unbounded at
// compile time, so an explicit stack avoids Go's bounded goroutine
// stack growth surprises under adversarial input).
func tarjanSCC(adj [][]int) [][]int {
	n := len(adj)
	index := make([]int, n)
	lowlink := make([]int, n)
	onStack := make([]bool, n)
	for i := range index {
		index[i] = -1
	}

	var stack []int
	var sccs [][]int
	counter := 0

	type frame struct {
		node    int
		childAt int
	}

	for start := 0; start < n; start++ {
		if index[start] != -1 {
			continue
		}

		var call []frame
		call = append(call, frame{node: start})
		index[start] = counter
		lowlink[start] = counter
		counter++
		stack = append(stack, start)
		onStack[start] = true

		for len(call) > 0 {
			top := &call[len(call)-1]
			v := top.node

			if top.childAt < len(adj[v]) {
				w := adj[v][top.childAt]
				top.childAt++

				if index[w] == -1 {
					index[w] = counter
					lowlink[w] = counter
					counter++
					stack = append(stack, w)
					onStack[w] = true
					call = append(call, frame{node: w})
				} else if onStack[w] {
					if index[w] < lowlink[v] {
						lowlink[v] = index[w]
					}
				}
				continue
			}

			// All children of v visited; pop and propagate lowlink to parent.
			call = call[:len(call)-1]
			if len(call) > 0 {
				parent := &call[len(call)-1]
				if lowlink[v] < lowlink[parent.node] {
					lowlink[parent.node] = lowlink[v]
				}
			}

			if lowlink[v] == index[v] {
				var scc []int
				for {
					w := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					onStack[w] = false
					scc = append(scc, w)
					if w == v {
						break
					}
				}
				sccs = append(sccs, scc)
			}
		}
	}

	return sccs
}
