// Package graph implements the debt graph: a per-currency directed
// multigraph of obligations accumulated during a clearing window,
// which the netting optimizer reduces to a minimal set of settlement
// instructions.
package graph

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/paynet/nexus-clearing/internal/domain"
)

// Edge is one obligation contribution from payer to payee. ObligationIDs
// accumulates every obligation merged into this edge by Collapse, so
// callers can report how many obligations a surviving edge represents.
type Edge struct {
	ObligationIDs []string
	Payer         domain.BankID
	Payee         domain.BankID
	Amount        decimal.Decimal
}

// Graph is the directed multigraph of obligations for a single
// currency within a single clearing window.
type Graph struct {
	Currency domain.Currency
	edges    []Edge
}

// New creates an empty graph for currency.
func New(currency domain.Currency) *Graph {
	return &Graph{Currency: currency}
}

// Add inserts one obligation edge. Rejects self-loops (payer == payee)
// and non-positive amounts; callers should have already rejected these
// at obligation creation time, so this is a defensive check, not the
// primary guard.
func (g *Graph) Add(obligationID string, payer, payee domain.BankID, amount decimal.Decimal) bool {
	if payer == payee || amount.Sign() <= 0 {
		return false
	}
	g.edges = append(g.edges, Edge{ObligationIDs: []string{obligationID}, Payer: payer, Payee: payee, Amount: amount})
	return true
}

// Edges returns the current edge set in stable insertion order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// AggregateOut returns the sum of all outgoing amounts from bank.
func (g *Graph) AggregateOut(bank domain.BankID) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range g.edges {
		if e.Payer == bank {
			sum = sum.Add(e.Amount)
		}
	}
	return sum
}

// AggregateIn returns the sum of all incoming amounts to bank.
func (g *Graph) AggregateIn(bank domain.BankID) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range g.edges {
		if e.Payee == bank {
			sum = sum.Add(e.Amount)
		}
	}
	return sum
}

// Nodes returns the distinct banks appearing in the graph, sorted for
// deterministic iteration.
func (g *Graph) Nodes() []domain.BankID {
	seen := make(map[domain.BankID]struct{})
	for _, e := range g.edges {
		seen[e.Payer] = struct{}{}
		seen[e.Payee] = struct{}{}
	}
	nodes := make([]domain.BankID, 0, len(seen))
	for n := range seen {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })
	return nodes
}

// PruneDust removes edges whose amount is at or below epsilon,
// returning the count removed. Applied after every cycle reduction so
// residual balances below settlement precision don't linger as
// phantom edges.
func (g *Graph) PruneDust(epsilon decimal.Decimal) int {
	kept := g.edges[:0]
	removed := 0
	for _, e := range g.edges {
		if e.Amount.LessThanOrEqual(epsilon) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	g.edges = kept
	return removed
}

// ReduceEdge subtracts amount from the first edge found for payer/payee,
// removing it entirely if the result is non-positive. Other parallel
// edges for the same pair are left as they are; Collapse merges them.
func (g *Graph) ReduceEdge(payer, payee domain.BankID, amount decimal.Decimal) {
	for i := 0; i < len(g.edges); i++ {
		if g.edges[i].Payer == payer && g.edges[i].Payee == payee {
			g.edges[i].Amount = g.edges[i].Amount.Sub(amount)
			if !g.edges[i].Amount.IsPositive() {
				g.edges = append(g.edges[:i], g.edges[i+1:]...)
			}
			return
		}
	}
}

// Collapse merges all parallel edges between the same payer/payee pair
// into a single edge per direction, summing amounts. Run once before
// cycle detection so the simple-graph assumption of the SCC search
// holds.
func (g *Graph) Collapse() {
	type key struct {
		payer, payee domain.BankID
	}
	sums := make(map[key]decimal.Decimal)
	order := make([]key, 0, len(g.edges))
	ids := make(map[key][]string)
	for _, e := range g.edges {
		k := key{e.Payer, e.Payee}
		if _, ok := sums[k]; !ok {
			order = append(order, k)
		}
		ids[k] = append(ids[k], e.ObligationIDs...)
		sums[k] = sums[k].Add(e.Amount)
	}
	merged := make([]Edge, 0, len(order))
	for _, k := range order {
		merged = append(merged, Edge{ObligationIDs: ids[k], Payer: k.payer, Payee: k.payee, Amount: sums[k]})
	}
	g.edges = merged
}
