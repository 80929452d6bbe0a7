// Package netting implements the netting optimizer: it reduces a debt
// graph's cycles via strongly-connected-component detection and
// elementary cycle elimination, then computes bilateral net positions
// and the settlement instructions needed to realize them.
package netting

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/paynet/nexus-clearing/internal/clearing/graph"
	"github.com/paynet/nexus-clearing/internal/domain"
	"github.com/paynet/nexus-clearing/internal/telemetry/metrics"
)

// Config tunes the optimizer's search bounds.
type Config struct {
	CycleCap     int
	DustEpsilon  decimal.Decimal
	MaxWallClock time.Duration
}

// Result is the outcome of optimizing one currency's debt graph.
type Result struct {
	Positions    []domain.NetPosition
	Instructions []domain.SettlementInstruction
	GrossTotal   decimal.Decimal
	NetTotal     decimal.Decimal
	Efficiency   float64
	Degraded     bool // true if the wall-clock cap was hit before reaching a fixed point
}

// Optimize reduces g in place by eliminating cycles until acyclic (or
// until the wall-clock cap is reached, in which case Degraded is set
// and the partially reduced graph still yields valid, conservative net
// positions — it is simply not maximally netted).
func Optimize(windowID string, g *graph.Graph, cfg Config) Result {
	gross := sumAmounts(g.Edges())
	obligationCount := 0
	for _, e := range g.Edges() {
		obligationCount += len(e.ObligationIDs)
	}

	g.Collapse()
	g.PruneDust(cfg.DustEpsilon) // insert-dust pass, before any cycle search

	deadline := time.Now().Add(cfg.MaxWallClock)
	degraded := false

	for {
		if cfg.MaxWallClock > 0 && time.Now().After(deadline) {
			degraded = true
			break
		}

		nodes, index, adj := adjacency(g)
		sccs := tarjanSCC(adj)

		reducedAny := false
		for _, scc := range sccs {
			if len(scc) < 2 {
				continue
			}
			weight := func(from, to int) (decimal.Decimal, bool) {
				return edgeWeight(g, nodes[from], nodes[to])
			}
			cycles := findCycles(scc, adj, weight, cfg.CycleCap)
			best, ok := selectCycle(cycles)
			if !ok {
				continue
			}
			reduceCycle(g, nodes, best)
			g.PruneDust(cfg.DustEpsilon)
			reducedAny = true
			break // re-derive SCCs from the mutated graph before continuing
		}

		if !reducedAny {
			break
		}
		_ = index
	}

	positions := bilateralPositions(windowID, g)
	instructions := toInstructions(windowID, g)
	net := sumAmounts(g.Edges())

	efficiency := 1.0
	if !gross.IsZero() {
		saved, _ := gross.Sub(net).Div(gross).Float64()
		efficiency = saved
	}

	metrics.NettingEfficiency.WithLabelValues(string(g.Currency)).Observe(efficiency)
	metrics.ObligationsNetted.WithLabelValues(string(g.Currency)).Add(float64(obligationCount))

	return Result{
		Positions:    positions,
		Instructions: instructions,
		GrossTotal:   gross,
		NetTotal:     net,
		Efficiency:   efficiency,
		Degraded:     degraded,
	}
}

func sumAmounts(edges []graph.Edge) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range edges {
		sum = sum.Add(e.Amount)
	}
	return sum
}

func edgeWeight(g *graph.Graph, payer, payee domain.BankID) (decimal.Decimal, bool) {
	for _, e := range g.Edges() {
		if e.Payer == payer && e.Payee == payee {
			return e.Amount, true
		}
	}
	return decimal.Zero, false
}

func reduceCycle(g *graph.Graph, nodes []domain.BankID, c cycle) {
	n := len(c.nodes)
	for i := 0; i < n; i++ {
		from := nodes[c.nodes[i]]
		to := nodes[c.nodes[(i+1)%n]]
		g.ReduceEdge(from, to, c.minEdge)
	}
}

// bilateralPositions computes one NetPosition per unordered bank pair
// still holding a balance after cycle elimination. Because a pair with
// exposure in both directions is itself a 2-cycle and was already
// collapsed to zero by the reduction loop, at most one of GrossAB/
// GrossBA is non-zero here — the "tie → no position" rule from §4.2
// step 6 only has teeth against a pre-reduction graph, which this
// implementation never hands to the positions step.
func bilateralPositions(windowID string, g *graph.Graph) []domain.NetPosition {
	edges := g.Edges()
	out := make([]domain.NetPosition, 0, len(edges))
	for _, e := range edges {
		bankA, bankB := e.Payer, e.Payee
		grossAB, grossBA := e.Amount, decimal.Zero
		if bankA > bankB {
			bankA, bankB = bankB, bankA
			grossAB, grossBA = grossBA, grossAB
		}
		out = append(out, domain.NetPosition{
			WindowID:         windowID,
			Currency:         g.Currency,
			BankA:            bankA,
			BankB:            bankB,
			GrossAB:          grossAB,
			GrossBA:          grossBA,
			Net:              e.Amount,
			Payer:            e.Payer,
			Payee:            e.Payee,
			ObligationsCount: len(e.ObligationIDs),
			Saved:            decimal.Zero,
		})
	}
	return out
}

// toInstructions converts the remaining (acyclic) edges directly into
// settlement instructions: after cycle elimination, each surviving
// edge already represents a net bilateral obligation.
func toInstructions(windowID string, g *graph.Graph) []domain.SettlementInstruction {
	edges := g.Edges()
	out := make([]domain.SettlementInstruction, 0, len(edges))
	for _, e := range edges {
		out = append(out, domain.SettlementInstruction{
			ID:       domain.NewID(),
			WindowID: windowID,
			Currency: g.Currency,
			Payer:    e.Payer,
			Payee:    e.Payee,
			Amount:   e.Amount,
		})
	}
	return out
}
