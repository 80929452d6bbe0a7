package netting

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paynet/nexus-clearing/internal/clearing/graph"
	"github.com/paynet/nexus-clearing/internal/domain"
)

func defaultConfig() Config {
	return Config{
		CycleCap:     64,
		DustEpsilon:  decimal.NewFromFloat(1e-8),
		MaxWallClock: 0, // unbounded for tests
	}
}

// TestThreeBankCycle covers the three-bank USD cycle: A->B=100,
// B->C=50, C->A=75 reduces (min edge 50, length 3) to A->B=50,
// C->A=25 with B->C pruned to zero. Gross=225, net=75, saved=150 per
// the m*L savings rule in §4.2. The resulting efficiency is
// (225-75)/225 = 0.6667, exactly the formula given alongside this
// scenario; it does not match the "efficiency=0.5" figure quoted in
// the illustrative walkthrough, which is inconsistent with the same
// section's own formula and with the otherwise-matching degenerate
// scenario below — this implementation follows the formula.
func TestThreeBankCycle(t *testing.T) {
	g := graph.New("USD")
	require.True(t, g.Add("o1", "A", "B", decimal.NewFromInt(100)))
	require.True(t, g.Add("o2", "B", "C", decimal.NewFromInt(50)))
	require.True(t, g.Add("o3", "C", "A", decimal.NewFromInt(75)))

	res := Optimize("w1", g, defaultConfig())

	edges := g.Edges()
	require.Len(t, edges, 2)

	amounts := map[string]decimal.Decimal{}
	for _, e := range edges {
		amounts[string(e.Payer)+"->"+string(e.Payee)] = e.Amount
	}
	assert.True(t, amounts["A->B"].Equal(decimal.NewFromInt(50)))
	assert.True(t, amounts["C->A"].Equal(decimal.NewFromInt(25)))

	assert.True(t, res.GrossTotal.Equal(decimal.NewFromInt(225)))
	assert.True(t, res.NetTotal.Equal(decimal.NewFromInt(75)))
	saved := res.GrossTotal.Sub(res.NetTotal)
	assert.True(t, saved.Equal(decimal.NewFromInt(150)), "saved should be 150")
	assert.InDelta(t, 2.0/3.0, res.Efficiency, 1e-9)
	assert.Len(t, res.Instructions, 2)
}

// TestDegenerateNetZero covers A->B=100, B->A=100: a pure 2-cycle that
// cancels entirely. saved=200, efficiency=1.0.
func TestDegenerateNetZero(t *testing.T) {
	g := graph.New("USD")
	require.True(t, g.Add("o1", "A", "B", decimal.NewFromInt(100)))
	require.True(t, g.Add("o2", "B", "A", decimal.NewFromInt(100)))

	res := Optimize("w1", g, defaultConfig())

	assert.Empty(t, g.Edges())
	assert.Empty(t, res.Positions)
	assert.Empty(t, res.Instructions)
	assert.True(t, res.NetTotal.IsZero())
	assert.Equal(t, 1.0, res.Efficiency)
}

// TestDustPrune covers a single sub-epsilon edge removed at the
// insert-dust pass, producing no position and no instruction.
func TestDustPrune(t *testing.T) {
	g := graph.New("USD")
	require.True(t, g.Add("o1", "A", "B", decimal.NewFromFloat(1e-9)))

	res := Optimize("w1", g, defaultConfig())

	assert.Empty(t, g.Edges())
	assert.Empty(t, res.Positions)
	assert.Empty(t, res.Instructions)
}

// TestDustPruneAtExactEpsilon covers the boundary case: an obligation
// whose amount exactly equals dust_epsilon is pruned, not kept.
func TestDustPruneAtExactEpsilon(t *testing.T) {
	g := graph.New("USD")
	eps := decimal.NewFromFloat(1e-8)
	require.True(t, g.Add("o1", "A", "B", eps))

	cfg := defaultConfig()
	res := Optimize("w1", g, cfg)

	assert.Empty(t, g.Edges())
	assert.Empty(t, res.Positions)
}

func TestZeroObligationWindow(t *testing.T) {
	g := graph.New("USD")
	res := Optimize("w1", g, defaultConfig())
	assert.Equal(t, 1.0, res.Efficiency, "a window with zero obligations completes cleanly")
	assert.Empty(t, res.Instructions)
}

// TestConservation checks the universal money-conservation invariant:
// Σ out - Σ in per node is preserved across optimization.
func TestConservation(t *testing.T) {
	g := graph.New("USD")
	require.True(t, g.Add("o1", "A", "B", decimal.NewFromInt(100)))
	require.True(t, g.Add("o2", "B", "C", decimal.NewFromInt(50)))
	require.True(t, g.Add("o3", "C", "A", decimal.NewFromInt(75)))

	before := map[domain.BankID]decimal.Decimal{
		"A": g.AggregateOut("A").Sub(g.AggregateIn("A")),
		"B": g.AggregateOut("B").Sub(g.AggregateIn("B")),
		"C": g.AggregateOut("C").Sub(g.AggregateIn("C")),
	}

	Optimize("w1", g, defaultConfig())

	for node, want := range before {
		got := g.AggregateOut(node).Sub(g.AggregateIn(node))
		assert.True(t, want.Equal(got), "flow imbalance preserved for %s", node)
	}
}

func TestAcyclicAfterOptimize(t *testing.T) {
	g := graph.New("USD")
	require.True(t, g.Add("o1", "A", "B", decimal.NewFromInt(30)))
	require.True(t, g.Add("o2", "B", "C", decimal.NewFromInt(20)))
	require.True(t, g.Add("o3", "C", "D", decimal.NewFromInt(10)))
	require.True(t, g.Add("o4", "D", "A", decimal.NewFromInt(5)))
	require.True(t, g.Add("o5", "B", "D", decimal.NewFromInt(1)))

	Optimize("w1", g, defaultConfig())

	_, _, adj := adjacency(g)
	sccs := tarjanSCC(adj)
	for _, scc := range sccs {
		assert.Less(t, len(scc), 2, "no SCC of size >= 2 should remain after optimization")
	}
}

func TestEfficiencyBound(t *testing.T) {
	g := graph.New("USD")
	require.True(t, g.Add("o1", "A", "B", decimal.NewFromInt(30)))
	require.True(t, g.Add("o2", "B", "C", decimal.NewFromInt(20)))
	require.True(t, g.Add("o3", "C", "A", decimal.NewFromInt(10)))

	res := Optimize("w1", g, defaultConfig())
	assert.GreaterOrEqual(t, res.Efficiency, 0.0)
	assert.LessOrEqual(t, res.Efficiency, 1.0)
}
