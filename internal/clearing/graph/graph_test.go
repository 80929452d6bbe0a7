package graph

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestAddRejectsSelfLoop(t *testing.T) {
	g := New("USD")
	ok := g.Add("o1", "A", "A", decimal.NewFromInt(10))
	assert.False(t, ok)
	assert.Empty(t, g.Edges())
}

func TestAddRejectsNonPositiveAmount(t *testing.T) {
	g := New("USD")
	assert.False(t, g.Add("o1", "A", "B", decimal.Zero))
	assert.False(t, g.Add("o2", "A", "B", decimal.NewFromInt(-5)))
	assert.Empty(t, g.Edges())
}

func TestCollapseMergesParallelEdges(t *testing.T) {
	g := New("USD")
	g.Add("o1", "A", "B", decimal.NewFromInt(10))
	g.Add("o2", "A", "B", decimal.NewFromInt(5))
	g.Collapse()

	edges := g.Edges()
	assert.Len(t, edges, 1)
	assert.True(t, edges[0].Amount.Equal(decimal.NewFromInt(15)))
}

func TestAggregateInOut(t *testing.T) {
	g := New("USD")
	g.Add("o1", "A", "B", decimal.NewFromInt(10))
	g.Add("o2", "A", "C", decimal.NewFromInt(5))

	assert.True(t, g.AggregateOut("A").Equal(decimal.NewFromInt(15)))
	assert.True(t, g.AggregateIn("B").Equal(decimal.NewFromInt(10)))
	assert.True(t, g.AggregateIn("A").IsZero())
}

func TestPruneDustBoundary(t *testing.T) {
	g := New("USD")
	eps := decimal.NewFromFloat(1e-8)
	g.Add("o1", "A", "B", eps)
	g.Add("o2", "C", "D", eps.Add(decimal.NewFromFloat(1e-9)))

	removed := g.PruneDust(eps)
	assert.Equal(t, 1, removed)
	assert.Len(t, g.Edges(), 1)
}
