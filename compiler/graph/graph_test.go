package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/exprc/compiler/ir"
)

func TestGraphRemove(t *testing.T) {
	g := New()

	g.AddEdge(0, 1)
	g.AddEdge(0, 2)
	g.AddEdge(1, 2)
	g.AddNode(3)
	g.AddNode(3)
	g.AddEdge(2, 2)

	assert.Equal(t, 4, g.Len())
	assert.Equal(t, 2, g.Degree(2))
	assert.False(t, g.HasEdge(2, 2))
	assert.Equal(t, 2, g.MaxDegree())

	g.Remove(1)

	assert.Equal(t, 3, g.Len())
	assert.Equal(t, []ir.VarID{0, 2, 3}, g.Nodes())
	assert.Equal(t, []ir.VarID{2}, g.Neighbors(0))
	assert.Equal(t, []ir.VarID{0, 2}, g.RemovedNeighbors(1))

	g.Remove(0)

	assert.Equal(t, []ir.VarID{2}, g.RemovedNeighbors(0), "snapshot taken at removal time")
	assert.Equal(t, []ir.VarID{0, 2}, g.RemovedNeighbors(1), "earlier snapshot kept")
	assert.Equal(t, 0, g.Degree(2))
}

func TestGraphInvariants(t *testing.T) {
	g := New()
	g.AddEdge(0, 1)
	g.Remove(0)

	var ie *ir.InvariantError

	require.Panics(t, func() { g.AddNode(0) })
	assert.PanicsWithError(t, "invariant violated: neighbours of node 1 requested but it was never removed", func() { g.RemovedNeighbors(1) })

	func() {
		defer func() {
			ie, _ = recover().(*ir.InvariantError)
		}()

		g.Remove(5)
	}()

	require.NotNil(t, ie)
	assert.Contains(t, ie.Msg, "absent node 5")
}

func TestGraphCopy(t *testing.T) {
	g := New()
	g.AddEdge(0, 1)

	c := g.Copy()
	c.Remove(0)

	assert.True(t, g.HasEdge(0, 1))
	assert.False(t, c.Has(0))
}

func TestConflicts(t *testing.T) {
	i := func(n string) ir.Direct { return ir.Var(n, ir.Int) }
	f := func(n string) ir.Direct { return ir.Var(n, ir.Float) }

	blk := ir.NewBlock(
		ir.Let{Name: "a", Init: ir.IntLit(1)},
		ir.Let{Name: "b", Init: ir.IntLit(2)},
		ir.Let{Name: "x", Init: ir.FloatLit(1.5)},
		ir.Let{Name: "y", Init: ir.Binary{Op: ir.Times, L: f("x"), R: f("x"), Of: ir.Float}},
		ir.Let{Name: "unused", Init: ir.Binary{Op: ir.Less, L: f("x"), R: f("y"), Of: ir.Float}},
		ir.Let{Name: "z", Init: ir.Binary{Op: ir.Plus, L: f("y"), R: f("x"), Of: ir.Float}},
		ir.Let{Name: "c", Init: ir.Binary{Op: ir.Plus, L: i("a"), R: i("b"), Of: ir.Int}},
		ir.Let{Name: "d", Init: ir.Binary{Op: ir.Less, L: i("c"), R: i("p"), Of: ir.Int}},
		ir.Let{Name: "w", Init: ir.Unary{Op: ir.Neg, X: f("z"), Of: ir.Float}},
		ir.Var("d", ir.Bool),
	)

	vars := ir.NewVars()
	p := vars.Add("p", ir.Int)
	vars.AddBlock(blk)

	gen, flt, freq := Conflicts(context.Background(), vars, blk, p)

	id := vars.ID

	assert.True(t, gen.HasEdge(id("a"), id("b")))
	assert.True(t, gen.HasEdge(id("a"), id("p")), "seeded param conflicts")
	assert.True(t, gen.HasEdge(id("c"), id("p")))
	assert.False(t, gen.HasEdge(id("a"), id("c")), "a dies where c is born")
	assert.False(t, gen.Has(id("x")), "float var not in general graph")

	assert.True(t, flt.HasEdge(id("x"), id("y")))
	assert.True(t, flt.Has(id("w")), "dead definition gets a node")
	assert.True(t, gen.Has(id("unused")), "dead bool definition gets a node in general graph")
	assert.False(t, flt.HasEdge(id("z"), id("x")))
	assert.False(t, gen.Has(id("z")), "mixed classes never conflict")
	assert.False(t, flt.Has(id("a")))

	assert.Equal(t, 0, freq[id("unused")])
	assert.Equal(t, 0, freq[id("w")])
	assert.Equal(t, 4, freq[id("x")])
	assert.Equal(t, 1, freq[id("p")])
}
