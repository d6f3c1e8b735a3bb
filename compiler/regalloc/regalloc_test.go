package regalloc

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/exprc/compiler/asm"
	"github.com/slowlang/exprc/compiler/graph"
	"github.com/slowlang/exprc/compiler/ir"
	"github.com/slowlang/exprc/compiler/live"
)

func randomGraph(r *rand.Rand, n int, p float64) (*graph.Graph, live.Freq) {
	g := graph.New()
	freq := live.Freq{}

	for v := 0; v < n; v++ {
		g.AddNode(ir.VarID(v))
		freq[ir.VarID(v)] = 1 + r.Intn(5)
	}

	for a := 0; a < n; a++ {
		for b := a + 1; b < n; b++ {
			if r.Float64() < p {
				g.AddEdge(ir.VarID(a), ir.VarID(b))
			}
		}
	}

	return g, freq
}

func TestColorValid(t *testing.T) {
	ctx := context.Background()
	r := rand.New(rand.NewSource(1))

	pool := []int{10, 11, 12, 13}

	for i := 0; i < 200; i++ {
		g, freq := randomGraph(r, 2+r.Intn(30), r.Float64())
		orig := g.Copy()

		res := Color(ctx, g, freq, pool)

		assert.Equal(t, 0, g.Len())
		assert.Empty(t, res.Dead)
		assert.Equal(t, orig.Len(), len(res.Colors)+len(res.Spilled))

		for _, v := range orig.Nodes() {
			c, ok := res.Colors[v]
			if !ok {
				continue
			}

			assert.Contains(t, pool, c)

			for _, u := range orig.Neighbors(v) {
				if cu, ok := res.Colors[u]; ok {
					assert.NotEqual(t, c, cu, "graph %d: neighbours %d and %d share a color", i, v, u)
				}
			}
		}

		if orig.MaxDegree() < len(pool) {
			assert.Empty(t, res.Spilled, "graph %d", i)
		}
	}
}

func TestColorSpillsCheapest(t *testing.T) {
	ctx := context.Background()

	g := graph.New()

	// clique of 4 with a pool of 3: exactly one spill
	for a := 0; a < 4; a++ {
		for b := a + 1; b < 4; b++ {
			g.AddEdge(ir.VarID(a), ir.VarID(b))
		}
	}

	freq := live.Freq{0: 5, 1: 2, 2: 2, 3: 7}

	res := Color(ctx, g, freq, []string{"a", "b", "c"})

	assert.Equal(t, []ir.VarID{1}, res.Spilled, "lowest frequency, lowest id")
	assert.Len(t, res.Colors, 3)
}

func TestColorZeroFrequency(t *testing.T) {
	ctx := context.Background()

	g := graph.New()
	g.AddEdge(0, 1)
	g.AddEdge(1, 2)
	g.AddEdge(0, 2)

	freq := live.Freq{0: 1, 2: 3}

	res := Color(ctx, g, freq, []string{"a", "b"})

	assert.Equal(t, []ir.VarID{1}, res.Dead)
	assert.Empty(t, res.Spilled)
	assert.NotEqual(t, res.Colors[0], res.Colors[2])
}

func TestColorEmptyPool(t *testing.T) {
	ctx := context.Background()

	g := graph.New()
	g.AddNode(0)
	g.AddNode(1)
	g.AddEdge(2, 3)

	freq := live.Freq{0: 1, 1: 1, 2: 1, 3: 1}

	res := Color(ctx, g, freq, []asm.Reg{})

	assert.Empty(t, res.Colors)
	assert.Equal(t, []ir.VarID{0, 1, 2, 3}, res.Spilled)
}

func TestColorDeterministic(t *testing.T) {
	ctx := context.Background()

	for seed := int64(0); seed < 20; seed++ {
		g1, f1 := randomGraph(rand.New(rand.NewSource(seed)), 25, 0.4)
		g2, f2 := randomGraph(rand.New(rand.NewSource(seed)), 25, 0.4)

		r1 := Color(ctx, g1, f1, []int{0, 1, 2})
		r2 := Color(ctx, g2, f2, []int{0, 1, 2})

		assert.Equal(t, r1, r2)
	}
}

func TestColorDuplicatePool(t *testing.T) {
	ctx := context.Background()

	g := graph.New()
	g.AddEdge(0, 1)

	freq := live.Freq{0: 1, 1: 1}

	// pool claims two registers but only has one distinct color
	assert.PanicsWithError(t, "invariant violated: no register left for colorable node 0: 1 neighbours colored, pool of 2", func() {
		Color(ctx, g, freq, []int{7, 7})
	})
}

func TestAllocate(t *testing.T) {
	ctx := context.Background()

	a := ir.Var("a", ir.Int)
	x := ir.Var("x", ir.Float)

	b := ir.NewBlock(
		ir.Let{Name: "a", Init: ir.IntLit(1)},
		ir.Let{Name: "x", Init: ir.FloatLit(2)},
		ir.Let{Name: "y", Init: ir.Binary{Op: ir.Times, L: x, R: x, Of: ir.Float}},
		ir.Let{Name: "dead", Init: ir.IntLit(3)},
		a,
	)

	vars := ir.NewVars()
	vars.AddBlock(b)

	gen, flt, freq := graph.Conflicts(ctx, vars, b)

	asg := Allocate(ctx, Pools{
		General: []asm.Reg{asm.RBX},
		Float:   []asm.XReg{asm.XMM1, asm.XMM2},
	}, vars, gen, flt, freq)

	assert.Equal(t, Loc{Kind: InReg, Reg: asm.RBX}, asg["a"])
	assert.Equal(t, Loc{Kind: InXReg, XReg: asm.XMM1}, asg["x"])
	assert.Equal(t, None, asg["dead"].Kind)
	assert.Equal(t, None, asg["y"].Kind)
	assert.Equal(t, 0, asg.Spilled())
}

func TestAllocateStarved(t *testing.T) {
	ctx := context.Background()

	b := ir.NewBlock(
		ir.Let{Name: "a", Init: ir.IntLit(1)},
		ir.Let{Name: "b", Init: ir.IntLit(2)},
		ir.Binary{Op: ir.Plus, L: ir.Var("a", ir.Int), R: ir.Var("b", ir.Int), Of: ir.Int},
	)

	vars := ir.NewVars()
	vars.AddBlock(b)

	gen, flt, freq := graph.Conflicts(ctx, vars, b)

	asg := Allocate(ctx, Pools{}, vars, gen, flt, freq)

	require.Len(t, asg, 2)
	assert.Equal(t, Spill, asg["a"].Kind)
	assert.Equal(t, Spill, asg["b"].Kind)
	assert.Equal(t, 2, asg.Spilled())
}

func TestPoolsLimit(t *testing.T) {
	p := Pools{
		General: []asm.Reg{asm.RBX, asm.RCX, asm.RSI},
		Float:   []asm.XReg{asm.XMM1, asm.XMM2},
	}

	l := p.Limit(1, -1)

	assert.Equal(t, []asm.Reg{asm.RBX}, l.General)
	assert.Equal(t, p.Float, l.Float)

	l = p.Limit(10, 0)

	assert.Equal(t, p.General, l.General)
	assert.Empty(t, l.Float)
}
