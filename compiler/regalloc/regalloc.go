package regalloc

import (
	"context"

	"nikand.dev/go/heap"
	"tlog.app/go/tlog"
	"tlog.app/go/tlog/tlwire"

	"github.com/slowlang/exprc/compiler/asm"
	"github.com/slowlang/exprc/compiler/graph"
	"github.com/slowlang/exprc/compiler/ir"
	"github.com/slowlang/exprc/compiler/live"
)

type (
	Kind int

	Loc struct {
		Kind Kind
		Reg  asm.Reg
		XReg asm.XReg
	}

	// Assignment is the storage decision for every variable of a function.
	Assignment map[string]Loc

	Pools struct {
		General []asm.Reg
		Float   []asm.XReg
	}

	// Coloring is the result of coloring one graph.
	Coloring[C comparable] struct {
		Colors  map[ir.VarID]C
		Spilled []ir.VarID // in the order they were chosen
		Dead    []ir.VarID
	}

	spillCand struct {
		v    ir.VarID
		freq int
	}
)

const (
	None Kind = iota
	InReg
	InXReg
	Spill
)

// Allocate colors general with the general pool and float with the float pool.
// Both graphs are consumed.
func Allocate(ctx context.Context, pools Pools, vars *ir.Vars, general, float *graph.Graph, freq live.Freq) Assignment {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "regalloc", "general", general.Len(), "float", float.Len(), "pool_general", len(pools.General), "pool_float", len(pools.Float))
	defer tr.Finish()

	asg := Assignment{}

	gc := Color(ctx, general, freq, pools.General)
	fc := Color(ctx, float, freq, pools.Float)

	for v, r := range gc.Colors {
		asg[vars.Name(v)] = Loc{Kind: InReg, Reg: r}
	}

	for v, r := range fc.Colors {
		asg[vars.Name(v)] = Loc{Kind: InXReg, XReg: r}
	}

	for _, l := range [][]ir.VarID{gc.Spilled, fc.Spilled} {
		for _, v := range l {
			asg[vars.Name(v)] = Loc{Kind: Spill}
		}
	}

	for _, l := range [][]ir.VarID{gc.Dead, fc.Dead} {
		for _, v := range l {
			asg[vars.Name(v)] = Loc{Kind: None}
		}
	}

	if tr.If("dump_alloc") {
		for id := 0; id < vars.Len(); id++ {
			name := vars.Name(ir.VarID(id))

			if l, ok := asg[name]; ok {
				tr.Printw("assign", "var", name, "loc", l)
			}
		}
	}

	return asg
}

// Color runs simplify, spill and select on g with the given pool.
// Variables with zero frequency are not given storage.
// Ties are broken by the lowest variable id, so the result is deterministic.
// g is consumed: all nodes end up removed.
func Color[C comparable](ctx context.Context, g *graph.Graph, freq live.Freq, pool []C) Coloring[C] {
	tr := tlog.SpanFromContext(ctx)

	res := Coloring[C]{
		Colors: make(map[ir.VarID]C, g.Len()),
	}

	for _, v := range g.Nodes() {
		if freq[v] == 0 {
			g.Remove(v)
			res.Dead = append(res.Dead, v)
		}
	}

	k := len(pool)

	spills := heap.Heap[spillCand]{Less: spillLess}

	for _, v := range g.Nodes() {
		spills.Push(spillCand{v: v, freq: freq[v]})
	}

	var stack []ir.VarID

	for g.Len() != 0 {
		if v, ok := trivial(g, k); ok {
			tr.V("simplify").Printw("simplify", "var", v, "degree", g.Degree(v), "k", k)

			g.Remove(v)
			stack = append(stack, v)

			continue
		}

		var c spillCand

		for {
			c = spills.Pop()

			if g.Has(c.v) {
				break
			}
		}

		tr.V("spill").Printw("spill", "var", c.v, "degree", g.Degree(c.v), "freq", c.freq, "k", k)

		g.Remove(c.v)
		res.Spilled = append(res.Spilled, c.v)
	}

	for i := len(stack) - 1; i >= 0; i-- {
		v := stack[i]

		used := map[C]struct{}{}

		for _, u := range g.RemovedNeighbors(v) {
			if c, ok := res.Colors[u]; ok {
				used[c] = struct{}{}
			}
		}

		j := 0
		for j < k {
			if _, ok := used[pool[j]]; !ok {
				break
			}

			j++
		}

		if j == k {
			ir.Invariant("no register left for colorable node %d: %d neighbours colored, pool of %d", v, len(used), k)
		}

		res.Colors[v] = pool[j]

		tr.V("select").Printw("select", "var", v, "color", pool[j], "neighbours_colored", len(used))
	}

	return res
}

// trivial finds the lowest id node with fewer than k neighbours.
func trivial(g *graph.Graph, k int) (ir.VarID, bool) {
	for _, v := range g.Nodes() {
		if g.Degree(v) < k {
			return v, true
		}
	}

	return -1, false
}

func spillLess(d []spillCand, i, j int) bool {
	if d[i].freq != d[j].freq {
		return d[i].freq < d[j].freq
	}

	return d[i].v < d[j].v
}

// Limit truncates the pools. Negative limits keep a pool as is.
func (p Pools) Limit(general, float int) Pools {
	if general >= 0 && general < len(p.General) {
		p.General = p.General[:general]
	}

	if float >= 0 && float < len(p.Float) {
		p.Float = p.Float[:float]
	}

	return p
}

func (a Assignment) Spilled() (n int) {
	for _, l := range a {
		if l.Kind == Spill {
			n++
		}
	}

	return n
}

func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case InReg:
		return "reg"
	case InXReg:
		return "xreg"
	case Spill:
		return "spill"
	default:
		return "kind?"
	}
}

func (l Loc) String() string {
	switch l.Kind {
	case InReg:
		return l.Reg.String()
	case InXReg:
		return l.XReg.String()
	default:
		return l.Kind.String()
	}
}

func (l Loc) TlogAppend(b []byte) []byte {
	var e tlwire.LowEncoder

	return e.AppendString(b, l.String())
}
