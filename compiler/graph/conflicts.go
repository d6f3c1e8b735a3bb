package graph

import (
	"context"

	"tlog.app/go/tlog"

	"github.com/slowlang/exprc/compiler/ir"
	"github.com/slowlang/exprc/compiler/live"
)

// Conflicts builds the general purpose and the float interference graphs of b.
// Seed variables are live at the end of b and never killed,
// function parameters are passed this way.
func Conflicts(ctx context.Context, vars *ir.Vars, b *ir.Block, seed ...ir.VarID) (general, float *Graph, freq live.Freq) {
	tr := tlog.SpanFromContext(ctx)

	general = New()
	float = New()

	pick := func(v ir.VarID) *Graph {
		if vars.Type(v) == ir.Float {
			return float
		}

		return general
	}

	a := live.New(vars)

	for _, v := range seed {
		a.Live.Set(v)
	}

	a.OnPoint = func(x ir.Expr, l *live.Set) {
		if let, ok := x.(ir.Let); ok {
			v := vars.ID(let.Name)
			pick(v).AddNode(v)
		}

		ids := l.Keys()

		for i, v := range ids {
			g := pick(v)
			g.AddNode(v)

			for _, u := range ids[i+1:] {
				if pick(u) == g {
					g.AddEdge(v, u)
				}
			}
		}

		if tr.If("dump_live") {
			tr.Printw("live before", "expr", x, "live", vars.Names(ids))
		}
	}

	a.Block(b)

	for _, v := range seed {
		pick(v).AddNode(v)

		if _, ok := a.Freq[v]; !ok {
			a.Freq[v] = 0
		}
	}

	if tr.If("dump_graph") {
		dump(tr, vars, "general", general)
		dump(tr, vars, "float", float)
	}

	return general, float, a.Freq
}

func dump(tr tlog.Span, vars *ir.Vars, name string, g *Graph) {
	for _, v := range g.Nodes() {
		tr.Printw("graph node", "graph", name, "var", vars.Name(v), "degree", g.Degree(v), "adj", vars.Names(g.Neighbors(v)))
	}
}
