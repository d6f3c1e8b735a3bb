package graph

import (
	"github.com/slowlang/exprc/compiler/ir"
	"github.com/slowlang/exprc/compiler/set"
)

type (
	// Graph is an undirected interference graph over the variables of one function.
	// Nodes live in an arena indexed by ir.VarID; removal flips a flag
	// and snapshots the neighbours the node had at that moment.
	Graph struct {
		nodes []node
		n     int // present nodes
	}

	node struct {
		present bool
		removed bool

		adj     set.Bits[ir.VarID]
		removal []ir.VarID
	}
)

func New() *Graph {
	return &Graph{}
}

// AddNode is idempotent. Re-adding a removed node breaks the graph and panics.
func (g *Graph) AddNode(v ir.VarID) {
	g.nodes = sliceGrow(g.nodes, int(v))

	n := &g.nodes[v]

	if n.removed {
		ir.Invariant("node %d added after removal", v)
	}

	if n.present {
		return
	}

	n.present = true
	g.n++
}

func (g *Graph) AddEdge(a, b ir.VarID) {
	if a == b {
		return
	}

	g.AddNode(a)
	g.AddNode(b)

	g.nodes[a].adj.Set(b)
	g.nodes[b].adj.Set(a)
}

func (g *Graph) Has(v ir.VarID) bool {
	return int(v) < len(g.nodes) && g.nodes[v].present
}

func (g *Graph) HasEdge(a, b ir.VarID) bool {
	return g.Has(a) && g.nodes[a].adj.IsSet(b)
}

func (g *Graph) Degree(v ir.VarID) int {
	if !g.Has(v) {
		return 0
	}

	return g.nodes[v].adj.Size()
}

func (g *Graph) Neighbors(v ir.VarID) []ir.VarID {
	if !g.Has(v) {
		return nil
	}

	return g.nodes[v].adj.Keys()
}

// Nodes returns present nodes in ascending id order.
func (g *Graph) Nodes() []ir.VarID {
	r := make([]ir.VarID, 0, g.n)

	for i := range g.nodes {
		if g.nodes[i].present {
			r = append(r, ir.VarID(i))
		}
	}

	return r
}

func (g *Graph) Len() int { return g.n }

// Remove takes v with its edges out of the graph and records its neighbours.
func (g *Graph) Remove(v ir.VarID) {
	if !g.Has(v) {
		ir.Invariant("remove of absent node %d", v)
	}

	n := &g.nodes[v]

	n.removal = n.adj.Keys()

	for _, u := range n.removal {
		g.nodes[u].adj.Clear(v)
	}

	n.adj.Reset()
	n.present = false
	n.removed = true
	g.n--
}

func (g *Graph) Removed(v ir.VarID) bool {
	return int(v) < len(g.nodes) && g.nodes[v].removed
}

// RemovedNeighbors returns the neighbours v had when it was removed.
func (g *Graph) RemovedNeighbors(v ir.VarID) []ir.VarID {
	if !g.Removed(v) {
		ir.Invariant("neighbours of node %d requested but it was never removed", v)
	}

	return g.nodes[v].removal
}

// MaxDegree is the largest degree among present nodes.
func (g *Graph) MaxDegree() (m int) {
	for _, v := range g.Nodes() {
		if d := g.Degree(v); d > m {
			m = d
		}
	}

	return m
}

// Copy returns an independent copy, removal history included.
func (g *Graph) Copy() *Graph {
	c := &Graph{
		nodes: make([]node, len(g.nodes)),
		n:     g.n,
	}

	for i, n := range g.nodes {
		n.adj = n.adj.Copy()
		n.removal = append([]ir.VarID(nil), n.removal...)

		c.nodes[i] = n
	}

	return c
}

func sliceGrow[S ~[]E, E any](s S, i int) S {
	var z E

	for i >= len(s) {
		s = append(s, z)
	}

	return s
}
