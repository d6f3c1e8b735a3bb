package live

import (
	"github.com/slowlang/exprc/compiler/ir"
	"github.com/slowlang/exprc/compiler/set"
)

type (
	Set = set.Bits[ir.VarID]

	// Freq is the number of reads of each variable after its definition.
	// A defined but never read variable is present with 0.
	Freq map[ir.VarID]int

	// Analysis walks statements in reverse program order.
	// Live holds the variables live after the next statement to be stepped.
	Analysis struct {
		Vars *ir.Vars
		Live Set
		Freq Freq

		// OnPoint is called with the live-before set of every statement
		// stepped, including statements of nested blocks.
		OnPoint func(x ir.Expr, live *Set)
	}
)

func New(vars *ir.Vars) *Analysis {
	return &Analysis{
		Vars: vars,
		Live: set.MakeBits[ir.VarID](),
		Freq: Freq{},
	}
}

// Block steps all statements of b in reverse.
func (a *Analysis) Block(b *ir.Block) {
	if b == nil {
		return
	}

	for i := len(b.Code) - 1; i >= 0; i-- {
		a.Step(b.Code[i])
	}
}

// Step turns the live-after set of x into its live-before set.
func (a *Analysis) Step(x ir.Expr) {
	a.step(x)

	if a.OnPoint != nil {
		a.OnPoint(x, &a.Live)
	}
}

func (a *Analysis) step(x ir.Expr) {
	switch x := x.(type) {
	case ir.Direct:
		a.use(x)
	case ir.Let:
		a.step(x.Init)

		id := a.Vars.ID(x.Name)

		a.Live.Clear(id)

		if _, ok := a.Freq[id]; !ok {
			a.Freq[id] = 0
		}
	case ir.Unary:
		a.use(x.X)
	case ir.Binary:
		a.use(x.L)
		a.use(x.R)
	case ir.If:
		after := a.Live.Copy()

		a.Block(x.Then)
		before := a.Live

		a.Live = after.Copy()
		a.Block(x.Else)
		a.Live.Merge(before)

		a.use(x.Cond)
	default:
		ir.Invariant("liveness: unexpected expression %T", x)
	}
}

func (a *Analysis) use(x ir.Direct) {
	if !x.IsVar() {
		return
	}

	id := a.Vars.ID(x.Var)

	a.Live.Set(id)
	a.Freq[id]++
}

// Before returns the live-before set of every top level statement of b.
func Before(vars *ir.Vars, b *ir.Block) []Set {
	a := New(vars)
	r := make([]Set, len(b.Code))

	for i := len(b.Code) - 1; i >= 0; i-- {
		a.Step(b.Code[i])
		r[i] = a.Live.Copy()
	}

	return r
}
