package back

import (
	"math"

	"github.com/slowlang/exprc/compiler/asm"
	"github.com/slowlang/exprc/compiler/ir"
)

var (
	condOf = map[ir.Op]asm.Cond{
		ir.Less:   asm.L,
		ir.LessEq: asm.LE,
		ir.Eq:     asm.E,
		ir.NotEq:  asm.NE,
	}

	predOf = map[ir.Op]asm.Pred{
		ir.Eq:        asm.PredEq,
		ir.Less:      asm.PredLt,
		ir.LessEq:    asm.PredLe,
		ir.NotEq:     asm.PredNeq,
		ir.GreaterEq: asm.PredGe,
		ir.Greater:   asm.PredGt,
	}

	fopOf = map[ir.Op]asm.FOp{
		ir.Plus:  asm.Addsd,
		ir.Minus: asm.Subsd,
		ir.Times: asm.Mulsd,
		ir.Div:   asm.Divsd,
	}
)

func (f *funContext) binary(x ir.Binary, s *symbols, dst asm.Operand) {
	if x.L.Of != x.R.Of {
		ir.Invariant("mixed operand types: %v %v %v", x.L.Of, x.Op, x.R.Of)
	}

	l := s.operand(x.L)
	r := s.operand(x.R)

	switch x.Op {
	case ir.Plus, ir.Minus:
		f.emit(asm.Mov{Dst: Scratch, Src: l})

		if x.Op == ir.Plus {
			f.emit(asm.Add{Dst: Scratch, Src: f.imm32(r)})
		} else {
			f.emit(asm.Sub{Dst: Scratch, Src: f.imm32(r)})
		}

		f.move(dst, Scratch)
	case ir.Times:
		f.times(l, r, dst)
	case ir.Div, ir.Mod:
		f.emit(asm.Mov{Dst: asm.RAX, Src: l})
		f.emit(asm.Cqo{})

		if asm.IsImm(r) {
			f.emit(asm.Mov{Dst: Scratch, Src: r})
			r = Scratch
		}

		f.emit(asm.IDiv{Src: r})

		if x.Op == ir.Div {
			f.move(dst, asm.RAX)
		} else {
			f.move(dst, asm.RDX)
		}
	case ir.Less, ir.LessEq, ir.Greater, ir.GreaterEq, ir.Eq, ir.NotEq:
		f.compare(x.Op, l, r, dst)
	default:
		ir.Invariant("unsupported binary operator %q on %v", x.Op, x.L.Of)
	}
}

func (f *funContext) times(l, r, dst asm.Operand) {
	if asm.IsImm(l) && !asm.IsImm(r) {
		l, r = r, l
	}

	if d, ok := dst.(asm.Reg); ok && !asm.IsImm(l) && asm.IsImm(r) && asm.FitsImm32(int64(r.(asm.Imm))) {
		f.emit(asm.IMul3{Dst: d, Src: l, Imm: r.(asm.Imm)})

		return
	}

	f.emit(asm.Mov{Dst: Scratch, Src: l})
	f.emit(asm.IMul{Dst: Scratch, Src: f.imm32(r)})
	f.move(dst, Scratch)
}

func (f *funContext) compare(op ir.Op, l, r, dst asm.Operand) {
	switch op {
	case ir.Greater:
		op, l, r = ir.Less, r, l
	case ir.GreaterEq:
		op, l, r = ir.LessEq, r, l
	case ir.Eq, ir.NotEq:
		if asm.IsImm(l) && !asm.IsImm(r) {
			l, r = r, l
		}
	}

	if asm.IsImm(l) || asm.IsMem(l) && asm.IsMem(r) {
		f.emit(asm.Mov{Dst: Scratch, Src: l})
		l = Scratch
	}

	f.emit(asm.Cmp{L: l, R: f.imm32(r)})
	f.setcc(condOf[op], dst)
}

// setcc materializes the flags as 0 or 1 in dst.
// mov leaves the flags intact, so dst may be one of the compared operands.
func (f *funContext) setcc(c asm.Cond, dst asm.Operand) {
	f.emit(asm.Mov{Dst: dst, Src: asm.Imm(0)})
	f.emit(asm.Set{Cond: c, Dst: dst})
}

func (f *funContext) fbinary(x ir.Binary, s *symbols, dst asm.Operand) {
	if x.L.Of != x.R.Of {
		ir.Invariant("mixed operand types: %v %v %v", x.L.Of, x.Op, x.R.Of)
	}

	l := floatOperand(s.operand(x.L), "first")
	r := floatOperand(s.operand(x.R), "second")

	if op, ok := fopOf[x.Op]; ok {
		f.emit(asm.Movsd{Dst: FScratch, Src: l})
		f.emit(asm.FArith{Op: op, Dst: FScratch, Src: r})
		f.move(dst, FScratch)

		return
	}

	pred, ok := predOf[x.Op]
	if !ok {
		ir.Invariant("unsupported binary operator %q on %v", x.Op, x.L.Of)
	}

	f.emit(asm.Movsd{Dst: FCmpScratch, Src: l})

	if asm.IsMem(r) {
		f.emit(asm.Movsd{Dst: FScratch, Src: r})
		r = FScratch
	}

	f.emit(asm.Cmpsd{Dst: FCmpScratch, Src: r, Pred: pred})
	f.move(dst, FCmpScratch)
	f.emit(asm.And{Dst: dst, Src: asm.Imm(1)})
}

func (f *funContext) unary(x ir.Unary, s *symbols, dst asm.Operand) {
	v := s.operand(x.X)

	switch {
	case x.Op == ir.Not && x.Of != ir.Float:
		if asm.IsImm(v) {
			f.emit(asm.Mov{Dst: Scratch, Src: v})
			v = Scratch
		}

		f.emit(asm.Cmp{L: v, R: asm.Imm(0)})
		f.setcc(asm.E, dst)
	case x.Op == ir.Neg && x.Of == ir.Float:
		v = floatOperand(v, "negated")

		f.move(FScratch, asm.FImm(-1))
		f.emit(asm.FArith{Op: asm.Mulsd, Dst: FScratch, Src: v})
		f.move(dst, FScratch)
	case x.Op == ir.Neg:
		f.move(dst, v)
		f.emit(asm.Neg{Dst: dst})
	default:
		ir.Invariant("unsupported unary operator %q on %v", x.Op, x.Of)
	}
}

// move copies src to dst whatever storage classes they are in.
// Memory to memory and wide immediates to memory go through Backup.
func (f *funContext) move(dst, src asm.Operand) {
	if dst == nil || dst == src {
		return
	}

	switch s := src.(type) {
	case asm.FImm:
		f.emit(asm.Mov{Dst: Backup, Src: asm.Imm(math.Float64bits(float64(s)))})
		f.move(dst, Backup)

		return
	case asm.Imm:
		switch dst.(type) {
		case asm.Reg:
		case asm.Mem:
			if !asm.FitsImm32(int64(s)) {
				f.emit(asm.Mov{Dst: Backup, Src: s})
				f.emit(asm.Mov{Dst: dst, Src: Backup})

				return
			}
		default:
			ir.Invariant("immediate %d moved to %T", int64(s), dst)
		}
	}

	_, dx := dst.(asm.XReg)
	_, sx := src.(asm.XReg)

	switch {
	case asm.IsMem(dst) && asm.IsMem(src):
		f.emit(asm.Mov{Dst: Backup, Src: src})
		f.emit(asm.Mov{Dst: dst, Src: Backup})
	case dx && sx, dx && asm.IsMem(src), sx && asm.IsMem(dst):
		f.emit(asm.Movsd{Dst: dst, Src: src})
	case dx || sx:
		f.emit(asm.Movq{Dst: dst, Src: src})
	default:
		f.emit(asm.Mov{Dst: dst, Src: src})
	}
}

// imm32 legalizes a source operand of a two operand instruction.
func (f *funContext) imm32(x asm.Operand) asm.Operand {
	if v, ok := x.(asm.Imm); ok && !asm.FitsImm32(int64(v)) {
		f.emit(asm.Mov{Dst: Backup, Src: v})
		return Backup
	}

	return x
}

func floatOperand(x asm.Operand, which string) asm.Operand {
	switch x.(type) {
	case asm.XReg, asm.Mem:
		return x
	}

	ir.Invariant("%s float operand must be in an xmm register or memory, got %T", which, x)

	return nil
}
