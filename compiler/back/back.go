package back

import (
	"context"
	"fmt"

	"tlog.app/go/errors"
	"tlog.app/go/loc"
	"tlog.app/go/tlog"

	"github.com/slowlang/exprc/compiler/asm"
	"github.com/slowlang/exprc/compiler/ir"
	"github.com/slowlang/exprc/compiler/regalloc"
)

type (
	Compiler struct{}

	// StackIndex hands out spill slots below the frame pointer.
	// It is shared by all the blocks of a function.
	StackIndex struct {
		off int
	}

	// symbols maps variable names to their storage.
	// A nested block gets its own table looking up to the enclosing one.
	symbols struct {
		up   *symbols
		vars map[string]asm.Operand
	}

	funContext struct {
		tr tlog.Span

		fn  *ir.Func
		asg regalloc.Assignment

		stack  *StackIndex
		labels int

		code []asm.Instr
	}
)

func New() *Compiler {
	return &Compiler{}
}

// CompileFunc translates fn with the given storage assignment.
// Invariant violations panic with *ir.InvariantError.
func (c *Compiler) CompileFunc(ctx context.Context, fn *ir.Func, asg regalloc.Assignment) (code []asm.Instr, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "back: compile func", "name", fn.Name, "params", len(fn.Params))
	defer tr.Finish("err", &err)

	if fn.Name == "" {
		return nil, errors.New("function without a name")
	}

	f := &funContext{
		tr:    tr,
		fn:    fn,
		asg:   asg,
		stack: &StackIndex{},
	}

	params := f.params()

	f.block(fn.Body, params, ResultReg(fn.Result()))

	body := f.code
	saved := f.calleeSaved()
	frame := f.stack.Frame()

	code = append(code,
		asm.Text{},
		asm.Global{Name: fn.Name},
		asm.Label{Name: fn.Name},
		asm.Push{Src: asm.RBP},
		asm.Mov{Dst: asm.RBP, Src: asm.RSP},
	)

	if frame != 0 {
		code = append(code, asm.Sub{Dst: asm.RSP, Src: asm.Imm(frame)})
	}

	for _, r := range saved {
		code = append(code, asm.Push{Src: r})
	}

	code = append(code, body...)

	for i := len(saved) - 1; i >= 0; i-- {
		code = append(code, asm.Pop{Dst: saved[i]})
	}

	code = append(code,
		asm.Mov{Dst: asm.RSP, Src: asm.RBP},
		asm.Pop{Dst: asm.RBP},
		asm.Ret{},
	)

	tr.Printw("compiled", "instrs", len(code), "frame", frame, "saved", len(saved), "labels", f.labels)

	if tr.If("dump_asm") {
		tr.Printw("asm", "text", asm.Append(nil, code))
	}

	return code, nil
}

// params binds the incoming arguments.
// The caller leaves them at [rbp + 16 + 8*i]; register assigned ones are loaded,
// the rest are used in place.
func (f *funContext) params() *symbols {
	s := newSymbols(nil)

	for i, p := range f.fn.Params {
		in := asm.Slot(2*ir.WordSize + i*ir.WordSize)

		var dst asm.Operand = in

		switch l := f.asg[p.Name]; l.Kind {
		case regalloc.InReg:
			dst = l.Reg
		case regalloc.InXReg:
			dst = l.XReg
		case regalloc.Spill, regalloc.None:
		default:
			panic(l)
		}

		f.move(dst, in)

		s.vars[p.Name] = dst
	}

	return s
}

// block compiles b delivering its last statement value to dst.
func (f *funContext) block(b *ir.Block, up *symbols, dst asm.Operand) {
	if b == nil {
		return
	}

	s := newSymbols(up)

	for i, x := range b.Code {
		var d asm.Operand

		if i == len(b.Code)-1 {
			d = dst
		}

		f.stmt(x, s, d)
	}
}

func (f *funContext) stmt(x ir.Expr, s *symbols, dst asm.Operand) {
	switch x := x.(type) {
	case ir.Direct:
		f.move(dst, s.operand(x))
	case ir.Let:
		l := f.location(x.Name)

		if l == nil {
			f.stmt(x.Init, s, dst)

			return
		}

		f.stmt(x.Init, s, l)

		s.vars[x.Name] = l

		f.move(dst, l)
	case ir.Unary:
		if dst == nil {
			return
		}

		f.unary(x, s, dst)
	case ir.Binary:
		if dst == nil {
			return
		}

		if x.Of == ir.Float {
			f.fbinary(x, s, dst)
		} else {
			f.binary(x, s, dst)
		}
	case ir.If:
		if dst == nil {
			return
		}

		f.ifelse(x, s, dst)
	default:
		ir.Invariant("codegen: unexpected expression %T", x)
	}
}

// location picks the storage of a new binding, nil if it needs none.
func (f *funContext) location(name string) asm.Operand {
	l, ok := f.asg[name]
	if !ok {
		ir.Invariant("no location assigned to %q", name)
	}

	switch l.Kind {
	case regalloc.None:
		return nil
	case regalloc.InReg:
		return l.Reg
	case regalloc.InXReg:
		return l.XReg
	case regalloc.Spill:
		off := f.stack.Next()

		f.tr.V("spill").Printw("spill slot", "var", name, "off", off)

		return asm.Slot(off)
	default:
		panic(l)
	}
}

func (f *funContext) ifelse(x ir.If, s *symbols, dst asm.Operand) {
	n := f.labels
	f.labels++

	elseL := fmt.Sprintf(".L%s_else%d", f.fn.Name, n)
	endL := fmt.Sprintf(".L%s_end%d", f.fn.Name, n)

	c := s.operand(x.Cond)

	if asm.IsImm(c) {
		f.emit(asm.Mov{Dst: asm.R11, Src: c})
		c = asm.R11
	}

	f.emit(asm.Cmp{L: c, R: asm.Imm(0)})
	f.emit(asm.Jcc{Cond: asm.E, Label: elseL})

	f.block(x.Then, s, dst)

	f.emit(asm.Jmp{Label: endL})
	f.emit(asm.Label{Name: elseL})

	f.block(x.Else, s, dst)

	f.emit(asm.Label{Name: endL})
}

// calleeSaved lists the callee saved registers the assignment uses.
func (f *funContext) calleeSaved() (r []asm.Reg) {
	used := map[asm.Reg]bool{}

	for _, l := range f.asg {
		if l.Kind == regalloc.InReg {
			used[l.Reg] = true
		}
	}

	for _, reg := range asm.CalleeSaved {
		if used[reg] {
			r = append(r, reg)
		}
	}

	return r
}

func (f *funContext) emit(x asm.Instr) {
	f.code = append(f.code, x)

	if f.tr.If("emit") {
		f.tr.Printw("emit", "instr", string(asm.AppendInstr(nil, x)), "from", loc.Caller(1))
	}
}

// Next reserves the next slot and returns its offset.
func (s *StackIndex) Next() int {
	s.off -= ir.WordSize

	return s.off
}

// Frame is the stack frame size covering all the reserved slots, 16 byte aligned.
func (s *StackIndex) Frame() int {
	return (-s.off + 15) &^ 15
}

func newSymbols(up *symbols) *symbols {
	return &symbols{
		up:   up,
		vars: map[string]asm.Operand{},
	}
}

func (s *symbols) lookup(name string) asm.Operand {
	for t := s; t != nil; t = t.up {
		if x, ok := t.vars[name]; ok {
			return x
		}
	}

	ir.Invariant("variable %q used before its definition", name)

	return nil
}

// operand resolves a direct to a location or an immediate.
func (s *symbols) operand(x ir.Direct) asm.Operand {
	if x.IsVar() {
		return s.lookup(x.Var)
	}

	if x.Of == ir.Float {
		return asm.FImm(x.Lit.Float)
	}

	return asm.Imm(x.Lit.Int)
}
