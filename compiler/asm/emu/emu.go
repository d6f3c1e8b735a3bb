// Package emu interprets the asm instruction set.
//
// It models only what the code generator emits: 16 general registers,
// 16 xmm registers holding one double each, a stack of 64-bit words,
// and the flags left by the last cmp. Operand combinations the hardware
// can't encode are reported as errors, so running code also checks it is legal.
package emu

import (
	"math"

	"tlog.app/go/errors"

	"github.com/slowlang/exprc/compiler/asm"
)

type (
	Machine struct {
		R [16]int64
		X [16]uint64 // raw bits

		Mem map[int64]uint64

		// MaxSteps bounds execution; 0 means a default limit.
		MaxSteps int

		flags flags

		code   []asm.Instr
		labels map[string]int
	}

	flags struct {
		set    bool
		eq, lt bool
	}

	Result struct {
		Int   int64
		Float float64
	}
)

const (
	stackTop = 1 << 20
	retMagic = -1
)

var ErrIllegal = errors.New("illegal instruction")

func New(code []asm.Instr) *Machine {
	m := &Machine{
		Mem:    map[int64]uint64{},
		code:   code,
		labels: map[string]int{},
	}

	for i, x := range code {
		if l, ok := x.(asm.Label); ok {
			m.labels[l.Name] = i
		}
	}

	return m
}

// Call runs function name. Args are pushed on the stack so that
// arg i is found at [rbp + 16 + 8*i] after the callee's prologue.
func (m *Machine) Call(name string, args ...uint64) (res Result, err error) {
	pc, ok := m.labels[name]
	if !ok {
		return res, errors.New("no function %v", name)
	}

	m.R[asm.RSP] = stackTop

	for i := len(args) - 1; i >= 0; i-- {
		m.push(args[i])
	}

	m.push(^uint64(0))

	err = m.run(pc)
	if err != nil {
		return res, errors.Wrap(err, "call %v", name)
	}

	res.Int = m.R[asm.RAX]
	res.Float = math.Float64frombits(m.X[asm.XMM0])

	return res, nil
}

// Exec runs code from the start until it falls off the end.
// Used for straight-line fragments without a frame.
func (m *Machine) Exec() error {
	return m.run(0)
}

func (m *Machine) run(pc int) (err error) {
	limit := m.MaxSteps
	if limit == 0 {
		limit = 1 << 20
	}

	for step := 0; pc < len(m.code); step++ {
		if step == limit {
			return errors.New("step limit reached")
		}

		x := m.code[pc]
		pc++

		switch x := x.(type) {
		case asm.Ret:
			ret := int64(m.pop())
			if ret == retMagic {
				return nil
			}

			pc = int(ret)

			continue
		case asm.Jmp:
			pc, err = m.label(x.Label)
		case asm.Jcc:
			var ok bool

			ok, err = m.cond(x.Cond)
			if err == nil && ok {
				pc, err = m.label(x.Label)
			}
		default:
			err = m.exec(x)
		}

		if err != nil {
			return errors.Wrap(err, "pc %d: %T", pc-1, x)
		}
	}

	return nil
}

func (m *Machine) exec(x asm.Instr) (err error) {
	switch x := x.(type) {
	case asm.Text, asm.Global, asm.Label:
	case asm.Mov:
		if err = m.checkDstSrc(x.Dst, x.Src, true); err != nil {
			return err
		}

		v, err := m.read(x.Src)
		if err != nil {
			return err
		}

		return m.write(x.Dst, v)
	case asm.Add, asm.Sub, asm.And:
		return m.arith(x)
	case asm.IMul:
		if err = m.checkDstSrc(x.Dst, x.Src, false); err != nil {
			return err
		}

		v, err := m.read(x.Src)
		if err != nil {
			return err
		}

		m.R[x.Dst] *= int64(v)
	case asm.IMul3:
		if asm.IsImm(x.Src) {
			return errors.Wrap(ErrIllegal, "imul source is immediate")
		}

		if !asm.FitsImm32(int64(x.Imm)) {
			return errors.Wrap(ErrIllegal, "64-bit immediate %d", int64(x.Imm))
		}

		v, err := m.read(x.Src)
		if err != nil {
			return err
		}

		m.R[x.Dst] = int64(v) * int64(x.Imm)
	case asm.Cqo:
		if m.R[asm.RAX] < 0 {
			m.R[asm.RDX] = -1
		} else {
			m.R[asm.RDX] = 0
		}
	case asm.IDiv:
		if asm.IsImm(x.Src) {
			return errors.Wrap(ErrIllegal, "idiv by immediate")
		}

		v, err := m.read(x.Src)
		if err != nil {
			return err
		}

		d := int64(v)
		if d == 0 {
			return errors.New("division by zero")
		}

		if sign := m.R[asm.RAX] >> 63; m.R[asm.RDX] != sign {
			return errors.New("rdx is not the sign extension of rax")
		}

		m.R[asm.RAX], m.R[asm.RDX] = m.R[asm.RAX]/d, m.R[asm.RAX]%d
	case asm.Neg:
		v, err := m.read(x.Dst)
		if err != nil {
			return err
		}

		return m.write(x.Dst, uint64(-int64(v)))
	case asm.Cmp:
		return m.cmp(x)
	case asm.Set:
		ok, err := m.cond(x.Cond)
		if err != nil {
			return err
		}

		v, err := m.read(x.Dst)
		if err != nil {
			return err
		}

		v &^= 0xff
		if ok {
			v |= 1
		}

		return m.write(x.Dst, v)
	case asm.Movsd:
		_, dx := x.Dst.(asm.XReg)
		_, sx := x.Src.(asm.XReg)

		if !dx && !sx {
			return errors.Wrap(ErrIllegal, "movsd without xmm operand")
		}

		return m.move(x.Dst, x.Src)
	case asm.Movq:
		_, dx := x.Dst.(asm.XReg)
		_, sx := x.Src.(asm.XReg)

		if dx == sx {
			return errors.Wrap(ErrIllegal, "movq needs exactly one xmm operand")
		}

		return m.move(x.Dst, x.Src)
	case asm.FArith:
		return m.farith(x)
	case asm.Cmpsd:
		return m.cmpsd(x)
	case asm.Push:
		m.push(uint64(m.R[x.Src]))
	case asm.Pop:
		m.R[x.Dst] = int64(m.pop())
	default:
		return errors.Wrap(ErrIllegal, "unsupported %T", x)
	}

	return nil
}

func (m *Machine) arith(x asm.Instr) error {
	var dst, src asm.Operand
	var f func(a, b int64) int64

	switch x := x.(type) {
	case asm.Add:
		dst, src, f = x.Dst, x.Src, func(a, b int64) int64 { return a + b }
	case asm.Sub:
		dst, src, f = x.Dst, x.Src, func(a, b int64) int64 { return a - b }
	case asm.And:
		dst, src, f = x.Dst, x.Src, func(a, b int64) int64 { return a & b }
	}

	if err := m.checkDstSrc(dst, src, false); err != nil {
		return err
	}

	a, err := m.read(dst)
	if err != nil {
		return err
	}

	b, err := m.read(src)
	if err != nil {
		return err
	}

	return m.write(dst, uint64(f(int64(a), int64(b))))
}

func (m *Machine) cmp(x asm.Cmp) error {
	if asm.IsImm(x.L) {
		return errors.Wrap(ErrIllegal, "cmp with immediate first operand")
	}

	if err := m.checkDstSrc(x.L, x.R, false); err != nil {
		return err
	}

	a, err := m.read(x.L)
	if err != nil {
		return err
	}

	b, err := m.read(x.R)
	if err != nil {
		return err
	}

	m.flags = flags{set: true, eq: a == b, lt: int64(a) < int64(b)}

	return nil
}

func (m *Machine) cond(c asm.Cond) (bool, error) {
	f := m.flags

	if !f.set {
		return false, errors.New("flags used before cmp")
	}

	switch c {
	case asm.E:
		return f.eq, nil
	case asm.NE:
		return !f.eq, nil
	case asm.L:
		return f.lt, nil
	case asm.LE:
		return f.lt || f.eq, nil
	case asm.G:
		return !f.lt && !f.eq, nil
	case asm.GE:
		return !f.lt, nil
	default:
		return false, errors.New("unknown condition %q", c)
	}
}

func (m *Machine) farith(x asm.FArith) error {
	if !m.xmmOrMem(x.Src) {
		return errors.Wrap(ErrIllegal, "%v source %T", x.Op, x.Src)
	}

	b, err := m.read(x.Src)
	if err != nil {
		return err
	}

	a := math.Float64frombits(m.X[x.Dst])
	bf := math.Float64frombits(b)

	var r float64

	switch x.Op {
	case asm.Addsd:
		r = a + bf
	case asm.Subsd:
		r = a - bf
	case asm.Mulsd:
		r = a * bf
	case asm.Divsd:
		r = a / bf
	default:
		return errors.New("unknown float op %q", x.Op)
	}

	m.X[x.Dst] = math.Float64bits(r)

	return nil
}

func (m *Machine) cmpsd(x asm.Cmpsd) error {
	if !m.xmmOrMem(x.Src) {
		return errors.Wrap(ErrIllegal, "cmpsd source %T", x.Src)
	}

	bv, err := m.read(x.Src)
	if err != nil {
		return err
	}

	a := math.Float64frombits(m.X[x.Dst])
	b := math.Float64frombits(bv)

	var ok bool

	switch x.Pred {
	case asm.PredEq:
		ok = a == b
	case asm.PredLt:
		ok = a < b
	case asm.PredLe:
		ok = a <= b
	case asm.PredNeq:
		ok = !(a == b)
	case asm.PredGe:
		ok = !(a < b)
	case asm.PredGt:
		ok = !(a <= b)
	default:
		return errors.New("unknown predicate %d", x.Pred)
	}

	m.X[x.Dst] = 0
	if ok {
		m.X[x.Dst] = math.MaxUint64
	}

	return nil
}

func (m *Machine) xmmOrMem(x asm.Operand) bool {
	switch x.(type) {
	case asm.XReg, asm.Mem:
		return true
	}

	return false
}

// checkDstSrc enforces the two-operand encoding rules.
func (m *Machine) checkDstSrc(dst, src asm.Operand, isMov bool) error {
	switch dst.(type) {
	case asm.Reg, asm.Mem:
	default:
		return errors.Wrap(ErrIllegal, "destination %T", dst)
	}

	if asm.IsMem(dst) && asm.IsMem(src) {
		return errors.Wrap(ErrIllegal, "memory to memory")
	}

	switch src := src.(type) {
	case asm.Reg, asm.Mem:
	case asm.Imm:
		if asm.FitsImm32(int64(src)) {
			break
		}

		if _, ok := dst.(asm.Reg); !ok || !isMov {
			return errors.Wrap(ErrIllegal, "64-bit immediate %d", int64(src))
		}
	default:
		return errors.Wrap(ErrIllegal, "source %T", src)
	}

	return nil
}

func (m *Machine) move(dst, src asm.Operand) error {
	if asm.IsMem(dst) && asm.IsMem(src) {
		return errors.Wrap(ErrIllegal, "memory to memory")
	}

	v, err := m.read(src)
	if err != nil {
		return err
	}

	return m.write(dst, v)
}

func (m *Machine) read(x asm.Operand) (uint64, error) {
	switch x := x.(type) {
	case asm.Reg:
		return uint64(m.R[x]), nil
	case asm.XReg:
		return m.X[x], nil
	case asm.Imm:
		return uint64(x), nil
	case asm.Mem:
		addr := m.R[x.Base] + int64(x.Off)
		if addr%8 != 0 {
			return 0, errors.New("unaligned read at %#x", addr)
		}

		return m.Mem[addr], nil
	default:
		return 0, errors.Wrap(ErrIllegal, "read %T", x)
	}
}

func (m *Machine) write(x asm.Operand, v uint64) error {
	switch x := x.(type) {
	case asm.Reg:
		m.R[x] = int64(v)
	case asm.XReg:
		m.X[x] = v
	case asm.Mem:
		addr := m.R[x.Base] + int64(x.Off)
		if addr%8 != 0 {
			return errors.New("unaligned write at %#x", addr)
		}

		m.Mem[addr] = v
	default:
		return errors.Wrap(ErrIllegal, "write %T", x)
	}

	return nil
}

func (m *Machine) push(v uint64) {
	m.R[asm.RSP] -= 8
	m.Mem[m.R[asm.RSP]] = v
}

func (m *Machine) pop() uint64 {
	v := m.Mem[m.R[asm.RSP]]
	m.R[asm.RSP] += 8

	return v
}

func (m *Machine) label(name string) (int, error) {
	pc, ok := m.labels[name]
	if !ok {
		return 0, errors.New("no label %v", name)
	}

	return pc, nil
}
