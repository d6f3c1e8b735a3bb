package asm

import (
	"math"
	"strconv"

	"github.com/nikandfor/hacked/hfmt"
)

// Append appends code in GNU as Intel syntax.
func Append(b []byte, code []Instr) []byte {
	for _, x := range code {
		b = AppendInstr(b, x)
		b = append(b, '\n')
	}

	return b
}

func AppendInstr(b []byte, x Instr) []byte {
	switch x := x.(type) {
	case Text:
		return append(b, ".text"...)
	case Global:
		return hfmt.Appendf(b, ".globl %s", x.Name)
	case Label:
		return hfmt.Appendf(b, "%s:", x.Name)
	case Mov:
		return op2(b, "mov", x.Dst, x.Src)
	case Movsd:
		return op2(b, "movsd", x.Dst, x.Src)
	case Movq:
		return op2(b, "movq", x.Dst, x.Src)
	case Add:
		return op2(b, "add", x.Dst, x.Src)
	case Sub:
		return op2(b, "sub", x.Dst, x.Src)
	case And:
		return op2(b, "and", x.Dst, x.Src)
	case IMul:
		return op2(b, "imul", x.Dst, x.Src)
	case IMul3:
		b = op2(b, "imul", x.Dst, x.Src)
		return hfmt.Appendf(b, ", %d", int64(x.Imm))
	case Cqo:
		return append(b, "\tcqo"...)
	case IDiv:
		return op1(b, "idiv", x.Src)
	case Neg:
		return op1(b, "neg", x.Dst)
	case Cmp:
		return op2(b, "cmp", x.L, x.R)
	case Set:
		b = hfmt.Appendf(b, "\tset%s\t", x.Cond)
		return appendByte(b, x.Dst)
	case FArith:
		return op2(b, string(x.Op), x.Dst, x.Src)
	case Cmpsd:
		b = op2(b, "cmpsd", x.Dst, x.Src)
		return hfmt.Appendf(b, ", %d", int(x.Pred))
	case Jmp:
		return hfmt.Appendf(b, "\tjmp\t%s", x.Label)
	case Jcc:
		return hfmt.Appendf(b, "\tj%s\t%s", x.Cond, x.Label)
	case Push:
		return op1(b, "push", x.Src)
	case Pop:
		return op1(b, "pop", x.Dst)
	case Ret:
		return append(b, "\tret"...)
	default:
		panic(x)
	}
}

func op1(b []byte, name string, x Operand) []byte {
	b = hfmt.Appendf(b, "\t%s\t", name)
	return AppendOperand(b, x)
}

func op2(b []byte, name string, dst, src Operand) []byte {
	b = hfmt.Appendf(b, "\t%s\t", name)
	b = AppendOperand(b, dst)
	b = append(b, ", "...)
	return AppendOperand(b, src)
}

func AppendOperand(b []byte, x Operand) []byte {
	switch x := x.(type) {
	case Reg:
		return append(b, x.String()...)
	case XReg:
		return append(b, x.String()...)
	case Imm:
		return strconv.AppendInt(b, int64(x), 10)
	case FImm:
		// only reachable when printing unlowered code for debugging
		return hfmt.Appendf(b, "0x%x", math.Float64bits(float64(x)))
	case Mem:
		b = append(b, "qword ptr "...)
		return appendAddr(b, x)
	default:
		panic(x)
	}
}

func appendByte(b []byte, x Operand) []byte {
	switch x := x.(type) {
	case Reg:
		return append(b, x.Byte()...)
	case Mem:
		b = append(b, "byte ptr "...)
		return appendAddr(b, x)
	default:
		panic(x)
	}
}

func appendAddr(b []byte, m Mem) []byte {
	switch {
	case m.Off > 0:
		return hfmt.Appendf(b, "[%v + %d]", m.Base, m.Off)
	case m.Off < 0:
		return hfmt.Appendf(b, "[%v - %d]", m.Base, -int64(m.Off))
	default:
		return hfmt.Appendf(b, "[%v]", m.Base)
	}
}

func (m Mem) String() string {
	return string(appendAddr(nil, m))
}
