package asm

import (
	"math"
	"strconv"
)

type (
	// Operand is one of Reg, XReg, Imm, FImm, Mem.
	Operand interface {
		operand()
	}

	Reg  int
	XReg int
	Imm  int64
	FImm float64

	// Mem is a 64-bit memory operand at Base + Off.
	Mem struct {
		Base Reg
		Off  int32
	}

	Cond string
	FOp  string

	// Pred is a cmpsd predicate code.
	Pred int

	// Instr is a closed set: every instruction type is declared in this file.
	Instr interface {
		instr()
	}

	Text   struct{}
	Global struct{ Name string }
	Label  struct{ Name string }

	// Mov moves between general registers, memory and immediates.
	Mov struct{ Dst, Src Operand }

	// Movsd moves a double between xmm registers and memory.
	Movsd struct{ Dst, Src Operand }

	// Movq copies 64 bits between a general register or memory and an xmm register.
	Movq struct{ Dst, Src Operand }

	Add struct{ Dst, Src Operand }
	Sub struct{ Dst, Src Operand }
	And struct{ Dst, Src Operand }

	IMul struct {
		Dst Reg
		Src Operand
	}

	IMul3 struct {
		Dst Reg
		Src Operand
		Imm Imm
	}

	// Cqo sign-extends rax into rdx.
	Cqo struct{}

	// IDiv divides rdx:rax by Src, quotient in rax, remainder in rdx.
	IDiv struct{ Src Operand }

	Neg struct{ Dst Operand }

	Cmp struct{ L, R Operand }

	// Set writes the low byte of Dst from the flags.
	Set struct {
		Cond Cond
		Dst  Operand
	}

	FArith struct {
		Op  FOp
		Dst XReg
		Src Operand
	}

	Cmpsd struct {
		Dst  XReg
		Src  Operand
		Pred Pred
	}

	Jmp struct{ Label string }

	Jcc struct {
		Cond  Cond
		Label string
	}

	Push struct{ Src Reg }
	Pop  struct{ Dst Reg }
	Ret  struct{}
)

const (
	RAX Reg = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
)

const (
	XMM0 XReg = iota
	XMM1
	XMM2
	XMM3
	XMM4
	XMM5
	XMM6
	XMM7
	XMM8
	XMM9
	XMM10
	XMM11
	XMM12
	XMM13
	XMM14
	XMM15
)

const (
	E  Cond = "e"
	NE Cond = "ne"
	L  Cond = "l"
	LE Cond = "le"
	G  Cond = "g"
	GE Cond = "ge"
)

const (
	Addsd FOp = "addsd"
	Subsd FOp = "subsd"
	Mulsd FOp = "mulsd"
	Divsd FOp = "divsd"
)

const (
	PredEq  Pred = 0
	PredLt  Pred = 1
	PredLe  Pred = 2
	PredNeq Pred = 4
	PredGe  Pred = 5 // not less than
	PredGt  Pred = 6 // not less or equal
)

var (
	regNames = [...]string{"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi",
		"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15"}
	byteNames = [...]string{"al", "cl", "dl", "bl", "spl", "bpl", "sil", "dil",
		"r8b", "r9b", "r10b", "r11b", "r12b", "r13b", "r14b", "r15b"}
)

// CalleeSaved registers must be preserved by a function that writes them.
var CalleeSaved = []Reg{RBX, R12, R13, R14, R15}

func (Reg) operand()  {}
func (XReg) operand() {}
func (Imm) operand()  {}
func (FImm) operand() {}
func (Mem) operand()  {}

func (Text) instr()   {}
func (Global) instr() {}
func (Label) instr()  {}
func (Mov) instr()    {}
func (Movsd) instr()  {}
func (Movq) instr()   {}
func (Add) instr()    {}
func (Sub) instr()    {}
func (And) instr()    {}
func (IMul) instr()   {}
func (IMul3) instr()  {}
func (Cqo) instr()    {}
func (IDiv) instr()   {}
func (Neg) instr()    {}
func (Cmp) instr()    {}
func (Set) instr()    {}
func (FArith) instr() {}
func (Cmpsd) instr()  {}
func (Jmp) instr()    {}
func (Jcc) instr()    {}
func (Push) instr()   {}
func (Pop) instr()    {}
func (Ret) instr()    {}

func Slot(off int) Mem {
	return Mem{Base: RBP, Off: int32(off)}
}

func IsMem(x Operand) bool {
	_, ok := x.(Mem)
	return ok
}

func IsImm(x Operand) bool {
	switch x.(type) {
	case Imm, FImm:
		return true
	}

	return false
}

// FitsImm32 reports whether v can be encoded as a sign-extended 32-bit immediate.
func FitsImm32(v int64) bool {
	return v >= math.MinInt32 && v <= math.MaxInt32
}

// Swap returns the condition holding after the compare operands are exchanged.
func (c Cond) Swap() Cond {
	switch c {
	case L:
		return G
	case LE:
		return GE
	case G:
		return L
	case GE:
		return LE
	}

	return c
}

func (r Reg) String() string {
	if r >= 0 && int(r) < len(regNames) {
		return regNames[r]
	}

	return "reg(" + strconv.Itoa(int(r)) + ")"
}

// Byte is the name of the low 8 bits of the register.
func (r Reg) Byte() string {
	if r >= 0 && int(r) < len(byteNames) {
		return byteNames[r]
	}

	return "reg8(" + strconv.Itoa(int(r)) + ")"
}

func (r XReg) String() string {
	return "xmm" + strconv.Itoa(int(r))
}
