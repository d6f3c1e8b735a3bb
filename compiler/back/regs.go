package back

import (
	"tlog.app/go/errors"

	"github.com/slowlang/exprc/compiler/asm"
	"github.com/slowlang/exprc/compiler/ir"
	"github.com/slowlang/exprc/compiler/regalloc"
)

// Registers the code generator uses for itself.
// None of them may be given to the allocator.
const (
	Scratch = asm.R11
	Backup  = asm.R10

	FCmpScratch = asm.XMM14
	FScratch    = asm.XMM15
)

var (
	// Reserved general registers: return value and dividend (rax),
	// remainder (rdx), scratch registers and the frame.
	Reserved = []asm.Reg{asm.RAX, asm.RDX, Backup, Scratch, asm.RSP, asm.RBP}

	FReserved = []asm.XReg{asm.XMM0, FCmpScratch, FScratch}
)

// ResultReg is where a function leaves its value of type tp.
func ResultReg(tp ir.Type) asm.Operand {
	if tp == ir.Float {
		return asm.XMM0
	}

	return asm.RAX
}

// DefaultPools are all the registers not reserved.
// Caller saved registers come first so small functions don't need to save anything.
func DefaultPools() regalloc.Pools {
	return regalloc.Pools{
		General: []asm.Reg{
			asm.RCX, asm.RSI, asm.RDI, asm.R8, asm.R9,
			asm.RBX, asm.R12, asm.R13, asm.R14, asm.R15,
		},
		Float: []asm.XReg{
			asm.XMM1, asm.XMM2, asm.XMM3, asm.XMM4, asm.XMM5, asm.XMM6, asm.XMM7,
			asm.XMM8, asm.XMM9, asm.XMM10, asm.XMM11, asm.XMM12, asm.XMM13,
		},
	}
}

// CheckPools rejects pools containing reserved or duplicated registers.
func CheckPools(p regalloc.Pools) error {
	seen := map[asm.Reg]bool{}

	for _, r := range p.General {
		if r < asm.RAX || r > asm.R15 {
			return errors.New("bad register %v", r)
		}

		for _, x := range Reserved {
			if r == x {
				return errors.New("%v is reserved", r)
			}
		}

		if seen[r] {
			return errors.New("%v listed twice", r)
		}

		seen[r] = true
	}

	fseen := map[asm.XReg]bool{}

	for _, r := range p.Float {
		if r < asm.XMM0 || r > asm.XMM15 {
			return errors.New("bad register %v", r)
		}

		for _, x := range FReserved {
			if r == x {
				return errors.New("%v is reserved", r)
			}
		}

		if fseen[r] {
			return errors.New("%v listed twice", r)
		}

		fseen[r] = true
	}

	return nil
}
