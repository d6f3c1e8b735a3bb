package emu

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tlog.app/go/errors"

	"github.com/slowlang/exprc/compiler/asm"
)

func TestCall(t *testing.T) {
	code := []asm.Instr{
		asm.Label{Name: "f"},
		asm.Push{Src: asm.RBP},
		asm.Mov{Dst: asm.RBP, Src: asm.RSP},
		asm.Mov{Dst: asm.RAX, Src: asm.Mem{Base: asm.RBP, Off: 16}},
		asm.Cqo{},
		asm.Mov{Dst: asm.R11, Src: asm.Mem{Base: asm.RBP, Off: 24}},
		asm.IDiv{Src: asm.R11},
		asm.Mov{Dst: asm.RAX, Src: asm.RDX},
		asm.Mov{Dst: asm.RSP, Src: asm.RBP},
		asm.Pop{Dst: asm.RBP},
		asm.Ret{},
	}

	m := New(code)

	res, err := m.Call("f", uint64(17), uint64(5))
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Int)

	res, err = m.Call("f", uint64(math.MaxUint64-16), uint64(5)) // -17 % 5
	require.NoError(t, err)
	assert.Equal(t, int64(-2), res.Int)
}

func TestIllegal(t *testing.T) {
	for _, x := range []asm.Instr{
		asm.Mov{Dst: asm.Mem{Base: asm.RSP}, Src: asm.Mem{Base: asm.RSP, Off: 8}},
		asm.Mov{Dst: asm.Mem{Base: asm.RSP}, Src: asm.Imm(1 << 40)},
		asm.Add{Dst: asm.RBX, Src: asm.Imm(1 << 40)},
		asm.IDiv{Src: asm.Imm(3)},
		asm.Cmp{L: asm.Imm(3), R: asm.RBX},
		asm.FArith{Op: asm.Addsd, Dst: asm.XMM1, Src: asm.RBX},
		asm.Movq{Dst: asm.XMM1, Src: asm.XMM2},
	} {
		m := New([]asm.Instr{x})
		m.R[asm.RSP] = stackTop

		err := m.Exec()
		assert.True(t, errors.Is(err, ErrIllegal), "%#v: %v", x, err)
	}
}

func TestFloat(t *testing.T) {
	m := New([]asm.Instr{
		asm.Mov{Dst: asm.R10, Src: asm.Imm(int64(math.Float64bits(1.5)))},
		asm.Movq{Dst: asm.XMM1, Src: asm.R10},
		asm.Mov{Dst: asm.R10, Src: asm.Imm(int64(math.Float64bits(2.25)))},
		asm.Movq{Dst: asm.XMM2, Src: asm.R10},
		asm.Movsd{Dst: asm.XMM15, Src: asm.XMM1},
		asm.FArith{Op: asm.Mulsd, Dst: asm.XMM15, Src: asm.XMM2},
		asm.Movsd{Dst: asm.XMM14, Src: asm.XMM1},
		asm.Cmpsd{Dst: asm.XMM14, Src: asm.XMM2, Pred: asm.PredLt},
		asm.Movq{Dst: asm.RBX, Src: asm.XMM14},
		asm.And{Dst: asm.RBX, Src: asm.Imm(1)},
	})

	require.NoError(t, m.Exec())

	assert.Equal(t, 3.375, math.Float64frombits(m.X[asm.XMM15]))
	assert.Equal(t, int64(1), m.R[asm.RBX])
}

func TestSetKeepsHighBits(t *testing.T) {
	m := New([]asm.Instr{
		asm.Mov{Dst: asm.RBX, Src: asm.Imm(0x100)},
		asm.Cmp{L: asm.RBX, R: asm.Imm(0x100)},
		asm.Set{Cond: asm.E, Dst: asm.RBX},
	})

	require.NoError(t, m.Exec())
	assert.Equal(t, int64(0x101), m.R[asm.RBX])
}
