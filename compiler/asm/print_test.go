package asm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppend(t *testing.T) {
	code := []Instr{
		Text{},
		Global{Name: "main"},
		Label{Name: "main"},
		Mov{Dst: Slot(-8), Src: Imm(5)},
		IMul3{Dst: RBX, Src: Mem{Base: RBP, Off: 16}, Imm: 3},
		Cmp{L: R11, R: RBX},
		Set{Cond: LE, Dst: RSI},
		Set{Cond: E, Dst: Slot(-16)},
		Cmpsd{Dst: XMM14, Src: XMM15, Pred: PredLt},
		FArith{Op: Addsd, Dst: XMM15, Src: Slot(-24)},
		Movq{Dst: RAX, Src: XMM14},
		Jcc{Cond: E, Label: ".Lmain_else0"},
		Ret{},
	}

	exp := `.text
.globl main
main:
	mov	qword ptr [rbp - 8], 5
	imul	rbx, qword ptr [rbp + 16], 3
	cmp	r11, rbx
	setle	sil
	sete	byte ptr [rbp - 16]
	cmpsd	xmm14, xmm15, 1
	addsd	xmm15, qword ptr [rbp - 24]
	movq	rax, xmm14
	je	.Lmain_else0
	ret
`

	assert.Equal(t, exp, string(Append(nil, code)))
}

func TestCondSwap(t *testing.T) {
	assert.Equal(t, G, L.Swap())
	assert.Equal(t, LE, GE.Swap())
	assert.Equal(t, E, E.Swap())
}

func TestFitsImm32(t *testing.T) {
	assert.True(t, FitsImm32(-1<<31))
	assert.True(t, FitsImm32(1<<31-1))
	assert.False(t, FitsImm32(1<<31))
	assert.False(t, FitsImm32(-1<<31-1))
}
