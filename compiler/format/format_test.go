package format

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/exprc/compiler/ir"
)

func TestFormat(t *testing.T) {
	ctx := context.Background()

	p, err := ir.ParseProgram([]byte(`
funcs:
- name: abs
  params:
  - {name: x, type: int}
  body:
  - {let: neg, op: "<", args: [x, 0]}
  - let: r
    if: neg
    then:
    - {op: "-", args: [x]}
    else:
    - {value: x}
  - {value: r}
- name: half
  params:
  - {name: f, type: float}
  body:
  - {op: "*", args: [f, 0.5]}
`))
	require.NoError(t, err)

	b, err := Format(ctx, nil, p)
	require.NoError(t, err)

	assert.Equal(t, `func abs(x int) int {
	let neg: bool = x < 0
	let r: int = if neg {
		-x
	} else {
		x
	}
	r
}

func half(f float) float {
	let t#0: float = 0.5
	f * t#0
}
`, string(b))
}

func TestFormatExpr(t *testing.T) {
	ctx := context.Background()

	b, err := Format(ctx, nil, ir.Unary{Op: ir.Not, X: ir.BoolLit(true), Of: ir.Bool})
	require.NoError(t, err)
	assert.Equal(t, "!true\n", string(b))

	_, err = Format(ctx, nil, 3)
	assert.Error(t, err)
}
