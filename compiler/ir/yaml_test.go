package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
funcs:
- name: main
  params:
  - {name: x, type: int}
  - {name: f, type: float}
  body:
  - {let: a, value: 1}
  - {let: b, type: int, op: "+", args: [a, x]}
  - {let: c, op: "<", args: [b, 10]}
  - let: r
    if: c
    then:
    - {let: t, op: "*", args: [f, 2.5]}
    - {value: t}
    else:
    - {value: f}
  - {value: r}
`

func TestParseProgram(t *testing.T) {
	p, err := ParseProgram([]byte(sample))
	require.NoError(t, err)
	require.Len(t, p.Funcs, 1)

	f := p.Funcs[0]

	assert.Equal(t, "main", f.Name)
	assert.Equal(t, []Param{{Name: "x", Of: Int}, {Name: "f", Of: Float}}, f.Params)
	require.Len(t, f.Body.Code, 5)

	assert.Equal(t, Let{Name: "a", Init: IntLit(1)}, f.Body.Code[0])
	assert.Equal(t, Let{Name: "b", Init: Binary{Op: Plus, L: Var("a", Int), R: Var("x", Int), Of: Int}}, f.Body.Code[1])
	assert.Equal(t, Bool, f.Body.Code[2].Type())

	r := f.Body.Code[3].(Let).Init.(If)

	assert.Equal(t, Var("c", Bool), r.Cond)
	require.Len(t, r.Then.Code, 3, "float literal hoisted")
	assert.Equal(t, Let{Name: "t#0", Init: FloatLit(2.5)}, r.Then.Code[0])
	assert.Equal(t, Let{Name: "t", Init: Binary{Op: Times, L: Var("f", Float), R: Var("t#0", Float), Of: Float}}, r.Then.Code[1])

	assert.Equal(t, Float, f.Result())
}

func TestParseScalarForms(t *testing.T) {
	p, err := ParseProgram([]byte(`
funcs:
- name: main
  body:
  - value: 1
  - value: true
  - value: 1.5
  - if: false
    then:
    - value: 2
`))
	require.NoError(t, err)
	require.Len(t, p.Funcs, 1)

	code := p.Funcs[0].Body.Code
	require.Len(t, code, 4)

	assert.Equal(t, IntLit(1), code[0])
	assert.Equal(t, BoolLit(true), code[1])
	assert.Equal(t, FloatLit(1.5), code[2])
	assert.Equal(t, If{Cond: BoolLit(false), Then: NewBlock(IntLit(2))}, code[3])
}

func TestParseProgramErrors(t *testing.T) {
	for _, tc := range []struct {
		name, text, err string
	}{
		{"undefined", `
funcs:
- name: f
  body:
  - {value: y}
`, "undefined: y"},
		{"redeclared", `
funcs:
- name: f
  body:
  - {let: a, value: 1}
  - {let: a, value: 2}
`, "a redeclared"},
		{"redeclared_in_branch", `
funcs:
- name: f
  body:
  - {let: a, value: true}
  - if: a
    then:
    - {let: a, value: 2}
`, "a redeclared"},
		{"type_mismatch", `
funcs:
- name: f
  body:
  - {op: "+", args: [1, 2.0]}
`, "operand types differ"},
		{"declared_type", `
funcs:
- name: f
  body:
  - {let: a, type: float, value: 1}
`, "declared float, got int"},
		{"forms", `
funcs:
- name: f
  body:
  - {let: a, value: 1, op: "-", args: [1]}
`, "need exactly one of value, op, if"},
		{"unknown_field", `
funcs:
- name: f
  bogus: 1
`, "decode yaml"},
		{"temp_name", `
funcs:
- name: f
  body:
  - {let: "t#1", value: 1}
`, "reserved name"},
		{"out_of_scope", `
funcs:
- name: f
  body:
  - {let: c, value: true}
  - if: c
    then:
    - {let: inner, value: 1}
  - {value: inner}
`, "undefined: inner"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseProgram([]byte(tc.text))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.err)
		})
	}
}

func TestFuncVars(t *testing.T) {
	p, err := ParseProgram([]byte(sample))
	require.NoError(t, err)

	v := FuncVars(p.Funcs[0])

	assert.Equal(t, []string{"x", "f", "a", "b", "c", "t#0", "t", "r"}, v.Names([]VarID{0, 1, 2, 3, 4, 5, 6, 7}))
	assert.Equal(t, Float, v.Type(v.ID("t")))

	_, ok := v.Lookup("nope")
	assert.False(t, ok)

	assert.Panics(t, func() { v.ID("nope") })
	assert.Panics(t, func() { v.Add("x", Float) })
}

func TestNamer(t *testing.T) {
	var n Namer

	assert.Equal(t, "t#0", n.Next())
	assert.Equal(t, "t#1", n.Next())

	m := Namer{Prefix: "v"}

	assert.Equal(t, "v#0", m.Next(), "counters are independent")
	assert.True(t, IsTemp("v#0"))
	assert.False(t, IsTemp("v0"))
}
