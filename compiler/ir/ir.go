package ir

import "strconv"

type (
	Type int

	// Expr is one IR statement or the initializer of a Let.
	Expr interface {
		Type() Type

		expr()
	}

	Block struct {
		Code []Expr
	}

	// Direct is a literal or a variable reference.
	// Exactly one of Var and Lit is meaningful: Var is used when not empty.
	Direct struct {
		Var string
		Lit Lit
		Of  Type
	}

	// Lit is a literal value. Bool literals are stored as 0 and 1 in Int.
	Lit struct {
		Int   int64
		Float float64
	}

	Let struct {
		Name string
		Init Expr
	}

	Unary struct {
		Op Op
		X  Direct
		Of Type
	}

	Binary struct {
		Op   Op
		L, R Direct
		Of   Type
	}

	If struct {
		Cond Direct
		Then *Block
		Else *Block
	}

	Param struct {
		Name string
		Of   Type
	}

	Func struct {
		Name   string
		Params []Param
		Body   *Block
	}

	Program struct {
		Funcs []*Func
	}

	Op string
)

const (
	Int Type = iota
	Bool
	Float
)

const WordSize = 8

const (
	Not Op = "!"
	Neg Op = "-"

	Plus  Op = "+"
	Minus Op = "-"
	Times Op = "*"
	Div   Op = "/"
	Mod   Op = "%"

	Less      Op = "<"
	LessEq    Op = "<="
	Greater   Op = ">"
	GreaterEq Op = ">="
	Eq        Op = "=="
	NotEq     Op = "!="
)

func Var(name string, tp Type) Direct {
	return Direct{Var: name, Of: tp}
}

func IntLit(v int64) Direct {
	return Direct{Lit: Lit{Int: v}, Of: Int}
}

func BoolLit(v bool) Direct {
	d := Direct{Of: Bool}

	if v {
		d.Lit.Int = 1
	}

	return d
}

func FloatLit(v float64) Direct {
	return Direct{Lit: Lit{Float: v}, Of: Float}
}

func NewBlock(code ...Expr) *Block {
	return &Block{Code: code}
}

func (x Direct) IsVar() bool { return x.Var != "" }

func (x Direct) Type() Type { return x.Of }
func (x Let) Type() Type    { return x.Init.Type() }

func (x Unary) Type() Type { return x.Of }

func (x Binary) Type() Type {
	if x.Op.Relational() {
		return Bool
	}

	return x.Of
}

func (x If) Type() Type {
	if x.Then == nil || len(x.Then.Code) == 0 {
		return Int
	}

	return x.Then.Code[len(x.Then.Code)-1].Type()
}

func (Direct) expr() {}
func (Let) expr()    {}
func (Unary) expr()  {}
func (Binary) expr() {}
func (If) expr()     {}

// Relational reports whether op yields a Bool from two operands.
func (op Op) Relational() bool {
	switch op {
	case Less, LessEq, Greater, GreaterEq, Eq, NotEq:
		return true
	}

	return false
}

// Result is the type the function returns: the type of its last statement.
func (f *Func) Result() Type {
	if f.Body == nil || len(f.Body.Code) == 0 {
		return Int
	}

	return f.Body.Code[len(f.Body.Code)-1].Type()
}

func (t Type) String() string {
	switch t {
	case Int:
		return "int"
	case Bool:
		return "bool"
	case Float:
		return "float"
	default:
		return "type(" + strconv.Itoa(int(t)) + ")"
	}
}

func ParseType(s string) (Type, bool) {
	switch s {
	case "int":
		return Int, true
	case "bool":
		return Bool, true
	case "float":
		return Float, true
	}

	return 0, false
}

func (x Direct) String() string {
	if x.IsVar() {
		return x.Var
	}

	switch x.Of {
	case Bool:
		return strconv.FormatBool(x.Lit.Int != 0)
	case Float:
		return strconv.FormatFloat(x.Lit.Float, 'g', -1, 64)
	default:
		return strconv.FormatInt(x.Lit.Int, 10)
	}
}
