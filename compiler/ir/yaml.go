package ir

import (
	"bytes"
	"context"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"
)

type (
	yProgram struct {
		Funcs []yFunc `yaml:"funcs"`
	}

	yFunc struct {
		Name   string   `yaml:"name"`
		Params []yParam `yaml:"params"`
		Body   []yStmt  `yaml:"body"`
	}

	yParam struct {
		Name string `yaml:"name"`
		Type string `yaml:"type"`
	}

	yStmt struct {
		Let  string `yaml:"let"`
		Type string `yaml:"type"`

		// zero Kind means absent
		Value yaml.Node   `yaml:"value"`
		Op    string      `yaml:"op"`
		Args  []yaml.Node `yaml:"args"`

		If   yaml.Node `yaml:"if"`
		Then []yStmt   `yaml:"then"`
		Else []yStmt   `yaml:"else"`

		line int
	}

	scope struct {
		up   *scope
		vars map[string]Type

		// whole function
		bound map[string]struct{}
		names *Namer

		hoisted []Expr
	}
)

func LoadProgram(ctx context.Context, name string) (*Program, error) {
	text, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}

	tlog.SpanFromContext(ctx).Printw("read file", "size", len(text), "name", name)

	return ParseProgram(text)
}

// ParseProgram decodes already flattened IR written as YAML.
// Variable references are resolved to the type of their binding.
func ParseProgram(text []byte) (_ *Program, err error) {
	var yp yProgram

	d := yaml.NewDecoder(bytes.NewReader(text))
	d.KnownFields(true)

	err = d.Decode(&yp)
	if err != nil {
		return nil, errors.Wrap(err, "decode yaml")
	}

	p := &Program{}

	for _, yf := range yp.Funcs {
		f, err := yf.build()
		if err != nil {
			return nil, errors.Wrap(err, "func %v", yf.Name)
		}

		p.Funcs = append(p.Funcs, f)
	}

	return p, nil
}

func (s *yStmt) UnmarshalYAML(n *yaml.Node) error {
	type plain yStmt

	err := n.Decode((*plain)(s))
	if err != nil {
		return err
	}

	s.line = n.Line

	return nil
}

func (yf yFunc) build() (*Func, error) {
	if yf.Name == "" {
		return nil, errors.New("no name")
	}

	f := &Func{Name: yf.Name}
	sc := &scope{vars: map[string]Type{}, bound: map[string]struct{}{}, names: &Namer{}}

	for _, yp := range yf.Params {
		tp, ok := ParseType(yp.Type)
		if !ok {
			return nil, errors.New("param %v: bad type %q", yp.Name, yp.Type)
		}

		if err := sc.bind(yp.Name, tp); err != nil {
			return nil, errors.Wrap(err, "param")
		}

		f.Params = append(f.Params, Param{Name: yp.Name, Of: tp})
	}

	body, err := buildBlock(sc, yf.Body)
	if err != nil {
		return nil, errors.Wrap(err, "body")
	}

	f.Body = body

	return f, nil
}

func buildBlock(up *scope, ys []yStmt) (*Block, error) {
	sc := &scope{up: up, vars: map[string]Type{}, bound: up.bound, names: up.names}
	b := &Block{}

	for i := range ys {
		x, err := buildStmt(sc, &ys[i])
		if err != nil {
			return nil, errors.Wrap(err, "line %d", ys[i].line)
		}

		b.Code = append(b.Code, sc.hoisted...)
		b.Code = append(b.Code, x)

		sc.hoisted = sc.hoisted[:0]
	}

	return b, nil
}

func buildStmt(sc *scope, y *yStmt) (Expr, error) {
	x, err := buildInit(sc, y)
	if err != nil {
		return nil, err
	}

	if y.Type != "" {
		tp, ok := ParseType(y.Type)
		if !ok {
			return nil, errors.New("bad type %q", y.Type)
		}

		if tp != x.Type() {
			return nil, errors.New("declared %v, got %v", tp, x.Type())
		}
	}

	if y.Let == "" {
		return x, nil
	}

	if err := sc.bind(y.Let, x.Type()); err != nil {
		return nil, err
	}

	return Let{Name: y.Let, Init: x}, nil
}

func buildInit(sc *scope, y *yStmt) (Expr, error) {
	forms := 0

	for _, set := range []bool{y.Value.Kind != 0, y.Op != "", y.If.Kind != 0} {
		if set {
			forms++
		}
	}

	if forms != 1 {
		return nil, errors.New("need exactly one of value, op, if")
	}

	switch {
	case y.Value.Kind != 0:
		return sc.direct(&y.Value)
	case y.If.Kind != 0:
		return buildIf(sc, y)
	}

	args := make([]Direct, len(y.Args))

	for i := range y.Args {
		d, err := sc.direct(&y.Args[i])
		if err != nil {
			return nil, errors.Wrap(err, "arg %d", i)
		}

		if d.Of == Float && !d.IsVar() {
			d = sc.hoist(d)
		}

		args[i] = d
	}

	op := Op(y.Op)

	switch {
	case len(args) == 1 && (op == Not || op == Neg):
		return Unary{Op: op, X: args[0], Of: args[0].Of}, nil
	case len(args) == 2:
		switch op {
		case Plus, Minus, Times, Div, Mod, Less, LessEq, Greater, GreaterEq, Eq, NotEq:
		default:
			return nil, errors.New("unsupported binary op %q", y.Op)
		}

		if args[0].Of != args[1].Of {
			return nil, errors.New("operand types differ: %v %v %v", args[0].Of, op, args[1].Of)
		}

		return Binary{Op: op, L: args[0], R: args[1], Of: args[0].Of}, nil
	default:
		return nil, errors.New("op %q with %d args", y.Op, len(args))
	}
}

func buildIf(sc *scope, y *yStmt) (Expr, error) {
	cond, err := sc.direct(&y.If)
	if err != nil {
		return nil, errors.Wrap(err, "cond")
	}

	x := If{Cond: cond}

	x.Then, err = buildBlock(sc, y.Then)
	if err != nil {
		return nil, errors.Wrap(err, "then")
	}

	if y.Else != nil {
		x.Else, err = buildBlock(sc, y.Else)
		if err != nil {
			return nil, errors.Wrap(err, "else")
		}
	}

	return x, nil
}

func (sc *scope) direct(n *yaml.Node) (Direct, error) {
	if n.Kind != yaml.ScalarNode {
		return Direct{}, errors.New("line %d: operand must be a literal or a name", n.Line)
	}

	switch n.Tag {
	case "!!int":
		v, err := strconv.ParseInt(n.Value, 0, 64)
		if err != nil {
			return Direct{}, errors.Wrap(err, "line %d", n.Line)
		}

		return IntLit(v), nil
	case "!!float":
		v, err := strconv.ParseFloat(n.Value, 64)
		if err != nil {
			return Direct{}, errors.Wrap(err, "line %d", n.Line)
		}

		return FloatLit(v), nil
	case "!!bool":
		v, err := strconv.ParseBool(n.Value)
		if err != nil {
			return Direct{}, errors.Wrap(err, "line %d", n.Line)
		}

		return BoolLit(v), nil
	case "!!str":
		tp, ok := sc.lookup(n.Value)
		if !ok {
			return Direct{}, errors.New("line %d: undefined: %v", n.Line, n.Value)
		}

		return Var(n.Value, tp), nil
	default:
		return Direct{}, errors.New("line %d: unsupported literal %v", n.Line, n.Tag)
	}
}

// hoist binds a float literal operand to a temporary,
// float instructions have no immediate form.
func (sc *scope) hoist(d Direct) Direct {
	name := sc.names.Next()

	sc.vars[name] = d.Of
	sc.bound[name] = struct{}{}
	sc.hoisted = append(sc.hoisted, Let{Name: name, Init: d})

	return Var(name, d.Of)
}

func (sc *scope) bind(name string, tp Type) error {
	if IsTemp(name) {
		return errors.New("%v: reserved name", name)
	}

	if _, ok := sc.bound[name]; ok {
		return errors.New("%v redeclared", name)
	}

	sc.vars[name] = tp
	sc.bound[name] = struct{}{}

	return nil
}

func (sc *scope) lookup(name string) (Type, bool) {
	for s := sc; s != nil; s = s.up {
		if tp, ok := s.vars[name]; ok {
			return tp, true
		}
	}

	return 0, false
}
