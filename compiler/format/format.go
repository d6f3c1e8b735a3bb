package format

import (
	"context"

	"github.com/nikandfor/hacked/hfmt"
	"tlog.app/go/errors"

	"github.com/slowlang/exprc/compiler/ir"
)

// Format appends the source-like form of a program, function, block or expression.
func Format(ctx context.Context, b []byte, x any) ([]byte, error) {
	return format(ctx, b, x, 0)
}

func format(ctx context.Context, b []byte, x any, d int) ([]byte, error) {
	switch x := x.(type) {
	case *ir.Program:
		return formatProgram(ctx, b, x, d)
	case *ir.Func:
		return formatFunc(ctx, b, x, d)
	case *ir.Block:
		return formatBlock(ctx, b, x, d)
	case ir.Expr:
		b, err := formatExpr(ctx, app(b, d, ""), x, d)
		if err != nil {
			return nil, err
		}

		return append(b, '\n'), nil
	default:
		return nil, errors.New("unsupported type: %T", x)
	}
}

func formatProgram(ctx context.Context, b []byte, x *ir.Program, d int) (_ []byte, err error) {
	for i, f := range x.Funcs {
		if i != 0 {
			b = append(b, '\n')
		}

		b, err = formatFunc(ctx, b, f, d)
		if err != nil {
			return nil, errors.Wrap(err, "func %v", f.Name)
		}
	}

	return b, nil
}

func formatFunc(ctx context.Context, b []byte, x *ir.Func, d int) ([]byte, error) {
	b = app(b, d, "func %v(", x.Name)

	for i, p := range x.Params {
		if i != 0 {
			b = append(b, ", "...)
		}

		b = app(b, 0, "%v %v", p.Name, p.Of)
	}

	b = app(b, 0, ") %v {\n", x.Result())

	b, err := formatBlock(ctx, b, x.Body, d+1)
	if err != nil {
		return nil, errors.Wrap(err, "body")
	}

	b = app(b, d, "}\n")

	return b, nil
}

func formatBlock(ctx context.Context, b []byte, x *ir.Block, d int) (_ []byte, err error) {
	if x == nil {
		return b, nil
	}

	for _, s := range x.Code {
		b = app(b, d, "")

		if l, ok := s.(ir.Let); ok {
			b = app(b, 0, "let %v: %v = ", l.Name, l.Type())
			s = l.Init
		}

		b, err = formatExpr(ctx, b, s, d)
		if err != nil {
			return nil, err
		}

		b = append(b, '\n')
	}

	return b, nil
}

func formatExpr(ctx context.Context, b []byte, x ir.Expr, d int) (_ []byte, err error) {
	switch x := x.(type) {
	case ir.Direct:
		b = append(b, x.String()...)
	case ir.Unary:
		b = append(b, x.Op...)
		b = append(b, x.X.String()...)
	case ir.Binary:
		b = app(b, 0, "%v %v %v", x.L, x.Op, x.R)
	case ir.Let:
		return nil, errors.New("let %v used as a value", x.Name)
	case ir.If:
		b = app(b, 0, "if %v {\n", x.Cond)

		b, err = formatBlock(ctx, b, x.Then, d+1)
		if err != nil {
			return nil, errors.Wrap(err, "then block")
		}

		b = app(b, d, "}")

		if x.Else != nil {
			b = append(b, " else {\n"...)

			b, err = formatBlock(ctx, b, x.Else, d+1)
			if err != nil {
				return nil, errors.Wrap(err, "else block")
			}

			b = app(b, d, "}")
		}
	default:
		return nil, errors.New("unsupported expr: %T", x)
	}

	return b, nil
}

func app(b []byte, d int, f string, args ...any) []byte {
	const tabs = "\t\t\t\t\t\t\t\t\t\t\t\t\t\t\t"
	b = append(b, tabs[:d]...)
	b = hfmt.Appendf(b, f, args...)
	return b
}
