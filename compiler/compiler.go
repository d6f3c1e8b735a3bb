package compiler

import (
	"context"
	"sync"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/exprc/compiler/asm"
	"github.com/slowlang/exprc/compiler/back"
	"github.com/slowlang/exprc/compiler/format"
	"github.com/slowlang/exprc/compiler/graph"
	"github.com/slowlang/exprc/compiler/ir"
	"github.com/slowlang/exprc/compiler/regalloc"
)

type (
	Options struct {
		Pools regalloc.Pools

		// Workers compile functions in parallel. 0 or 1 means sequential.
		Workers int
	}

	// Unit is one compiled function.
	Unit struct {
		Func       *ir.Func
		Assignment regalloc.Assignment
		Code       []asm.Instr
	}
)

func DefaultOptions() Options {
	return Options{
		Pools:   back.DefaultPools(),
		Workers: 1,
	}
}

func CompileFile(ctx context.Context, name string, opts Options) (obj []byte, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "compile file", "name", name)
	defer tr.Finish("err", &err)

	p, err := ir.LoadProgram(ctx, name)
	if err != nil {
		return nil, errors.Wrap(err, "load")
	}

	units, err := CompileProgram(ctx, p, opts)
	if err != nil {
		return nil, err
	}

	return Assemble(nil, units), nil
}

// Assemble appends assembler source for the units.
func Assemble(b []byte, units []*Unit) []byte {
	b = append(b, ".intel_syntax noprefix\n"...)

	for _, u := range units {
		b = append(b, '\n')
		b = asm.Append(b, u.Code)
	}

	return b
}

// CompileProgram compiles every function independently.
// Units are returned in program order. The error of the first failed function is returned.
func CompileProgram(ctx context.Context, p *ir.Program, opts Options) (units []*Unit, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "compile program", "funcs", len(p.Funcs), "workers", opts.Workers)
	defer tr.Finish("err", &err)

	units = make([]*Unit, len(p.Funcs))
	errs := make([]error, len(p.Funcs))

	t := opts.Workers
	if t > len(p.Funcs) {
		t = len(p.Funcs)
	}

	if t <= 1 {
		for i, f := range p.Funcs {
			units[i], errs[i] = CompileFunc(ctx, f, opts)
		}
	} else {
		n := len(p.Funcs) / t   // per worker
		res := len(p.Funcs) % t // the first res workers take one more

		start, end := 0, n

		wg := sync.WaitGroup{}
		wg.Add(t)

		for w := 0; w < t; w++ {
			if w < res {
				end++
			}

			go func(start, end int) {
				defer wg.Done()

				for i := start; i < end; i++ {
					units[i], errs[i] = CompileFunc(ctx, p.Funcs[i], opts)
				}
			}(start, end)

			start = end
			end += n
		}

		wg.Wait()
	}

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return units, nil
}

// CompileFunc runs liveness, conflict analysis, register allocation and code generation for f.
// A violated internal invariant aborts f only and is returned as an error.
func CompileFunc(ctx context.Context, f *ir.Func, opts Options) (u *Unit, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "compile func", "name", f.Name)
	defer tr.Finish("err", &err)

	defer func() {
		p := recover()
		if p == nil {
			return
		}

		e, ok := p.(*ir.InvariantError)
		if !ok {
			panic(p)
		}

		tr.Printw("invariant violated", "msg", e.Msg, "at", e.PC)

		u, err = nil, errors.Wrap(e, "func %v", f.Name)
	}()

	err = back.CheckPools(opts.Pools)
	if err != nil {
		return nil, errors.Wrap(err, "register pools")
	}

	if tr.If("dump_ir") {
		b, err := format.Format(ctx, nil, f)
		if err != nil {
			return nil, errors.Wrap(err, "format")
		}

		tr.Printw("ir", "text", string(b))
	}

	vars := ir.FuncVars(f)

	params := make([]ir.VarID, len(f.Params))

	for i, p := range f.Params {
		params[i] = vars.ID(p.Name)
	}

	general, float, freq := graph.Conflicts(ctx, vars, f.Body, params...)

	asg := regalloc.Allocate(ctx, opts.Pools, vars, general, float, freq)

	code, err := back.New().CompileFunc(ctx, f, asg)
	if err != nil {
		return nil, errors.Wrap(err, "codegen")
	}

	return &Unit{
		Func:       f,
		Assignment: asg,
		Code:       code,
	}, nil
}
