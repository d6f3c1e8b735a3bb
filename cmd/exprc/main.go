package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"runtime"
	"strconv"

	"github.com/xyproto/env/v2"
	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/exprc/compiler"
	"github.com/slowlang/exprc/compiler/asm"
	"github.com/slowlang/exprc/compiler/asm/emu"
	"github.com/slowlang/exprc/compiler/format"
	"github.com/slowlang/exprc/compiler/ir"
)

func main() {
	compileCmd := &cli.Command{
		Name:        "compile",
		Description: "compile IR files to x86-64 assembly",
		Action:      compileAct,
		Args:        cli.Args{},
		Flags: []*cli.Flag{
			cli.NewFlag("output,o", "-", "output file"),
		},
	}

	allocCmd := &cli.Command{
		Name:        "alloc",
		Description: "print the storage assigned to every variable",
		Action:      allocAct,
		Args:        cli.Args{},
	}

	fmtCmd := &cli.Command{
		Name:        "fmt",
		Description: "print IR files",
		Action:      fmtAct,
		Args:        cli.Args{},
	}

	runCmd := &cli.Command{
		Name:        "run",
		Description: "compile a file and execute a function in the emulator: run <file> <func> [args...]",
		Action:      runAct,
		Args:        cli.Args{},
	}

	app := &cli.Command{
		Name:        "exprc",
		Description: "exprc compiles flattened expression IR to x86-64 assembly",
		Before:      before,
		Flags: []*cli.Flag{
			cli.NewFlag("gp-regs", env.Int("EXPRC_GP_REGS", -1), "limit general purpose registers available to the allocator (-1 for all)"),
			cli.NewFlag("fp-regs", env.Int("EXPRC_FP_REGS", -1), "limit float registers available to the allocator (-1 for all)"),
			cli.NewFlag("workers,j", env.Int("EXPRC_WORKERS", runtime.NumCPU()), "functions compiled in parallel"),
			cli.NewFlag("verbosity,v", "", "trace topics: dump_ir, dump_live, dump_graph, dump_alloc, dump_asm, emit, simplify, spill, select"),
			cli.HelpFlag,
		},
		Commands: []*cli.Command{
			compileCmd,
			allocCmd,
			fmtCmd,
			runCmd,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

func before(c *cli.Command) error {
	tlog.SetVerbosity(c.String("verbosity"))

	return nil
}

func options(c *cli.Command) compiler.Options {
	opts := compiler.DefaultOptions()

	opts.Pools = opts.Pools.Limit(c.Int("gp-regs"), c.Int("fp-regs"))
	opts.Workers = c.Int("workers")

	return opts
}

func compileAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	var out []byte

	for _, a := range c.Args {
		obj, err := compiler.CompileFile(ctx, a, options(c))
		if err != nil {
			return errors.Wrap(err, "compile %v", a)
		}

		out = append(out, obj...)
	}

	if name := c.String("output"); name != "-" {
		err = os.WriteFile(name, out, 0o644)
		if err != nil {
			return errors.Wrap(err, "write output")
		}

		return nil
	}

	_, err = os.Stdout.Write(out)

	return err
}

func allocAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	for _, a := range c.Args {
		p, err := ir.LoadProgram(ctx, a)
		if err != nil {
			return errors.Wrap(err, "load %v", a)
		}

		units, err := compiler.CompileProgram(ctx, p, options(c))
		if err != nil {
			return errors.Wrap(err, "compile %v", a)
		}

		for _, u := range units {
			fmt.Printf("func %v\n", u.Func.Name)

			vars := ir.FuncVars(u.Func)

			for id := 0; id < vars.Len(); id++ {
				name := vars.Name(ir.VarID(id))

				fmt.Printf("\t%-12v %-6v %v\n", name, vars.Type(ir.VarID(id)), u.Assignment[name])
			}
		}
	}

	return nil
}

func fmtAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	for _, a := range c.Args {
		p, err := ir.LoadProgram(ctx, a)
		if err != nil {
			return errors.Wrap(err, "load %v", a)
		}

		b, err := format.Format(ctx, nil, p)
		if err != nil {
			return errors.Wrap(err, "format %v", a)
		}

		fmt.Printf("%s", b)
	}

	return nil
}

func runAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	if len(c.Args) < 2 {
		return errors.New("usage: run <file> <func> [args...]")
	}

	file, name, args := c.Args[0], c.Args[1], c.Args[2:]

	p, err := ir.LoadProgram(ctx, file)
	if err != nil {
		return errors.Wrap(err, "load %v", file)
	}

	units, err := compiler.CompileProgram(ctx, p, options(c))
	if err != nil {
		return errors.Wrap(err, "compile")
	}

	var f *ir.Func

	for _, u := range units {
		if u.Func.Name == name {
			f = u.Func
		}
	}

	if f == nil {
		return errors.New("no function %v", name)
	}

	if len(args) != len(f.Params) {
		return errors.New("%v takes %d args, got %d", name, len(f.Params), len(args))
	}

	words := make([]uint64, len(args))

	for i, a := range args {
		words[i], err = parseArg(f.Params[i].Of, a)
		if err != nil {
			return errors.Wrap(err, "arg %v", f.Params[i].Name)
		}
	}

	res, err := emu.New(link(units)).Call(name, words...)
	if err != nil {
		return errors.Wrap(err, "run")
	}

	switch f.Result() {
	case ir.Float:
		fmt.Printf("%v\n", res.Float)
	case ir.Bool:
		fmt.Printf("%v\n", res.Int != 0)
	default:
		fmt.Printf("%v\n", res.Int)
	}

	return nil
}

func link(units []*compiler.Unit) (code []asm.Instr) {
	for _, u := range units {
		code = append(code, u.Code...)
	}

	return code
}

func parseArg(tp ir.Type, s string) (uint64, error) {
	switch tp {
	case ir.Int:
		v, err := strconv.ParseInt(s, 0, 64)
		return uint64(v), err
	case ir.Bool:
		v, err := strconv.ParseBool(s)
		if v {
			return 1, err
		}

		return 0, err
	case ir.Float:
		v, err := strconv.ParseFloat(s, 64)
		return math.Float64bits(v), err
	default:
		panic(tp)
	}
}
