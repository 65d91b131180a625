package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"

	wasminterp "github.com/wippyai/wasm-interp"
	"github.com/wippyai/wasm-interp/engine"
	"github.com/wippyai/wasm-interp/errors"
	"github.com/wippyai/wasm-interp/runtime"
	"github.com/wippyai/wasm-interp/wasm"
)

// argList collects repeated -arg flags.
type argList []string

func (a *argList) String() string { return strings.Join(*a, " ") }

func (a *argList) Set(v string) error {
	*a = append(*a, v)
	return nil
}

type options struct {
	invoke   string
	args     []string
	compare  bool
	list     bool
	maxPages uint32
	cfg      runtime.Config
}

func main() {
	var (
		invoke      = flag.String("invoke", "", "Exported function to call")
		fuel        = flag.Uint64("fuel", 0, "Instruction budget per call (0 = unlimited)")
		maxPages    = flag.Uint("max-pages", uint(runtime.DefaultConfig().MaxMemoryPages), "Linear memory limit in 64KiB pages")
		maxDepth    = flag.Int("max-depth", runtime.DefaultConfig().MaxCallDepth, "Call depth limit")
		compare     = flag.Bool("compare", false, "Also run the call on wazero and fail if the results differ")
		trace       = flag.Bool("trace", false, "Log every executed instruction at debug level")
		logLevel    = flag.String("log-level", "warn", "Log level: debug, info, warn, error")
		list        = flag.Bool("list", false, "List exported functions and exit")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
		args        argList
	)
	flag.Var(&args, "arg", "Argument as type:literal (i32:5, f64:1.5) or a bare literal; repeatable")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 1 {
		usage()
		os.Exit(1)
	}
	file := flag.Arg(0)

	log, err := newLogger(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cfg := runtime.Config{
		Fuel:              *fuel,
		MaxCallDepth:      *maxDepth,
		MaxMemoryPages:    uint32(*maxPages),
		TraceInstructions: *trace,
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: -i needs a terminal")
			os.Exit(1)
		}
		// log records would corrupt the alternate screen
		runtime.SetLogger(nil)
		engine.SetLogger(nil)
		if err := runInteractive(file, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	runtime.SetLogger(log)
	engine.SetLogger(log)

	err = run(context.Background(), os.Stdout, log, file, options{
		invoke:   *invoke,
		args:     args,
		compare:  *compare,
		list:     *list,
		maxPages: uint32(*maxPages),
		cfg:      cfg,
	})
	_ = log.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: wai -invoke <name> [-arg value]... [-fuel n] [-max-pages n] [-compare] <file.wasm>")
	fmt.Fprintln(os.Stderr, "       wai -list <file.wasm>")
	fmt.Fprintln(os.Stderr, "       wai -i <file.wasm>  (interactive mode)")
	fmt.Fprintln(os.Stderr)
	flag.PrintDefaults()
}

func run(ctx context.Context, out io.Writer, log *zap.Logger, file string, opts options) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return errors.Load("read "+file, err)
	}
	m, err := wasm.ParseModule(data)
	if err != nil {
		return err
	}

	interp := engine.NewInterpreter(m, &opts.cfg)
	if opts.list {
		printList(out, file, m, interp.Exports())
		return nil
	}
	if opts.invoke == "" {
		return errors.New(errors.PhaseLoad, errors.KindInvalidArgs).
			Detail("no function given; use -invoke or -list").
			Build()
	}

	args, err := parseArgs(opts.args, paramTypes(interp.Exports(), opts.invoke))
	if err != nil {
		return err
	}

	var results []runtime.Value
	if opts.compare {
		ref, err := engine.NewWazero(ctx, data, &engine.Config{MemoryLimitPages: opts.maxPages})
		if err != nil {
			return err
		}
		defer func() {
			if cerr := engine.CloseAll(ctx, interp, ref); cerr != nil {
				log.Warn("close failed", zap.Error(cerr))
			}
		}()
		results, err = engine.Compare(ctx, interp, ref, opts.invoke, args)
		if err != nil {
			return err
		}
	} else {
		results, err = interp.Invoke(ctx, opts.invoke, args)
		if err != nil {
			return err
		}
	}

	fields := []zap.Field{
		zap.String("export", opts.invoke),
		zap.Stringers("results", results),
		zap.Uint64("steps", interp.Instance().Steps()),
	}
	if sizer, ok := interp.Memory().(wasminterp.MemorySizer); ok {
		fields = append(fields, zap.Uint32("memory_bytes", sizer.Size()))
	}
	log.Info("return value", fields...)

	for _, v := range results {
		fmt.Fprintln(out, v)
	}
	return nil
}

// paramTypes returns the parameter types of export name, or nil if there is
// no such export.
func paramTypes(exports []runtime.ExportedFunc, name string) []wasm.ValType {
	for _, e := range exports {
		if e.Name == name {
			return e.Type.Params
		}
	}
	return nil
}

// parseArgs parses each raw argument, using the parameter at the same
// position as the type of a bare literal.
func parseArgs(raw []string, params []wasm.ValType) ([]runtime.Value, error) {
	vals := make([]runtime.Value, len(raw))
	for i, s := range raw {
		hint := wasm.ValUnknown
		if i < len(params) {
			hint = params[i]
		}
		v, err := runtime.ParseValue(s, hint)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

func printList(out io.Writer, file string, m *wasm.Module, exports []runtime.ExportedFunc) {
	fmt.Fprintf(out, "Module: %s\n", file)
	fmt.Fprintf(out, "Version: %d\n", m.Version)

	ids := m.Sections()
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = id.String()
	}
	fmt.Fprintf(out, "Sections: %s\n", strings.Join(names, ", "))

	fmt.Fprintf(out, "\nExported functions:\n")
	for _, e := range exports {
		fmt.Fprintf(out, "  %s%s\n", e.Name, e.Type)
	}
}
