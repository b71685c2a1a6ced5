// Command run loads a module, instantiates it and calls its entry point.
//
// Usage:
//
//	run [module.wasm]
//
// Without an argument the bundled sample is run. Configuration comes from
// WASMVM_LOG_LEVEL, WASMVM_MAX_CALL_DEPTH, WASMVM_ENTRY and
// WASMVM_SELECT_ORDER. The program can import env.print_i32, print_i64,
// print_f32 and print_f64.
//
// Exit status is 0 on success, 1 for configuration or I/O errors, 2 when
// the module fails to decode or validate, 3 when linking fails and 4 when
// execution traps.
package main

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/wasm-vm/errors"
	"github.com/wippyai/wasm-vm/runtime"
	"github.com/wippyai/wasm-vm/wasm"
)

const sampleName = "sample.wasm"

//go:embed testdata/sample.wasm
var sample []byte

const (
	exitOK = iota
	exitUsage
	exitInvalid
	exitLink
	exitTrap
)

func main() {
	tty := term.IsTerminal(int(os.Stdout.Fd()))
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr, os.LookupEnv, tty))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, lookup func(string) (string, bool), tty bool) int {
	p := &printer{out: stdout, errOut: stderr, st: newStyles(tty)}

	if len(args) > 1 {
		fmt.Fprintln(stderr, "usage: run [module.wasm]")
		return exitUsage
	}
	path := sampleName
	if len(args) == 1 {
		path = args[0]
	}

	cfg, err := loadConfig(lookup)
	if err != nil {
		p.failure("configuration", err)
		return exitUsage
	}
	log, err := newLogger(cfg.LogLevel, tty)
	if err != nil {
		p.failure("logger", err)
		return exitUsage
	}
	defer func() { _ = log.Sync() }()
	installLogger(log)
	defer installLogger(zap.NewNop())

	data := sample
	if len(args) == 1 {
		if data, err = os.ReadFile(path); err != nil {
			p.failure("read", err)
			return exitUsage
		}
	}

	rt := runtime.New(cfg.runtimeOptions())
	if err := rt.RegisterHost(&envHost{out: stdout}); err != nil {
		p.failure("host setup", err)
		return exitUsage
	}

	mod, err := rt.Load(data)
	if err != nil {
		p.failure("load", err)
		return exitInvalid
	}
	var exports []string
	for _, e := range mod.Exports() {
		if e.Kind == wasm.KindFunc {
			exports = append(exports, e.Name)
		}
	}
	p.header(path, exports)

	inst, err := mod.Instantiate(ctx, "main")
	if err != nil {
		p.failure("instantiate", err)
		if errors.IsPhase(err, errors.PhaseRuntime) {
			return exitTrap
		}
		return exitLink
	}

	entry, err := pickEntry(cfg.Entry, inst)
	if err != nil {
		p.failure("entry", err)
		return exitLink
	}
	if entry == "" {
		log.Info("no entry point exported", zap.Strings("tried", defaultEntries))
		fmt.Fprintln(stdout, p.st.dim.Render("no entry point exported"))
		return exitOK
	}
	if ft, _ := mod.Signature(entry); len(ft.Params) > 0 {
		p.failure("entry", fmt.Errorf("%s takes %d parameters, entry points take none", entry, len(ft.Params)))
		return exitUsage
	}

	log.Debug("calling entry", zap.String("func", entry))
	results, err := inst.Call(ctx, entry)
	if err != nil {
		p.failure("execution", err)
		return exitTrap
	}
	p.results(entry, results)
	return exitOK
}

// pickEntry returns the configured entry, or the first default entry the
// instance exports, or "" when there is none.
func pickEntry(configured string, inst *runtime.Instance) (string, error) {
	if configured != "" {
		if !inst.HasFunc(configured) {
			return "", fmt.Errorf("WASMVM_ENTRY %q is not an exported function", configured)
		}
		return configured, nil
	}
	for _, name := range defaultEntries {
		if inst.HasFunc(name) {
			return name, nil
		}
	}
	return "", nil
}
