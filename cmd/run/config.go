package main

import (
	"fmt"

	"github.com/mstoykov/envconfig"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-vm/engine"
	"github.com/wippyai/wasm-vm/runtime"
)

// Config is read from the environment only; the command takes no flags.
type Config struct {
	LogLevel     string `envconfig:"WASMVM_LOG_LEVEL" default:"warn"`
	Entry        string `envconfig:"WASMVM_ENTRY"`
	SelectOrder  string `envconfig:"WASMVM_SELECT_ORDER" default:"top-on-true"`
	MaxCallDepth int    `envconfig:"WASMVM_MAX_CALL_DEPTH" default:"1000"`
}

// defaultEntries are tried in order when WASMVM_ENTRY is not set.
var defaultEntries = []string{"_start", "main", "run"}

func loadConfig(lookup func(string) (string, bool)) (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg, lookup); err != nil {
		return cfg, fmt.Errorf("read environment: %w", err)
	}
	if _, err := zap.ParseAtomicLevel(cfg.LogLevel); err != nil {
		return cfg, fmt.Errorf("WASMVM_LOG_LEVEL: %w", err)
	}
	if cfg.MaxCallDepth <= 0 {
		return cfg, fmt.Errorf("WASMVM_MAX_CALL_DEPTH must be positive, got %d", cfg.MaxCallDepth)
	}
	if _, err := selectOrder(cfg.SelectOrder); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func selectOrder(s string) (engine.SelectOrder, error) {
	for _, o := range []engine.SelectOrder{engine.SelectTopOnTrue, engine.SelectBottomOnTrue} {
		if o.String() == s {
			return o, nil
		}
	}
	return 0, fmt.Errorf("WASMVM_SELECT_ORDER: unknown order %q (want top-on-true or bottom-on-true)", s)
}

func (c Config) runtimeOptions() runtime.Options {
	opts := runtime.DefaultOptions()
	opts.Engine.MaxCallDepth = c.MaxCallDepth
	opts.Engine.Select, _ = selectOrder(c.SelectOrder)
	return opts
}
