package main

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/wasm-vm/engine"
	"github.com/wippyai/wasm-vm/linker"
	"github.com/wippyai/wasm-vm/runtime"
)

// newLogger writes to stderr: console encoding on a terminal, JSON otherwise.
func newLogger(level string, tty bool) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.Sampling = nil
	if tty {
		cfg.Encoding = "console"
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return cfg.Build()
}

func installLogger(l *zap.Logger) {
	engine.SetLogger(l.Named("engine"))
	linker.SetLogger(l.Named("linker"))
	runtime.SetLogger(l.Named("runtime"))
}
