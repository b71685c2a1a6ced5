package main

import (
	"fmt"
	"io"
)

// envHost is the "env" module offered to every program.
type envHost struct {
	out io.Writer
}

func (*envHost) Namespace() string { return "env" }

func (h *envHost) PrintI32(v int32) { fmt.Fprintln(h.out, v) }

func (h *envHost) PrintI64(v int64) { fmt.Fprintln(h.out, v) }

func (h *envHost) PrintF32(v float32) { fmt.Fprintln(h.out, v) }

func (h *envHost) PrintF64(v float64) { fmt.Fprintln(h.out, v) }
