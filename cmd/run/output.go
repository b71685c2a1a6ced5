package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/wasm-vm/engine"
)

type styles struct {
	title  lipgloss.Style
	name   lipgloss.Style
	result lipgloss.Style
	err    lipgloss.Style
	dim    lipgloss.Style
}

func newStyles(color bool) styles {
	if !color {
		plain := lipgloss.NewStyle()
		return styles{title: plain, name: plain, result: plain, err: plain, dim: plain}
	}
	return styles{
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1),
		name:   lipgloss.NewStyle().Foreground(lipgloss.Color("#98FB98")),
		result: lipgloss.NewStyle().Foreground(lipgloss.Color("#90EE90")),
		err:    lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")),
		dim:    lipgloss.NewStyle().Foreground(lipgloss.Color("#666666")),
	}
}

// printer writes program output and diagnostics.
type printer struct {
	out, errOut io.Writer
	st          styles
}

func (p *printer) header(path string, exports []string) {
	fmt.Fprintln(p.out, p.st.title.Render("wasm-vm")+" "+path)
	if len(exports) > 0 {
		fmt.Fprintln(p.out, p.st.dim.Render("exports: "+strings.Join(exports, ", ")))
	}
}

func (p *printer) results(entry string, vals []engine.Value) {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = v.String()
	}
	line := p.st.name.Render(entry) + " -> "
	if len(parts) == 0 {
		line += p.st.dim.Render("()")
	} else {
		line += p.st.result.Render(strings.Join(parts, " "))
	}
	fmt.Fprintln(p.out, line)
}

func (p *printer) failure(stage string, err error) {
	fmt.Fprintln(p.errOut, p.st.err.Render(stage+" failed: ")+err.Error())
}
