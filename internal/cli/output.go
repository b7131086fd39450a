// Package cli provides terminal output helpers for the marketplace commands.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// Printer writes status lines. Colors follow fatih/color's terminal and
// NO_COLOR detection and are off for any writer other than stdout or stderr.
type Printer struct {
	w       io.Writer
	success *color.Color
	failure *color.Color
	warning *color.Color
	info    *color.Color
	heading *color.Color
}

// NewPrinter creates a printer for w.
func NewPrinter(w io.Writer) *Printer {
	p := &Printer{
		w:       w,
		success: color.New(color.FgGreen),
		failure: color.New(color.FgRed, color.Bold),
		warning: color.New(color.FgYellow),
		info:    color.New(color.FgCyan),
		heading: color.New(color.Bold),
	}
	if w != os.Stdout && w != os.Stderr {
		p.SetColor(false)
	}
	return p
}

// SetColor forces colored output on or off.
func (p *Printer) SetColor(on bool) {
	for _, c := range []*color.Color{p.success, p.failure, p.warning, p.info, p.heading} {
		if on {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
}

func (p *Printer) line(c *color.Color, symbol, format string, args ...interface{}) {
	fmt.Fprintf(p.w, "%s %s\n", c.Sprint(symbol), fmt.Sprintf(format, args...))
}

// Success prints a success message
func (p *Printer) Success(format string, args ...interface{}) {
	p.line(p.success, "✓", format, args...)
}

// Error prints an error message
func (p *Printer) Error(format string, args ...interface{}) {
	p.line(p.failure, "✗", format, args...)
}

// Warning prints a warning message
func (p *Printer) Warning(format string, args ...interface{}) {
	p.line(p.warning, "⚠", format, args...)
}

// Info prints an info message
func (p *Printer) Info(format string, args ...interface{}) {
	p.line(p.info, "ℹ", format, args...)
}

// Heading prints a bold title followed by an underline.
func (p *Printer) Heading(title string) {
	fmt.Fprintln(p.w, p.heading.Sprint(title))
	fmt.Fprintln(p.w, underline(title))
}

// Field prints an aligned "label: value" row.
func (p *Printer) Field(label, value string) {
	fmt.Fprintf(p.w, "  %-24s %s\n", label+":", value)
}

func underline(title string) string {
	n := len([]rune(title))
	if n < 40 {
		n = 40
	}
	out := make([]byte, n)
	for i := range out {
		out[i] = '='
	}
	return string(out)
}
