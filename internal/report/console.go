// Package report renders deployment results on the terminal.
//
// Output is grouped into semantic categories, each mapped to an ANSI style.
// Color is only emitted when enabled; ColorAuto enables it for terminals
// when NO_COLOR is not set.
package report

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// Category is the semantic kind of a console line.
type Category int

const (
	Info Category = iota
	Success
	Warning
	Error
	Missing
	Differ
	DiffHeader
	DiffHunk
	DiffAdd
	DiffRemove
	DiffContext
)

// ANSI styles per category. Categories not listed are printed plain.
var styles = map[Category]string{
	Success:    "\033[32m",
	Warning:    "\033[33m",
	Error:      "\033[31m",
	Missing:    "\033[30m\033[41m",
	Differ:     "\033[31m",
	DiffHeader: "\033[1m",
	DiffHunk:   "\033[36m",
	DiffAdd:    "\033[32m",
	DiffRemove: "\033[31m",
}

const reset = "\033[0m"

// ColorMode selects when color codes are emitted.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// Valid reports whether m is a known color mode.
func (m ColorMode) Valid() bool {
	switch m {
	case ColorAuto, ColorAlways, ColorNever:
		return true
	}
	return false
}

// Console writes categorized lines to an output stream.
type Console struct {
	out   io.Writer
	color bool
}

// NewConsole creates a console writing to out.
func NewConsole(out io.Writer, mode ColorMode) *Console {
	return &Console{out: out, color: colorEnabled(out, mode)}
}

// Colored reports whether the console emits ANSI codes.
func (c *Console) Colored() bool {
	return c.color
}

// Println writes one line in the style of cat.
func (c *Console) Println(cat Category, text string) {
	_, _ = io.WriteString(c.out, c.Style(cat, text)+"\n")
}

// Printf formats and writes one line in the style of cat.
func (c *Console) Printf(cat Category, format string, args ...any) {
	c.Println(cat, fmt.Sprintf(format, args...))
}

// Style wraps text in the ANSI codes for cat when color is enabled.
func (c *Console) Style(cat Category, text string) string {
	style, ok := styles[cat]
	if !c.color || !ok {
		return text
	}
	return style + text + reset
}

func colorEnabled(out io.Writer, mode ColorMode) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
