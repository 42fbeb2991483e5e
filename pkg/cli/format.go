// Package cli provides shared output helpers for the netcfg command line.
package cli

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// colorEnabled is false when NO_COLOR is set (per no-color.org) or stdout
// is not a terminal, so CI logs stay free of escape codes.
var colorEnabled = os.Getenv("NO_COLOR") == "" && term.IsTerminal(int(os.Stdout.Fd()))

// SetColor forces color output on or off
func SetColor(on bool) {
	colorEnabled = on
}

func paint(code, s string) string {
	if !colorEnabled {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

// Green wraps s in ANSI green
func Green(s string) string { return paint("32", s) }

// Yellow wraps s in ANSI yellow
func Yellow(s string) string { return paint("33", s) }

// Red wraps s in ANSI red
func Red(s string) string { return paint("31", s) }

// Bold wraps s in ANSI bold
func Bold(s string) string { return paint("1", s) }

// Dim wraps s in ANSI dim
func Dim(s string) string { return paint("2", s) }

// Outcome colors a deployment outcome name: green for clean results, yellow
// for skips and partial results, red for everything else.
func Outcome(s string) string {
	switch {
	case s == "Success":
		return Green(s)
	case strings.HasPrefix(s, "Skipped"), s == "PartialFailure":
		return Yellow(s)
	default:
		return Red(s)
	}
}

// Severity colors a diagnostic severity
func Severity(s string) string {
	if s == "error" {
		return Red(s)
	}
	return Yellow(s)
}

// DotPad pads name with dots to the given width.
// Example: DotPad("r1", 10) → "r1 ......."
func DotPad(name string, width int) string {
	if width <= 0 || len(name) >= width-1 {
		return name
	}
	return name + " " + strings.Repeat(".", width-len(name)-1)
}
