// Package msg prints user-facing diagnostics. Everything goes to stderr:
// stdout is reserved for the generated script.
package msg

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// out is where messages go. Stderr by default; tests swap it to
// capture output.
var out io.Writer = os.Stderr

func prefixed(prefix, format string, a ...any) {
	fmt.Fprint(out, prefix, ": ")
	fmt.Fprintf(out, format, a...)
	fmt.Fprint(out, "\n")
}

func Error(format string, a ...any) {
	prefixed(color.HiRedString("error"), format, a...)
}

func Warn(format string, a ...any) {
	prefixed(color.YellowString("warn"), format, a...)
}

func Fatal(format string, a ...any) {
	prefixed(color.RedString("fatal"), format, a...)
	os.Exit(1)
}

func Info(format string, a ...any) {
	prefixed(color.HiGreenString("info"), format, a...)
}

// IndentWriter indents every line written through it. Used to offset
// captured compiler diagnostics from freshmk's own messages.
type IndentWriter struct {
	Indent    string
	W         io.Writer
	didIndent bool
}

func (w *IndentWriter) Write(p []byte) (n int, err error) {
	for _, c := range p {
		if !w.didIndent {
			w.W.Write([]byte(w.Indent))
			w.didIndent = true
		}
		w.W.Write([]byte{c})
		if c == '\n' || c == '\r' {
			w.didIndent = false
		}
	}
	return len(p), nil
}
