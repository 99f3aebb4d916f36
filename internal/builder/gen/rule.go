package gen

import "strings"

// Rule is a single makefile rule: a target line followed by recipe lines.
// Rules are built as data so their invariants can be checked before the
// script text is assembled; the serialized form is the only thing that
// ever leaves this package.
type Rule struct {
	Target  string
	Prereqs []string
	Recipe  []string
}

// writeTo serializes the rule in make syntax: `target: p1 p2 ...`, each
// recipe line indented with exactly one tab (a make requirement), and a
// blank line terminating the rule.
func (r Rule) writeTo(sb *strings.Builder) {
	write(sb, r.Target, ":")
	for _, p := range r.Prereqs {
		write(sb, " ", p)
	}
	writeln(sb)
	for _, line := range r.Recipe {
		writeln(sb, "\t", line)
	}
	writeln(sb)
}

// String returns the serialized rule text.
func (r Rule) String() string {
	var sb strings.Builder
	r.writeTo(&sb)
	return sb.String()
}

func write(sb *strings.Builder, parts ...string) {
	for _, s := range parts {
		sb.WriteString(s)
	}
}

func writeln(sb *strings.Builder, parts ...string) {
	write(sb, parts...)
	sb.WriteByte('\n')
}
