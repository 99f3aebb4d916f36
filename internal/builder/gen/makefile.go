// Package gen assembles and emits the generated makefile. The script is
// rebuilt from scratch on every invocation and handed to make on stdin;
// it is never written to disk.
package gen

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strings"
)

// objSuffix is the token tail the link aggregator scans for. Recipe
// templates in this package must never produce a token ending in it, or
// the textual scan in ScanObjects would pick up false prerequisites.
const objSuffix = ".o:"

var (
	ErrNoObjects    = errors.New("no object targets aggregated for a non-empty source list")
	ErrLinkMismatch = errors.New("link prerequisites do not match the generated object targets")
)

// profileBlock accumulates the rule text for a single build profile. The
// structured object-target list is kept alongside the text so the final
// link rule can be verified against it before emission.
type profileBlock struct {
	name       string
	dir        string
	exe        string
	srcCount   int
	objTargets []string
	sb         strings.Builder
}

// MakeGen builds the complete makefile: a global preamble, one rule block
// per profile, and a trailing clean rule, in that fixed order.
type MakeGen struct {
	preamble  string
	blocks    []string
	cleanDirs []string
	cur       *profileBlock
}

func NewMakeGen() *MakeGen {
	return &MakeGen{}
}

// SetPreamble emits the compiler assignment and the common CFLAGS shared
// by every profile. A non-empty revision stamp is appended as an extra
// define so builds can identify the tree they came from.
func (g *MakeGen) SetPreamble(cc string, cflags []string, revision string) {
	var sb strings.Builder

	writeln(&sb, "CC = ", cc)
	writeln(&sb)
	writeln(&sb, "CFLAGS = ", strings.Join(cflags, " "))
	if revision != "" {
		writeln(&sb, `CFLAGS += -DFRESHMK_REVISION=\"`, revision, `\"`)
	}
	writeln(&sb)
	writeln(&sb, ".PHONY: all")
	writeln(&sb)

	g.preamble = sb.String()
}

// BeginProfile opens a new profile block: the phony declarations, the
// target-specific CFLAGS appends, the completion messages, and the rule
// that creates the profile's output directory. Object rules for this
// profile are appended afterwards with AddObjectRule.
func (g *MakeGen) BeginProfile(name, dir, exe string, cflags, message []string) {
	if g.cur != nil {
		panic("gen: BeginProfile called with an unfinished profile block")
	}
	g.cur = &profileBlock{name: name, dir: dir, exe: exe}
	sb := &g.cur.sb

	deps := name + "_deps"
	writeln(sb, ".PHONY: ", name, " ", deps)
	writeln(sb)
	if len(cflags) > 0 {
		writeln(sb, name, ": CFLAGS += ", strings.Join(cflags, " "))
	}

	recipe := make([]string, 0, len(message))
	for _, line := range message {
		recipe = append(recipe, `@echo "`+line+`"`)
	}
	Rule{
		Target:  name,
		Prereqs: []string{deps, dir + exe},
		Recipe:  recipe,
	}.writeTo(sb)

	Rule{
		Target: deps,
		Recipe: []string{"@mkdir -p " + dir},
	}.writeTo(sb)
}

// AddObjectRule appends one compilation rule to the open profile block
// and records its target for the link-completeness check.
func (g *MakeGen) AddObjectRule(r Rule) {
	if g.cur == nil {
		panic("gen: AddObjectRule called outside a profile block")
	}
	r.writeTo(&g.cur.sb)
	g.cur.srcCount++
	g.cur.objTargets = append(g.cur.objTargets, r.Target)
}

// FinishProfile aggregates the object targets out of the accumulated rule
// text, verifies they match the rules that were actually generated, and
// closes the block with the profile's link rule. The library flags are
// appended after the object prerequisites; the linker needs them in that
// order to resolve symbols.
func (g *MakeGen) FinishProfile(libflags []string) error {
	if g.cur == nil {
		panic("gen: FinishProfile called outside a profile block")
	}
	cur := g.cur

	objects := ScanObjects(cur.sb.String())
	if cur.srcCount > 0 && len(objects) == 0 {
		return fmt.Errorf("profile %s: %w", cur.name, ErrNoObjects)
	}
	if !sameTargets(objects, cur.objTargets) {
		return fmt.Errorf("profile %s: %w (scanned %v, generated %v)",
			cur.name, ErrLinkMismatch, objects, cur.objTargets)
	}

	link := "$(CC) -o $@ $^"
	if len(libflags) > 0 {
		link += " " + strings.Join(libflags, " ")
	}
	Rule{
		Target:  cur.dir + cur.exe,
		Prereqs: objects,
		Recipe:  []string{link},
	}.writeTo(&cur.sb)

	g.blocks = append(g.blocks, cur.sb.String())
	g.cleanDirs = append(g.cleanDirs, cur.dir)
	g.cur = nil
	return nil
}

// ScanObjects extracts every object-artifact target from a block of rule
// text: any whitespace-delimited token ending in `.o:` with the rule
// separator stripped, in order of appearance. This is a textual scan, not
// a structured parse; it stays sound only while no recipe template emits
// a token with that tail.
func ScanObjects(block string) []string {
	var objects []string
	for _, tok := range strings.Fields(block) {
		if strings.HasSuffix(tok, objSuffix) {
			objects = append(objects, tok[:len(tok)-1])
		}
	}
	return objects
}

func sameTargets(scanned, generated []string) bool {
	a := slices.Clone(scanned)
	b := slices.Clone(generated)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(a, b)
}

// Generate concatenates preamble, profile blocks, and the clean rule into
// the final script. Output is byte-identical across runs for unchanged
// inputs; nothing here consults the clock, randomness, or map order.
func (g *MakeGen) Generate() string {
	if g.cur != nil {
		panic("gen: Generate called with an unfinished profile block")
	}

	var sb strings.Builder
	write(&sb, g.preamble)
	for _, block := range g.blocks {
		write(&sb, block)
	}

	writeln(&sb, ".PHONY: clean")
	writeln(&sb)
	Rule{
		Target: "clean",
		Recipe: []string{
			"@rm -rf " + strings.Join(g.cleanDirs, " "),
			`@echo "directories cleaned"`,
		},
	}.writeTo(&sb)

	return strings.TrimRight(sb.String(), "\n") + "\n"
}

// Invoke pipes the generated script into make's standard input and builds
// the requested target in the project directory.
func Invoke(dir, target, script string) error {
	cmd := exec.Command("make", "-f", "-", target)
	cmd.Dir = dir
	cmd.Stdin = strings.NewReader(script)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
