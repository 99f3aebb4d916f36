// Package builder regenerates a dependency-aware makefile from scratch on
// every invocation. Nothing is cached between runs; the source tree is the
// only source of truth for prerequisites.
package builder

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/freshmk-build/freshmk/internal/builder/gen"
	"github.com/freshmk-build/freshmk/internal/msg"
)

var errUnknownProfile = errors.New("unknown profile")

const compileRecipe = "$(CC) $(CFLAGS) -c -o $@ $<"

type Builder struct {
	cfg     *Config
	basedir string
	env     ConfigEnv
	scan    scanFunc
}

func NewBuilderInDirectory(path string) (*Builder, error) {
	var err error
	path, err = filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	env := NewConfigEnv(path)
	cfg, err := ParseConfigFromFile(filepath.Join(path, ConfigFilename), env)
	if err != nil {
		return nil, err
	}
	return &Builder{cfg: cfg, basedir: path, env: env, scan: scanDeps}, nil
}

func (b *Builder) Config() *Config { return b.cfg }

// Executable returns the output path of the named profile's binary,
// relative to the project directory.
func (b *Builder) Executable(profile string) (string, error) {
	prof, ok := b.cfg.Profile[profile]
	if !ok {
		return "", fmt.Errorf("%w %q, known profiles: %s", errUnknownProfile, profile, strings.Join(ProfileOrder, ", "))
	}
	return prof.Dir + b.cfg.Package.Name, nil
}

// expandSources resolves the configured source list. Plain entries pass
// through verbatim; entries with glob metacharacters expand via
// doublestar with matches sorted, so the final list stays deterministic.
// Entries that would produce colliding object targets are rejected.
func (b *Builder) expandSources() ([]string, error) {
	fsys := os.DirFS(b.basedir)

	var files []string
	for _, pat := range b.cfg.Target.Sources {
		if !strings.ContainsAny(pat, "*?[{") {
			files = append(files, pat)
			continue
		}

		matches, err := doublestar.Glob(fsys, strings.TrimPrefix(pat, "./"), doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("bad source pattern %q: %w", pat, err)
		}
		if len(matches) == 0 {
			msg.Warn("source pattern %q matched no files", pat)
		}
		slices.Sort(matches)
		for _, m := range matches {
			files = append(files, "./"+m)
		}
	}

	// Object targets are named after the source basename, so two sources
	// may not share a stem even when their full paths differ.
	seen := make(map[string]struct{}, len(files))
	stems := make(map[string]string, len(files))
	for _, f := range files {
		if _, dup := seen[f]; dup {
			return nil, fmt.Errorf("duplicate source file %q in target.sources", f)
		}
		seen[f] = struct{}{}

		base := filepath.Base(f)
		stem := strings.TrimSuffix(base, filepath.Ext(base))
		if other, taken := stems[stem]; taken {
			return nil, fmt.Errorf("source files %q and %q collide on object target %s.o", other, f, stem)
		}
		stems[stem] = f
	}

	return files, nil
}

// libFlags maps library names to linker flags, order-preserving.
// Duplicates pass through to the link command verbatim.
func libFlags(libraries []string) []string {
	flags := make([]string, len(libraries))
	for i, lib := range libraries {
		flags[i] = "-l" + lib
	}
	return flags
}

// Generate produces the complete makefile text. Any failure aborts with
// no partial script: the caller only ever sees a full script or an error.
func (b *Builder) Generate() (string, error) {
	if err := b.cfg.RunBuildScript(b.env); err != nil {
		return "", err
	}

	sources, err := b.expandSources()
	if err != nil {
		return "", err
	}

	cc, err := findCompiler(b.cfg.Target.CC)
	if err != nil {
		return "", err
	}

	var revision string
	if b.cfg.Package.StampEnabled() {
		revision = revisionStamp(b.basedir)
	}

	g := gen.NewMakeGen()
	g.SetPreamble(cc, b.cfg.Target.Cflags, revision)

	for _, name := range ProfileOrder {
		prof, ok := b.cfg.Profile[name]
		if !ok {
			return "", fmt.Errorf("%w %q", errUnknownProfile, name)
		}

		g.BeginProfile(name, prof.Dir, b.cfg.Package.Name, prof.Cflags, prof.Message)

		for _, src := range sources {
			raw, err := b.scan(cc, b.basedir, src)
			if err != nil {
				return "", err
			}
			dep, err := parseDepRule(raw)
			if err != nil {
				return "", fmt.Errorf("scanning %s: %w", src, err)
			}

			// The scanner's own output does not reliably list the
			// source file among its prerequisites, so it is forced in
			// right after the separator.
			g.AddObjectRule(gen.Rule{
				Target:  prof.Dir + dep.target,
				Prereqs: append([]string{src}, dep.prereqs...),
				Recipe:  []string{compileRecipe},
			})
		}

		if err := g.FinishProfile(libFlags(b.cfg.Target.Libraries)); err != nil {
			return "", err
		}
	}

	return g.Generate(), nil
}

// Build generates the script and pipes it straight into make with the
// requested profile as the target. The script never touches disk.
func (b *Builder) Build(profile string) error {
	if _, ok := b.cfg.Profile[profile]; !ok {
		return fmt.Errorf("%w %q, known profiles: %s", errUnknownProfile, profile, strings.Join(ProfileOrder, ", "))
	}

	script, err := b.Generate()
	if err != nil {
		return err
	}
	return gen.Invoke(b.basedir, profile, script)
}

// Clean pipes the script to make with the clean target, removing both
// profile output directories.
func (b *Builder) Clean() error {
	script, err := b.Generate()
	if err != nil {
		return err
	}
	return gen.Invoke(b.basedir, "clean", script)
}

// BuildAndRun builds the requested profile and then executes the built
// binary with the given arguments.
func (b *Builder) BuildAndRun(args []string, profile string) error {
	if err := b.Build(profile); err != nil {
		return err
	}

	exe, err := b.Executable(profile)
	if err != nil {
		return err
	}

	cmd := exec.Command(filepath.Join(b.basedir, exe), args...)
	cmd.Dir = b.basedir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	return cmd.Run()
}
