// Package check runs a built executable against configured inputs and
// compares its diagnostic token stream with an expected sequence. It is
// entirely downstream of a successful build and shares no state with
// script generation.
package check

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"runtime"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Case is one harness run: invoke the executable with Flag and Input,
// scrape its stderr, and require the token types to equal Expect.
type Case struct {
	Flag   string
	Input  string
	Expect []string
}

func (c Case) name() string {
	return strings.TrimSpace(c.Flag + " " + c.Input)
}

// typeRegion matches the token-type field, which sits between the first
// pair of colons on a diagnostic line.
var typeRegion = regexp.MustCompile(`:[^:]+:`)

// IsolateTypes extracts the token types from diagnostic output, in order
// of appearance. Only lines mentioning TOKEN are considered.
func IsolateTypes(text string) []string {
	var types []string

	for _, line := range strings.Split(text, "\n") {
		if !strings.Contains(line, "TOKEN") {
			continue
		}
		region := typeRegion.FindString(line)
		if region == "" {
			continue
		}
		types = append(types, strings.TrimSpace(region[1:len(region)-1]))
	}

	return types
}

// Runner executes harness cases against one built executable.
type Runner struct {
	// Exe is the path of the executable. It should be absolute: exec
	// resolves relative paths against the parent's cwd, not Dir.
	Exe string
	// Dir is the project directory the cases run in.
	Dir string
	// Limit caps concurrent cases; zero means NumCPU.
	Limit int

	// runCase is a seam for tests; it returns the captured stderr.
	runCase func(ctx context.Context, c Case) (string, error)
}

func NewRunner(exe, dir string) *Runner {
	r := &Runner{Exe: exe, Dir: dir}
	r.runCase = r.execCase
	return r
}

// Run executes all cases and returns the first failure. Cases are
// independent of each other, so they run concurrently.
func (r *Runner) Run(ctx context.Context, cases []Case) error {
	limit := r.Limit
	if limit <= 0 {
		limit = runtime.NumCPU()
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(limit)

	for _, c := range cases {
		eg.Go(func() error {
			stderr, err := r.runCase(ctx, c)
			if err != nil {
				return fmt.Errorf("check %s: %w", c.name(), err)
			}

			got := IsolateTypes(stderr)
			if !slices.Equal(got, c.Expect) {
				return fmt.Errorf("check %s: token stream mismatch\n  got:  %s\n  want: %s",
					c.name(), strings.Join(got, " "), strings.Join(c.Expect, " "))
			}
			return nil
		})
	}

	return eg.Wait()
}

func (r *Runner) execCase(ctx context.Context, c Case) (string, error) {
	args := make([]string, 0, 2)
	if c.Flag != "" {
		args = append(args, c.Flag)
	}
	args = append(args, c.Input)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.Exe, args...)
	cmd.Dir = r.Dir
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return "", fmt.Errorf("%w\n%s", err, bytes.TrimSpace(stderr.Bytes()))
		}
		return "", err
	}

	return stderr.String(), nil
}
