package builder

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/freshmk-build/freshmk/internal/msg"
)

var errMalformedDepRule = errors.New("dependency scan output has no target/prerequisite separator")

// depRule is the structured form of one `cc -MM` output rule. The raw
// text is parsed into this record before anything downstream touches it.
type depRule struct {
	target  string
	prereqs []string
}

// scanFunc captures the external dependency-scan invocation so tests can
// substitute a fake compiler.
type scanFunc func(cc, dir, path string) ([]byte, error)

// scanDeps runs the compiler's dependency-listing mode for one source
// file and returns its raw stdout. A nonzero exit is fatal for the whole
// generation run; the compiler's diagnostics are folded into the error so
// the user sees why the scan failed.
func scanDeps(cc, dir, path string) ([]byte, error) {
	cmd := exec.Command(cc, "-MM", path)
	cmd.Dir = dir

	out, err := cmd.Output()
	if err != nil {
		return nil, scanError(cc, path, err)
	}
	return out, nil
}

// scanError wraps a failed scan invocation. Captured compiler
// diagnostics are indented under the error line to set them off from
// freshmk's own message.
func scanError(cc, path string, err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
		var diag bytes.Buffer
		w := &msg.IndentWriter{Indent: "  ", W: &diag}
		w.Write(bytes.TrimSpace(exitErr.Stderr))
		return fmt.Errorf("%s -MM %s: %w\n%s", cc, path, err, diag.Bytes())
	}
	return fmt.Errorf("%s -MM %s: %w", cc, path, err)
}

// parseDepRule turns raw scanner output into a depRule. Backslash
// continuations are joined first; the whole capture is one logical rule
// regardless of embedded newlines. Output without a colon violates the
// scanner contract and aborts generation.
func parseDepRule(raw []byte) (depRule, error) {
	joined := strings.ReplaceAll(string(raw), "\\\r\n", " ")
	joined = strings.ReplaceAll(joined, "\\\n", " ")

	target, rest, ok := strings.Cut(joined, ":")
	if !ok {
		return depRule{}, fmt.Errorf("%w: %q", errMalformedDepRule, strings.TrimSpace(joined))
	}

	return depRule{
		target:  strings.TrimSpace(target),
		prereqs: strings.Fields(rest),
	}, nil
}
