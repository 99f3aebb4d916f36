package builder

import (
	"fmt"
	"os"
	"os/exec"
)

// The generated script depends on GCC behavior twice over: the -MM
// dependency-listing mode and the target-specific CFLAGS appends. Only
// GCC-compatible drivers are probed.
var gccCandidates = []string{"gcc", "cc"}

// findCompiler resolves the C compiler to drive dependency scanning and
// to name in the script's CC assignment. Order: explicit config value,
// $CC, then the first candidate on PATH.
func findCompiler(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	if cc := os.Getenv("CC"); cc != "" {
		return cc, nil
	}

	for _, compiler := range gccCandidates {
		if _, err := exec.LookPath(compiler); err == nil {
			return compiler, nil
		}
	}

	return "", fmt.Errorf("no GCC-compatible compiler found (tried %v); set target.cc or $CC", gccCandidates)
}
