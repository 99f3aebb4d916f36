// Package kmap post-processes gperf-generated perfect-hash lookup tables
// so they compile cleanly under strict warning flags and against a public
// header that owns the key-pair struct. It is pure text substitution; no
// decision logic lives here.
package kmap

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Options parameterize the filter. Zero values fall back to the defaults
// used by the keyword-map workflow this package was written for.
type Options struct {
	// HashName is passed to gperf as --hash-function-name.
	HashName string
	// Header is the public API header to include; it declares the
	// key-pair struct the generated table must not redefine.
	Header string
	// StructDef is the exact struct definition line gperf emits, removed
	// from the output in favor of the Header declaration.
	StructDef string
}

func (o Options) withDefaults() Options {
	if o.HashName == "" {
		o.HashName = "kmap_hash"
	}
	if o.Header == "" {
		o.Header = "kmap.h"
	}
	if o.StructDef == "" {
		o.StructDef = "struct kv_pair { char *name; token_type typ; };"
	}
	return o
}

// runGperf captures the external gperf invocation so tests can
// substitute a fake.
var runGperf = func(dir string, args ...string) ([]byte, error) {
	cmd := exec.Command("gperf", args...)
	cmd.Dir = dir
	return cmd.Output()
}

// Generate runs gperf on the keywords file and filters its output.
func Generate(dir, keywords string, opts Options) (string, error) {
	opts = opts.withDefaults()

	out, err := runGperf(dir, "-t", "-C", "--null-strings",
		"--hash-function-name="+opts.HashName, keywords)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return "", fmt.Errorf("gperf %s: %w\n%s", keywords, err, bytes.TrimSpace(exitErr.Stderr))
		}
		return "", fmt.Errorf("gperf %s: %w", keywords, err)
	}

	return Filter(string(out), opts), nil
}

// Filter applies the three fixups to generated table text: header
// insertion, diagnostic suppression, and struct-redefinition removal.
func Filter(text string, opts Options) string {
	opts = opts.withDefaults()

	text = addIncludes(text, opts.Header)
	text = addDiagnostics(text)
	text = removeStruct(text, opts.StructDef, opts.Header)

	return text
}

// addIncludes prepends string.h (the lookup function compares keys with
// it) and the public API header.
func addIncludes(text, header string) string {
	return strings.Join([]string{
		"#include <string.h>",
		`#include "` + header + `"`,
		text,
	}, "\n\n")
}

// addDiagnostics wraps the table in GCC pragmas; the generated hash
// function narrows integers and would otherwise trip -Wconversion.
func addDiagnostics(text string) string {
	return strings.Join([]string{
		"#pragma GCC diagnostic push",
		`#pragma GCC diagnostic ignored "-Wconversion"`,
		text,
		"#pragma GCC diagnostic pop",
	}, "\n\n")
}

// removeStruct drops the struct definition the table shares with the
// public header, leaving a breadcrumb comment in its place.
func removeStruct(text, structDef, header string) string {
	name := structName(structDef)
	return strings.Replace(text, structDef, "//"+name+" defined in "+header, 1)
}

func structName(structDef string) string {
	fields := strings.Fields(structDef)
	if len(fields) >= 2 && fields[0] == "struct" {
		return fields[1]
	}
	return "struct"
}
