package builder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeScanner serves canned dependency-scan output keyed by source path.
func fakeScanner(rules map[string]string) scanFunc {
	return func(cc, dir, path string) ([]byte, error) {
		out, ok := rules[path]
		if !ok {
			return nil, fmt.Errorf("unexpected scan of %s", path)
		}
		return []byte(out), nil
	}
}

func testBuilder(t *testing.T, config string, scan scanFunc) *Builder {
	t.Helper()

	dir := t.TempDir()
	env := NewConfigEnv(dir)

	cfg, err := ParseConfig(strings.NewReader(config), env)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	return &Builder{cfg: cfg, basedir: dir, env: env, scan: scan}
}

const twoFileConfig = `
[package]
name = "lemon"
stamp = false

[target]
cc = "gcc"
sources = ["./a.c", "./b.c"]
libraries = ["pthread", "m"]
`

var twoFileScans = map[string]string{
	"./a.c": "a.o: a.c a.h\n",
	"./b.c": "b.o: b.c\n",
}

func TestGenerateDeterminism(t *testing.T) {
	b := testBuilder(t, twoFileConfig, fakeScanner(twoFileScans))

	first, err := b.Generate()
	require.NoError(t, err)
	second, err := b.Generate()
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestGenerateInsertsSourcePrerequisite(t *testing.T) {
	// the scanner output deliberately omits the source file itself
	b := testBuilder(t, twoFileConfig, fakeScanner(map[string]string{
		"./a.c": "a.o: a.h\n",
		"./b.c": "b.o:\n",
	}))

	script, err := b.Generate()
	require.NoError(t, err)

	assert.Contains(t, script, "./debug/a.o: ./a.c a.h\n")
	assert.Contains(t, script, "./debug/b.o: ./b.c\n")
	assert.Contains(t, script, "./release/a.o: ./a.c a.h\n")
	assert.Contains(t, script, "./release/b.o: ./b.c\n")
}

func TestGenerateLinkCompleteness(t *testing.T) {
	b := testBuilder(t, twoFileConfig, fakeScanner(twoFileScans))

	script, err := b.Generate()
	require.NoError(t, err)

	assert.Contains(t, script, "./debug/lemon: ./debug/a.o ./debug/b.o\n")
	assert.Contains(t, script, "./release/lemon: ./release/a.o ./release/b.o\n")
}

func TestGenerateProfileIsolation(t *testing.T) {
	b := testBuilder(t, twoFileConfig, fakeScanner(twoFileScans))

	script, err := b.Generate()
	require.NoError(t, err)

	// no debug artifact may appear in the release block and vice versa
	releaseBlock := script[strings.Index(script, ".PHONY: release"):strings.Index(script, ".PHONY: clean")]
	assert.NotContains(t, releaseBlock, "./debug/")

	debugBlock := script[strings.Index(script, ".PHONY: debug"):strings.Index(script, ".PHONY: release")]
	assert.NotContains(t, debugBlock, "./release/")
}

func TestGenerateLibraryFlagOrdering(t *testing.T) {
	b := testBuilder(t, twoFileConfig, fakeScanner(twoFileScans))

	script, err := b.Generate()
	require.NoError(t, err)

	assert.Contains(t, script, "\t$(CC) -o $@ $^ -lpthread -lm\n")
}

func TestGenerateScanFailureAbortsRun(t *testing.T) {
	scanErr := errors.New("unreadable source file")
	b := testBuilder(t, twoFileConfig, func(cc, dir, path string) ([]byte, error) {
		if path == "./b.c" {
			return nil, scanErr
		}
		return []byte("a.o: a.c\n"), nil
	})

	script, err := b.Generate()
	require.Error(t, err)
	assert.ErrorIs(t, err, scanErr)
	assert.Empty(t, script, "no partial script may be emitted")
}

func TestGenerateMalformedScanOutput(t *testing.T) {
	b := testBuilder(t, twoFileConfig, fakeScanner(map[string]string{
		"./a.c": "garbage with no separator\n",
		"./b.c": "b.o: b.c\n",
	}))

	script, err := b.Generate()
	require.Error(t, err)
	assert.ErrorIs(t, err, errMalformedDepRule)
	assert.Empty(t, script)
}

func TestExpandSourcesGlobs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src", "sub"), 0o755))
	for _, name := range []string{"src/z.c", "src/a.c", "src/sub/m.c"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("int x;\n"), 0o644))
	}

	env := NewConfigEnv(dir)
	cfg, err := ParseConfig(strings.NewReader(`
[package]
name = "lemon"
stamp = false

[target]
sources = ["./src/**/*.c"]
`), env)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	b := &Builder{cfg: cfg, basedir: dir, env: env}
	sources, err := b.expandSources()
	require.NoError(t, err)

	// glob matches come back sorted, keeping generation deterministic
	assert.Equal(t, []string{"./src/a.c", "./src/sub/m.c", "./src/z.c"}, sources)
}

func TestExpandSourcesEmptyGlob(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.c"), []byte("int x;\n"), 0o644))

	env := NewConfigEnv(dir)
	cfg, err := ParseConfig(strings.NewReader(`
[package]
name = "lemon"
stamp = false

[target]
sources = ["./main.c", "./src/**/*.c"]
`), env)
	require.NoError(t, err)

	// a pattern matching nothing is not an error; the literal entries
	// still come through
	b := &Builder{cfg: cfg, basedir: dir, env: env}
	sources, err := b.expandSources()
	require.NoError(t, err)
	assert.Equal(t, []string{"./main.c"}, sources)
}

func TestExpandSourcesObjectCollision(t *testing.T) {
	b := testBuilder(t, `
[package]
name = "lemon"
stamp = false

[target]
sources = ["./src/a/x.c", "./src/b/x.c"]
`, nil)

	_, err := b.expandSources()
	require.Error(t, err)
	assert.ErrorContains(t, err, "collide on object target x.o")
	assert.ErrorContains(t, err, "./src/a/x.c")
	assert.ErrorContains(t, err, "./src/b/x.c")
}

func TestExpandSourcesDuplicate(t *testing.T) {
	b := testBuilder(t, `
[package]
name = "lemon"
stamp = false

[target]
sources = ["./a.c", "./a.c"]
`, nil)

	_, err := b.expandSources()
	assert.ErrorContains(t, err, "duplicate source file")
}

func TestExecutable(t *testing.T) {
	b := testBuilder(t, twoFileConfig, nil)

	exe, err := b.Executable("debug")
	require.NoError(t, err)
	assert.Equal(t, "./debug/lemon", exe)

	_, err = b.Executable("sanitize")
	assert.ErrorIs(t, err, errUnknownProfile)
}

func TestLibFlags(t *testing.T) {
	assert.Equal(t, []string{"-lpthread", "-lm", "-lm"}, libFlags([]string{"pthread", "m", "m"}))
	assert.Empty(t, libFlags(nil))
}
