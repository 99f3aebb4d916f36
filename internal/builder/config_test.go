package builder

import (
	"fmt"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseTestConfig(t *testing.T, src string) (*Config, error) {
	t.Helper()
	return ParseConfig(strings.NewReader(src), NewConfigEnv(t.TempDir()))
}

const minimalConfig = `
[package]
name = "lemon"

[target]
sources = ["./src/main.c"]
`

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := parseTestConfig(t, minimalConfig)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "lemon", cfg.Package.Name)
	assert.True(t, cfg.Package.StampEnabled())
	assert.Equal(t, []string{"-std=gnu17", "-Wall", "-Wextra"}, cfg.Target.Cflags)

	require.Len(t, cfg.Profile, 2)
	assert.Equal(t, "./debug/", cfg.Profile["debug"].Dir)
	assert.Equal(t, "./release/", cfg.Profile["release"].Dir)
	assert.Contains(t, cfg.Profile["debug"].Cflags, "-DDEBUG")
	assert.Contains(t, cfg.Profile["release"].Cflags, "-O3")
}

func TestParseConfigProfileOverride(t *testing.T) {
	cfg, err := parseTestConfig(t, minimalConfig+`
[profile.debug]
cflags = ["-g3"]
`)
	require.NoError(t, err)

	// overridden field replaces the default, untouched fields survive
	assert.Equal(t, []string{"-g3"}, cfg.Profile["debug"].Cflags)
	assert.Equal(t, "./debug/", cfg.Profile["debug"].Dir)
	assert.NotEmpty(t, cfg.Profile["debug"].Message)
}

func TestParseConfigUnknownProfile(t *testing.T) {
	_, err := parseTestConfig(t, minimalConfig+`
[profile.sanitize]
dir = "./san/"
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown profile")
}

func TestParseConfigStampDisabled(t *testing.T) {
	cfg, err := parseTestConfig(t, `
[package]
name = "lemon"
stamp = false

[target]
sources = ["./src/main.c"]
`)
	require.NoError(t, err)
	assert.False(t, cfg.Package.StampEnabled())
}

func TestParseConfigStringExpressions(t *testing.T) {
	cfg, err := parseTestConfig(t, `
[package]
name = "lemon"

[target]
sources = ["./src/main.c"]
cflags = ["-DBUILD_OS_{{ target_os }}"]
`)
	require.NoError(t, err)
	assert.Equal(t, []string{"-DBUILD_OS_" + runtime.GOOS}, cfg.Target.Cflags)
}

func TestParseConfigConditionalTargetSection(t *testing.T) {
	src := fmt.Sprintf(`
[package]
name = "lemon"

[target]
sources = ["./src/main.c"]
libraries = ["pthread"]

[target."target_os == '%s'"]
libraries = ["matched"]

[target."target_os == 'no-such-os'"]
libraries = ["skipped"]
`, runtime.GOOS)

	cfg, err := parseTestConfig(t, src)
	require.NoError(t, err)

	assert.Equal(t, []string{"pthread", "matched"}, cfg.Target.Libraries)
	assert.NotContains(t, cfg.Target.Libraries, "skipped")
}

func TestParseConfigCheckTables(t *testing.T) {
	cfg, err := parseTestConfig(t, minimalConfig+`
[[check]]
flag = "--Dtokens"
input = "./test/case.lem"
expect = ["LET", "IDENTIFIER", "EQUAL"]

[[check]]
input = "./test/empty.lem"
expect = []
`)
	require.NoError(t, err)

	require.Len(t, cfg.Check, 2)
	assert.Equal(t, "--Dtokens", cfg.Check[0].Flag)
	assert.Equal(t, "./test/case.lem", cfg.Check[0].Input)
	assert.Equal(t, []string{"LET", "IDENTIFIER", "EQUAL"}, cfg.Check[0].Expect)
	assert.Empty(t, cfg.Check[1].Flag)
}

func TestValidateMissingName(t *testing.T) {
	cfg, err := parseTestConfig(t, `
[target]
sources = ["./src/main.c"]
`)
	require.NoError(t, err)
	assert.ErrorContains(t, cfg.Validate(), "package.name")
}

func TestValidateEmptySources(t *testing.T) {
	cfg, err := parseTestConfig(t, `
[package]
name = "lemon"
`)
	require.NoError(t, err)
	assert.ErrorContains(t, cfg.Validate(), "target.sources")
}

func TestValidateNormalizesProfileDirs(t *testing.T) {
	cfg, err := parseTestConfig(t, minimalConfig+`
[profile.debug]
dir = "./dbg"
`)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "./dbg/", cfg.Profile["debug"].Dir)
}

func TestValidateSharedProfileDirs(t *testing.T) {
	cfg, err := parseTestConfig(t, minimalConfig+`
[profile.debug]
dir = "./out/"

[profile.release]
dir = "./out/"
`)
	require.NoError(t, err)
	assert.ErrorContains(t, cfg.Validate(), "share output directory")
}
