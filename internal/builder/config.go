package builder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/pelletier/go-toml/v2"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// ConfigFilename is the per-project configuration file.
const ConfigFilename = "Freshmk.toml"

// ProfileOrder fixes the order in which profile blocks are emitted into
// the script. Determinism of the generated makefile depends on it.
var ProfileOrder = []string{"debug", "release"}

func defaultCflags() []string {
	return []string{"-std=gnu17", "-Wall", "-Wextra"}
}

func defaultProfiles() map[string]ProfileSection {
	return map[string]ProfileSection{
		"debug": {
			Dir:    "./debug/",
			Cflags: []string{"-ggdb", "-O0", "-DDEBUG"},
			Message: []string{
				"Build finished successfully.",
				"Compiled in debug mode.",
			},
		},
		"release": {
			Dir:    "./release/",
			Cflags: []string{"-O3", "-march=native"},
			Message: []string{
				"Build finished successfully.",
				"Compiled in release mode.",
			},
		},
	}
}

type Config struct {
	Package PackageSection            `toml:"package"`
	Target  TargetSection             `toml:"target"`
	Profile map[string]ProfileSection `toml:"profile"`
	Check   []CheckSection            `toml:"check"`
}

// PackageSection defines the [package] section.
type PackageSection struct {
	Name        string   `toml:"name"`
	Description string   `toml:"description"`
	Authors     []string `toml:"authors"`
	Build       string   `toml:"build"`
	Stamp       *bool    `toml:"stamp"`
}

// StampEnabled reports whether the git revision define should be added to
// the preamble. On by default.
func (p PackageSection) StampEnabled() bool {
	return p.Stamp == nil || *p.Stamp
}

// TargetSection defines the [target(.*)] section.
type TargetSection struct {
	CC        string   `toml:"cc"`
	Cflags    []string `toml:"cflags"`
	Sources   []string `toml:"sources"`
	Libraries []string `toml:"libraries"`
}

// ProfileSection defines one [profile.*] section. Exactly two profiles
// exist, debug and release; the config can override their fields but not
// add or remove profiles.
type ProfileSection struct {
	Dir     string   `toml:"dir"`
	Cflags  []string `toml:"cflags"`
	Message []string `toml:"message"`
}

// CheckSection defines one [[check]] table consumed by the token-stream
// harness.
type CheckSection struct {
	Flag   string   `toml:"flag"`
	Input  string   `toml:"input"`
	Expect []string `toml:"expect"`
}

// Validate enforces the configuration invariants the generator relies on.
// Profile directories are normalized to end in a separator so they can be
// concatenated with target names directly.
func (c *Config) Validate() error {
	if c.Package.Name == "" {
		return errors.New("package.name must be set (it names the executable)")
	}
	if len(c.Target.Sources) == 0 {
		return errors.New("target.sources must not be empty")
	}
	if len(c.Profile) != len(ProfileOrder) {
		return fmt.Errorf("exactly %d profiles are supported (%s)", len(ProfileOrder), strings.Join(ProfileOrder, ", "))
	}

	dirs := make(map[string]string)
	for _, name := range ProfileOrder {
		prof, ok := c.Profile[name]
		if !ok {
			return fmt.Errorf("missing [profile.%s] section", name)
		}
		if prof.Dir == "" {
			return fmt.Errorf("profile.%s.dir must be set", name)
		}
		if !strings.HasSuffix(prof.Dir, "/") {
			prof.Dir += "/"
			c.Profile[name] = prof
		}
		if other, taken := dirs[prof.Dir]; taken {
			return fmt.Errorf("profiles %s and %s share output directory %s", other, name, prof.Dir)
		}
		dirs[prof.Dir] = name
	}

	for _, chk := range c.Check {
		if chk.Input == "" {
			return errors.New("check.input must be set")
		}
	}

	return nil
}

func mustMarshal(v any) string {
	b, err := toml.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}

// unmarshalSection is a helper to parse sections without conditional logic.
func unmarshalSection(rawCfg map[string]any, name string, dst any) error {
	if data, ok := rawCfg[name]; ok {
		if err := toml.Unmarshal([]byte(mustMarshal(data)), dst); err != nil {
			return fmt.Errorf("failed to parse [%s] section: %w", name, err)
		}
	}
	return nil
}

// unmarshalConditionalSection parses a section whose sub-tables may be
// keyed by expr conditions, merging every matching sub-table into dst.
func unmarshalConditionalSection(rawCfg map[string]any, name string, dst *TargetSection, env ConfigEnv) error {
	sectionData, ok := rawCfg[name]
	if !ok {
		return nil
	}

	sectionMap, ok := sectionData.(map[string]any)
	if !ok {
		return fmt.Errorf("invalid [%s] section format: expected a table", name)
	}

	baseFields := make(map[string]any)
	conditionalFields := make(map[string]map[string]any)

	for key, val := range sectionMap {
		if subMap, ok := val.(map[string]any); ok {
			if _, err := expr.Compile(key, expr.Env(env)); err == nil {
				conditionalFields[key] = subMap
				continue
			}
		}
		baseFields[key] = val
	}

	if len(baseFields) > 0 {
		if err := toml.Unmarshal([]byte(mustMarshal(baseFields)), dst); err != nil {
			return fmt.Errorf("failed to parse base [%s] section: %w", name, err)
		}
	}

	for expression, condMap := range conditionalFields {
		program, err := expr.Compile(expression, expr.Env(env))
		if err != nil {
			return fmt.Errorf("failed to compile expression for [%s.%q]: %w", name, expression, err)
		}

		result, err := expr.Run(program, env)
		if err != nil {
			return fmt.Errorf("failed to run expression for [%s.%q]: %w", name, expression, err)
		}

		if matched, ok := result.(bool); !ok || !matched {
			continue
		}

		var condSection TargetSection
		if err := toml.Unmarshal([]byte(mustMarshal(condMap)), &condSection); err != nil {
			return fmt.Errorf("failed to parse conditional section [%s.%q]: %w", name, expression, err)
		}
		mergeTargetSection(dst, condSection)
	}

	return nil
}

// mergeTargetSection appends list fields and overrides scalar fields of
// dst with non-zero values from src.
func mergeTargetSection(dst *TargetSection, src TargetSection) {
	if src.CC != "" {
		dst.CC = src.CC
	}
	dst.Cflags = append(dst.Cflags, src.Cflags...)
	dst.Sources = append(dst.Sources, src.Sources...)
	dst.Libraries = append(dst.Libraries, src.Libraries...)
}

// mergeProfile lays user overrides over a default profile, field by field.
func mergeProfile(base, override ProfileSection) ProfileSection {
	if override.Dir != "" {
		base.Dir = override.Dir
	}
	if override.Cflags != nil {
		base.Cflags = override.Cflags
	}
	if override.Message != nil {
		base.Message = override.Message
	}
	return base
}

var exprRegex = regexp.MustCompile(`\{\{(.+?)\}\}`)

// evaluateString finds and evaluates all {{...}} expressions in a string.
func evaluateString(s string, env ConfigEnv) (string, error) {
	matches := exprRegex.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, nil
	}

	var builder strings.Builder
	lastIndex := 0

	for _, matchIndexes := range matches {
		builder.WriteString(s[lastIndex:matchIndexes[0]])

		expression := strings.TrimSpace(s[matchIndexes[2]:matchIndexes[3]])
		program, err := expr.Compile(expression, expr.Env(env))
		if err != nil {
			return "", fmt.Errorf("failed to compile expression %q: %w", expression, err)
		}

		result, err := expr.Run(program, env)
		if err != nil {
			return "", fmt.Errorf("failed to run expression %q: %w", expression, err)
		}

		builder.WriteString(fmt.Sprintf("%v", result))
		lastIndex = matchIndexes[1]
	}

	builder.WriteString(s[lastIndex:])

	return builder.String(), nil
}

// processExpressions recursively walks the parsed TOML data and evaluates
// expressions in strings.
func processExpressions(data any, env ConfigEnv) (any, error) {
	switch v := data.(type) {
	case map[string]any:
		for key, val := range v {
			processedVal, err := processExpressions(val, env)
			if err != nil {
				return nil, err
			}
			v[key] = processedVal
		}
		return v, nil
	case []any:
		for i, item := range v {
			processedItem, err := processExpressions(item, env)
			if err != nil {
				return nil, err
			}
			v[i] = processedItem
		}
		return v, nil
	case string:
		return evaluateString(v, env)
	default:
		return data, nil
	}
}

func ParseConfig(rdr io.Reader, env ConfigEnv) (*Config, error) {
	var rawConfig map[string]any
	dec := toml.NewDecoder(rdr)
	if err := dec.Decode(&rawConfig); err != nil {
		if derr, ok := err.(*toml.DecodeError); ok {
			return nil, errors.New(derr.String())
		}
		return nil, err
	}

	processedConfig, err := processExpressions(rawConfig, env)
	if err != nil {
		return nil, fmt.Errorf("error processing expressions in config: %w", err)
	}
	rawConfig = processedConfig.(map[string]any)

	cfg := new(Config)

	if err := unmarshalSection(rawConfig, "package", &cfg.Package); err != nil {
		return nil, err
	}
	if err := unmarshalConditionalSection(rawConfig, "target", &cfg.Target, env); err != nil {
		return nil, err
	}

	cfg.Profile = defaultProfiles()
	var userProfiles map[string]ProfileSection
	if err := unmarshalSection(rawConfig, "profile", &userProfiles); err != nil {
		return nil, err
	}
	for name, override := range userProfiles {
		base, ok := cfg.Profile[name]
		if !ok {
			return nil, fmt.Errorf("unknown profile %q, known profiles: %s", name, strings.Join(ProfileOrder, ", "))
		}
		cfg.Profile[name] = mergeProfile(base, override)
	}

	// [[check]] is an array of tables; wrap it so the TOML round-trip
	// through mustMarshal stays valid (TOML has no top-level arrays)
	if data, ok := rawConfig["check"]; ok {
		var wrap struct {
			Check []CheckSection `toml:"check"`
		}
		if err := toml.Unmarshal([]byte(mustMarshal(map[string]any{"check": data})), &wrap); err != nil {
			return nil, fmt.Errorf("failed to parse [[check]] tables: %w", err)
		}
		cfg.Check = wrap.Check
	}

	if len(cfg.Target.Cflags) == 0 {
		cfg.Target.Cflags = defaultCflags()
	}

	return cfg, nil
}

// ParseConfigFromFile parses and validates a config file from a filepath.
func ParseConfigFromFile(path string, env ConfigEnv) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg, err := ParseConfig(bufio.NewReader(f), env)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

//
// expr-lang helpers
//

// RunBuildScript evaluates the optional [package] build expression. It
// runs before dependency scanning so the script can regenerate sources
// (for example patching a generated keyword table) ahead of the scan.
func (cfg Config) RunBuildScript(env ConfigEnv) error {
	if cfg.Package.Build == "" {
		return nil
	}

	program, err := expr.Compile(cfg.Package.Build, expr.Env(env))
	if err != nil {
		return fmt.Errorf("failed to compile build script for package %q: %w", cfg.Package.Name, err)
	}
	result, err := expr.Run(program, env)
	if err != nil {
		return fmt.Errorf("failed to run build script for package %q: %w", cfg.Package.Name, err)
	}

	if result, ok := result.(bool); !ok || !result {
		return fmt.Errorf("build script for package %q returned false\n%s", cfg.Package.Name, cfg.Package.Build)
	}

	return nil
}

// ConfigEnv is the environment visible to config expressions.
type ConfigEnv struct {
	TargetOS   string            `expr:"target_os"`
	TargetArch string            `expr:"target_arch"`
	Environ    map[string]string `expr:"environ"`
	basedir    string
}

func NewConfigEnv(basedir string) ConfigEnv {
	environ := make(map[string]string)
	for _, e := range os.Environ() {
		if i := strings.Index(e, "="); i >= 0 {
			environ[e[:i]] = e[i+1:]
		}
	}

	return ConfigEnv{
		TargetOS:   runtime.GOOS,
		TargetArch: runtime.GOARCH,
		Environ:    environ,
		basedir:    basedir,
	}
}

// Patch applies a diff-match-patch text patch to a file in the project
// directory. Exposed to build scripts so generated sources can be fixed
// up before compilation.
func (env ConfigEnv) Patch(path, patchText string) bool {
	fullPath := filepath.Join(env.basedir, path)
	data, err := os.ReadFile(fullPath)
	if err != nil {
		panic(err)
	}
	origText := string(data)

	dmp := diffmatchpatch.New()
	patches, err := dmp.PatchFromText(patchText)
	if err != nil {
		panic(err)
	}
	patchedText, results := dmp.PatchApply(patches, origText)

	applied := false
	for _, ok := range results {
		if ok {
			applied = true
			break
		}
	}
	if !applied {
		return false // nothing was applied, nothing to write
	}

	if err := os.WriteFile(fullPath, []byte(patchedText), 0644); err != nil {
		panic(err)
	}

	return true
}

// ReadFile reads a file relative to the project directory.
func (env ConfigEnv) ReadFile(path string) (string, error) {
	fullPath := filepath.Join(env.basedir, path)
	if _, err := filepath.Rel(env.basedir, fullPath); err != nil {
		panic(fmt.Sprintf("path %q is outside of package directory %q", path, env.basedir))
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		panic(err)
	}

	return string(data), nil
}
