// Package config loads and validates the astconform configuration.
//
// Values are layered, lowest precedence first: built-in defaults, the TOML
// config file, ASTCONFORM_* environment variables, then command-line flags
// that were explicitly set.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/pflag"

	"github.com/electwix/astconform/internal/fixture"
	"github.com/electwix/astconform/internal/invoker"
	"github.com/electwix/astconform/internal/logging"
)

const (
	// DefaultFileName is looked up in the working directory and its parents
	// when no config path is given.
	DefaultFileName = "astconform.toml"
	// EnvPrefix prefixes every environment override, e.g. ASTCONFORM_TIMEOUT.
	EnvPrefix = "ASTCONFORM_"
	// EnvConfigPath names the config file when no path is passed explicitly.
	EnvConfigPath = EnvPrefix + "CONFIG"

	DefaultDumpAST     = "build/dump_ast"
	DefaultFixturesDir = "ast-tests"
	DefaultTimeout     = invoker.DefaultTimeout

	maxUpwardSearchLevels = 10
)

// Keys recognised in any layer.
const (
	KeyDumpAST     = "dump_ast"
	KeyDumpASTArgs = "dump_ast_args"
	KeyFixturesDir = "fixtures_dir"
	KeyFormat      = "format"
	KeyTimeout     = "timeout"
	KeySortKeys    = "sort_keys"
	KeyVerbose     = "verbose"
	KeyLogFormat   = "log_format"
)

var knownKeys = []string{
	KeyDumpAST,
	KeyDumpASTArgs,
	KeyFixturesDir,
	KeyFormat,
	KeyTimeout,
	KeySortKeys,
	KeyVerbose,
	KeyLogFormat,
}

// Config mirrors the astconform.toml schema.
type Config struct {
	DumpAST     string        `koanf:"dump_ast"`
	DumpASTArgs []string      `koanf:"dump_ast_args"`
	FixturesDir string        `koanf:"fixtures_dir"`
	Format      string        `koanf:"format"`
	Timeout     time.Duration `koanf:"timeout"`
	SortKeys    bool          `koanf:"sort_keys"`
	Verbose     bool          `koanf:"verbose"`
	LogFormat   string        `koanf:"log_format"`
}

// Plan is the validated configuration handed to the commands.
type Plan struct {
	// ConfigFile is the file that was read, empty when none was found.
	ConfigFile  string
	DumpAST     string
	DumpASTArgs []string
	FixturesDir string
	Format      fixture.Format
	Timeout     time.Duration
	SortKeys    bool
	Verbose     bool
	LogFormat   logging.Format
}

// Command describes how to start the dump tool.
func (p Plan) Command() invoker.Command {
	return invoker.Command{Path: p.DumpAST, Args: slices.Clone(p.DumpASTArgs)}
}

// Store opens the fixture directory with the configured encoding.
func (p Plan) Store(opts ...fixture.StoreOption) *fixture.Store {
	base := []fixture.StoreOption{fixture.WithFormat(p.Format), fixture.WithSortKeys(p.SortKeys)}
	return fixture.NewStore(p.FixturesDir, append(base, opts...)...)
}

// LoadOptions tunes config loading behavior.
type LoadOptions struct {
	// Path is an explicit config file. When empty, EnvConfigPath is consulted,
	// then DefaultFileName is searched upward from WorkDir.
	Path string
	// WorkDir defaults to the process working directory.
	WorkDir string
	// Strict turns unknown file keys into an error.
	Strict bool
	// Flags contributes every flag marked as changed.
	Flags *pflag.FlagSet
}

// Result wraps a loaded plan alongside any non-fatal warnings.
type Result struct {
	Plan     Plan
	Warnings []string
}

// Load resolves every configuration layer into a Plan.
func Load(opts LoadOptions) (Result, error) {
	var res Result

	workDir := opts.WorkDir
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return res, fmt.Errorf("config: working directory: %w", err)
		}
		workDir = wd
	}

	path, err := findConfigFile(opts.Path, workDir)
	if err != nil {
		return res, err
	}
	baseDir := workDir
	if path != "" {
		baseDir = filepath.Dir(path)
	}

	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]any{
		KeyDumpAST:     resolveCommand(DefaultDumpAST, baseDir),
		KeyFixturesDir: resolvePath(DefaultFixturesDir, baseDir),
		KeyFormat:      string(fixture.FormatJSON),
		KeyTimeout:     DefaultTimeout.String(),
		KeySortKeys:    false,
		KeyVerbose:     false,
		KeyLogFormat:   string(logging.FormatText),
	}, "."), nil); err != nil {
		return res, fmt.Errorf("config: load defaults: %w", err)
	}

	if path != "" {
		fk := koanf.New(".")
		if err := fk.Load(file.Provider(path), tomlParser{}); err != nil {
			return res, fmt.Errorf("%s: %w", path, err)
		}

		if unknown := unknownKeys(fk.Keys()); len(unknown) > 0 {
			message := fmt.Sprintf("%s: unknown configuration keys: %s", path, strings.Join(unknown, ", "))
			if opts.Strict {
				return res, errors.New(message)
			}
			res.Warnings = append(res.Warnings, message)
		}

		// Paths in the file are relative to the file itself.
		for key, resolve := range map[string]func(string, string) string{
			KeyDumpAST:     resolveCommand,
			KeyFixturesDir: resolvePath,
		} {
			if fk.Exists(key) {
				if err := fk.Set(key, resolve(fk.String(key), baseDir)); err != nil {
					return res, fmt.Errorf("%s: %w", path, err)
				}
			}
		}
		if err := k.Merge(fk); err != nil {
			return res, fmt.Errorf("%s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return res, fmt.Errorf("config: load environment: %w", err)
	}

	if opts.Flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			if !slices.Contains(knownKeys, key) {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		}), nil); err != nil {
			return res, fmt.Errorf("config: load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				secondsToDurationHook(),
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			Result:           &cfg,
			WeaklyTypedInput: true,
		},
	}); err != nil {
		return res, fmt.Errorf("config: decode: %w", err)
	}

	plan, err := validate(cfg)
	if err != nil {
		if path != "" {
			return res, fmt.Errorf("%s: %w", path, err)
		}
		return res, err
	}
	plan.ConfigFile = path
	res.Plan = plan
	return res, nil
}

func validate(cfg Config) (Plan, error) {
	if strings.TrimSpace(cfg.DumpAST) == "" {
		return Plan{}, errors.New("dump_ast is required")
	}
	if strings.TrimSpace(cfg.FixturesDir) == "" {
		return Plan{}, errors.New("fixtures_dir is required")
	}
	if cfg.Timeout <= 0 {
		return Plan{}, fmt.Errorf("timeout must be positive, got %s", cfg.Timeout)
	}
	format, err := fixture.ParseFormat(cfg.Format)
	if err != nil {
		return Plan{}, err
	}
	logFormat, err := logging.ParseFormat(cfg.LogFormat)
	if err != nil {
		return Plan{}, err
	}

	args := make([]string, 0, len(cfg.DumpASTArgs))
	for _, arg := range cfg.DumpASTArgs {
		if arg = strings.TrimSpace(arg); arg != "" {
			args = append(args, arg)
		}
	}

	return Plan{
		DumpAST:     cfg.DumpAST,
		DumpASTArgs: args,
		FixturesDir: filepath.Clean(cfg.FixturesDir),
		Format:      format,
		Timeout:     cfg.Timeout,
		SortKeys:    cfg.SortKeys,
		Verbose:     cfg.Verbose,
		LogFormat:   logFormat,
	}, nil
}

func findConfigFile(explicit, workDir string) (string, error) {
	if explicit == "" {
		explicit = os.Getenv(EnvConfigPath)
	}
	if explicit != "" {
		path := resolvePath(explicit, workDir)
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("config: %w", err)
		}
		return path, nil
	}

	dir := workDir
	for range maxUpwardSearchLevels {
		candidate := filepath.Join(dir, DefaultFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", nil
}

// resolvePath anchors a relative path at baseDir.
func resolvePath(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// resolveCommand is resolvePath for executables: bare command names without
// a separator are kept so they are looked up on PATH.
func resolveCommand(path, baseDir string) string {
	if !strings.ContainsRune(path, '/') && !strings.ContainsRune(path, filepath.Separator) {
		return path
	}
	return resolvePath(path, baseDir)
}

// envKey maps ASTCONFORM_FIXTURES_DIR to fixtures_dir. Variables that do not
// name a known key are skipped.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	if !slices.Contains(knownKeys, key) {
		return ""
	}
	return key
}

func unknownKeys(keys []string) []string {
	seen := make(map[string]struct{})
	for _, key := range keys {
		top, _, _ := strings.Cut(key, ".")
		if !slices.Contains(knownKeys, top) {
			seen[top] = struct{}{}
		}
	}
	unknown := make([]string, 0, len(seen))
	for key := range seen {
		unknown = append(unknown, key)
	}
	slices.Sort(unknown)
	return unknown
}

// secondsToDurationHook reads bare numbers as seconds, so `timeout = 10` and
// ASTCONFORM_TIMEOUT=10 mean ten seconds rather than ten nanoseconds.
func secondsToDurationHook() mapstructure.DecodeHookFuncType {
	durationType := reflect.TypeOf(time.Duration(0))
	return func(_ reflect.Type, to reflect.Type, data any) (any, error) {
		if to != durationType {
			return data, nil
		}
		switch v := data.(type) {
		case int:
			return time.Duration(v) * time.Second, nil
		case int64:
			return time.Duration(v) * time.Second, nil
		case float64:
			return time.Duration(v * float64(time.Second)), nil
		case string:
			if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
				return time.Duration(n) * time.Second, nil
			}
		}
		return data, nil
	}
}

// tomlParser adapts go-toml to koanf.Parser.
type tomlParser struct{}

func (tomlParser) Unmarshal(b []byte) (map[string]any, error) {
	out := map[string]any{}
	if err := toml.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (tomlParser) Marshal(o map[string]any) ([]byte, error) {
	return toml.Marshal(o)
}
