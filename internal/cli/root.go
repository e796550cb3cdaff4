// Package cli builds the astconform command tree.
package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/electwix/astconform/internal/config"
	"github.com/electwix/astconform/internal/fixture"
	"github.com/electwix/astconform/internal/invoker"
	"github.com/electwix/astconform/internal/logging"
)

// ErrFailures is returned after a command has already reported per-fixture
// failures on its output streams; callers only need to exit nonzero.
var ErrFailures = errors.New("one or more fixtures failed")

// app carries state resolved once per execution and shared by subcommands.
type app struct {
	configPath   string
	strictConfig bool

	plan   config.Plan
	logger logging.Logger
}

// NewRootCmd returns the astconform root command with every subcommand
// attached.
func NewRootCmd() *cobra.Command {
	a := &app{logger: logging.NewNopLogger()}

	root := &cobra.Command{
		Use:   "astconform",
		Short: "Record and replay AST fixtures for an external SQL parser",
		Long: `astconform drives an external dump_ast tool that prints the parse tree of
one SQL statement as JSON.

"generate" records the tool's current output as a golden fixture;
"verify" re-runs the tool for every fixture and reports any difference.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}
			return a.load(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "config file (default: "+config.DefaultFileName+" in this or a parent directory)")
	flags.String("dump-ast", "", "path to the dump_ast executable")
	flags.String("fixtures-dir", "", "directory holding fixture files")
	flags.String("format", "", "fixture encoding (json|yaml)")
	flags.Duration("timeout", 0, "per-invocation timeout")
	flags.Bool("sort-keys", false, "write AST object members in key order")
	flags.BoolVar(&a.strictConfig, "strict-config", false, "treat unknown configuration keys as errors")
	flags.BoolP("verbose", "v", false, "enable debug logging")
	flags.String("log-format", "", "log output format (text|json)")

	_ = root.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{string(fixture.FormatJSON), string(fixture.FormatYAML)}, cobra.ShellCompDirectiveNoFileComp
	})

	root.AddCommand(newGenerateCmd(a))
	root.AddCommand(newVerifyCmd(a))
	root.AddCommand(newListCmd(a))
	root.AddCommand(newRemoveCmd(a))

	return root
}

func (a *app) load(cmd *cobra.Command) error {
	res, err := config.Load(config.LoadOptions{
		Path:   a.configPath,
		Strict: a.strictConfig,
		Flags:  cmd.Root().PersistentFlags(),
	})
	if err != nil {
		return err
	}
	a.plan = res.Plan

	a.logger = logging.NewSlogAdapter(logging.New(logging.Options{
		Verbose: a.plan.Verbose,
		Format:  a.plan.LogFormat,
		Writer:  cmd.ErrOrStderr(),
	}))
	for _, warning := range res.Warnings {
		a.logger.Warn(warning)
	}
	if a.plan.ConfigFile != "" {
		a.logger.Debug("using config file", "path", a.plan.ConfigFile)
	}
	a.logger.Debug("configuration resolved",
		"dump_ast", a.plan.DumpAST,
		"fixtures_dir", a.plan.FixturesDir,
		"format", a.plan.Format,
		"timeout", a.plan.Timeout,
	)
	return nil
}

func (a *app) invoker() *invoker.Invoker {
	return invoker.New(a.plan.Command(),
		invoker.WithTimeout(a.plan.Timeout),
		invoker.WithLogger(a.logger),
	)
}

// selectNames resolves optional glob patterns against the store.
func selectNames(store *fixture.Store, patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		return store.Names()
	}
	return store.Match(patterns)
}
