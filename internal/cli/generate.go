package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/electwix/astconform/internal/generate"
)

func newGenerateCmd(a *app) *cobra.Command {
	var batch bool

	cmd := &cobra.Command{
		Use:   "generate <name> <sql>",
		Short: "Record a fixture from the tool's current output",
		Long: `Run dump_ast once for the query and store {"sql", "ast"} under the name,
replacing any existing fixture of that name.

With --batch, newline-delimited JSON objects {"name": ..., "sql": ...} are read
from standard input. Items fail independently; the command exits zero even
when some of them fail.`,
		Example: `  astconform generate select_literal "SELECT 1"
  astconform generate --batch < queries.jsonl`,
		Args: func(cmd *cobra.Command, args []string) error {
			if batch {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			gen := generate.New(a.invoker(), a.plan.Store(),
				generate.WithLogger(a.logger),
				generate.WithOutput(cmd.OutOrStdout(), cmd.ErrOrStderr()),
			)

			if batch {
				_, err := gen.Batch(cmd.Context(), cmd.InOrStdin())
				return err
			}
			if err := gen.Generate(cmd.Context(), args[0], args[1]); err != nil {
				return fmt.Errorf("%w: %w", ErrFailures, err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&batch, "batch", false, `read {"name", "sql"} JSON lines from stdin`)
	return cmd
}
