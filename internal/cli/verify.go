package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/electwix/astconform/internal/conformance"
)

func newVerifyCmd(a *app) *cobra.Command {
	var (
		jobs   int
		repeat int
	)

	cmd := &cobra.Command{
		Use:   "verify [pattern...]",
		Short: "Re-run the tool on stored fixtures and compare the ASTs",
		Long: `Invoke dump_ast for every fixture (or those whose names match the glob
patterns) and require output structurally equal to the recorded AST.
Failures are reported per fixture and never stop the others.`,
		Example: `  astconform verify
  astconform verify 'select_*' --jobs 4
  astconform verify --repeat 3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := a.plan.Store()
			names, err := selectNames(store, args)
			if err != nil {
				return err
			}
			if len(names) == 0 {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "no fixtures in %s\n", store.Dir())
				return nil
			}

			results := conformance.Verify(cmd.Context(), a.invoker(), conformance.CasesFor(store, names), conformance.VerifyOptions{
				Jobs:   jobs,
				Repeat: repeat,
				Logger: a.logger,
			})

			renderResults(cmd.OutOrStdout(), results)
			reportFailures(cmd.ErrOrStderr(), results)

			if _, failed := conformance.Counts(results); failed > 0 {
				return fmt.Errorf("%w: %d of %d", ErrFailures, failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&jobs, "jobs", "j", 1, "number of fixtures verified concurrently")
	cmd.Flags().IntVar(&repeat, "repeat", 0, "also require identical output over this many runs per query")
	return cmd
}

func renderResults(w io.Writer, results []conformance.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Fixture", "Result", "Time"})

	for _, r := range results {
		status := "PASS"
		if !r.Passed() {
			status = "FAIL"
		}
		t.AppendRow(table.Row{r.Name, status, r.Duration.Round(time.Millisecond).String()})
	}

	t.Render()

	passed, failed := conformance.Counts(results)
	_, _ = fmt.Fprintf(w, "%d passed, %d failed\n", passed, failed)
}

func reportFailures(w io.Writer, results []conformance.Result) {
	for _, r := range results {
		if r.Passed() {
			continue
		}
		_, _ = fmt.Fprintf(w, "--- FAIL: %s\n", r.Name)
		for line := range strings.SplitSeq(strings.TrimRight(r.Err.Error(), "\n"), "\n") {
			_, _ = fmt.Fprintf(w, "    %s\n", line)
		}
	}
}
