package cli

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newListCmd(a *app) *cobra.Command {
	var namesOnly bool

	cmd := &cobra.Command{
		Use:   "list [pattern...]",
		Short: "List stored fixtures and their queries",
		Example: `  astconform list
  astconform list 'select_*' --names`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := a.plan.Store()
			names, err := selectNames(store, args)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if namesOnly {
				for _, name := range names {
					_, _ = fmt.Fprintln(out, name)
				}
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(out)
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Fixture", "SQL"})
			for _, name := range names {
				f, err := store.Load(name)
				if err != nil {
					t.AppendRow(table.Row{name, fmt.Sprintf("(unreadable: %v)", err)})
					continue
				}
				t.AppendRow(table.Row{name, f.SQL})
			}
			t.Render()
			_, _ = fmt.Fprintf(out, "%d fixtures in %s\n", len(names), store.Dir())
			return nil
		},
	}

	cmd.Flags().BoolVar(&namesOnly, "names", false, "print only fixture names, one per line")
	return cmd
}
