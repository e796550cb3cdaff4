package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <name>...",
		Aliases: []string{"rm"},
		Short:   "Delete stored fixtures",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := a.plan.Store()
			for _, name := range args {
				if err := store.Remove(name); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", name)
				a.logger.Debug("fixture removed", "name", name, "path", store.Path(name))
			}
			return nil
		},
	}
}
