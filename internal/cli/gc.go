// internal/cli/gc.go
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newGCCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "gc",
		Short: "Delete expired analysis records from the configured stores",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.Store.DeleteExpired(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted %d expired records\n", n)
			return err
		},
	}
}
