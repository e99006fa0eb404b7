package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDeactivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate CODE",
		Short: "Clear every module in alarm back to active.",
		Long: `Checks the deactivation code and clears every module in alarm back to
active. Modules in maintenance or inactive are left untouched.

A running controller stops its siren when the alarm duration elapses.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			return withApp(ctx, func(a *app) error {
				cleared, err := a.orch.Deactivate(ctx, args[0])
				if err != nil {
					return err
				}

				_, err = fmt.Fprintf(out(cmd), "Alarm deactivated, %d module(s) cleared.\n", cleared)

				return err
			})
		},
	}
}
