package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	var asJSON bool

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Summarise modules, alarms and suppression settings.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			return withApp(ctx, func(a *app) error {
				status, err := a.orch.Status(ctx)
				if err != nil {
					return err
				}

				if asJSON {
					enc := json.NewEncoder(out(cmd))
					enc.SetIndent("", "  ")

					return enc.Encode(status)
				}

				return printStatus(out(cmd), status)
			})
		},
	}
	statusCmd.Flags().BoolVar(&asJSON, "json", false, "print the status as JSON")

	return statusCmd
}
