package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newModuleCmd() *cobra.Command {
	moduleCmd := &cobra.Command{
		Use:   "module",
		Short: "Manage sensor and actuator modules.",
	}

	var status string

	addCmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Register a module.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			return withApp(ctx, func(a *app) error {
				id, err := a.orch.RegisterModule(ctx, args[0], status)
				if err != nil {
					return err
				}

				_, err = fmt.Fprintf(out(cmd), "Module %d registered.\n", id)

				return err
			})
		},
	}
	addCmd.Flags().StringVar(&status, "status", "", "initial status: inactive, active, maintenance")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List modules ordered by name.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			return withApp(ctx, func(a *app) error {
				modules, err := a.orch.Modules(ctx)
				if err != nil {
					return err
				}

				return printModules(out(cmd), modules)
			})
		},
	}

	removeCmd := &cobra.Command{
		Use:   "remove ID",
		Short: "Unregister a module. Its alarm history is kept.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()

			return withApp(ctx, func(a *app) error {
				if err := a.orch.UnregisterModule(ctx, id); err != nil {
					return err
				}

				_, err := fmt.Fprintf(out(cmd), "Module %d removed.\n", id)

				return err
			})
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status ID STATUS",
		Short: "Set the status of a module, e.g. to arm or disarm it.",
		Args:  cobra.ExactArgs(2), //nolint:mnd // ID and status.
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()

			return withApp(ctx, func(a *app) error {
				if err := a.orch.SetModuleStatus(ctx, id, args[1]); err != nil {
					return err
				}

				_, err := fmt.Fprintf(out(cmd), "Module %d is now %s.\n", id, args[1])

				return err
			})
		},
	}

	moduleCmd.AddCommand(addCmd, listCmd, removeCmd, statusCmd)

	return moduleCmd
}
