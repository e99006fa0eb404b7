package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	domain "github.com/sgonzalezm/AlarmMgmt/internal/domain/alarm"
	"github.com/sgonzalezm/AlarmMgmt/internal/service/orchestrator"
)

func newUserCmd() *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts.",
	}

	var (
		adminName       string
		adminCredential string
		credential      string
		role            string
	)

	addCmd := &cobra.Command{
		Use:   "add USERNAME",
		Short: "Create a user. Requires an administrator login.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			return withApp(ctx, func(a *app) error {
				admin, err := a.orch.Authenticate(ctx, adminName, adminCredential)
				if err != nil {
					return err
				}

				switch {
				case admin.Role != domain.RoleAdministrator:
					return fmt.Errorf("%w: %s is not an administrator", orchestrator.ErrDenied, admin.Username)
				case admin.MustChangeCredential:
					return fmt.Errorf("%w: %s must change the credential first (user passwd)",
						orchestrator.ErrDenied, admin.Username)
				}

				id, err := a.orch.CreateUser(ctx, args[0], credential, role)
				if err != nil {
					return err
				}

				_, err = fmt.Fprintf(out(cmd), "User %d (%s) created.\n", id, args[0])

				return err
			})
		},
	}
	addCmd.Flags().StringVar(&adminName, "admin", "", "administrator username")
	addCmd.Flags().StringVar(&adminCredential, "admin-credential", "", "administrator credential")
	addCmd.Flags().StringVar(&credential, "credential", "", "credential of the new user")
	addCmd.Flags().StringVar(&role, "role", string(domain.RoleOperator), "role: administrator, operator, viewer")
	_ = addCmd.MarkFlagRequired("admin")
	_ = addCmd.MarkFlagRequired("admin-credential")
	_ = addCmd.MarkFlagRequired("credential")

	var current, next string

	passwdCmd := &cobra.Command{
		Use:   "passwd USERNAME",
		Short: "Change the credential of a user.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			return withApp(ctx, func(a *app) error {
				if err := a.orch.ChangeCredential(ctx, args[0], current, next); err != nil {
					return err
				}

				_, err := fmt.Fprintf(out(cmd), "Credential of %s changed.\n", args[0])

				return err
			})
		},
	}
	passwdCmd.Flags().StringVar(&current, "current", "", "current credential")
	passwdCmd.Flags().StringVar(&next, "new", "", "new credential")
	_ = passwdCmd.MarkFlagRequired("current")
	_ = passwdCmd.MarkFlagRequired("new")

	userCmd.AddCommand(addCmd, passwdCmd)

	return userCmd
}
