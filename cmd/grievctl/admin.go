package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/timmy/grievo/internal/app"
	"github.com/timmy/grievo/internal/domain"
	"github.com/timmy/grievo/internal/service"
)

func newCreateAdminCmd() *cobra.Command {
	var in service.RegisterInput

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Register an administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Role = domain.RoleAdmin
			return withApp(cmd.Context(), func(a *app.App) error {
				result, err := a.Auth.Register(cmd.Context(), in)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created admin %s (%s)\n", result.User.Name, result.User.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "display name")
	cmd.Flags().StringVar(&in.Phone, "phone", "", "login phone number")
	cmd.Flags().StringVar(&in.Password, "password", "", "login password")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("phone")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
