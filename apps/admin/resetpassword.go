package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/njautech/schoolhub/core/user"
)

func (cli *commandLine) resetPasswordCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "resetpassword",
		Short: "Reset a user's password. The password is prompted next",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pwd, err := cli.promptPassword()
			if err != nil {
				return err
			}
			if err := cli.resetPassword(cmd.Context(), email, pwd); err != nil {
				return err
			}
			cli.printf("password updated\n")
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "The user's email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (cli *commandLine) resetPassword(ctx context.Context, email, pwd string) error {
	usr, err := cli.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	// same password policy as sign-ups
	nu := user.NewUser{Name: usr.Name, Email: usr.Email, Password: pwd}
	if err := nu.Validate(cli.validate); err != nil {
		return err
	}
	return cli.users.SetPassword(ctx, usr.Email, pwd)
}
