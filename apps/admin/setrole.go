package main

import (
	"github.com/spf13/cobra"
)

func (cli *commandLine) setRoleCmd() *cobra.Command {
	var email, role string
	cmd := &cobra.Command{
		Use:   "setrole",
		Short: "Change the role of a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := parseRole(role)
			if err != nil {
				return err
			}
			usr, err := cli.users.SetRole(cmd.Context(), email, r)
			if err != nil {
				return err
			}
			cli.printf("%s <%s> is now %s\n", usr.Name, usr.Email, usr.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "The user's email")
	cmd.Flags().StringVar(&role, "role", "", "student, lecturer or admin")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}
