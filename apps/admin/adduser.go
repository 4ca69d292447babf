package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/njautech/schoolhub/core"
	"github.com/njautech/schoolhub/core/access"
	"github.com/njautech/schoolhub/core/user"
)

func (cli *commandLine) addUserCmd() *cobra.Command {
	var name, email, role string
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create a user, or update the password and role of an existing one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := parseRole(role)
			if err != nil {
				return err
			}
			pwd, err := cli.promptPassword()
			if err != nil {
				return err
			}
			usr, err := cli.addUser(cmd.Context(), user.NewUser{Name: name, Email: email, Password: pwd}, r)
			if err != nil {
				return err
			}
			cli.printf("%s <%s> is now %s\n", usr.Name, usr.Email, usr.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "The user's email")
	cmd.Flags().StringVar(&name, "name", "", "The user's full name (required for new users)")
	cmd.Flags().StringVar(&role, "role", string(access.RoleAdmin), "student, lecturer or admin")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// addUser updates or creates a user.User
func (cli *commandLine) addUser(ctx context.Context, nu user.NewUser, role access.Role) (user.User, error) {
	usr, err := cli.users.GetByEmail(ctx, nu.Email)
	switch {
	case err == nil:
		nu.Name = usr.Name
		if err := nu.Validate(cli.validate); err != nil {
			return user.User{}, err
		}
		if err := cli.users.SetPassword(ctx, usr.Email, nu.Password); err != nil {
			return user.User{}, err
		}
		return cli.users.SetRole(ctx, usr.Email, role)

	case core.IsNotFound(err):
		if err := nu.Validate(cli.validate); err != nil {
			return user.User{}, err
		}
		return cli.users.Create(ctx, nu, role)

	default:
		return user.User{}, errors.Wrap(err, "finding user")
	}
}
