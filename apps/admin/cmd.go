package main

import (
	"context"
	"fmt"
	"io"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/njautech/schoolhub/core/access"
	"github.com/njautech/schoolhub/core/submission"
	"github.com/njautech/schoolhub/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errNoPassword = errors.New("a password is required")
)

type (
	// migrateFunc runs a goose command against the database.
	migrateFunc func(ctx context.Context, command string, args ...string) error

	commandLine struct {
		users       *user.Service
		submissions *submission.Service
		validate    *validator.Validate
		migrate     migrateFunc
		out         io.Writer
	}
)

func (cli *commandLine) rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "admin",
		Short:         "Schoolhub administration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(cli.out)
	cmd.AddCommand(
		cli.addUserCmd(),
		cli.resetPasswordCmd(),
		cli.setRoleCmd(),
		cli.migrateCmd(),
		cli.reconcileUploadsCmd(),
	)
	return cmd
}

// run executes the command line args, without the program name.
func (cli *commandLine) run(ctx context.Context, args []string) error {
	cmd := cli.rootCmd()
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

func (cli *commandLine) printf(format string, a ...interface{}) {
	_, _ = fmt.Fprintf(cli.out, format, a...)
}

// promptPassword reads a password from the terminal without echoing it.
func (cli *commandLine) promptPassword() (string, error) {
	cli.printf("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	cli.printf("\n")
	if err != nil {
		return "", errors.Wrap(err, "reading password")
	}
	if len(pwd) == 0 {
		return "", errNoPassword
	}
	return string(pwd), nil
}

func parseRole(val string) (access.Role, error) {
	role := access.Role(val)
	if !role.IsValid() {
		return "", fmt.Errorf("invalid role %q: must be one of student, lecturer or admin", val)
	}
	return role, nil
}
