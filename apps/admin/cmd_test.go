package main

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njautech/schoolhub/core"
	"github.com/njautech/schoolhub/core/access"
	"github.com/njautech/schoolhub/core/submission"
	"github.com/njautech/schoolhub/testutil"
)

type migration struct {
	command string
	args    []string
}

type fixture struct {
	env        *testutil.Env
	cli        *commandLine
	out        *bytes.Buffer
	migrations []migration
}

func setup(t *testing.T) *fixture {
	f := &fixture{env: testutil.NewEnv(t), out: new(bytes.Buffer)}
	f.cli = &commandLine{
		users:       f.env.UserSvc,
		submissions: f.env.SubmissionSvc,
		validate:    testutil.NewValidator(),
		migrate: func(_ context.Context, command string, args ...string) error {
			switch command {
			case "up", "up-by-one", "down", "redo", "reset", "status", "version": // pass
			case "up-to", "down-to":
				if len(args) == 0 {
					return fmt.Errorf("%s must be of form: %s VERSION", command, command)
				}
			default:
				return fmt.Errorf("%q: no such command", command)
			}
			f.migrations = append(f.migrations, migration{command: command, args: args})
			return nil
		},
		out: f.out,
	}
	return f
}

func withPassword(t *testing.T, pwd string) {
	orig := readPasswordFunc
	readPasswordFunc = func(int) ([]byte, error) { return []byte(pwd), nil }
	t.Cleanup(func() { readPasswordFunc = orig })
}

type cliTest struct {
	name       string
	args       []string // without program name
	pwd        string
	wantErr    error
	wantErrStr string
}

func runCLITests(t *testing.T, f *fixture, tests []cliTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withPassword(t, tt.pwd)
			err := f.cli.run(context.Background(), tt.args)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantErrStr != "":
				assert.EqualError(t, err, tt.wantErrStr)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	f := setup(t)

	runCLITests(t, f, []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErrStr: "requires at least 1 arg(s), only received 0"},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: `"lol": no such command`},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: up-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
	})
	assert.Equal(t, []migration{
		{command: "up", args: []string{}},
		{command: "up-to", args: []string{"2"}},
		{command: "down-to", args: []string{"1"}},
		{command: "status", args: []string{}},
	}, f.migrations)
}

func Test_commandLine_addUser(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	existing := testutil.CreateUser(t, f.env.UserRepo, "Sam Student", "sam@example.com", "secret1", access.RoleStudent)

	runCLITests(t, f, []cliTest{
		{name: "no email", args: []string{"adduser", "--name", "Ada"}, pwd: "an4lytical", wantErrStr: `required flag(s) "email" not set`},
		{
			name: "bad role", args: []string{"adduser", "--email", "ada@example.com", "--role", "dean"}, pwd: "an4lytical",
			wantErrStr: `invalid role "dean": must be one of student, lecturer or admin`,
		},
		{name: "no password", args: []string{"adduser", "--email", "ada@example.com", "--name", "Ada Lovelace"}, wantErr: errNoPassword},
	})

	t.Run("weak password", func(t *testing.T) {
		withPassword(t, "123456")
		err := f.cli.run(ctx, []string{"adduser", "--email", "ada@example.com", "--name", "Ada Lovelace"})
		require.Error(t, err)
		_, err = f.env.UserSvc.GetByEmail(ctx, "ada@example.com")
		assert.True(t, core.IsNotFound(err))
	})

	t.Run("create", func(t *testing.T) {
		withPassword(t, "an4lytical")
		f.out.Reset()
		err := f.cli.run(ctx, []string{"adduser", "--email", "Ada@Example.com", "--name", "Ada Lovelace", "--role", "lecturer"})
		require.NoError(t, err)
		assert.Contains(t, f.out.String(), "Ada Lovelace <ada@example.com> is now lecturer")

		usr, err := f.env.UserSvc.Authenticate(ctx, "ada@example.com", "an4lytical")
		require.NoError(t, err)
		assert.Equal(t, access.RoleLecturer, usr.Role)
	})

	t.Run("update existing", func(t *testing.T) {
		withPassword(t, "n3wSecret")
		err := f.cli.run(ctx, []string{"adduser", "--email", existing.Email})
		require.NoError(t, err)

		usr, err := f.env.UserSvc.Authenticate(ctx, existing.Email, "n3wSecret")
		require.NoError(t, err)
		assert.Equal(t, existing.ID, usr.ID)
		assert.Equal(t, "Sam Student", usr.Name)
		assert.Equal(t, access.RoleAdmin, usr.Role, "adduser defaults to admin")
	})
}

func Test_commandLine_resetPassword(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	usr := testutil.CreateUser(t, f.env.UserRepo, "Jane Doe", "jane@example.com", "secret1", access.RoleStudent)

	runCLITests(t, f, []cliTest{
		{name: "no email", args: []string{"resetpassword"}, pwd: "n3wSecret", wantErrStr: `required flag(s) "email" not set`},
		{name: "no password", args: []string{"resetpassword", "--email", usr.Email}, wantErr: errNoPassword},
		{name: "unknown user", args: []string{"resetpassword", "--email", "nobody@example.com"}, pwd: "n3wSecret", wantErrStr: "user not found"},
	})

	withPassword(t, "123456")
	require.Error(t, f.cli.run(ctx, []string{"resetpassword", "--email", usr.Email}))

	withPassword(t, "n3wSecret")
	require.NoError(t, f.cli.run(ctx, []string{"resetpassword", "--email", "JANE@example.com"}))
	_, err := f.env.UserSvc.Authenticate(ctx, usr.Email, "secret1")
	assert.Error(t, err)
	_, err = f.env.UserSvc.Authenticate(ctx, usr.Email, "n3wSecret")
	assert.NoError(t, err)
}

func Test_commandLine_setRole(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	usr := testutil.CreateUser(t, f.env.UserRepo, "Jane Doe", "jane@example.com", "", access.RoleStudent)

	runCLITests(t, f, []cliTest{
		{name: "no role", args: []string{"setrole", "--email", usr.Email}, wantErrStr: `required flag(s) "role" not set`},
		{name: "bad role", args: []string{"setrole", "--email", usr.Email, "--role", "dean"}, wantErrStr: `invalid role "dean": must be one of student, lecturer or admin`},
		{name: "unknown user", args: []string{"setrole", "--email", "nobody@example.com", "--role", "admin"}, wantErrStr: "finding user: user not found"},
		{name: "ok", args: []string{"setrole", "--email", usr.Email, "--role", "lecturer"}},
	})

	updated, err := f.env.UserSvc.GetByID(ctx, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, access.RoleLecturer, updated.Role)
}

func Test_commandLine_reconcileUploads(t *testing.T) {
	f := setup(t)
	now := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	f.env.SetNow(func() time.Time { return now })

	f.env.Storage.Put(submission.FileKeyPrefix+"orphan_old", []byte("x"))
	now = now.Add(90 * time.Minute)
	f.env.Storage.Put(submission.FileKeyPrefix+"orphan_recent", []byte("x"))

	runCLITests(t, f, []cliTest{
		{name: "bad duration", args: []string{"reconcile-uploads", "--older-than", "soon"}, wantErrStr: `invalid argument "soon" for "--older-than" flag: time: invalid duration "soon"`},
		{name: "ok", args: []string{"reconcile-uploads"}},
	})
	assert.Contains(t, f.out.String(), "deleted 1 orphaned file(s)")
	assert.Equal(t, []string{submission.FileKeyPrefix + "orphan_recent"}, f.env.Storage.Keys())
}
