// Package testutil wires the services on top of the in-memory stores for tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/njautech/schoolhub/core"
	"github.com/njautech/schoolhub/core/access"
	"github.com/njautech/schoolhub/core/assignment"
	"github.com/njautech/schoolhub/core/auth"
	"github.com/njautech/schoolhub/core/dashboard"
	"github.com/njautech/schoolhub/core/report"
	"github.com/njautech/schoolhub/core/submission"
	"github.com/njautech/schoolhub/core/user"
	"github.com/njautech/schoolhub/services/cache"
	"github.com/njautech/schoolhub/services/email"
	"github.com/njautech/schoolhub/services/logger"
	"github.com/njautech/schoolhub/services/storage"
	"github.com/njautech/schoolhub/storage/database/dummy"
)

// Env holds a complete set of services sharing one in-memory database.
type Env struct {
	Conf    *core.Config
	Logger  core.Logger
	Policy  *access.Policy
	DB      *dummydb.DB
	Storage *storagesvc.MemoryStorage
	Cache   *cachesvc.MemoryCache
	Mail    *emailsvc.ConsoleServiceMock
	Tokens  *auth.Tokens

	UserRepo       user.Repository
	AssignmentRepo assignment.Repository
	SubmissionRepo submission.Repository
	ReportRepo     report.Repository

	UserSvc       *user.Service
	AuthSvc       *auth.Service
	AssignmentSvc *assignment.Service
	SubmissionSvc *submission.Service
	ReportSvc     *report.Service
	DashboardSvc  *dashboard.Service
}

func NewEnv(t testing.TB) *Env {
	t.Helper()

	conf := core.NewTestConfig()
	logger := logsvc.NewTestLogger()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	policy, err := access.NewPolicy()
	if err != nil {
		t.Fatalf("access.NewPolicy() failed: %v", err)
	}

	env := &Env{
		Conf:           conf,
		Logger:         logger,
		Policy:         policy,
		DB:             db,
		Storage:        storagesvc.NewMemoryStorage(),
		Cache:          cachesvc.NewMemoryCache(conf.Cache.TTL),
		Mail:           emailsvc.NewConsoleServiceMock(conf, core.ParseEmailTemplates(conf, logger), logger),
		Tokens:         auth.NewTokens(conf.Auth),
		UserRepo:       dummydb.NewUserRepository(db),
		AssignmentRepo: dummydb.NewAssignmentRepository(db),
		SubmissionRepo: dummydb.NewSubmissionRepository(db),
		ReportRepo:     dummydb.NewReportRepository(db),
	}

	env.DashboardSvc = dashboard.NewService(
		env.UserRepo, env.AssignmentRepo, env.SubmissionRepo, env.ReportRepo, policy, env.Cache, logger,
	)
	env.UserSvc = user.NewService(env.UserRepo, env.Mail, policy, env.DashboardSvc, conf)
	env.AuthSvc = auth.NewService(env.UserSvc, env.Tokens)
	env.AssignmentSvc = assignment.NewService(env.AssignmentRepo, env.UserSvc, policy, env.DashboardSvc)
	env.SubmissionSvc = submission.NewService(
		env.SubmissionRepo, env.AssignmentSvc, env.Storage, policy, env.DashboardSvc, logger,
		submission.Config{MaxUploadSize: conf.Storage.MaxUploadSize, StorageTimeout: conf.Storage.Timeout},
	)
	env.ReportSvc = report.NewService(env.ReportRepo, env.UserSvc, policy, env.DashboardSvc)
	return env
}

// SetNow freezes the clock of every service.
func (env *Env) SetNow(now func() time.Time) {
	env.UserSvc.SetNowFunc(now)
	env.AssignmentSvc.SetNowFunc(now)
	env.SubmissionSvc.SetNowFunc(now)
	env.ReportSvc.SetNowFunc(now)
	env.Storage.SetNowFunc(now)
}

// CreateUser stores a user directly, bypassing validation. pwd may be empty.
func CreateUser(
	t testing.TB,
	repo user.Repository,
	name, email, pwd string,
	role access.Role,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Email:     email,
		Role:      role,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd, 4 /* bcrypt.MinCost */); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

// CreateAssignment stores an assignment directly.
func CreateAssignment(t testing.TB, repo assignment.Repository, lecturer user.User, title string, createdAt ...time.Time) assignment.Assignment {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	asgmt, err := repo.CreateAssignment(context.Background(), assignment.Assignment{
		Title:      title,
		LecturerID: lecturer.ID,
		CreatedAt:  tstamp,
		UpdatedAt:  tstamp,
	})
	if err != nil {
		t.Fatalf("createAssignment() failed: %v", err)
	}
	return asgmt
}

// NewValidator returns a validator set up like the API one.
func NewValidator() *validator.Validate {
	validate, _ := NewValidatorWithTranslator()
	return validate
}

func NewValidatorWithTranslator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator, _ := ut.New(en.New(), en.New()).GetTranslator("en")
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate, translator
}
