package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/njautech/schoolhub/core"
	"github.com/njautech/schoolhub/core/access"
	"github.com/njautech/schoolhub/core/assignment"
	"github.com/njautech/schoolhub/core/dashboard"
	"github.com/njautech/schoolhub/core/submission"
	"github.com/njautech/schoolhub/core/user"
	cachesvc "github.com/njautech/schoolhub/services/cache"
	emailsvc "github.com/njautech/schoolhub/services/email"
	logsvc "github.com/njautech/schoolhub/services/logger"
	storagesvc "github.com/njautech/schoolhub/services/storage"
	"github.com/njautech/schoolhub/storage/database"
	sqlxrepos "github.com/njautech/schoolhub/storage/database/sqlx"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	conf := core.NewConfig()
	ctx := context.Background()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	defer logger.Close()

	// set up DB
	db, err := database.Open(ctx, conf)
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = db.Close() }()

	cli, cleanup, err := newCommandLine(ctx, conf, db, logger)
	defer cleanup()
	if err != nil {
		return errors.Wrap(err, "setting up services")
	}
	return cli.run(ctx, args)
}

// newCommandLine wires the services the commands need the same way the API does,
// so that changes made here invalidate the API's cached views.
func newCommandLine(ctx context.Context, conf *core.Config, db *sqlx.DB, logger core.Logger) (*commandLine, func(), error) {
	cleanup := func() {}

	var cache core.Cache = cachesvc.NewMemoryCache(conf.Cache.TTL)
	if conf.Cache.RedisAddr != "" {
		redisCache, err := cachesvc.NewRedisCache(ctx, conf.Cache, "schoolhub:views")
		if err != nil {
			return nil, cleanup, err
		}
		cleanup = func() { _ = redisCache.Close() }
		cache = redisCache
	}

	var files core.FileStorage = storagesvc.NewMemoryStorage()
	if conf.Storage.B2Enabled() {
		b2, err := storagesvc.NewB2Storage(ctx, conf.Storage)
		if err != nil {
			return nil, cleanup, err
		}
		files = b2
	}

	policy, err := access.NewPolicy()
	if err != nil {
		return nil, cleanup, err
	}
	usrRepo := sqlxrepos.NewUserRepository(db)
	asgmtRepo := sqlxrepos.NewAssignmentRepository(db)
	subRepo := sqlxrepos.NewSubmissionRepository(db)
	repRepo := sqlxrepos.NewReportRepository(db)

	dashSvc := dashboard.NewService(usrRepo, asgmtRepo, subRepo, repRepo, policy, cache, logger)
	mailSvc := emailsvc.NewConsoleService(conf, core.ParseEmailTemplates(conf, logger), logger)
	usrSvc := user.NewService(usrRepo, mailSvc, policy, dashSvc, conf)
	asgmtSvc := assignment.NewService(asgmtRepo, usrSvc, policy, dashSvc)
	subSvc := submission.NewService(
		subRepo, asgmtSvc, files, policy, dashSvc, logger,
		submission.Config{MaxUploadSize: conf.Storage.MaxUploadSize, StorageTimeout: conf.Storage.Timeout},
	)

	return &commandLine{
		users:       usrSvc,
		submissions: subSvc,
		validate:    newValidator(),
		migrate: func(ctx context.Context, command string, args ...string) error {
			return database.Migrate(ctx, db, command, args...)
		},
		out: os.Stdout,
	}, cleanup, nil
}

func newValidator() *validator.Validate {
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate
}
