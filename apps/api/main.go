package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	echoapi "github.com/njautech/schoolhub/apps/api/echo"
	"github.com/njautech/schoolhub/core"
	"github.com/njautech/schoolhub/core/access"
	"github.com/njautech/schoolhub/core/assignment"
	"github.com/njautech/schoolhub/core/auth"
	"github.com/njautech/schoolhub/core/dashboard"
	"github.com/njautech/schoolhub/core/report"
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
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()
	ctx := context.Background()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	defer logger.Close()

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)

	// set up DB
	db, err := setUpDB(ctx, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()

	// set up cache
	var cache core.Cache
	if conf.Cache.RedisAddr != "" {
		redisCache, err := cachesvc.NewRedisCache(ctx, conf.Cache, "schoolhub:views")
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up cache: %v", err), err)
		}
		defer func() { _ = redisCache.Close() }()
		cache = redisCache
	} else {
		cache = cachesvc.NewMemoryCache(conf.Cache.TTL)
	}

	// set up file storage
	var files core.FileStorage
	if conf.Storage.B2Enabled() {
		if files, err = storagesvc.NewB2Storage(ctx, conf.Storage); err != nil {
			logger.Fatal(fmt.Sprintf("setting up file storage: %v", err), err)
		}
	} else {
		logger.Warn("B2 storage is not configured: submission files are kept in memory and lost on restart")
		files = storagesvc.NewMemoryStorage()
	}

	// set up mail
	templates := core.ParseEmailTemplates(conf, logger)
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, templates, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, templates, logger)
	}

	// set up services
	policy, err := access.NewPolicy()
	if err != nil {
		logger.Fatal(fmt.Sprintf("loading access policy: %v", err), err)
	}
	usrRepo := sqlxrepos.NewUserRepository(db)
	asgmtRepo := sqlxrepos.NewAssignmentRepository(db)
	subRepo := sqlxrepos.NewSubmissionRepository(db)
	repRepo := sqlxrepos.NewReportRepository(db)

	dashSvc := dashboard.NewService(usrRepo, asgmtRepo, subRepo, repRepo, policy, cache, logger)
	usrSvc := user.NewService(usrRepo, mailSvc, policy, dashSvc, conf)
	authSvc := auth.NewService(usrSvc, auth.NewTokens(conf.Auth))
	asgmtSvc := assignment.NewService(asgmtRepo, usrSvc, policy, dashSvc)
	subSvc := submission.NewService(
		subRepo, asgmtSvc, files, policy, dashSvc, logger,
		submission.Config{MaxUploadSize: conf.Storage.MaxUploadSize, StorageTimeout: conf.Storage.Timeout},
	)
	repSvc := report.NewService(repRepo, usrSvc, policy, dashSvc)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.
	// /metrics - Prometheus scrape endpoint.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	http.Handle("/metrics", promhttp.Handler())

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:          conf,
			Logger:        logger,
			Validate:      validate,
			Translator:    translator,
			Metrics:       echoapi.NewMetrics(prometheus.DefaultRegisterer),
			AuthSvc:       authSvc,
			UserSvc:       usrSvc,
			AssignmentSvc: asgmtSvc,
			SubmissionSvc: subSvc,
			ReportSvc:     repSvc,
			DashboardSvc:  dashSvc,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(ctx context.Context, conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return nil, err
	}

	db, err := database.Open(ctx, conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(ctx, db, "up"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
