package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"

	"github.com/njautech/schoolhub/core"
	"github.com/njautech/schoolhub/core/assignment"
	"github.com/njautech/schoolhub/core/auth"
	"github.com/njautech/schoolhub/core/dashboard"
	"github.com/njautech/schoolhub/core/report"
	"github.com/njautech/schoolhub/core/submission"
	"github.com/njautech/schoolhub/core/user"
)

// bodyLimitSlack is added to the upload limit to leave room for multipart framing.
const bodyLimitSlack = 1 << 20

type (
	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator
		Metrics    *Metrics // optional

		AuthSvc       *auth.Service
		UserSvc       *user.Service
		AssignmentSvc *assignment.Service
		SubmissionSvc *submission.Service
		ReportSvc     *report.Service
		DashboardSvc  *dashboard.Service
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		shutdown chan os.Signal
		errors   chan error
	}
)

func NewServer(deps ServerDeps) *Server {
	vala.BeginValidation().Validate(
		vala.IsNotNil(deps.Conf, "deps.Conf"),
		vala.IsNotNil(deps.Logger, "deps.Logger"),
		vala.IsNotNil(deps.Validate, "deps.Validate"),
		vala.IsNotNil(deps.Translator, "deps.Translator"),
		vala.IsNotNil(deps.AuthSvc, "deps.AuthSvc"),
		vala.IsNotNil(deps.UserSvc, "deps.UserSvc"),
		vala.IsNotNil(deps.AssignmentSvc, "deps.AssignmentSvc"),
		vala.IsNotNil(deps.SubmissionSvc, "deps.SubmissionSvc"),
		vala.IsNotNil(deps.ReportSvc, "deps.ReportSvc"),
		vala.IsNotNil(deps.DashboardSvc, "deps.DashboardSvc"),
	).CheckAndPanic()

	s := &Server{
		deps:     deps,
		app:      echo.New(),
		shutdown: make(chan os.Signal, 1),
		errors:   make(chan error, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Debug = conf.Debug
	s.app.Server.ReadTimeout = conf.Server.ReadTimeout
	s.app.Server.WriteTimeout = conf.Server.WriteTimeout
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)

	s.app.Pre(middleware.RemoveTrailingSlash())
	if s.deps.Metrics != nil {
		s.app.Use(s.deps.Metrics.middleware())
	}
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	if len(conf.Server.CORSOrigins) > 0 {
		s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: conf.Server.CORSOrigins}))
	}
	if max := conf.Storage.MaxUploadSize; max > 0 {
		s.app.Use(uploadBodyLimit(max))
	}
	s.app.Use(requestTimeout(conf.Server.RequestTimeout))

	s.app.GET("/", s.home)

	authed := s.app.Group("", authMiddleware(s.deps.AuthSvc))

	registerUserAPI(s.app.Group(""), authed, s.deps)
	registerAssignmentAPI(authed, s.deps)
	registerSubmissionAPI(authed, s.deps)
	registerReportAPI(authed, s.deps)
	registerDashboardAPI(authed, s.deps)
}

// Start serves until Shutdown or Close. Failures are sent to Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Host); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already signaled
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{"message": "Welcome to " + s.deps.Conf.AppName + " API!"})
}
