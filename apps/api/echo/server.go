package echoapi

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/session"
	"github.com/trezcool/mahudhurio/core/settings"
	"github.com/trezcool/mahudhurio/core/staff"
	"github.com/trezcool/mahudhurio/core/student"
)

type (
	ServerDeps struct {
		Conf        *core.Config
		Logger      core.Logger
		DB          core.DB
		StudentSvc  student.ServiceInterface
		StaffSvc    staff.ServiceInterface
		SessionSvc  session.ServiceInterface
		SettingsSvc settings.ServiceInterface
		Validate    *validator.Validate
		Translator  ut.Translator
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
			Skipper: func(ctx echo.Context) bool {
				p := ctx.Request().URL.Path
				return p == "/healthz" || p == "/metrics"
			},
		}))
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)
	s.app.GET("/healthz", s.health)
	s.app.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.app.Group("/v1")
	registerAuthAPI(v1, s.deps.StudentSvc, s.deps.StaffSvc, s.deps.SettingsSvc, s.deps.Validate)
	registerStudentAPI(v1, s.deps.StudentSvc, s.deps.Validate, s.deps.Translator)
	registerStaffAPI(v1, s.deps.StaffSvc, s.deps.Validate)
	registerSessionAPI(v1, s.deps.SessionSvc, s.deps.Validate)
	registerSettingsAPI(v1, s.deps.SettingsSvc, s.deps.Validate)
}

// Start runs the server; its exit error is reported on Errors.
func (s *Server) Start() {
	s.errors <- s.app.Start(s.deps.Conf.Server.Address())
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

// signalShutdown requests a graceful shutdown; it never blocks.
func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) health(ctx echo.Context) error {
	if s.deps.DB != nil {
		var ok bool
		row := s.deps.DB.QueryRowContext(ctx.Request().Context(), "SELECT true")
		if err := row.Scan(&ok); err != nil {
			s.deps.Logger.Error(fmt.Sprintf("health check: %v", err), err)
			return ctx.JSON(http.StatusServiceUnavailable, echo.Map{"status": "database unavailable"})
		}
	}
	return ctx.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Mahudhurio API!")
}
