// Package api exposes the registry over a local HTTP control API.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/bnema/rulekit/internal/compiler"
	"github.com/bnema/rulekit/internal/logging"
	"github.com/bnema/rulekit/internal/registry"
)

// StatusProvider reports the publisher status; *compiler.Publisher satisfies it.
type StatusProvider interface {
	Status() compiler.Status
}

// Server is the control API
type Server struct {
	address   string
	echo      *echo.Echo
	registry  *registry.Registry
	publisher StatusProvider
}

// New builds the API and registers its routes
func New(addr string, reg *registry.Registry, publisher StatusProvider, log zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(withLogger(log))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ev := log.Debug()
			if v.Error != nil {
				ev = log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).Str("uri", v.URI).Int("status", v.Status).Msg("request")
			return nil
		},
	}))

	e.Validator = &customValidator{validator: validator.New()}

	s := &Server{
		address:   addr,
		echo:      e,
		registry:  reg,
		publisher: publisher,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	e := s.echo

	e.GET("/", home)

	e.GET("/subscriptions", s.listSubscriptions)
	e.POST("/subscriptions", s.addSubscription)
	e.DELETE("/subscriptions/:id", s.removeSubscription)
	e.POST("/subscriptions/:id/enable", s.enableSubscription)
	e.POST("/subscriptions/:id/disable", s.disableSubscription)
	e.POST("/subscriptions/:id/update", s.updateSubscription)
	e.POST("/update", s.updateAll)

	e.GET("/categories", s.getCategories)
	e.PUT("/categories", s.setCategories)
	e.DELETE("/categories", s.resetCategories)

	e.GET("/rules", s.getRules)
	e.GET("/status", s.getStatus)

	e.GET("/events", s.watch)
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	if err := s.echo.Start(s.address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// withLogger attaches log to each request context
func withLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			c.SetRequest(req.WithContext(logging.WithContext(req.Context(), log)))
			return next(c)
		}
	}
}

// validator
type customValidator struct {
	validator *validator.Validate
}

func (cv *customValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func home(c echo.Context) error {
	return c.String(http.StatusOK, "rulekit API")
}
