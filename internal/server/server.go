package server

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/tbraun92/boardcast/internal/app"
	"github.com/tbraun92/boardcast/internal/config"
	"github.com/tbraun92/boardcast/internal/hub"
	"github.com/tbraun92/boardcast/internal/platform/correlation"
)

// requestValidator adapts go-playground/validator to echo's Validator interface.
type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i any) error {
	if err := v.validate.Struct(i); err != nil {
		return echo.NewHTTPError(400, err.Error())
	}
	return nil
}

type Server struct {
	echo   *echo.Echo
	config *config.Config
	app    *app.Service
	hub    *hub.Hub
	limits *ConnectionLimits
}

func NewServer(cfg *config.Config, appSvc *app.Service, h *hub.Hub) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &requestValidator{validate: validator.New()}

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(correlationMiddleware)

	srv := &Server{
		echo:   e,
		config: cfg,
		app:    appSvc,
		hub:    h,
		limits: NewConnectionLimits(cfg.MaxConnections, cfg.MaxConnectionsPerIP, cfg.ConnectionRate, cfg.ConnectionBurst),
	}

	srv.registerRoutes()

	return srv
}

// correlationMiddleware tags every request context with a correlation ID
// so all log lines for one request can be tied together.
func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := correlation.WithID(c.Request().Context(), correlation.NewID())
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

func (s *Server) Start() error {
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
