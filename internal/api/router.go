package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/firefly/security-center/internal/api/handler"
	"github.com/firefly/security-center/internal/api/metrics"
	"github.com/firefly/security-center/internal/api/middleware"
	"github.com/firefly/security-center/internal/core/ports"
)

// RouterOptions carries everything the HTTP layer is wired to.
type RouterOptions struct {
	Auth          ports.AuthService
	Sessions      ports.SessionStore
	Authorization ports.AuthorizationService
	Introspector  middleware.TokenIntrospector
	Dispatcher    handler.ChangeDispatcher
	Checks        map[string]handler.Check
	Log           zerolog.Logger

	LoginPerMinute int
	LoginBurst     int

	// Registerer receives the HTTP metrics. Defaults to the global registry.
	Registerer prometheus.Registerer
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(opts RouterOptions) *echo.Echo {
	if opts.Registerer == nil {
		opts.Registerer = prometheus.DefaultRegisterer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(opts.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(opts.Log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "security_center",
		Registerer: opts.Registerer,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))

	// --- Health probes and metrics (no auth required) ---
	e.GET("/health", handler.NewHealthHandler().Liveness)
	e.GET("/health/ready", handler.NewReadinessHandler(opts.Checks).Readiness)
	e.GET("/metrics", echoprometheus.NewHandler())

	v1 := e.Group("/api/v1")

	// --- Auth routes: credentials travel in the body ---
	authHandler := handler.NewAuthHandler(opts.Auth)
	auth := v1.Group("/auth")
	auth.POST("/login", authHandler.Login, middleware.RateLimit(opts.LoginPerMinute, opts.LoginBurst))
	auth.POST("/logout", authHandler.Logout)
	auth.POST("/refresh", authHandler.Refresh)
	auth.GET("/introspect", authHandler.Introspect)

	// --- Protected routes: bearer token introspected by the active provider ---
	protected := v1.Group("", middleware.Auth(opts.Introspector))

	sessionHandler := handler.NewSessionHandler(opts.Sessions)
	sessions := protected.Group("/sessions")
	sessions.GET("/party/:partyId", sessionHandler.GetByParty)
	sessions.DELETE("/party/:partyId", sessionHandler.InvalidateParty)
	sessions.GET("/:sessionId", sessionHandler.Get)
	sessions.DELETE("/:sessionId", sessionHandler.Invalidate)
	sessions.POST("/:sessionId/refresh", sessionHandler.Refresh)
	sessions.POST("/:sessionId/lock", sessionHandler.Lock)
	sessions.GET("/:sessionId/valid", sessionHandler.Valid)

	authzHandler := handler.NewAuthorizationHandler(opts.Authorization)
	authz := protected.Group("/authorization/parties/:partyId/products/:productId")
	authz.GET("", authzHandler.ProductAccess)
	authz.GET("/permissions", authzHandler.Permission)
	protected.GET("/authorization/products/:productId/read", authzHandler.SessionRead,
		middleware.RequirePermission(opts.Authorization, "productId", handler.ReadAction, ""))

	changeHandler := handler.NewPartyChangeHandler(opts.Dispatcher, metrics.RecordPartyChange)
	protected.POST("/events/party-changes", changeHandler.Receive)

	return e
}

// requestLogger writes one structured line per request.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil {
				ev = log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	})
}
