package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
	"golang.org/x/time/rate"

	"github.com/kakitori/kakitori-api/internal/api/handler"
	"github.com/kakitori/kakitori-api/internal/api/middleware"
	"github.com/kakitori/kakitori-api/internal/core/ports"
	"github.com/kakitori/kakitori-api/internal/infrastructure/http/handlers"

	_ "github.com/kakitori/kakitori-api/docs"
)

const (
	// bodyLimit leaves room for a 1 MiB image sent as base64 JSON or multipart.
	bodyLimit            = "2M"
	defaultAuthRateLimit = 5
)

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	Auth        ports.AuthService
	Tokens      ports.TokenVerifier
	Predictions ports.PredictionService
	Progress    ports.ProgressService

	// Readiness lists the dependencies checked by /health/ready.
	Readiness map[string]handlers.Pinger

	Log          zerolog.Logger
	SecureCookie bool
	TokenTTL     time.Duration
	// AuthRateLimit is requests per second per client IP on /register and /login.
	AuthRateLimit float64

	// Registry receives HTTP metrics. Nil means the default registry.
	Registry *prometheus.Registry
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	var registerer prometheus.Registerer = prometheus.DefaultRegisterer
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if d.Registry != nil {
		registerer, gatherer = d.Registry, d.Registry
	}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Log))
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: false,
	}))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "kakitori",
		Registerer: registerer,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))
	e.Use(echomiddleware.BodyLimit(bodyLimit))

	// --- Dependencies ---
	authHandler := handler.NewAuthHandler(d.Auth, handler.CookieOptions{Secure: d.SecureCookie, MaxAge: d.TokenTTL})
	predictionHandler := handler.NewPredictionHandler(d.Predictions, d.Log)
	progressHandler := handler.NewProgressHandler(d.Progress)
	requireAuth := middleware.RequireAuth(d.Tokens)
	optionalAuth := middleware.OptionalAuth(d.Tokens)

	authRate := d.AuthRateLimit
	if authRate <= 0 {
		authRate = defaultAuthRateLimit
	}
	authLimiter := echomiddleware.RateLimiterWithConfig(echomiddleware.RateLimiterConfig{
		Store: echomiddleware.NewRateLimiterMemoryStore(rate.Limit(authRate)),
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests")
		},
	})

	// --- Auth routes ---
	e.POST("/register", authHandler.Register, authLimiter)
	e.POST("/login", authHandler.Login, authLimiter)
	e.POST("/logout", authHandler.Logout)
	e.GET("/account", authHandler.Account, requireAuth)

	// --- Prediction routes ---
	e.POST(imagePredictPath, predictionHandler.Predict, optionalAuth)
	e.GET("/predict/histories", predictionHandler.Histories, optionalAuth)
	e.POST("/v2/predict", predictionHandler.SubmitLabeled, requireAuth)
	e.GET("/progress", progressHandler.Get, requireAuth)

	// --- Health probes (no auth required) ---
	healthHandler := handlers.NewHealthHandler()
	healthDepsHandler := handlers.NewHealthDependenciesHandler(d.Readiness)

	e.GET("/health", healthHandler.Liveness)            // liveness: is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness: are dependencies up?

	// --- Ops ---
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: gatherer}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		Skipper: func(c echo.Context) bool {
			p := c.Path()
			return p == "/health" || p == "/metrics"
		},
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Status >= http.StatusInternalServerError {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
