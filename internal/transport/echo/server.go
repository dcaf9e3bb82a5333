package echo

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"asset-service/internal/auth"
	"asset-service/internal/config"
	"asset-service/internal/domain/user"
	"asset-service/internal/http/handler"
	"asset-service/internal/http/middleware"
	"asset-service/internal/infra/vault"
	"asset-service/internal/repository/postgres"
	"asset-service/pkg/metrics"
)

// Server wraps the Echo server with dependencies
type Server struct {
	echo        *echo.Echo
	config      *config.Config
	assets      *handler.AssetHandler
	db          *postgres.DB
	vaultClient *vault.Client
}

// NewServer creates a new Echo server with middleware and routes.
// Authorization runs as global middleware; the path-rule table decides
// which routes bypass it.
func NewServer(
	cfg *config.Config,
	assets *handler.AssetHandler,
	identityCodec *auth.Codec[user.Identity],
	rules *auth.PathRuleTable,
	db *postgres.DB,
	vaultClient *vault.Client,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout

	// IP-level limiter in front of everything, before any token work.
	rateLimiterConfig := echomw.RateLimiterConfig{
		Skipper: echomw.DefaultSkipper,
		Store: echomw.NewRateLimiterMemoryStoreWithConfig(
			echomw.RateLimiterMemoryStoreConfig{
				Rate:      10,
				Burst:     30,
				ExpiresIn: 3 * time.Minute,
			},
		),
		IdentifierExtractor: func(ctx echo.Context) (string, error) {
			return ctx.RealIP(), nil
		},
		ErrorHandler: func(context echo.Context, err error) error {
			return context.JSON(http.StatusForbidden, nil)
		},
		DenyHandler: func(context echo.Context, identifier string, err error) error {
			return context.JSON(http.StatusTooManyRequests, nil)
		},
	}

	e.Use(middleware.RequestID())
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.RequestLogger())
	e.Use(metrics.MetricsMiddleware())
	e.Use(echomw.RateLimiterWithConfig(rateLimiterConfig))
	e.Use(echomw.CORS())
	e.Use(auth.RequireToken[user.Identity](identityCodec, rules, auth.IdentityValidator{}))
	e.Use(middleware.NewGlobalRateLimiter().Middleware())

	server := &Server{
		echo:        e,
		config:      cfg,
		assets:      assets,
		db:          db,
		vaultClient: vaultClient,
	}

	server.registerRoutes()

	return server
}

// Start starts the HTTP server
func (s *Server) Start() error {
	return s.echo.Start(":" + s.config.Server.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
