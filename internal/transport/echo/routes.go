package echo

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"asset-service/internal/http/middleware"
	"asset-service/pkg/metrics"
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.healthHandler)
	s.echo.GET("/ping", s.pingHandler)
	metrics.RegisterMetricsRoute(s.echo)

	// Token-minting routes get the strict limiter on top of the
	// global one.
	strict := middleware.NewStrictRateLimiter().Middleware()

	assets := s.echo.Group("/assets")
	assets.POST("", s.assets.CreateAsset)
	assets.GET("/:id", s.assets.GetAsset)
	assets.GET("/:id/audit", s.assets.AssetAudit)
	assets.GET("/:id/token", s.assets.IssueReadToken, strict)
	assets.POST("/:id/upload", s.assets.StartUpload, strict)
	assets.POST("/:id/complete", s.assets.FinishUpload)
	assets.POST("/:id/fail", s.assets.FailUpload)
	assets.POST("/:id/abort", s.assets.AbortUpload)
	assets.POST("/:id/versions", s.assets.NewVersion, strict)
	assets.DELETE("/:id", s.assets.DeleteAsset)
}

func (s *Server) pingHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"message": "pong"})
}

// healthHandler reports readiness: the database and the asset store
// both have to answer.
func (s *Server) healthHandler(c echo.Context) error {
	ctx := c.Request().Context()

	status := http.StatusOK
	health := map[string]string{
		"status":   "ok",
		"database": "ok",
		"vault":    "ok",
	}

	if err := s.db.Pool.Ping(ctx); err != nil {
		health["status"] = "degraded"
		health["database"] = "unreachable"
		status = http.StatusServiceUnavailable
	}

	if err := s.vaultClient.Ping(ctx); err != nil {
		health["status"] = "degraded"
		health["vault"] = "unreachable"
		status = http.StatusServiceUnavailable
	}

	return c.JSON(status, health)
}
