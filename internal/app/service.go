package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"asset-service/internal/config"
	"asset-service/internal/infra/cache"
	"asset-service/internal/repository/postgres"
	"asset-service/internal/transport/echo"
)

// Service represents the asset service application
type Service struct {
	config     *config.Config
	db         *postgres.DB
	tokenCache *cache.TokenCache
	server     *echo.Server
}

// NewService creates and initializes a new Service instance
// This is a convenience wrapper around InitializeService
func NewService() (*Service, error) {
	return InitializeService()
}

// Start starts the service and all background tasks
func (s *Service) Start() error {
	go s.startCacheCleanup()

	log.Info().Str("port", s.config.Server.Port).Msg("starting asset service")
	return s.server.Start()
}

// startCacheCleanup runs a background task to clear expired cache entries
func (s *Service) startCacheCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		s.tokenCache.Clear()
	}
}

// ShutdownTimeout returns the configured grace period for shutdown.
func (s *Service) ShutdownTimeout() time.Duration {
	return s.config.Server.ShutdownTimeout
}

// Shutdown gracefully shuts down the service
func (s *Service) Shutdown(ctx context.Context) error {
	err := s.server.Shutdown(ctx)
	s.db.Close()
	return err
}
