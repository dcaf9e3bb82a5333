package app

import (
	"fmt"

	"asset-service/internal/audit"
	"asset-service/internal/auth"
	"asset-service/internal/config"
	"asset-service/internal/domain/user"
	"asset-service/internal/http/handler"
	"asset-service/internal/infra/cache"
	"asset-service/internal/infra/vault"
	"asset-service/internal/repository/postgres"
	"asset-service/internal/transport/echo"
)

// InitializeService wires up all dependencies and returns a configured Service
func InitializeService() (*Service, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	db, err := postgres.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// A malformed public-route pattern must kill the process here,
	// not silently expose or hide a route later.
	rules, err := auth.CompilePathRules(cfg.PathRules)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to compile path rules: %w", err)
	}

	identityCodec, err := auth.NewCodec[user.Identity](auth.CodecConfig{
		Issuer:      cfg.Auth.Issuer,
		Audience:    cfg.Auth.Audience,
		Expiry:      cfg.Auth.Expiry,
		NotBefore:   cfg.Auth.NotBefore,
		Leeway:      cfg.Auth.Leeway,
		Keys:        cfg.Auth.Keys,
		ActiveKeyID: cfg.Auth.ActiveKeyID,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to build identity codec: %w", err)
	}

	// Vault tokens share the key set but carry their own audience and
	// the short vault lifetime.
	vaultCodec, err := auth.NewCodec[auth.Permission](auth.CodecConfig{
		Issuer:      cfg.Auth.Issuer,
		Audience:    cfg.Vault.Audience,
		Expiry:      cfg.Vault.TokenExpiry,
		Keys:        cfg.Auth.Keys,
		ActiveKeyID: cfg.Auth.ActiveKeyID,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to build vault codec: %w", err)
	}

	vaultClient, err := vault.NewClient(cfg.Vault.BaseURL, cfg.Vault.PingTimeout)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to build vault client: %w", err)
	}

	tokenCache := cache.NewTokenCache()
	auditLogger := audit.NewLogger(db.Pool)
	assetRepo := postgres.NewAssetRepository(db)

	assetHandler := handler.NewAssetHandler(assetRepo, vaultCodec, tokenCache, vaultClient, auditLogger, cfg.Vault)

	server := echo.NewServer(cfg, assetHandler, identityCodec, rules, db, vaultClient)

	return &Service{
		config:     cfg,
		db:         db,
		tokenCache: tokenCache,
		server:     server,
	}, nil
}
