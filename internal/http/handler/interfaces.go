package handler

import (
	"context"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"asset-service/internal/audit"
	"asset-service/internal/domain/asset"
)

// AssetStore is the slice of the repository the asset handler needs.
type AssetStore interface {
	Create(ctx context.Context, input asset.CreateAssetInput) (*asset.Asset, error)
	GetByID(ctx context.Context, id uuid.UUID, includeDeleted bool) (*asset.Asset, error)
	StartUpload(ctx context.Context, id uuid.UUID) (*asset.Asset, error)
	FinishUpload(ctx context.Context, id uuid.UUID) (*asset.Asset, error)
	MarkFailed(ctx context.Context, id uuid.UUID) (*asset.Asset, error)
	MarkAborted(ctx context.Context, id uuid.UUID) (*asset.Asset, error)
	StartNewVersion(ctx context.Context, id uuid.UUID, newKey string) (*asset.Asset, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
	HardDelete(ctx context.Context, id uuid.UUID) error
}

// AuditLogger defines audit logging operations
type AuditLogger interface {
	LogFromContext(c echo.Context, resourceType audit.ResourceType, resourceID *uuid.UUID, action audit.Action, status audit.Status, metadata map[string]any)
	LogError(c echo.Context, resourceType audit.ResourceType, resourceID *uuid.UUID, action audit.Action, err error)
	Query(ctx context.Context, filter audit.QueryFilter) ([]*audit.Event, error)
}
