package repository

import (
	"context"

	"github.com/google/uuid"

	"asset-service/internal/domain/asset"
)

// AssetRepository persists asset metadata records. Every state
// transition runs in its own transaction with a row-level lock, so a
// successful return means the transition committed; no token is ever
// minted for a transition that did not.
type AssetRepository interface {
	Create(ctx context.Context, input asset.CreateAssetInput) (*asset.Asset, error)

	// GetByID treats soft-deleted rows as absent unless includeDeleted
	// is set.
	GetByID(ctx context.Context, id uuid.UUID, includeDeleted bool) (*asset.Asset, error)

	// StartUpload transitions init/failed/aborted -> uploading.
	StartUpload(ctx context.Context, id uuid.UUID) (*asset.Asset, error)

	// FinishUpload transitions uploading -> available.
	FinishUpload(ctx context.Context, id uuid.UUID) (*asset.Asset, error)

	// MarkFailed transitions uploading -> failed.
	MarkFailed(ctx context.Context, id uuid.UUID) (*asset.Asset, error)

	// MarkAborted transitions uploading -> aborted.
	MarkAborted(ctx context.Context, id uuid.UUID) (*asset.Asset, error)

	// StartNewVersion rotates the current key into history, installs
	// newKey and transitions available -> uploading.
	StartNewVersion(ctx context.Context, id uuid.UUID, newKey string) (*asset.Asset, error)

	SoftDelete(ctx context.Context, id uuid.UUID) error
	HardDelete(ctx context.Context, id uuid.UUID) error
}
