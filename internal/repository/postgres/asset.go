package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"asset-service/internal/domain/asset"
	apperrors "asset-service/pkg/errors"
)

const assetColumns = "id, newest_key, history, owner_id, owner_type, status, created_at, updated_at, deleted_at"

type AssetRepository struct {
	db *DB
}

func NewAssetRepository(db *DB) *AssetRepository {
	return &AssetRepository{db: db}
}

func (r *AssetRepository) Create(ctx context.Context, input asset.CreateAssetInput) (*asset.Asset, error) {
	query := `
		INSERT INTO assets (id, newest_key, history, owner_id, owner_type, status)
		VALUES ($1, $2, ARRAY[$2], $3, $4, 'init')
		RETURNING ` + assetColumns

	a, err := scanAsset(r.db.Pool.QueryRow(ctx, query, input.ID, input.NewestKey, input.OwnerID, input.OwnerType))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperrors.Conflict(errAssetIDTaken)
		}
		return nil, errFailedCreateAsset(err)
	}

	return a, nil
}

func (r *AssetRepository) GetByID(ctx context.Context, id uuid.UUID, includeDeleted bool) (*asset.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets WHERE id = $1`
	if !includeDeleted {
		query += ` AND deleted_at IS NULL`
	}

	a, err := scanAsset(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound(errAssetNotFound)
		}
		return nil, errFailedGetAsset(err)
	}

	return a, nil
}

func (r *AssetRepository) StartUpload(ctx context.Context, id uuid.UUID) (*asset.Asset, error) {
	return r.lockedTransition(ctx, id,
		func(a *asset.Asset) error {
			if !a.CanStartUpload() {
				return apperrors.StateConflict(errNotUploadable)
			}
			return nil
		},
		r.applyStatus(asset.StatusUploading),
	)
}

func (r *AssetRepository) FinishUpload(ctx context.Context, id uuid.UUID) (*asset.Asset, error) {
	return r.lockedTransition(ctx, id,
		func(a *asset.Asset) error {
			if !a.CanFinishUpload() {
				return apperrors.StateConflict(errNotUploading)
			}
			return nil
		},
		r.applyStatus(asset.StatusAvailable),
	)
}

func (r *AssetRepository) MarkFailed(ctx context.Context, id uuid.UUID) (*asset.Asset, error) {
	return r.lockedTransition(ctx, id,
		func(a *asset.Asset) error {
			if !a.CanFinishUpload() {
				return apperrors.StateConflict(errNotUploading)
			}
			return nil
		},
		r.applyStatus(asset.StatusFailed),
	)
}

func (r *AssetRepository) MarkAborted(ctx context.Context, id uuid.UUID) (*asset.Asset, error) {
	return r.lockedTransition(ctx, id,
		func(a *asset.Asset) error {
			if !a.CanFinishUpload() {
				return apperrors.StateConflict(errNotUploading)
			}
			return nil
		},
		r.applyStatus(asset.StatusAborted),
	)
}

func (r *AssetRepository) StartNewVersion(ctx context.Context, id uuid.UUID, newKey string) (*asset.Asset, error) {
	if newKey == "" {
		return nil, apperrors.BadRequest(errNewKeyEmpty)
	}

	return r.lockedTransition(ctx, id,
		func(a *asset.Asset) error {
			if !a.CanStartNewVersion() {
				return apperrors.StateConflict(errNotAvailable)
			}
			return nil
		},
		func(ctx context.Context, tx pgx.Tx, a *asset.Asset) (*asset.Asset, error) {
			query := `
				UPDATE assets
				SET newest_key = $2, history = array_append(history, $2), status = 'uploading', updated_at = now()
				WHERE id = $1
				RETURNING ` + assetColumns

			updated, err := scanAsset(tx.QueryRow(ctx, query, a.ID, newKey))
			if err != nil {
				return nil, errFailedRotateKey(err)
			}
			return updated, nil
		},
	)
}

func (r *AssetRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE assets SET deleted_at = now(), updated_at = now() WHERE id = $1 AND deleted_at IS NULL`

	tag, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return errFailedSoftDeleteAsset(err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound(errAssetNotFound)
	}

	return nil
}

func (r *AssetRepository) HardDelete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM assets WHERE id = $1`

	tag, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return errFailedHardDeleteAsset(err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound(errAssetNotFound)
	}

	return nil
}

// lockedTransition runs guard and apply against a row locked with
// SELECT ... FOR UPDATE, so concurrent transitions on the same asset
// serialize and at most one of them observes the legal source state.
// Soft-deleted rows are invisible here.
func (r *AssetRepository) lockedTransition(
	ctx context.Context,
	id uuid.UUID,
	guard func(*asset.Asset) error,
	apply func(context.Context, pgx.Tx, *asset.Asset) (*asset.Asset, error),
) (*asset.Asset, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return nil, errFailedStartTransaction(err)
	}
	defer tx.Rollback(ctx)

	query := `SELECT ` + assetColumns + ` FROM assets WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`

	a, err := scanAsset(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound(errAssetNotFound)
		}
		return nil, errFailedLockAsset(err)
	}

	if err := guard(a); err != nil {
		return nil, err
	}

	updated, err := apply(ctx, tx, a)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errFailedCommitTransaction(err)
	}

	return updated, nil
}

func (r *AssetRepository) applyStatus(next asset.Status) func(context.Context, pgx.Tx, *asset.Asset) (*asset.Asset, error) {
	return func(ctx context.Context, tx pgx.Tx, a *asset.Asset) (*asset.Asset, error) {
		query := `UPDATE assets SET status = $2, updated_at = now() WHERE id = $1 RETURNING ` + assetColumns

		updated, err := scanAsset(tx.QueryRow(ctx, query, a.ID, next))
		if err != nil {
			return nil, errFailedTransitionAsset(err)
		}
		return updated, nil
	}
}

func scanAsset(row pgx.Row) (*asset.Asset, error) {
	a := &asset.Asset{}
	err := row.Scan(
		&a.ID, &a.NewestKey, &a.History, &a.OwnerID, &a.OwnerType, &a.Status, &a.CreatedAt, &a.UpdatedAt, &a.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}
