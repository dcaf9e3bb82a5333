package postgres

import (
	"fmt"
	"time"
)

const (
	poolHealthCheckPeriod = time.Minute
	poolMaxConnLifetime   = time.Hour
	poolMaxConnIdleTime   = 30 * time.Minute
	dbPingTimeout         = 5 * time.Second

	errAssetNotFound = "asset not found"

	errNotUploadable = "asset is not in an uploadable state"
	errNotUploading  = "asset is not uploading"
	errNotAvailable  = "asset is not available"
	errAssetIDTaken  = "an asset with this id already exists"
	errNewKeyEmpty   = "new object key cannot be empty"

	errFailedParseDatabaseConfigFmt  = "failed to parse database config: %w"
	errFailedCreateConnectionPoolFmt = "failed to create connection pool: %w"
	errFailedPingDatabaseFmt         = "failed to ping database: %w"

	errFailedStartTransactionFmt  = "failed to start transaction: %w"
	errFailedCommitTransactionFmt = "failed to commit transaction: %w"

	errFailedCreateAssetFmt     = "failed to create asset: %w"
	errFailedGetAssetFmt        = "failed to get asset: %w"
	errFailedLockAssetFmt       = "failed to lock asset row: %w"
	errFailedTransitionAssetFmt = "failed to transition asset: %w"
	errFailedRotateKeyFmt       = "failed to rotate asset key: %w"
	errFailedSoftDeleteAssetFmt = "failed to soft-delete asset: %w"
	errFailedHardDeleteAssetFmt = "failed to hard-delete asset: %w"
)

var (
	errFailedParseDatabaseConfig  = func(err error) error { return fmt.Errorf(errFailedParseDatabaseConfigFmt, err) }
	errFailedCreateConnectionPool = func(err error) error { return fmt.Errorf(errFailedCreateConnectionPoolFmt, err) }
	errFailedPingDatabase         = func(err error) error { return fmt.Errorf(errFailedPingDatabaseFmt, err) }

	errFailedStartTransaction  = func(err error) error { return fmt.Errorf(errFailedStartTransactionFmt, err) }
	errFailedCommitTransaction = func(err error) error { return fmt.Errorf(errFailedCommitTransactionFmt, err) }

	errFailedCreateAsset     = func(err error) error { return fmt.Errorf(errFailedCreateAssetFmt, err) }
	errFailedGetAsset        = func(err error) error { return fmt.Errorf(errFailedGetAssetFmt, err) }
	errFailedLockAsset       = func(err error) error { return fmt.Errorf(errFailedLockAssetFmt, err) }
	errFailedTransitionAsset = func(err error) error { return fmt.Errorf(errFailedTransitionAssetFmt, err) }
	errFailedRotateKey       = func(err error) error { return fmt.Errorf(errFailedRotateKeyFmt, err) }
	errFailedSoftDeleteAsset = func(err error) error { return fmt.Errorf(errFailedSoftDeleteAssetFmt, err) }
	errFailedHardDeleteAsset = func(err error) error { return fmt.Errorf(errFailedHardDeleteAssetFmt, err) }
)
