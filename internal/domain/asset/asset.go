package asset

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the upload lifecycle state of an asset record. Soft
// deletion is not a status: DeletedAt alone is the source of truth for
// it, so a deleted row keeps its last lifecycle state.
type Status string

const (
	StatusInit      Status = "init"
	StatusUploading Status = "uploading"
	StatusAvailable Status = "available"
	StatusFailed    Status = "failed"
	StatusAborted   Status = "aborted"
)

// OwnerType says what kind of entity owns the asset row.
type OwnerType string

const (
	OwnerUser     OwnerType = "user"
	OwnerArticle  OwnerType = "article"
	OwnerQuestion OwnerType = "question"
	OwnerAny      OwnerType = "any"
)

// ValidOwnerType reports whether the value is a known owner type.
func ValidOwnerType(t OwnerType) bool {
	switch t {
	case OwnerUser, OwnerArticle, OwnerQuestion, OwnerAny:
		return true
	}
	return false
}

// Asset is the metadata record for one stored blob. NewestKey is the
// current object-store key; History holds every key ever installed,
// newest last, and only ever grows.
type Asset struct {
	ID        uuid.UUID
	NewestKey string
	History   []string
	OwnerID   uuid.UUID
	OwnerType OwnerType
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// Deleted reports whether the row is soft-deleted.
func (a *Asset) Deleted() bool {
	return a.DeletedAt != nil && a.DeletedAt.Before(time.Now())
}

// CanStartUpload reports whether an upload may begin from the current
// state. Available is deliberately excluded; replacing available data
// is the new-version operation.
func (a *Asset) CanStartUpload() bool {
	switch a.Status {
	case StatusInit, StatusFailed, StatusAborted:
		return true
	}
	return false
}

// CanFinishUpload reports whether the upload-finished signal is legal.
func (a *Asset) CanFinishUpload() bool {
	return a.Status == StatusUploading
}

// CanStartNewVersion reports whether a new object version may be
// started, rotating the current key into history.
func (a *Asset) CanStartNewVersion() bool {
	return a.Status == StatusAvailable
}

// OwnedBy reports whether the given user owns this asset row.
func (a *Asset) OwnedBy(userID uuid.UUID) bool {
	return a.OwnerID == userID
}

// NewHandle generates a fresh asset id. UUIDv7 keeps ids roughly
// time-ordered in the index.
func NewHandle() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// NewObjectKey builds an object-store key for a version of the asset.
func NewObjectKey(assetID uuid.UUID) string {
	return fmt.Sprintf("assets/%s/%s", assetID, uuid.NewString())
}

// CreateAssetInput is the data needed to insert a fresh Init row.
type CreateAssetInput struct {
	ID        uuid.UUID
	NewestKey string
	OwnerID   uuid.UUID
	OwnerType OwnerType
}
