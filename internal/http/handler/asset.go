package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"asset-service/internal/audit"
	"asset-service/internal/auth"
	"asset-service/internal/config"
	"asset-service/internal/domain/asset"
	"asset-service/internal/domain/user"
	"asset-service/internal/infra/cache"
	"asset-service/internal/infra/vault"
	apperrors "asset-service/pkg/errors"
	"asset-service/pkg/metrics"
)

type AssetHandler struct {
	assetRepo   AssetStore
	tokens      *auth.Codec[auth.Permission]
	tokenCache  *cache.TokenCache
	vaultClient *vault.Client
	auditLogger AuditLogger
	cfg         config.VaultConfig
}

func NewAssetHandler(
	assetRepo AssetStore,
	tokens *auth.Codec[auth.Permission],
	tokenCache *cache.TokenCache,
	vaultClient *vault.Client,
	auditLogger AuditLogger,
	cfg config.VaultConfig,
) *AssetHandler {
	return &AssetHandler{
		assetRepo:   assetRepo,
		tokens:      tokens,
		tokenCache:  tokenCache,
		vaultClient: vaultClient,
		auditLogger: auditLogger,
		cfg:         cfg,
	}
}

type CreateAssetRequest struct {
	OwnerType string `json:"owner_type"`
}

type AssetResponse struct {
	ID        uuid.UUID  `json:"id"`
	NewestKey string     `json:"newest_key"`
	History   []string   `json:"history"`
	OwnerID   uuid.UUID  `json:"owner_id"`
	OwnerType string     `json:"owner_type"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// TokenResponse is a minted capability token plus everything the
// client needs to use it against the store.
type TokenResponse struct {
	Token     string    `json:"token"`
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

func toAssetResponse(a *asset.Asset) AssetResponse {
	return AssetResponse{
		ID:        a.ID,
		NewestKey: a.NewestKey,
		History:   a.History,
		OwnerID:   a.OwnerID,
		OwnerType: string(a.OwnerType),
		Status:    string(a.Status),
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
		DeletedAt: a.DeletedAt,
	}
}

// CreateAsset registers a fresh metadata record in the init state and
// reserves its first object key. No data moves and no token is minted
// until the client starts an upload.
func (h *AssetHandler) CreateAsset(c echo.Context) error {
	identity, err := auth.GetIdentity(c)
	if err != nil {
		return RespondWithMappedError(c, err)
	}

	var req CreateAssetRequest
	if err := bindStrictJSON(c, &req); err != nil {
		return handleHTTPError(c, err)
	}

	ownerType := asset.OwnerType(req.OwnerType)
	if req.OwnerType == "" {
		ownerType = asset.OwnerUser
	}
	if !asset.ValidOwnerType(ownerType) {
		return respondError(c, http.StatusBadRequest, msgInvalidOwnerType)
	}

	id := asset.NewHandle()
	created, err := h.assetRepo.Create(c.Request().Context(), asset.CreateAssetInput{
		ID:        id,
		NewestKey: asset.NewObjectKey(id),
		OwnerID:   identity.ID,
		OwnerType: ownerType,
	})
	if err != nil {
		h.auditLogger.LogError(c, audit.ResourceTypeAsset, &id, audit.ActionCreate, err)
		return RespondWithMappedError(c, err)
	}

	h.auditLogger.LogFromContext(c, audit.ResourceTypeAsset, &created.ID, audit.ActionCreate, audit.StatusSuccess, map[string]any{
		"owner_type": string(created.OwnerType),
	})

	return c.JSON(http.StatusCreated, toAssetResponse(created))
}

// GetAsset returns the metadata record. Assets another user owns are
// reported as absent, not forbidden.
func (h *AssetHandler) GetAsset(c echo.Context) error {
	_, a, err := h.loadOwned(c, readAccess)
	if err != nil {
		return respondOwnershipError(c, err)
	}

	return c.JSON(http.StatusOK, toAssetResponse(a))
}

// IssueReadToken mints a read capability for the asset's newest key.
// Tokens are cached per object version, so hot assets reuse one token
// until it nears expiry. An asset without available data is reported
// as absent, exactly like an asset the caller may not see.
func (h *AssetHandler) IssueReadToken(c echo.Context) error {
	_, a, err := h.loadOwned(c, readAccess)
	if err != nil {
		return respondOwnershipError(c, err)
	}

	if a.Status != asset.StatusAvailable {
		return SafeErrorResponse(c, apperrors.StateConflict(msgAssetNotAvailable), http.StatusNotFound, msgAssetNotFound)
	}

	cacheKey := a.ID.String() + "|" + a.NewestKey
	if entry, ok := h.tokenCache.Get(cacheKey); ok {
		return c.JSON(http.StatusOK, TokenResponse{
			Token:     entry.Token,
			Key:       entry.Key,
			URL:       entry.URL,
			ExpiresAt: entry.ExpiresAt,
		})
	}

	perm := auth.NewMinimumPermission().
		PermitMethods(auth.MethodSafe).
		PermitResourcePattern(h.vaultClient.ObjectPath(a.NewestKey)).
		PermitContentTypes(h.cfg.ReadContentTypes...)

	token, err := h.tokens.EncodeActive(perm)
	if err != nil {
		h.auditLogger.LogError(c, audit.ResourceTypeToken, &a.ID, audit.ActionIssueToken, err)
		return respondError(c, http.StatusInternalServerError, msgIssueTokenFail)
	}

	// The cache entry must die no later than the token it holds.
	ttl := h.cfg.ReadTokenCacheTTL
	if h.tokens.Expiry() < ttl {
		ttl = h.tokens.Expiry()
	}
	metrics.IncTokenIssued()
	entry := cache.IssuedToken{
		Token:     token,
		Key:       a.NewestKey,
		URL:       h.vaultClient.ObjectURL(a.NewestKey),
		ExpiresAt: time.Now().Add(ttl),
	}
	h.tokenCache.Set(cacheKey, entry)

	h.auditLogger.LogFromContext(c, audit.ResourceTypeToken, &a.ID, audit.ActionIssueToken, audit.StatusSuccess, map[string]any{
		"key": a.NewestKey,
	})

	return c.JSON(http.StatusOK, TokenResponse{
		Token:     entry.Token,
		Key:       entry.Key,
		URL:       entry.URL,
		ExpiresAt: entry.ExpiresAt,
	})
}

// StartUpload transitions the asset into uploading and mints a write
// capability for its object key. The token is only minted after the
// transition has committed; a failed transition never yields a token.
func (h *AssetHandler) StartUpload(c echo.Context) error {
	_, a, err := h.loadOwned(c, writeAccess)
	if err != nil {
		return respondOwnershipError(c, err)
	}

	updated, err := h.assetRepo.StartUpload(c.Request().Context(), a.ID)
	if err != nil {
		h.auditLogger.LogError(c, audit.ResourceTypeAsset, &a.ID, audit.ActionStartUpload, err)
		return RespondWithMappedError(c, err)
	}

	return h.respondUploadToken(c, updated, audit.ActionStartUpload)
}

// FinishUpload marks the uploaded data as the asset's available content.
func (h *AssetHandler) FinishUpload(c echo.Context) error {
	return h.transition(c, audit.ActionFinishUpload, h.assetRepo.FinishUpload)
}

// FailUpload records that the client could not complete the upload.
func (h *AssetHandler) FailUpload(c echo.Context) error {
	return h.transition(c, audit.ActionFail, h.assetRepo.MarkFailed)
}

// AbortUpload records that the client walked away from the upload.
func (h *AssetHandler) AbortUpload(c echo.Context) error {
	return h.transition(c, audit.ActionAbort, h.assetRepo.MarkAborted)
}

// NewVersion rotates a fresh object key into an available asset and
// mints a write capability for it. The previous key stays in history.
func (h *AssetHandler) NewVersion(c echo.Context) error {
	_, a, err := h.loadOwned(c, writeAccess)
	if err != nil {
		return respondOwnershipError(c, err)
	}

	newKey := asset.NewObjectKey(a.ID)
	updated, err := h.assetRepo.StartNewVersion(c.Request().Context(), a.ID, newKey)
	if err != nil {
		h.auditLogger.LogError(c, audit.ResourceTypeAsset, &a.ID, audit.ActionNewVersion, err)
		return RespondWithMappedError(c, err)
	}

	h.tokenCache.Invalidate(a.ID.String() + "|" + a.NewestKey)

	return h.respondUploadToken(c, updated, audit.ActionNewVersion)
}

// DeleteAsset soft-deletes by default; ?hard=true purges the row.
func (h *AssetHandler) DeleteAsset(c echo.Context) error {
	_, a, err := h.loadOwned(c, writeAccess)
	if err != nil {
		return respondOwnershipError(c, err)
	}

	hard := c.QueryParam(queryHard) == "true"
	action := audit.ActionSoftDelete
	message := msgAssetDeleted

	if hard {
		action = audit.ActionPurge
		message = msgAssetPurged
		err = h.assetRepo.HardDelete(c.Request().Context(), a.ID)
	} else {
		err = h.assetRepo.SoftDelete(c.Request().Context(), a.ID)
	}
	if err != nil {
		h.auditLogger.LogError(c, audit.ResourceTypeAsset, &a.ID, action, err)
		return RespondWithMappedError(c, err)
	}

	h.tokenCache.Invalidate(a.ID.String() + "|" + a.NewestKey)
	h.auditLogger.LogFromContext(c, audit.ResourceTypeAsset, &a.ID, action, audit.StatusSuccess, nil)

	return respondMessage(c, http.StatusOK, message)
}

type accessKind int

const (
	readAccess accessKind = iota
	writeAccess
)

// loadOwned parses the id, loads the asset and enforces ownership.
// Reads additionally pass for owner-type "any" assets. Assets the
// caller may not touch surface as not found.
func (h *AssetHandler) loadOwned(c echo.Context, kind accessKind) (*user.Identity, *asset.Asset, error) {
	identity, err := auth.GetIdentity(c)
	if err != nil {
		return nil, nil, err
	}

	id, err := uuid.Parse(c.Param(paramID))
	if err != nil {
		return nil, nil, apperrors.BadRequest(msgInvalidAssetID)
	}

	a, err := h.assetRepo.GetByID(c.Request().Context(), id, false)
	if err != nil {
		return nil, nil, err
	}

	allowed := a.OwnedBy(identity.ID)
	if kind == readAccess && a.OwnerType == asset.OwnerAny {
		allowed = true
	}
	if !allowed {
		return nil, nil, apperrors.Forbidden(msgNotOwner)
	}

	return identity, a, nil
}

// respondOwnershipError masks ownership refusals as not-found so asset
// ids cannot be probed for existence; everything else maps normally.
func respondOwnershipError(c echo.Context, err error) error {
	if errors.Is(err, apperrors.ErrForbidden) {
		return SafeErrorResponse(c, err, http.StatusNotFound, msgAssetNotFound)
	}
	return RespondWithMappedError(c, err)
}

// AssetAudit returns the audit trail for one asset, newest first. Only
// the owner may read it; token issuance events share the asset's id.
func (h *AssetHandler) AssetAudit(c echo.Context) error {
	_, a, err := h.loadOwned(c, writeAccess)
	if err != nil {
		return respondOwnershipError(c, err)
	}

	events, err := h.auditLogger.Query(c.Request().Context(), audit.QueryFilter{
		ResourceID: &a.ID,
		Limit:      intQueryParam(c, queryLimit, defaultAuditPageSize, maxAuditPageSize),
		Offset:     intQueryParam(c, queryOffset, 0, 0),
	})
	if err != nil {
		return RespondWithMappedError(c, err)
	}

	return c.JSON(http.StatusOK, events)
}

func intQueryParam(c echo.Context, name string, def, max int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	if max > 0 && n > max {
		return max
	}
	return n
}

func (h *AssetHandler) transition(c echo.Context, action audit.Action, op func(ctx context.Context, id uuid.UUID) (*asset.Asset, error)) error {
	_, a, err := h.loadOwned(c, writeAccess)
	if err != nil {
		return respondOwnershipError(c, err)
	}

	updated, err := op(c.Request().Context(), a.ID)
	if err != nil {
		h.auditLogger.LogError(c, audit.ResourceTypeAsset, &a.ID, action, err)
		return RespondWithMappedError(c, err)
	}

	h.auditLogger.LogFromContext(c, audit.ResourceTypeAsset, &a.ID, action, audit.StatusSuccess, map[string]any{
		"status": string(updated.Status),
	})

	return c.JSON(http.StatusOK, toAssetResponse(updated))
}

func (h *AssetHandler) respondUploadToken(c echo.Context, a *asset.Asset, action audit.Action) error {
	perm := auth.NewMinimumPermission().
		PermitMethods(auth.MethodPut).
		PermitResourcePattern(h.vaultClient.ObjectPath(a.NewestKey)).
		RestrictMaxSize(&h.cfg.MaxUploadSize).
		PermitContentTypes(h.cfg.UploadContentTypes...)

	token, err := h.tokens.EncodeActive(perm)
	if err != nil {
		h.auditLogger.LogError(c, audit.ResourceTypeToken, &a.ID, action, err)
		return respondError(c, http.StatusInternalServerError, msgIssueTokenFail)
	}

	metrics.IncTokenIssued()
	h.auditLogger.LogFromContext(c, audit.ResourceTypeAsset, &a.ID, action, audit.StatusSuccess, map[string]any{
		"key": a.NewestKey,
	})

	return c.JSON(http.StatusOK, TokenResponse{
		Token:     token,
		Key:       a.NewestKey,
		URL:       h.vaultClient.ObjectURL(a.NewestKey),
		ExpiresAt: time.Now().Add(h.tokens.Expiry()),
	})
}
