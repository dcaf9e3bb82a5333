package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asset-service/internal/audit"
	"asset-service/internal/auth"
	"asset-service/internal/config"
	"asset-service/internal/domain/asset"
	"asset-service/internal/domain/user"
	"asset-service/internal/infra/cache"
	"asset-service/internal/infra/vault"
	apperrors "asset-service/pkg/errors"
)

// stubStore is an in-memory AssetStore with the same transition rules
// as the real repository.
type stubStore struct {
	assets      map[uuid.UUID]*asset.Asset
	transitions int
}

func newStubStore() *stubStore {
	return &stubStore{assets: make(map[uuid.UUID]*asset.Asset)}
}

func (s *stubStore) Create(_ context.Context, input asset.CreateAssetInput) (*asset.Asset, error) {
	if _, exists := s.assets[input.ID]; exists {
		return nil, apperrors.Conflict("asset already exists")
	}
	now := time.Now()
	a := &asset.Asset{
		ID:        input.ID,
		NewestKey: input.NewestKey,
		History:   []string{input.NewestKey},
		OwnerID:   input.OwnerID,
		OwnerType: input.OwnerType,
		Status:    asset.StatusInit,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.assets[input.ID] = a
	return s.copyOf(a), nil
}

func (s *stubStore) GetByID(_ context.Context, id uuid.UUID, includeDeleted bool) (*asset.Asset, error) {
	a, ok := s.assets[id]
	if !ok || (!includeDeleted && a.DeletedAt != nil) {
		return nil, apperrors.NotFound("asset not found")
	}
	return s.copyOf(a), nil
}

func (s *stubStore) StartUpload(_ context.Context, id uuid.UUID) (*asset.Asset, error) {
	return s.transition(id, func(a *asset.Asset) error {
		if !a.CanStartUpload() {
			return apperrors.StateConflict("asset is not in an uploadable state")
		}
		a.Status = asset.StatusUploading
		return nil
	})
}

func (s *stubStore) FinishUpload(_ context.Context, id uuid.UUID) (*asset.Asset, error) {
	return s.transition(id, func(a *asset.Asset) error {
		if !a.CanFinishUpload() {
			return apperrors.StateConflict("asset is not uploading")
		}
		a.Status = asset.StatusAvailable
		return nil
	})
}

func (s *stubStore) MarkFailed(_ context.Context, id uuid.UUID) (*asset.Asset, error) {
	return s.transition(id, func(a *asset.Asset) error {
		if !a.CanFinishUpload() {
			return apperrors.StateConflict("asset is not uploading")
		}
		a.Status = asset.StatusFailed
		return nil
	})
}

func (s *stubStore) MarkAborted(_ context.Context, id uuid.UUID) (*asset.Asset, error) {
	return s.transition(id, func(a *asset.Asset) error {
		if !a.CanFinishUpload() {
			return apperrors.StateConflict("asset is not uploading")
		}
		a.Status = asset.StatusAborted
		return nil
	})
}

func (s *stubStore) StartNewVersion(_ context.Context, id uuid.UUID, newKey string) (*asset.Asset, error) {
	return s.transition(id, func(a *asset.Asset) error {
		if !a.CanStartNewVersion() {
			return apperrors.StateConflict("asset is not available")
		}
		a.NewestKey = newKey
		a.History = append(a.History, newKey)
		a.Status = asset.StatusUploading
		return nil
	})
}

func (s *stubStore) SoftDelete(_ context.Context, id uuid.UUID) error {
	a, ok := s.assets[id]
	if !ok || a.DeletedAt != nil {
		return apperrors.NotFound("asset not found")
	}
	now := time.Now()
	a.DeletedAt = &now
	return nil
}

func (s *stubStore) HardDelete(_ context.Context, id uuid.UUID) error {
	if _, ok := s.assets[id]; !ok {
		return apperrors.NotFound("asset not found")
	}
	delete(s.assets, id)
	return nil
}

func (s *stubStore) transition(id uuid.UUID, apply func(*asset.Asset) error) (*asset.Asset, error) {
	a, ok := s.assets[id]
	if !ok || a.DeletedAt != nil {
		return nil, apperrors.NotFound("asset not found")
	}
	if err := apply(a); err != nil {
		return nil, err
	}
	s.transitions++
	a.UpdatedAt = time.Now()
	return s.copyOf(a), nil
}

func (s *stubStore) copyOf(a *asset.Asset) *asset.Asset {
	out := *a
	out.History = append([]string(nil), a.History...)
	return &out
}

// memoryAudit records events in memory and serves them back to Query.
type memoryAudit struct {
	events []*audit.Event
}

func (m *memoryAudit) LogFromContext(_ echo.Context, resourceType audit.ResourceType, resourceID *uuid.UUID, action audit.Action, status audit.Status, metadata map[string]any) {
	m.events = append(m.events, &audit.Event{
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Action:       action,
		Status:       status,
		Metadata:     metadata,
	})
}

func (m *memoryAudit) LogError(_ echo.Context, resourceType audit.ResourceType, resourceID *uuid.UUID, action audit.Action, err error) {
	m.events = append(m.events, &audit.Event{
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Action:       action,
		Status:       audit.StatusFailure,
		ErrorMessage: err.Error(),
	})
}

func (m *memoryAudit) Query(_ context.Context, filter audit.QueryFilter) ([]*audit.Event, error) {
	out := []*audit.Event{}
	for _, e := range m.events {
		if filter.ResourceID != nil && (e.ResourceID == nil || *e.ResourceID != *filter.ResourceID) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

type handlerFixture struct {
	handler *AssetHandler
	store   *stubStore
	codec   *auth.Codec[auth.Permission]
	audit   *memoryAudit
	owner   user.Identity
	echo    *echo.Echo
}

func newFixture(t *testing.T) *handlerFixture {
	t.Helper()

	codec, err := auth.NewCodec[auth.Permission](auth.CodecConfig{
		Issuer:      "asset-service",
		Audience:    "asset-vault",
		Expiry:      15 * time.Minute,
		Keys:        []auth.SigningKey{{ID: "k1", Secret: []byte("0123456789abcdefghijklmnopqrstuv")}},
		ActiveKeyID: "k1",
	})
	require.NoError(t, err)

	vaultClient, err := vault.NewClient("http://vault.local", time.Second)
	require.NoError(t, err)

	store := newStubStore()
	auditLog := &memoryAudit{}
	h := NewAssetHandler(store, codec, cache.NewTokenCache(), vaultClient, auditLog, config.VaultConfig{
		BaseURL:            "http://vault.local",
		Audience:           "asset-vault",
		TokenExpiry:        15 * time.Minute,
		MaxUploadSize:      1 << 20,
		UploadContentTypes: []string{"image/png", "image/jpeg"},
		ReadContentTypes:   []string{"*"},
		ReadTokenCacheTTL:  5 * time.Minute,
	})

	return &handlerFixture{
		handler: h,
		store:   store,
		codec:   codec,
		audit:   auditLog,
		owner:   user.Identity{ID: uuid.Must(uuid.NewV7()), Name: "alice"},
		echo:    echo.New(),
	}
}

// request runs one handler with the given identity already attached,
// the way the authorization middleware would leave it.
func (f *handlerFixture) request(method, path string, body string, ident *user.Identity, assetID uuid.UUID, fn echo.HandlerFunc) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, contentTypeJSON)
	}
	rec := httptest.NewRecorder()
	c := f.echo.NewContext(req, rec)
	if assetID != uuid.Nil {
		c.SetParamNames(paramID)
		c.SetParamValues(assetID.String())
	}
	if ident != nil {
		c.Set(auth.ContextKeyPrincipal, &auth.Principal{Identity: ident})
	}

	_ = fn(c)
	return rec
}

func (f *handlerFixture) createAsset(t *testing.T, ownerType asset.OwnerType) *asset.Asset {
	t.Helper()
	id := asset.NewHandle()
	a, err := f.store.Create(context.Background(), asset.CreateAssetInput{
		ID:        id,
		NewestKey: asset.NewObjectKey(id),
		OwnerID:   f.owner.ID,
		OwnerType: ownerType,
	})
	require.NoError(t, err)
	return a
}

func (f *handlerFixture) makeAvailable(t *testing.T, id uuid.UUID) {
	t.Helper()
	_, err := f.store.StartUpload(context.Background(), id)
	require.NoError(t, err)
	_, err = f.store.FinishUpload(context.Background(), id)
	require.NoError(t, err)
}

func TestCreateAsset(t *testing.T) {
	f := newFixture(t)

	rec := f.request(http.MethodPost, "/assets", `{"owner_type":"article"}`, &f.owner, uuid.Nil, f.handler.CreateAsset)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp AssetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "init", resp.Status)
	assert.Equal(t, "article", resp.OwnerType)
	assert.Equal(t, f.owner.ID, resp.OwnerID)
	assert.NotEmpty(t, resp.NewestKey)
	assert.Equal(t, []string{resp.NewestKey}, resp.History)
}

func TestCreateAssetRejectsUnknownOwnerType(t *testing.T) {
	f := newFixture(t)

	rec := f.request(http.MethodPost, "/assets", `{"owner_type":"galaxy"}`, &f.owner, uuid.Nil, f.handler.CreateAsset)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateAssetRequiresIdentity(t *testing.T) {
	f := newFixture(t)

	rec := f.request(http.MethodPost, "/assets", `{"owner_type":"user"}`, nil, uuid.Nil, f.handler.CreateAsset)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStartUploadMintsScopedToken(t *testing.T) {
	f := newFixture(t)
	a := f.createAsset(t, asset.OwnerUser)

	rec := f.request(http.MethodPost, "/assets/"+a.ID.String()+"/upload", "", &f.owner, a.ID, f.handler.StartUpload)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, a.NewestKey, resp.Key)
	assert.Equal(t, "http://vault.local/"+a.NewestKey, resp.URL)

	// The minted token grants exactly one PUT against this key.
	claims, err := f.codec.Decode(resp.Token)
	require.NoError(t, err)
	perm := claims.Payload
	assert.True(t, perm.CanPerformMethod(auth.MethodPut))
	assert.False(t, perm.CanPerformMethod(auth.MethodGet))
	assert.True(t, perm.CanAccess("/"+a.NewestKey))
	assert.False(t, perm.CanAccess("/assets/other/key"))
	assert.True(t, perm.RestrictsSize())
	assert.False(t, perm.CheckSize(2<<20))
	assert.True(t, perm.CheckContentType("image/png"))
	assert.False(t, perm.CheckContentType("text/html"))

	stored, err := f.store.GetByID(context.Background(), a.ID, false)
	require.NoError(t, err)
	assert.Equal(t, asset.StatusUploading, stored.Status)
}

func TestStartUploadOnAvailableConflicts(t *testing.T) {
	f := newFixture(t)
	a := f.createAsset(t, asset.OwnerUser)
	f.makeAvailable(t, a.ID)

	before := f.store.transitions
	rec := f.request(http.MethodPost, "/assets/"+a.ID.String()+"/upload", "", &f.owner, a.ID, f.handler.StartUpload)

	assert.Equal(t, http.StatusConflict, rec.Code)
	// The failed transition wrote nothing and minted nothing.
	assert.Equal(t, before, f.store.transitions)
	assert.NotContains(t, rec.Body.String(), "token")
}

func TestStartUploadByNonOwnerIsNotFound(t *testing.T) {
	f := newFixture(t)
	a := f.createAsset(t, asset.OwnerUser)

	stranger := user.Identity{ID: uuid.Must(uuid.NewV7()), Name: "mallory"}
	rec := f.request(http.MethodPost, "/assets/"+a.ID.String()+"/upload", "", &stranger, a.ID, f.handler.StartUpload)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFinishUploadLifecycle(t *testing.T) {
	f := newFixture(t)
	a := f.createAsset(t, asset.OwnerUser)

	_, err := f.store.StartUpload(context.Background(), a.ID)
	require.NoError(t, err)

	rec := f.request(http.MethodPost, "/assets/"+a.ID.String()+"/complete", "", &f.owner, a.ID, f.handler.FinishUpload)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AssetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "available", resp.Status)

	// Completing twice conflicts.
	rec = f.request(http.MethodPost, "/assets/"+a.ID.String()+"/complete", "", &f.owner, a.ID, f.handler.FinishUpload)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestFailAndAbort(t *testing.T) {
	f := newFixture(t)

	a := f.createAsset(t, asset.OwnerUser)
	_, err := f.store.StartUpload(context.Background(), a.ID)
	require.NoError(t, err)

	rec := f.request(http.MethodPost, "/assets/"+a.ID.String()+"/fail", "", &f.owner, a.ID, f.handler.FailUpload)
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := f.store.GetByID(context.Background(), a.ID, false)
	require.NoError(t, err)
	assert.Equal(t, asset.StatusFailed, stored.Status)

	// A failed upload may be retried.
	rec = f.request(http.MethodPost, "/assets/"+a.ID.String()+"/upload", "", &f.owner, a.ID, f.handler.StartUpload)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.request(http.MethodPost, "/assets/"+a.ID.String()+"/abort", "", &f.owner, a.ID, f.handler.AbortUpload)
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err = f.store.GetByID(context.Background(), a.ID, false)
	require.NoError(t, err)
	assert.Equal(t, asset.StatusAborted, stored.Status)
}

func TestIssueReadToken(t *testing.T) {
	f := newFixture(t)
	a := f.createAsset(t, asset.OwnerUser)
	f.makeAvailable(t, a.ID)

	rec := f.request(http.MethodGet, "/assets/"+a.ID.String()+"/token", "", &f.owner, a.ID, f.handler.IssueReadToken)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, a.NewestKey, resp.Key)

	claims, err := f.codec.Decode(resp.Token)
	require.NoError(t, err)
	perm := claims.Payload
	assert.True(t, perm.CanPerformMethod(auth.MethodGet))
	assert.True(t, perm.CanPerformMethod(auth.MethodHead))
	assert.False(t, perm.CanPerformMethod(auth.MethodPut))
	assert.True(t, perm.CanAccess("/"+a.NewestKey))
	assert.False(t, perm.RestrictsSize())
}

func TestIssueReadTokenIsCached(t *testing.T) {
	f := newFixture(t)
	a := f.createAsset(t, asset.OwnerUser)
	f.makeAvailable(t, a.ID)

	first := f.request(http.MethodGet, "/assets/"+a.ID.String()+"/token", "", &f.owner, a.ID, f.handler.IssueReadToken)
	second := f.request(http.MethodGet, "/assets/"+a.ID.String()+"/token", "", &f.owner, a.ID, f.handler.IssueReadToken)

	var r1, r2 TokenResponse
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &r1))
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &r2))
	assert.Equal(t, r1.Token, r2.Token)
}

func TestIssueReadTokenBeforeUploadIsNotFound(t *testing.T) {
	f := newFixture(t)
	a := f.createAsset(t, asset.OwnerUser)

	// An asset with no available data is indistinguishable from an
	// absent one on the read path, and no token leaks out.
	rec := f.request(http.MethodGet, "/assets/"+a.ID.String()+"/token", "", &f.owner, a.ID, f.handler.IssueReadToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotContains(t, rec.Body.String(), "token")

	// Same answer mid-upload.
	_, err := f.store.StartUpload(context.Background(), a.ID)
	require.NoError(t, err)
	rec = f.request(http.MethodGet, "/assets/"+a.ID.String()+"/token", "", &f.owner, a.ID, f.handler.IssueReadToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIssueReadTokenNonOwner(t *testing.T) {
	f := newFixture(t)

	private := f.createAsset(t, asset.OwnerUser)
	f.makeAvailable(t, private.ID)
	open := f.createAsset(t, asset.OwnerAny)
	f.makeAvailable(t, open.ID)

	stranger := user.Identity{ID: uuid.Must(uuid.NewV7()), Name: "bob"}

	rec := f.request(http.MethodGet, "/assets/"+private.ID.String()+"/token", "", &stranger, private.ID, f.handler.IssueReadToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// owner-type "any" assets are readable by any authenticated user.
	rec = f.request(http.MethodGet, "/assets/"+open.ID.String()+"/token", "", &stranger, open.ID, f.handler.IssueReadToken)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewVersionRotatesKey(t *testing.T) {
	f := newFixture(t)
	a := f.createAsset(t, asset.OwnerUser)
	f.makeAvailable(t, a.ID)

	rec := f.request(http.MethodPost, "/assets/"+a.ID.String()+"/versions", "", &f.owner, a.ID, f.handler.NewVersion)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEqual(t, a.NewestKey, resp.Key)

	stored, err := f.store.GetByID(context.Background(), a.ID, false)
	require.NoError(t, err)
	assert.Equal(t, asset.StatusUploading, stored.Status)
	assert.Equal(t, resp.Key, stored.NewestKey)
	assert.Equal(t, []string{a.NewestKey, resp.Key}, stored.History)
}

func TestNewVersionRequiresAvailable(t *testing.T) {
	f := newFixture(t)
	a := f.createAsset(t, asset.OwnerUser)

	rec := f.request(http.MethodPost, "/assets/"+a.ID.String()+"/versions", "", &f.owner, a.ID, f.handler.NewVersion)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDeleteAsset(t *testing.T) {
	f := newFixture(t)
	a := f.createAsset(t, asset.OwnerUser)
	f.makeAvailable(t, a.ID)

	rec := f.request(http.MethodDelete, "/assets/"+a.ID.String(), "", &f.owner, a.ID, f.handler.DeleteAsset)
	require.Equal(t, http.StatusOK, rec.Code)

	// A soft-deleted asset is gone from every read path.
	rec = f.request(http.MethodGet, "/assets/"+a.ID.String(), "", &f.owner, a.ID, f.handler.GetAsset)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// The row still exists for includeDeleted readers.
	stored, err := f.store.GetByID(context.Background(), a.ID, true)
	require.NoError(t, err)
	assert.NotNil(t, stored.DeletedAt)
	assert.Equal(t, asset.StatusAvailable, stored.Status)
}

func TestDeleteAssetHard(t *testing.T) {
	f := newFixture(t)
	a := f.createAsset(t, asset.OwnerUser)

	rec := f.request(http.MethodDelete, "/assets/"+a.ID.String()+"?hard=true", "", &f.owner, a.ID, f.handler.DeleteAsset)
	require.Equal(t, http.StatusOK, rec.Code)

	_, err := f.store.GetByID(context.Background(), a.ID, true)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestAssetAudit(t *testing.T) {
	f := newFixture(t)

	rec := f.request(http.MethodPost, "/assets", `{"owner_type":"user"}`, &f.owner, uuid.Nil, f.handler.CreateAsset)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created AssetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = f.request(http.MethodPost, "/assets/"+created.ID.String()+"/upload", "", &f.owner, created.ID, f.handler.StartUpload)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.request(http.MethodGet, "/assets/"+created.ID.String()+"/audit", "", &f.owner, created.ID, f.handler.AssetAudit)
	require.Equal(t, http.StatusOK, rec.Code)

	var events []*audit.Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.NotEmpty(t, events)

	actions := make([]audit.Action, 0, len(events))
	for _, e := range events {
		require.NotNil(t, e.ResourceID)
		assert.Equal(t, created.ID, *e.ResourceID)
		actions = append(actions, e.Action)
	}
	assert.Contains(t, actions, audit.ActionCreate)
	assert.Contains(t, actions, audit.ActionStartUpload)
}

func TestAssetAuditNonOwnerIsNotFound(t *testing.T) {
	f := newFixture(t)
	a := f.createAsset(t, asset.OwnerUser)

	stranger := user.Identity{ID: uuid.Must(uuid.NewV7()), Name: "eve"}
	rec := f.request(http.MethodGet, "/assets/"+a.ID.String()+"/audit", "", &stranger, a.ID, f.handler.AssetAudit)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// The trail stays owner-only even on owner-type "any" assets.
	open := f.createAsset(t, asset.OwnerAny)
	rec = f.request(http.MethodGet, "/assets/"+open.ID.String()+"/audit", "", &stranger, open.ID, f.handler.AssetAudit)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetAssetInvalidID(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/assets/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	c := f.echo.NewContext(req, rec)
	c.SetParamNames(paramID)
	c.SetParamValues("not-a-uuid")
	c.Set(auth.ContextKeyPrincipal, &auth.Principal{Identity: &f.owner})

	_ = f.handler.GetAsset(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
