package vault

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandlens/brandlens/internal/common"
	"github.com/brandlens/brandlens/internal/models"
)

type memCredentialStorage struct {
	creds map[string]*models.Credential
}

func newMemCredentialStorage() *memCredentialStorage {
	return &memCredentialStorage{creds: make(map[string]*models.Credential)}
}

func (m *memCredentialStorage) SaveCredential(ctx context.Context, cred *models.Credential) error {
	copied := *cred
	m.creds[cred.ID] = &copied
	return nil
}

func (m *memCredentialStorage) GetCredential(ctx context.Context, id string) (*models.Credential, error) {
	cred, ok := m.creds[id]
	if !ok {
		return nil, fmt.Errorf("credential not found: %s", id)
	}
	copied := *cred
	return &copied, nil
}

func (m *memCredentialStorage) ListCredentials(ctx context.Context, scope models.CredentialScope, engine models.Engine, kind models.CredentialKind) ([]*models.Credential, error) {
	var out []*models.Credential
	for _, c := range m.creds {
		if c.Engine == engine && c.Kind == kind && c.Scope == scope {
			copied := *c
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memCredentialStorage) DeleteCredential(ctx context.Context, id string) error {
	delete(m.creds, id)
	return nil
}

func newTestVault(t *testing.T, storage *memCredentialStorage) *Service {
	t.Helper()
	svc, err := NewService(storage, &common.AuthConfig{MasterSecret: "test-master-secret"}, common.GetLogger())
	require.NoError(t, err)
	return svc
}

func TestVaultRoundTrip(t *testing.T) {
	storage := newMemCredentialStorage()
	svc := newTestVault(t, storage)
	ctx := context.Background()

	scope := models.CredentialScope{Type: models.ScopeWorkspace, OwnerID: "ws_1"}
	value := map[string]string{"api_key": "sk-abc123"}

	id, err := svc.Store(ctx, scope, models.EngineDeepSeek, models.CredentialAPIKey, "default", value, "primary key", nil)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	var got map[string]string
	require.NoError(t, svc.Reveal(ctx, id, &got))
	assert.Equal(t, "sk-abc123", got["api_key"])
}

func TestVaultCleartextNeverPersisted(t *testing.T) {
	storage := newMemCredentialStorage()
	svc := newTestVault(t, storage)
	ctx := context.Background()

	scope := models.CredentialScope{Type: models.ScopeUser, OwnerID: "u_1"}
	secret := "very-secret-session-cookie-value"

	id, err := svc.Store(ctx, scope, models.EngineChatGPT, models.CredentialCookie, "acct", map[string]string{"cookie": secret}, "", nil)
	require.NoError(t, err)

	stored := storage.creds[id]
	require.NotNil(t, stored)
	assert.NotContains(t, stored.EncryptedValue, secret)
	assert.NotContains(t, stored.EncryptedValue, "cookie")
}

func TestVaultRevealWrongKeyIsCorrupt(t *testing.T) {
	storage := newMemCredentialStorage()
	svc := newTestVault(t, storage)
	ctx := context.Background()

	scope := models.CredentialScope{Type: models.ScopeWorkspace, OwnerID: "ws_1"}
	id, err := svc.Store(ctx, scope, models.EngineQwen, models.CredentialAPIKey, "default", map[string]string{"api_key": "k"}, "", nil)
	require.NoError(t, err)

	other, err := NewService(storage, &common.AuthConfig{MasterSecret: "a-different-secret"}, common.GetLogger())
	require.NoError(t, err)

	var out map[string]string
	err = other.Reveal(ctx, id, &out)
	assert.ErrorIs(t, err, ErrCorrupt)
	assert.Empty(t, out)
}

func TestVaultRevealMissing(t *testing.T) {
	svc := newTestVault(t, newMemCredentialStorage())

	var out map[string]string
	err := svc.Reveal(context.Background(), "cred_missing", &out)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVaultRevealTamperedCiphertext(t *testing.T) {
	storage := newMemCredentialStorage()
	svc := newTestVault(t, storage)
	ctx := context.Background()

	scope := models.CredentialScope{Type: models.ScopeWorkspace, OwnerID: "ws_1"}
	id, err := svc.Store(ctx, scope, models.EngineKimi, models.CredentialAPIKey, "default", map[string]string{"api_key": "k"}, "", nil)
	require.NoError(t, err)

	storage.creds[id].EncryptedValue = "not-valid-base64!!!"

	var out map[string]string
	assert.ErrorIs(t, svc.Reveal(ctx, id, &out), ErrCorrupt)
}

func TestVaultPickActiveInsertionOrder(t *testing.T) {
	storage := newMemCredentialStorage()
	svc := newTestVault(t, storage)
	ctx := context.Background()
	scope := models.CredentialScope{Type: models.ScopeWorkspace, OwnerID: "ws_1"}

	first, err := svc.Store(ctx, scope, models.EnginePerplexity, models.CredentialAPIKey, "default", map[string]string{"api_key": "first"}, "", nil)
	require.NoError(t, err)
	storage.creds[first].CreatedAt = time.Now().Add(-2 * time.Hour)

	second, err := svc.Store(ctx, scope, models.EnginePerplexity, models.CredentialAPIKey, "default", map[string]string{"api_key": "second"}, "", nil)
	require.NoError(t, err)
	storage.creds[second].CreatedAt = time.Now().Add(-1 * time.Hour)

	var out map[string]string
	found, id, err := svc.PickActive(ctx, scope, models.EnginePerplexity, models.CredentialAPIKey, "", &out)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, first, id)
	assert.Equal(t, "first", out["api_key"])
}

func TestVaultPickActiveSkipsExpiredAndInactive(t *testing.T) {
	storage := newMemCredentialStorage()
	svc := newTestVault(t, storage)
	ctx := context.Background()
	scope := models.CredentialScope{Type: models.ScopeWorkspace, OwnerID: "ws_1"}

	expiry := time.Now().Add(-time.Minute)
	expired, err := svc.Store(ctx, scope, models.EngineDoubao, models.CredentialCookie, "a", map[string]string{"cookie": "old"}, "", &expiry)
	require.NoError(t, err)
	storage.creds[expired].CreatedAt = time.Now().Add(-3 * time.Hour)

	inactive, err := svc.Store(ctx, scope, models.EngineDoubao, models.CredentialCookie, "a", map[string]string{"cookie": "disabled"}, "", nil)
	require.NoError(t, err)
	storage.creds[inactive].CreatedAt = time.Now().Add(-2 * time.Hour)
	storage.creds[inactive].IsActive = false

	live, err := svc.Store(ctx, scope, models.EngineDoubao, models.CredentialCookie, "a", map[string]string{"cookie": "live"}, "", nil)
	require.NoError(t, err)

	var out map[string]string
	found, id, err := svc.PickActive(ctx, scope, models.EngineDoubao, models.CredentialCookie, "a", &out)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, live, id)
	assert.Equal(t, "live", out["cookie"])
}

func TestVaultPickActiveNoMatch(t *testing.T) {
	svc := newTestVault(t, newMemCredentialStorage())

	var out map[string]string
	found, id, err := svc.PickActive(context.Background(), models.CredentialScope{Type: models.ScopeWorkspace, OwnerID: "ws_1"}, models.EngineBingCopilot, models.CredentialAPIKey, "", &out)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, id)
}

func TestVaultMarkFailedTruncatesAndDeactivates(t *testing.T) {
	storage := newMemCredentialStorage()
	svc := newTestVault(t, storage)
	ctx := context.Background()
	scope := models.CredentialScope{Type: models.ScopeWorkspace, OwnerID: "ws_1"}

	id, err := svc.Store(ctx, scope, models.EngineChatGLM, models.CredentialAPIKey, "default", map[string]string{"api_key": "k"}, "", nil)
	require.NoError(t, err)

	long := strings.Repeat("x", 2000)
	require.NoError(t, svc.MarkFailed(ctx, id, long))

	cred := storage.creds[id]
	assert.Len(t, cred.LastError, 500)
	assert.False(t, cred.IsActive)
}

func TestVaultRequiresMasterSecret(t *testing.T) {
	_, err := NewService(newMemCredentialStorage(), &common.AuthConfig{}, common.GetLogger())
	require.Error(t, err)
	// The error tells the operator where the secret comes from
	assert.Contains(t, err.Error(), "auth.master_secret")
}
