package vault

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/brandlens/brandlens/internal/common"
	"github.com/brandlens/brandlens/internal/interfaces"
	"github.com/brandlens/brandlens/internal/models"
)

var (
	// ErrNotFound means no credential exists for the requested ID
	ErrNotFound = errors.New("credential not found")
	// ErrCorrupt means the ciphertext could not be authenticated or decoded.
	// Callers never see partial plaintext.
	ErrCorrupt = errors.New("credential ciphertext is corrupt")
)

// maxErrorLen caps the failure message persisted on a credential
const maxErrorLen = 500

// Service encrypts credential values with AES-256-GCM before they reach
// storage. The key is derived once from the configured master secret.
type Service struct {
	storage interfaces.CredentialStorage
	aead    cipher.AEAD
	logger  arbor.ILogger
}

// NewService derives the encryption key from the master secret and returns
// a ready vault. An empty master secret is refused; there is no insecure
// default to fall back to.
func NewService(storage interfaces.CredentialStorage, config *common.AuthConfig, logger arbor.ILogger) (*Service, error) {
	if config.MasterSecret == "" {
		return nil, fmt.Errorf("vault master secret is not configured: set auth.master_secret or BRANDLENS_MASTER_SECRET")
	}

	key := sha256.Sum256([]byte(config.MasterSecret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GCM: %w", err)
	}

	return &Service{
		storage: storage,
		aead:    aead,
		logger:  logger,
	}, nil
}

// Store encrypts the value and persists a new credential, returning its ID.
// The cleartext never reaches storage or the log.
func (s *Service) Store(ctx context.Context, scope models.CredentialScope, engine models.Engine, kind models.CredentialKind, account string, value interface{}, label string, expiresAt *time.Time) (string, error) {
	plaintext, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("failed to encode credential value: %w", err)
	}

	ciphertext, err := s.seal(plaintext)
	if err != nil {
		return "", err
	}

	cred := &models.Credential{
		ID:             common.NewID(),
		Scope:          scope,
		Engine:         engine,
		Kind:           kind,
		Account:        account,
		EncryptedValue: ciphertext,
		Label:          label,
		IsActive:       true,
		ExpiresAt:      expiresAt,
		CreatedAt:      time.Now(),
	}

	if err := s.storage.SaveCredential(ctx, cred); err != nil {
		return "", err
	}

	s.logger.Info().
		Str("credential_id", cred.ID).
		Str("engine", string(engine)).
		Str("kind", string(kind)).
		Msg("Credential stored")

	return cred.ID, nil
}

// Reveal decrypts the credential value into out
func (s *Service) Reveal(ctx context.Context, credentialID string, out interface{}) error {
	cred, err := s.storage.GetCredential(ctx, credentialID)
	if err != nil {
		return ErrNotFound
	}

	plaintext, err := s.open(cred.EncryptedValue)
	if err != nil {
		s.logger.Warn().Str("credential_id", credentialID).Msg("Credential failed decryption")
		return ErrCorrupt
	}

	if err := json.Unmarshal(plaintext, out); err != nil {
		return ErrCorrupt
	}
	return nil
}

// PickActive decrypts the first usable match in insertion order. When account
// is empty any account matches.
func (s *Service) PickActive(ctx context.Context, scope models.CredentialScope, engine models.Engine, kind models.CredentialKind, account string, out interface{}) (bool, string, error) {
	creds, err := s.storage.ListCredentials(ctx, scope, engine, kind)
	if err != nil {
		return false, "", err
	}

	now := time.Now()
	for _, cred := range creds {
		if account != "" && cred.Account != account {
			continue
		}
		if !cred.IsUsable(now) {
			continue
		}

		plaintext, err := s.open(cred.EncryptedValue)
		if err != nil {
			s.logger.Warn().Str("credential_id", cred.ID).Msg("Skipping corrupt credential")
			continue
		}
		if err := json.Unmarshal(plaintext, out); err != nil {
			continue
		}
		return true, cred.ID, nil
	}

	return false, "", nil
}

// MarkUsed stamps the last use time
func (s *Service) MarkUsed(ctx context.Context, credentialID string) error {
	cred, err := s.storage.GetCredential(ctx, credentialID)
	if err != nil {
		return ErrNotFound
	}
	now := time.Now()
	cred.LastUsedAt = &now
	return s.storage.SaveCredential(ctx, cred)
}

// MarkFailed records a truncated failure message and deactivates the credential
func (s *Service) MarkFailed(ctx context.Context, credentialID string, message string) error {
	cred, err := s.storage.GetCredential(ctx, credentialID)
	if err != nil {
		return ErrNotFound
	}
	if len(message) > maxErrorLen {
		message = message[:maxErrorLen]
	}
	cred.LastError = message
	cred.IsActive = false
	return s.storage.SaveCredential(ctx, cred)
}

func (s *Service) seal(plaintext []byte) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := s.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (s *Service) open(ciphertext string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, err
	}
	if len(raw) < s.aead.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, sealed := raw[:s.aead.NonceSize()], raw[s.aead.NonceSize():]
	return s.aead.Open(nil, nonce, sealed, nil)
}
