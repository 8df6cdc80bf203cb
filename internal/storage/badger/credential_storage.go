package badger

import (
	"context"
	"fmt"
	"sort"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/brandlens/brandlens/internal/interfaces"
	"github.com/brandlens/brandlens/internal/models"
)

// CredentialStorage implements the CredentialStorage interface for Badger.
// Values are already encrypted by the vault before they arrive here.
type CredentialStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewCredentialStorage creates a new CredentialStorage instance
func NewCredentialStorage(db *BadgerDB, logger arbor.ILogger) interfaces.CredentialStorage {
	return &CredentialStorage{
		db:     db,
		logger: logger,
	}
}

func (s *CredentialStorage) SaveCredential(ctx context.Context, cred *models.Credential) error {
	if err := cred.Validate(); err != nil {
		return err
	}
	if err := s.db.Store().Upsert(cred.ID, cred); err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return nil
}

func (s *CredentialStorage) GetCredential(ctx context.Context, credentialID string) (*models.Credential, error) {
	var cred models.Credential
	if err := s.db.Store().Get(credentialID, &cred); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("credential not found: %s", credentialID)
		}
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}
	return &cred, nil
}

func (s *CredentialStorage) ListCredentials(ctx context.Context, scope models.CredentialScope, engine models.Engine, kind models.CredentialKind) ([]*models.Credential, error) {
	var creds []models.Credential
	if err := s.db.Store().Find(&creds, badgerhold.Where("Engine").Eq(engine)); err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}

	filtered := creds[:0]
	for _, c := range creds {
		if c.Kind == kind && c.Scope.Type == scope.Type && c.Scope.OwnerID == scope.OwnerID {
			filtered = append(filtered, c)
		}
	}

	// Insertion order for pick_active semantics
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].CreatedAt.Before(filtered[j].CreatedAt) })

	result := make([]*models.Credential, len(filtered))
	for i := range filtered {
		c := filtered[i]
		result[i] = &c
	}
	return result, nil
}

func (s *CredentialStorage) DeleteCredential(ctx context.Context, credentialID string) error {
	if err := s.db.Store().Delete(credentialID, &models.Credential{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}
