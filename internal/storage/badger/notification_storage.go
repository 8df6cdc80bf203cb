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

// NotificationStorage implements the NotificationStorage interface for Badger
type NotificationStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewNotificationStorage creates a new NotificationStorage instance
func NewNotificationStorage(db *BadgerDB, logger arbor.ILogger) interfaces.NotificationStorage {
	return &NotificationStorage{
		db:     db,
		logger: logger,
	}
}

func (s *NotificationStorage) SaveIntent(ctx context.Context, intent *models.NotificationIntent) error {
	if intent.ID == "" {
		return fmt.Errorf("notification intent ID is required")
	}
	if intent.Type == "" {
		return fmt.Errorf("notification intent type is required")
	}
	if err := s.db.Store().Upsert(intent.ID, intent); err != nil {
		return fmt.Errorf("failed to save notification intent: %w", err)
	}
	return nil
}

func (s *NotificationStorage) ListIntents(ctx context.Context, limit int) ([]*models.NotificationIntent, error) {
	var intents []models.NotificationIntent
	if err := s.db.Store().Find(&intents, badgerhold.Where("ID").Ne("")); err != nil {
		return nil, fmt.Errorf("failed to list notification intents: %w", err)
	}
	sort.Slice(intents, func(i, j int) bool { return intents[i].CreatedAt.After(intents[j].CreatedAt) })
	if limit > 0 && len(intents) > limit {
		intents = intents[:limit]
	}

	result := make([]*models.NotificationIntent, len(intents))
	for i := range intents {
		result[i] = &intents[i]
	}
	return result, nil
}
