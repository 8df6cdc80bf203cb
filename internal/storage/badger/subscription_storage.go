package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/brandlens/brandlens/internal/interfaces"
	"github.com/brandlens/brandlens/internal/models"
)

// SubscriptionStorage implements the SubscriptionStorage interface for Badger
type SubscriptionStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewSubscriptionStorage creates a new SubscriptionStorage instance
func NewSubscriptionStorage(db *BadgerDB, logger arbor.ILogger) interfaces.SubscriptionStorage {
	return &SubscriptionStorage{
		db:     db,
		logger: logger,
	}
}

func (s *SubscriptionStorage) SaveSubscription(ctx context.Context, sub *models.Subscription) error {
	if sub.ID == "" {
		return fmt.Errorf("subscription ID is required")
	}
	if err := s.db.Store().Upsert(sub.ID, sub); err != nil {
		return fmt.Errorf("failed to save subscription: %w", err)
	}
	return nil
}

func (s *SubscriptionStorage) GetSubscription(ctx context.Context, workspaceID string) (*models.Subscription, error) {
	var subs []models.Subscription
	if err := s.db.Store().Find(&subs, badgerhold.Where("WorkspaceID").Eq(workspaceID)); err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	if len(subs) == 0 {
		return nil, fmt.Errorf("subscription not found for workspace: %s", workspaceID)
	}
	return &subs[0], nil
}

func (s *SubscriptionStorage) SubscriptionsDueForReset(ctx context.Context, olderThan time.Time) ([]*models.Subscription, error) {
	var subs []models.Subscription
	if err := s.db.Store().Find(&subs, badgerhold.Where("LastResetAt").Lt(olderThan)); err != nil {
		return nil, fmt.Errorf("failed to query subscriptions due for reset: %w", err)
	}

	result := make([]*models.Subscription, len(subs))
	for i := range subs {
		result[i] = &subs[i]
	}
	return result, nil
}

func (s *SubscriptionStorage) SubscriptionsExpiringOn(ctx context.Context, day time.Time) ([]*models.Subscription, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	var subs []models.Subscription
	if err := s.db.Store().Find(&subs, badgerhold.Where("ID").Ne("")); err != nil {
		return nil, fmt.Errorf("failed to query subscriptions: %w", err)
	}

	var result []*models.Subscription
	for i := range subs {
		exp := subs[i].ExpiresAt
		if exp != nil && !exp.Before(dayStart) && exp.Before(dayEnd) {
			result = append(result, &subs[i])
		}
	}
	return result, nil
}
