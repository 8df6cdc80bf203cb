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

// AnalyticsStorage implements the AnalyticsStorage interface for Badger.
// The event log is append-only; rows are only removed by the retention sweep.
type AnalyticsStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewAnalyticsStorage creates a new AnalyticsStorage instance
func NewAnalyticsStorage(db *BadgerDB, logger arbor.ILogger) interfaces.AnalyticsStorage {
	return &AnalyticsStorage{
		db:     db,
		logger: logger,
	}
}

func (s *AnalyticsStorage) AppendEvent(ctx context.Context, event *models.AnalyticsEvent) error {
	if event.ID == "" {
		return fmt.Errorf("analytics event ID is required")
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	if err := s.db.Store().Insert(event.ID, event); err != nil {
		return fmt.Errorf("failed to append analytics event: %w", err)
	}
	return nil
}

func (s *AnalyticsStorage) DeleteEventsOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	var events []models.AnalyticsEvent
	if err := s.db.Store().Find(&events, badgerhold.Where("CreatedAt").Lt(cutoff)); err != nil {
		return 0, fmt.Errorf("failed to query old analytics events: %w", err)
	}

	deleted := 0
	for _, e := range events {
		if err := s.db.Store().Delete(e.ID, &models.AnalyticsEvent{}); err != nil {
			if err == badgerhold.ErrNotFound {
				continue
			}
			return deleted, fmt.Errorf("failed to delete analytics event: %w", err)
		}
		deleted++
	}

	if deleted > 0 {
		s.logger.Debug().Int("deleted", deleted).Msg("Purged old analytics events")
	}
	return deleted, nil
}
