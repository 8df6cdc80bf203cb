package badger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/brandlens/brandlens/internal/interfaces"
	"github.com/brandlens/brandlens/internal/models"
)

// DriftStorage implements the DriftStorage interface for Badger
type DriftStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewDriftStorage creates a new DriftStorage instance
func NewDriftStorage(db *BadgerDB, logger arbor.ILogger) interfaces.DriftStorage {
	return &DriftStorage{
		db:     db,
		logger: logger,
	}
}

func (s *DriftStorage) SaveDriftEvent(ctx context.Context, event *models.DriftEvent) error {
	if event.ID == "" {
		return fmt.Errorf("drift event ID is required")
	}
	if err := s.db.Store().Upsert(event.ID, event); err != nil {
		return fmt.Errorf("failed to save drift event: %w", err)
	}
	return nil
}

func (s *DriftStorage) ListDriftEvents(ctx context.Context, projectID string, limit int) ([]*models.DriftEvent, error) {
	var events []models.DriftEvent
	if err := s.db.Store().Find(&events, badgerhold.Where("ProjectID").Eq(projectID)); err != nil {
		return nil, fmt.Errorf("failed to list drift events: %w", err)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].DetectedAt.After(events[j].DetectedAt) })
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}

	result := make([]*models.DriftEvent, len(events))
	for i := range events {
		result[i] = &events[i]
	}
	return result, nil
}

func (s *DriftStorage) HasDriftEvent(ctx context.Context, compareRunID, metricName string) (bool, error) {
	count, err := s.db.Store().Count(&models.DriftEvent{},
		badgerhold.Where("CompareRunID").Eq(compareRunID).And("MetricName").Eq(metricName))
	if err != nil {
		return false, fmt.Errorf("failed to query drift events: %w", err)
	}
	return count > 0, nil
}

func (s *DriftStorage) AcknowledgeDriftEvent(ctx context.Context, eventID string, at time.Time) error {
	var event models.DriftEvent
	if err := s.db.Store().Get(eventID, &event); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("drift event not found: %s", eventID)
		}
		return fmt.Errorf("failed to get drift event: %w", err)
	}
	event.AcknowledgedAt = &at
	return s.SaveDriftEvent(ctx, &event)
}
