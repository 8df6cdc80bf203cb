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

// ProjectStorage implements the ProjectStorage interface for Badger
type ProjectStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewProjectStorage creates a new ProjectStorage instance
func NewProjectStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ProjectStorage {
	return &ProjectStorage{
		db:     db,
		logger: logger,
	}
}

func (s *ProjectStorage) SaveProject(ctx context.Context, project *models.Project) error {
	if err := project.Validate(); err != nil {
		return err
	}
	if err := s.db.Store().Upsert(project.ID, project); err != nil {
		return fmt.Errorf("failed to save project: %w", err)
	}
	return nil
}

func (s *ProjectStorage) GetProject(ctx context.Context, projectID string) (*models.Project, error) {
	var project models.Project
	if err := s.db.Store().Get(projectID, &project); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("project not found: %s", projectID)
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return &project, nil
}

func (s *ProjectStorage) ListProjects(ctx context.Context, status models.ProjectStatus) ([]*models.Project, error) {
	query := badgerhold.Where("ID").Ne("")
	if status != "" {
		query = query.And("Status").Eq(status)
	}

	var projects []models.Project
	if err := s.db.Store().Find(&projects, query.SortBy("CreatedAt")); err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	result := make([]*models.Project, len(projects))
	for i := range projects {
		result[i] = &projects[i]
	}
	return result, nil
}

func (s *ProjectStorage) DeleteProject(ctx context.Context, projectID string) error {
	if err := s.db.Store().Delete(projectID, &models.Project{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return nil
}

func (s *ProjectStorage) SaveQueryItem(ctx context.Context, item *models.QueryItem) error {
	if err := item.Validate(); err != nil {
		return err
	}
	if err := s.db.Store().Upsert(item.ID, item); err != nil {
		return fmt.Errorf("failed to save query item: %w", err)
	}
	return nil
}

func (s *ProjectStorage) GetQueryItem(ctx context.Context, itemID string) (*models.QueryItem, error) {
	var item models.QueryItem
	if err := s.db.Store().Get(itemID, &item); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("query item not found: %s", itemID)
		}
		return nil, fmt.Errorf("failed to get query item: %w", err)
	}
	return &item, nil
}

func (s *ProjectStorage) ListQueryItems(ctx context.Context, projectID string) ([]*models.QueryItem, error) {
	var items []models.QueryItem
	if err := s.db.Store().Find(&items, badgerhold.Where("ProjectID").Eq(projectID)); err != nil {
		return nil, fmt.Errorf("failed to list query items: %w", err)
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Position < items[j].Position })

	result := make([]*models.QueryItem, len(items))
	for i := range items {
		result[i] = &items[i]
	}
	return result, nil
}
