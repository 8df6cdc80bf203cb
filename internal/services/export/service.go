package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/brandlens/brandlens/internal/interfaces"
	"github.com/brandlens/brandlens/internal/models"
)

// Row is the exported shape of one crawl result
type Row struct {
	Query          string    `json:"query"`
	Response       string    `json:"response"`
	Engine         string    `json:"engine"`
	CitationsCount int       `json:"citations_count"`
	Citations      []string  `json:"citations"`
	CrawledAt      time.Time `json:"crawled_at"`
	Error          string    `json:"error,omitempty"`
}

var csvHeader = []string{"query", "response", "engine", "citations_count", "citations", "crawled_at", "error"}

// Service writes crawl results to JSON or CSV files in the exports directory
type Service struct {
	storage interfaces.StorageManager
	dir     string
	logger  arbor.ILogger
}

// NewService creates the export service
func NewService(storage interfaces.StorageManager, dir string, logger arbor.ILogger) *Service {
	return &Service{storage: storage, dir: dir, logger: logger}
}

// ExportTaskJSON writes the task's results as a JSON array and returns the path
func (s *Service) ExportTaskJSON(ctx context.Context, taskID string) (string, error) {
	rows, err := s.taskRows(ctx, taskID)
	if err != nil {
		return "", err
	}
	return s.writeJSON("task_"+taskID, rows)
}

// ExportTaskCSV writes the task's results as CSV and returns the path
func (s *Service) ExportTaskCSV(ctx context.Context, taskID string) (string, error) {
	rows, err := s.taskRows(ctx, taskID)
	if err != nil {
		return "", err
	}
	return s.writeCSV("task_"+taskID, rows)
}

// ExportRunJSON writes every result of a run as a JSON array
func (s *Service) ExportRunJSON(ctx context.Context, runID string) (string, error) {
	rows, err := s.runRows(ctx, runID)
	if err != nil {
		return "", err
	}
	return s.writeJSON("run_"+runID, rows)
}

// ExportRunCSV writes every result of a run as CSV
func (s *Service) ExportRunCSV(ctx context.Context, runID string) (string, error) {
	rows, err := s.runRows(ctx, runID)
	if err != nil {
		return "", err
	}
	return s.writeCSV("run_"+runID, rows)
}

func (s *Service) taskRows(ctx context.Context, taskID string) ([]Row, error) {
	results, err := s.storage.ResultStorage().ListResultsByTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return s.buildRows(ctx, results), nil
}

func (s *Service) runRows(ctx context.Context, runID string) ([]Row, error) {
	results, err := s.storage.ResultStorage().ListResultsByRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	return s.buildRows(ctx, results), nil
}

func (s *Service) buildRows(ctx context.Context, results []*models.CrawlResult) []Row {
	rows := make([]Row, 0, len(results))
	for _, r := range results {
		queryText := r.QueryItemID
		if item, err := s.storage.ProjectStorage().GetQueryItem(ctx, r.QueryItemID); err == nil {
			queryText = item.Text
		}

		urls := make([]string, 0, len(r.Citations))
		for _, c := range r.Citations {
			urls = append(urls, c.URL)
		}

		rows = append(rows, Row{
			Query:          queryText,
			Response:       r.ResponseText,
			Engine:         string(r.Engine),
			CitationsCount: len(r.Citations),
			Citations:      urls,
			CrawledAt:      r.CrawledAt,
			Error:          r.Error,
		})
	}
	return rows
}

func (s *Service) writeJSON(prefix string, rows []Row) (string, error) {
	path := s.exportPath(prefix, "json")
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal export: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write export: %w", err)
	}

	s.logger.Info().Str("path", path).Int("rows", len(rows)).Msg("JSON export written")
	return path, nil
}

func (s *Service) writeCSV(prefix string, rows []Row) (string, error) {
	path := s.exportPath(prefix, "csv")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create export: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return "", fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.Query,
			row.Response,
			row.Engine,
			strconv.Itoa(row.CitationsCount),
			strings.Join(row.Citations, "; "),
			row.CrawledAt.Format(time.RFC3339),
			row.Error,
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("failed to write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to flush export: %w", err)
	}

	s.logger.Info().Str("path", path).Int("rows", len(rows)).Msg("CSV export written")
	return path, nil
}

func (s *Service) exportPath(prefix, ext string) string {
	name := fmt.Sprintf("%s_%s.%s", prefix, time.Now().Format("20060102_150405"), ext)
	return filepath.Join(s.dir, name)
}
