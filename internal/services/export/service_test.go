package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandlens/brandlens/internal/common"
	"github.com/brandlens/brandlens/internal/interfaces"
	"github.com/brandlens/brandlens/internal/models"
	badgerstore "github.com/brandlens/brandlens/internal/storage/badger"
)

func newFixture(t *testing.T) (*Service, interfaces.StorageManager, string) {
	t.Helper()
	logger := common.GetLogger()

	storage, err := badgerstore.NewManager(logger, &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { storage.Close() })

	dir := t.TempDir()
	return NewService(storage, dir, logger), storage, dir
}

func seedResults(t *testing.T, storage interfaces.StorageManager, taskID string) {
	t.Helper()
	ctx := context.Background()

	item := &models.QueryItem{
		ID:        "q_1",
		ProjectID: "p_1",
		Text:      "best project tools",
		CreatedAt: time.Now(),
	}
	require.NoError(t, storage.ProjectStorage().SaveQueryItem(ctx, item))

	ok := &models.CrawlResult{
		ID:           common.NewResultID(),
		TaskID:       taskID,
		QueryItemID:  "q_1",
		Engine:       models.EngineDeepSeek,
		Seq:          0,
		ResponseText: "Acme and Rival are popular choices.",
		Citations: []models.Citation{
			{Position: 0, URL: "https://acme.com/tools", Host: "acme.com", IsTargetDomain: true},
			{Position: 1, URL: "https://rival.io/list", Host: "rival.io"},
		},
		Success:      true,
		HasCitations: true,
		CrawledAt:    time.Now(),
	}
	failed := &models.CrawlResult{
		ID:          common.NewResultID(),
		TaskID:      taskID,
		QueryItemID: "q_missing",
		Engine:      models.EngineDeepSeek,
		Seq:         1,
		Error:       "challenge failed",
		CrawledAt:   time.Now(),
	}
	require.NoError(t, storage.ResultStorage().SaveResult(ctx, ok))
	require.NoError(t, storage.ResultStorage().SaveResult(ctx, failed))
}

func TestExportTaskJSON(t *testing.T) {
	svc, storage, _ := newFixture(t)
	seedResults(t, storage, "t_1")

	path, err := svc.ExportTaskJSON(context.Background(), "t_1")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var rows []Row
	require.NoError(t, json.Unmarshal(data, &rows))
	require.Len(t, rows, 2)

	assert.Equal(t, "best project tools", rows[0].Query)
	assert.Equal(t, "deepseek", rows[0].Engine)
	assert.Equal(t, 2, rows[0].CitationsCount)
	assert.Equal(t, []string{"https://acme.com/tools", "https://rival.io/list"}, rows[0].Citations)
	assert.Empty(t, rows[0].Error)

	// Failure rows export with their error and the raw query ID when the
	// query item is gone
	assert.Equal(t, "q_missing", rows[1].Query)
	assert.Equal(t, "challenge failed", rows[1].Error)
}

func TestExportTaskCSV(t *testing.T) {
	svc, storage, _ := newFixture(t)
	seedResults(t, storage, "t_1")

	path, err := svc.ExportTaskCSV(context.Background(), "t_1")
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3, "header plus two rows")

	assert.Equal(t, []string{"query", "response", "engine", "citations_count", "citations", "crawled_at", "error"}, records[0])
	assert.Equal(t, "best project tools", records[1][0])
	assert.Equal(t, "2", records[1][3])
	assert.Equal(t, "https://acme.com/tools; https://rival.io/list", records[1][4], "citations joined by semicolon")
	assert.Equal(t, "challenge failed", records[2][6])
}

func TestExportEmptyTask(t *testing.T) {
	svc, _, _ := newFixture(t)

	path, err := svc.ExportTaskJSON(context.Background(), "t_empty")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var rows []Row
	require.NoError(t, json.Unmarshal(data, &rows))
	assert.Empty(t, rows)
}
