package models

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// TaskStatus represents the lifecycle state of a crawl task
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// IsTerminal reports whether the task reached a final state
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed || s == TaskStatusCancelled
}

// CrawlTask is a single engine x query-set execution unit. It may be attached
// to a run; a run may span multiple tasks across engines.
type CrawlTask struct {
	ID        string     `json:"id" badgerhold:"key"`
	ProjectID string     `json:"project_id" badgerhold:"index"`
	RunID     string     `json:"run_id,omitempty" badgerhold:"index"`
	Engine    Engine     `json:"engine"`
	Status    TaskStatus `json:"status" badgerhold:"index"`
	QueryIDs  []string   `json:"query_ids"`

	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`

	// Options carried from task creation
	Region          string `json:"region,omitempty"`
	Language        string `json:"language,omitempty"`
	UseProxy        bool   `json:"use_proxy,omitempty"`
	EnableWebSearch bool   `json:"enable_web_search,omitempty"`

	Error         string     `json:"error,omitempty"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	LastHeartbeat *time.Time `json:"last_heartbeat,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Validate checks required fields
func (t *CrawlTask) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("task ID is required")
	}
	if t.ProjectID == "" {
		return fmt.Errorf("task project ID is required")
	}
	if !t.Engine.IsValid() {
		return fmt.Errorf("unknown engine: %q", t.Engine)
	}
	if len(t.QueryIDs) == 0 {
		return fmt.Errorf("task has no queries")
	}
	return nil
}

// Citation is an external URL the engine asserted as a source for its answer.
// Position is the 0-based insertion index within the answer.
type Citation struct {
	Position       int    `json:"position"`
	URL            string `json:"url"`
	Host           string `json:"host"`
	Title          string `json:"title,omitempty"`
	IsTargetDomain bool   `json:"is_target_domain"`
}

// NewCitation builds a citation from a raw URL, deriving the host
func NewCitation(position int, rawURL, title string) Citation {
	c := Citation{Position: position, URL: rawURL, Title: title}
	if u, err := url.Parse(rawURL); err == nil {
		c.Host = strings.ToLower(u.Hostname())
	}
	return c
}

// DedupCitations removes duplicate URLs keeping first occurrence and
// re-assigns positions by insertion order.
func DedupCitations(citations []Citation) []Citation {
	seen := make(map[string]bool, len(citations))
	out := make([]Citation, 0, len(citations))
	for _, c := range citations {
		if c.URL == "" || seen[c.URL] {
			continue
		}
		seen[c.URL] = true
		c.Position = len(out)
		out = append(out, c)
	}
	return out
}

// CrawlResult is the evidence bundle for one query attempt. Immutable once
// written; failures are persisted as legitimate evidence rows.
type CrawlResult struct {
	ID          string `json:"id" badgerhold:"key"`
	TaskID      string `json:"task_id" badgerhold:"index"`
	QueryItemID string `json:"query_item_id" badgerhold:"index"`
	Engine      Engine `json:"engine"`
	// Seq is the result's position within its task's query order
	Seq int `json:"seq"`

	ResponseText string     `json:"response_text"`
	Citations    []Citation `json:"citations"`

	RawHTML        string `json:"raw_html,omitempty"`
	ScreenshotPath string `json:"screenshot_path,omitempty"`
	ResponseTimeMs int64  `json:"response_time_ms,omitempty"`

	IsComplete    bool   `json:"is_complete"`
	HasCitations  bool   `json:"has_citations"`
	Success       bool   `json:"success"`
	RequiresLogin bool   `json:"requires_login,omitempty"`
	Error         string `json:"error,omitempty"`
	Turns         int    `json:"turns,omitempty"`

	CrawledAt time.Time `json:"crawled_at"`
}
