package models

import (
	"fmt"
	"strings"
	"time"
)

// ProjectStatus represents the lifecycle state of a project
type ProjectStatus string

const (
	ProjectStatusActive   ProjectStatus = "active"
	ProjectStatusPaused   ProjectStatus = "paused"
	ProjectStatusArchived ProjectStatus = "archived"
)

// Project owns the query set and target domains monitored for a workspace
type Project struct {
	ID            string        `json:"id" badgerhold:"key"`
	WorkspaceID   string        `json:"workspace_id" badgerhold:"index"`
	Name          string        `json:"name" validate:"required"`
	TargetDomains []string      `json:"target_domains"`
	DefaultEngine Engine        `json:"default_engine"`
	Status        ProjectStatus `json:"status"`
	// CheckupIntervalDays overrides scheduler.auto_checkup_interval_days when > 0
	CheckupIntervalDays int       `json:"checkup_interval_days,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Validate checks required fields and normalizes target domains
func (p *Project) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("project ID is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("project name is required")
	}
	for i, d := range p.TargetDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			return fmt.Errorf("target domain %d is empty", i)
		}
		p.TargetDomains[i] = d
	}
	return nil
}

// MatchesTargetDomain reports whether host belongs to any of the target
// domains, either exactly or as a subdomain. Comparison is case-insensitive.
func MatchesTargetDomain(host string, targets []string) bool {
	h := strings.ToLower(strings.TrimSpace(host))
	if h == "" {
		return false
	}
	for _, t := range targets {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if h == t || strings.HasSuffix(h, "."+t) {
			return true
		}
	}
	return false
}

// QueryStage classifies a query by funnel stage
type QueryStage string

const (
	StageAwareness     QueryStage = "awareness"
	StageConsideration QueryStage = "consideration"
	StageDecision      QueryStage = "decision"
	StageRetention     QueryStage = "retention"
)

// QueryRisk classifies how damaging a bad answer would be
type QueryRisk string

const (
	RiskLow      QueryRisk = "low"
	RiskMedium   QueryRisk = "medium"
	RiskHigh     QueryRisk = "high"
	RiskCritical QueryRisk = "critical"
)

// QueryRole identifies the stakeholder a query serves
type QueryRole string

const (
	RoleMarketing  QueryRole = "marketing"
	RoleSales      QueryRole = "sales"
	RoleCompliance QueryRole = "compliance"
	RoleTechnical  QueryRole = "technical"
	RoleManagement QueryRole = "management"
)

// QueryItem is one natural-language question submitted to engines on behalf
// of a project. Immutable after creation except for text edits.
type QueryItem struct {
	ID        string     `json:"id" badgerhold:"key"`
	ProjectID string     `json:"project_id" badgerhold:"index"`
	Text      string     `json:"text" validate:"required"`
	Type      string     `json:"type,omitempty"`
	Stage     QueryStage `json:"stage,omitempty"`
	Risk      QueryRisk  `json:"risk,omitempty"`
	Role      QueryRole  `json:"role,omitempty"`
	Position  int        `json:"position"`
	CreatedAt time.Time  `json:"created_at"`
}

// Validate checks required fields
func (q *QueryItem) Validate() error {
	if q.ID == "" {
		return fmt.Errorf("query item ID is required")
	}
	if q.ProjectID == "" {
		return fmt.Errorf("query item project ID is required")
	}
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("query text is required")
	}
	return nil
}
