package models

import "time"

// Subscription carries the minimum plan state the scheduler's usage-reset and
// expiry-reminder sweeps act on. Billing itself is an external collaborator.
type Subscription struct {
	ID           string     `json:"id" badgerhold:"key"`
	WorkspaceID  string     `json:"workspace_id" badgerhold:"index"`
	Plan         string     `json:"plan"`
	MonthlyUsage int        `json:"monthly_usage"`
	MonthlyQuota int        `json:"monthly_quota"`
	LastResetAt  time.Time  `json:"last_reset_at"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// AnalyticsEvent is an append-only usage log row, cleaned up by the weekly
// scheduler sweep once older than the retention window.
type AnalyticsEvent struct {
	ID          string    `json:"id" badgerhold:"key"`
	WorkspaceID string    `json:"workspace_id" badgerhold:"index"`
	Name        string    `json:"name"`
	Payload     string    `json:"payload,omitempty"`
	CreatedAt   time.Time `json:"created_at" badgerhold:"index"`
}
