package models

import "time"

// IntentType enumerates notification intents the core produces. Delivery
// (email, webhook) is an external collaborator consuming the event channel.
type IntentType string

const (
	IntentCheckupCompleted IntentType = "checkup_completed"
	IntentDriftWarning     IntentType = "drift_warning"
	IntentRetestReminder   IntentType = "retest_reminder"
	IntentQuotaWarning     IntentType = "quota_warning"
	IntentRenewalReminder  IntentType = "renewal_reminder"
	IntentWeeklyDigest     IntentType = "weekly_digest"
	IntentPaymentReceived  IntentType = "payment_received"
)

// NotificationIntent is a typed delivery request emitted on the out-bound
// channel. The core persists intents as an outbox; it never sends anything.
type NotificationIntent struct {
	ID              string            `json:"id" badgerhold:"key"`
	Type            IntentType        `json:"type" badgerhold:"index"`
	RecipientUserID string            `json:"recipient_user_id"`
	Title           string            `json:"title"`
	Message         string            `json:"message"`
	Link            string            `json:"link,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}
