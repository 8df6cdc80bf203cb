package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/brandlens/brandlens/internal/common"
	"github.com/brandlens/brandlens/internal/interfaces"
	"github.com/brandlens/brandlens/internal/models"
)

// Service persists notification intents to the outbox and publishes them on
// the event bus. Actual delivery is an external consumer's job.
type Service struct {
	storage interfaces.NotificationStorage
	events  interfaces.EventService
	logger  arbor.ILogger
}

// NewService creates the notification intent emitter
func NewService(storage interfaces.NotificationStorage, events interfaces.EventService, logger arbor.ILogger) *Service {
	return &Service{storage: storage, events: events, logger: logger}
}

// Emit stamps, persists, and publishes an intent
func (s *Service) Emit(ctx context.Context, intent *models.NotificationIntent) error {
	if intent.ID == "" {
		intent.ID = common.NewID()
	}
	if intent.CreatedAt.IsZero() {
		intent.CreatedAt = time.Now()
	}

	if err := s.storage.SaveIntent(ctx, intent); err != nil {
		return fmt.Errorf("failed to persist notification intent: %w", err)
	}

	s.logger.Debug().
		Str("intent_id", intent.ID).
		Str("type", string(intent.Type)).
		Msg("Notification intent emitted")

	if s.events != nil {
		_ = s.events.Publish(ctx, interfaces.Event{Type: interfaces.EventNotificationIntent, Payload: intent})
	}
	return nil
}

// CheckupCompleted builds the intent sent when a scheduled run finishes
func CheckupCompleted(userID, projectName string, healthScore int, runLink string) *models.NotificationIntent {
	return &models.NotificationIntent{
		Type:            models.IntentCheckupCompleted,
		RecipientUserID: userID,
		Title:           fmt.Sprintf("Checkup finished for %s", projectName),
		Message:         fmt.Sprintf("Your scheduled checkup for %s completed with a health score of %d.", projectName, healthScore),
		Link:            runLink,
	}
}

// DriftWarning builds the intent for a detected metric drift
func DriftWarning(userID string, event *models.DriftEvent, projectName string) *models.NotificationIntent {
	return &models.NotificationIntent{
		Type:            models.IntentDriftWarning,
		RecipientUserID: userID,
		Title:           fmt.Sprintf("%s drift on %s", event.Severity, projectName),
		Message: fmt.Sprintf("%s moved from %.4g to %.4g (%.1f%%).",
			event.MetricName, event.BaselineValue, event.CurrentValue, event.ChangePercent),
		Metadata: map[string]string{
			"metric":   event.MetricName,
			"severity": string(event.Severity),
			"run_id":   event.CompareRunID,
		},
	}
}

// RetestReminder builds the intent nudging a re-check of a quiet project
func RetestReminder(userID, projectName string, daysSince int) *models.NotificationIntent {
	return &models.NotificationIntent{
		Type:            models.IntentRetestReminder,
		RecipientUserID: userID,
		Title:           fmt.Sprintf("Time to re-test %s", projectName),
		Message:         fmt.Sprintf("No checkup has run for %s in %d days. Visibility data may be stale.", projectName, daysSince),
	}
}

// QuotaWarning builds the intent for a workspace nearing its monthly quota
func QuotaWarning(userID string, used, quota int) *models.NotificationIntent {
	return &models.NotificationIntent{
		Type:            models.IntentQuotaWarning,
		RecipientUserID: userID,
		Title:           "Monthly quota nearly used",
		Message:         fmt.Sprintf("You have used %d of %d checkups this cycle.", used, quota),
	}
}

// RenewalReminder builds the intent for an approaching subscription expiry
func RenewalReminder(userID string, daysLeft int) *models.NotificationIntent {
	msg := fmt.Sprintf("Your subscription expires in %d days.", daysLeft)
	if daysLeft == 0 {
		msg = "Your subscription expires today."
	}
	return &models.NotificationIntent{
		Type:            models.IntentRenewalReminder,
		RecipientUserID: userID,
		Title:           "Subscription renewal",
		Message:         msg,
		Metadata:        map[string]string{"days_left": fmt.Sprintf("%d", daysLeft)},
	}
}
