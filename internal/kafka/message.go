package kafka

import (
	"time"

	"newsletter_delivery/internal/models"
)

// FailureReport is the structured record emitted when a delivery task is
// resolved as a permanent failure. Consumed by operator tooling, not by
// this service.
type FailureReport struct {
	IssueID         string    `json:"issue_id"`
	SubscriberEmail string    `json:"subscriber_email"`
	Reason          string    `json:"reason"`
	Attempts        int       `json:"attempts"`
	FailedAt        time.Time `json:"failed_at"`
}

func NewFailureReport(task *models.DeliveryTask, reason string) *FailureReport {
	return &FailureReport{
		IssueID:         task.IssueID.String(),
		SubscriberEmail: task.SubscriberEmail,
		Reason:          reason,
		Attempts:        task.Attempts,
		FailedAt:        time.Now().UTC(),
	}
}
