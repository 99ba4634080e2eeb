package kafka

import (
	"testing"
	"time"

	"newsletter_delivery/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNewFailureReport(t *testing.T) {
	task := &models.DeliveryTask{
		IssueID:         uuid.New(),
		SubscriberEmail: "ursula@example.com",
		Attempts:        3,
	}

	report := NewFailureReport(task, "recipient address rejected")

	assert.Equal(t, task.IssueID.String(), report.IssueID)
	assert.Equal(t, "ursula@example.com", report.SubscriberEmail)
	assert.Equal(t, "recipient address rejected", report.Reason)
	assert.Equal(t, 3, report.Attempts)
	assert.WithinDuration(t, time.Now().UTC(), report.FailedAt, time.Minute)
}
