package models

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryTask is one pending (issue, subscriber) send obligation. The row's
// existence means "not yet confirmed delivered": terminal resolution deletes
// it, a transient failure keeps it claimable with attempts incremented.
type DeliveryTask struct {
	IssueID         uuid.UUID  `json:"issue_id"`
	SubscriberEmail string     `json:"subscriber_email"`
	Attempts        int        `json:"attempts"`
	LastAttemptedAt *time.Time `json:"last_attempted_at"`
	CreatedAt       time.Time  `json:"created_at"`
}
