package service

import (
	"context"
	"testing"

	"newsletter_delivery/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Validation runs before any transaction is opened, so these cases must
// fail without touching the database.
func TestPublishIssueRejectsInvalidSubmissions(t *testing.T) {
	s := NewIssuanceService(nil, nil, nil, nil, nil, nil)

	valid := func() *models.IssueSubmission {
		return &models.IssueSubmission{
			Title:       "Newsletter",
			HTMLContent: "<p>Newsletter body as html</p>",
			TextContent: "Newsletter body as plain text",
		}
	}

	tests := []struct {
		name   string
		key    string
		mutate func(*models.IssueSubmission)
	}{
		{"missing idempotency key", "", func(sub *models.IssueSubmission) {}},
		{"missing title", "key-1", func(sub *models.IssueSubmission) { sub.Title = "" }},
		{"missing html content", "key-1", func(sub *models.IssueSubmission) { sub.HTMLContent = "" }},
		{"missing text content", "key-1", func(sub *models.IssueSubmission) { sub.TextContent = "" }},
		{"whitespace title", "key-1", func(sub *models.IssueSubmission) { sub.Title = "   " }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := valid()
			tt.mutate(sub)

			_, err := s.PublishIssue(context.Background(), "publisher", tt.key, sub)

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestPublishIssueRejectsNilSubmission(t *testing.T) {
	s := NewIssuanceService(nil, nil, nil, nil, nil, nil)

	_, err := s.PublishIssue(context.Background(), "publisher", "key-1", nil)

	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGetIssueRejectsEmptyID(t *testing.T) {
	s := NewIssuanceService(nil, nil, nil, nil, nil, nil)

	_, err := s.GetIssue(context.Background(), uuid.Nil)

	assert.ErrorIs(t, err, ErrInvalidInput)
}
