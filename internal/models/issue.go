package models

import (
	"time"

	"github.com/google/uuid"
)

// NewsletterIssue is one publisher submission. Immutable once created and
// retained indefinitely as an audit trail.
type NewsletterIssue struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	HTMLContent string    `json:"html_content"`
	TextContent string    `json:"text_content"`
	PublishedAt time.Time `json:"published_at"`
}

// IssueSubmission is the publisher-facing payload of POST /admin/newsletters.
type IssueSubmission struct {
	Title       string `json:"title"`
	HTMLContent string `json:"html_content"`
	TextContent string `json:"text_content"`
}
