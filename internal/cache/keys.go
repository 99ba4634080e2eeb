package cache

import "github.com/google/uuid"

// Issue content is immutable, so cached entries never need invalidation;
// the TTL only bounds memory.
//
// issue:content:{issue_id}
func IssueContentKey(issueID uuid.UUID) string {
	return "issue:content:" + issueID.String()
}
