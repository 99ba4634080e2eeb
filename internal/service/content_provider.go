package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"newsletter_delivery/internal/cache"
	"newsletter_delivery/internal/metrics"
	"newsletter_delivery/internal/models"
	"newsletter_delivery/internal/repository"

	"github.com/google/uuid"
)

// IssueContentProvider serves issue content to delivery workers. Issues are
// immutable, so the cache never goes stale; it just spares one DB read per
// claimed task.
type IssueContentProvider struct {
	repo  *repository.IssueRepository
	cache cache.Cache
	ttl   time.Duration
}

func NewIssueContentProvider(repo *repository.IssueRepository, c cache.Cache, ttl time.Duration) *IssueContentProvider {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &IssueContentProvider{
		repo:  repo,
		cache: c,
		ttl:   ttl,
	}
}

func (p *IssueContentProvider) Content(ctx context.Context, issueID uuid.UUID) (*models.NewsletterIssue, error) {
	var key string
	if p.cache != nil {
		key = cache.IssueContentKey(issueID)
		if b, ok, err := p.cache.Get(ctx, key); err == nil && ok {
			var issue models.NewsletterIssue
			if err := json.Unmarshal(b, &issue); err == nil {
				metrics.IncRedisHit()
				return &issue, nil
			}
		}
	}

	issue, err := p.repo.Get(ctx, issueID)
	if err != nil {
		return nil, fmt.Errorf("get issue content: %w", err)
	}

	if p.cache != nil {
		if b, err := json.Marshal(issue); err == nil {
			_ = p.cache.Set(ctx, key, b, p.ttl)
		}
		metrics.IncRedisMiss()
	}

	return issue, nil
}
