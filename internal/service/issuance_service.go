package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"newsletter_delivery/internal/metrics"
	"newsletter_delivery/internal/models"
	"newsletter_delivery/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrInvalidInput = errors.New("invalid input")
)

// IssuanceService turns a publisher submission into one immutable issue plus
// one delivery task per confirmed subscriber, exactly once per idempotency
// key. Issue insert, subscriber snapshot, fan-out and the idempotency record
// all commit in a single transaction: a crash anywhere leaves no partial
// state and the key reserved fresh for a retry.
type IssuanceService struct {
	db             *pgxpool.Pool
	issueRepo      *repository.IssueRepository
	subscriberRepo *repository.SubscriberRepository
	queueRepo      *repository.QueueRepository
	idemRepo       *repository.IdempotencyRepository
	logger         *log.Logger
}

func NewIssuanceService(
	db *pgxpool.Pool,
	issueRepo *repository.IssueRepository,
	subscriberRepo *repository.SubscriberRepository,
	queueRepo *repository.QueueRepository,
	idemRepo *repository.IdempotencyRepository,
	logger *log.Logger,
) *IssuanceService {
	if logger == nil {
		logger = log.Default()
	}

	return &IssuanceService{
		db:             db,
		issueRepo:      issueRepo,
		subscriberRepo: subscriberRepo,
		queueRepo:      queueRepo,
		idemRepo:       idemRepo,
		logger:         logger,
	}
}

// PublishIssue validates and fans out a newsletter submission. Repeated
// calls with the same (principal, key) return the stored response of the
// first successful call and create nothing.
func (s *IssuanceService) PublishIssue(ctx context.Context, principalID, idempotencyKey string, sub *models.IssueSubmission) (*models.StoredResponse, error) {
	if err := validateSubmission(idempotencyKey, sub); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// A concurrent duplicate blocks inside this call until the first
	// transaction resolves, then observes fresh=false.
	fresh, err := s.idemRepo.TryReserveTx(ctx, tx, principalID, idempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("reserve idempotency key: %w", err)
	}

	if !fresh {
		_ = tx.Rollback(ctx)

		resp, err := s.idemRepo.GetSavedResponse(ctx, principalID, idempotencyKey)
		if err != nil {
			// The conflicting reservation committed, so its response
			// must exist; missing means the record is corrupt.
			return nil, fmt.Errorf("get saved response: %w", err)
		}

		metrics.IncIdempotencyReplay()
		return resp, nil
	}

	issue := &models.NewsletterIssue{
		ID:          uuid.New(),
		Title:       sub.Title,
		HTMLContent: sub.HTMLContent,
		TextContent: sub.TextContent,
	}
	if err := s.issueRepo.CreateTx(ctx, tx, issue); err != nil {
		return nil, fmt.Errorf("create issue tx: %w", err)
	}

	emails, err := s.subscriberRepo.GetConfirmedEmailsTx(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("snapshot confirmed subscribers: %w", err)
	}

	if err := s.queueRepo.EnqueueBatchTx(ctx, tx, issue.ID, emails); err != nil {
		return nil, fmt.Errorf("enqueue delivery tasks tx: %w", err)
	}

	resp := acceptedResponse()
	if err := s.idemRepo.CompleteTx(ctx, tx, principalID, idempotencyKey, resp); err != nil {
		return nil, fmt.Errorf("complete idempotency record tx: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	metrics.IncIssuePublished()
	metrics.ObserveFanoutSize(len(emails))
	s.logger.Printf("issue %s queued for %d subscribers", issue.ID, len(emails))

	return resp, nil
}

func (s *IssuanceService) GetIssue(ctx context.Context, id uuid.UUID) (*models.NewsletterIssue, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("%w: issue id is required", ErrInvalidInput)
	}
	return s.issueRepo.Get(ctx, id)
}

func acceptedResponse() *models.StoredResponse {
	return &models.StoredResponse{
		StatusCode: http.StatusSeeOther,
		Headers:    map[string]string{"Location": "/admin/newsletters"},
		Body:       []byte("The newsletter issue has been accepted - emails will go out shortly."),
	}
}

func validateSubmission(idempotencyKey string, sub *models.IssueSubmission) error {
	if sub == nil {
		return errors.New("submission is nil")
	}
	if strings.TrimSpace(idempotencyKey) == "" {
		return errors.New("idempotency_key is required")
	}
	if strings.TrimSpace(sub.Title) == "" {
		return errors.New("title is required")
	}
	if strings.TrimSpace(sub.HTMLContent) == "" {
		return errors.New("html_content is required")
	}
	if strings.TrimSpace(sub.TextContent) == "" {
		return errors.New("text_content is required")
	}
	return nil
}
