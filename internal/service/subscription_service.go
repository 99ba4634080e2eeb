package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"newsletter_delivery/internal/models"
	"newsletter_delivery/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SubscriptionService handles onboarding: store a pending subscriber plus a
// confirmation token in one transaction, then email the confirmation link.
// Only confirmed subscribers ever enter an issue's fan-out snapshot.
type SubscriptionService struct {
	db             *pgxpool.Pool
	subscriberRepo *repository.SubscriberRepository
	mailer         Mailer
	baseURL        string
	logger         *log.Logger
}

func NewSubscriptionService(
	db *pgxpool.Pool,
	subscriberRepo *repository.SubscriberRepository,
	mailer Mailer,
	baseURL string,
	logger *log.Logger,
) *SubscriptionService {
	if logger == nil {
		logger = log.Default()
	}

	return &SubscriptionService{
		db:             db,
		subscriberRepo: subscriberRepo,
		mailer:         mailer,
		baseURL:        strings.TrimRight(baseURL, "/"),
		logger:         logger,
	}
}

func (s *SubscriptionService) Subscribe(ctx context.Context, name, email string) error {
	if err := validateSubscription(name, email); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	token := uuid.NewString()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	sub := &models.Subscriber{
		ID:    uuid.New(),
		Email: email,
		Name:  name,
	}
	if err := s.subscriberRepo.CreateTx(ctx, tx, sub); err != nil {
		return fmt.Errorf("create subscriber tx: %w", err)
	}

	if err := s.subscriberRepo.StoreTokenTx(ctx, tx, token, sub.ID); err != nil {
		return fmt.Errorf("store token tx: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	link := fmt.Sprintf("%s/subscriptions/confirm?token=%s", s.baseURL, token)
	err = s.mailer.Send(ctx, email,
		"Welcome to our newsletter!",
		fmt.Sprintf(`Welcome to our newsletter!<br />Click <a href=%q>here</a> to confirm your subscription.`, link),
		fmt.Sprintf("Welcome to our newsletter!\nVisit %s to confirm your subscription.", link),
	)
	if err != nil {
		return fmt.Errorf("send confirmation email: %w", err)
	}

	s.logger.Printf("subscriber %s created, confirmation email sent", sub.ID)
	return nil
}

func (s *SubscriptionService) Confirm(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("%w: token is required", ErrInvalidInput)
	}
	return s.subscriberRepo.ConfirmByToken(ctx, token)
}

func validateSubscription(name, email string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("name is required")
	}
	if strings.TrimSpace(email) == "" {
		return errors.New("email is required")
	}
	if !strings.Contains(email, "@") {
		return errors.New("email is not valid")
	}
	return nil
}
