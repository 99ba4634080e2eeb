package repository

import (
	"context"
	"errors"
	"fmt"

	"newsletter_delivery/internal/models"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	SubscriberStatusPending   = "pending_confirmation"
	SubscriberStatusConfirmed = "confirmed"
)

type SubscriberRepository struct {
	db *pgxpool.Pool
	sb sq.StatementBuilderType
}

func NewSubscriberRepository(db *pgxpool.Pool) *SubscriberRepository {
	return &SubscriberRepository{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// CreateTx inserts a subscriber in pending_confirmation state.
func (r *SubscriberRepository) CreateTx(ctx context.Context, tx pgx.Tx, sub *models.Subscriber) error {
	if sub == nil {
		return fmt.Errorf("subscriber is nil")
	}
	if sub.ID == uuid.Nil {
		return fmt.Errorf("subscriber id is empty")
	}
	if sub.Email == "" {
		return fmt.Errorf("email is empty")
	}

	sub.Status = SubscriberStatusPending

	q := r.sb.
		Insert("subscriptions").
		Columns("id", "email", "name", "status").
		Values(sub.ID, sub.Email, sub.Name, SubscriberStatusPending).
		Suffix("RETURNING subscribed_at")

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build subscriber insert: %w", err)
	}

	if err := tx.QueryRow(ctx, sqlStr, args...).Scan(&sub.SubscribedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("insert subscriber: %w", err)
	}

	return nil
}

func (r *SubscriberRepository) StoreTokenTx(ctx context.Context, tx pgx.Tx, token string, subscriberID uuid.UUID) error {
	if token == "" {
		return fmt.Errorf("token is empty")
	}

	q := r.sb.
		Insert("subscription_tokens").
		Columns("token", "subscriber_id").
		Values(token, subscriberID)

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build token insert: %w", err)
	}

	if _, err := tx.Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("insert subscription token: %w", err)
	}

	return nil
}

// ConfirmByToken flips the subscriber behind the token to confirmed.
// Returns ErrNotFound for an unknown token.
func (r *SubscriberRepository) ConfirmByToken(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("token is empty")
	}

	sel := r.sb.
		Select("subscriber_id").
		From("subscription_tokens").
		Where(sq.Eq{"token": token}).
		Limit(1)

	selSQL, selArgs, err := sel.ToSql()
	if err != nil {
		return fmt.Errorf("build token select: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin confirm tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var subscriberID uuid.UUID
	if err := tx.QueryRow(ctx, selSQL, selArgs...).Scan(&subscriberID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("get subscriber by token: %w", err)
	}

	upd := r.sb.
		Update("subscriptions").
		Set("status", SubscriberStatusConfirmed).
		Where(sq.Eq{"id": subscriberID})

	updSQL, updArgs, err := upd.ToSql()
	if err != nil {
		return fmt.Errorf("build confirm update: %w", err)
	}

	tag, err := tx.Exec(ctx, updSQL, updArgs...)
	if err != nil {
		return fmt.Errorf("confirm subscriber: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit confirm tx: %w", err)
	}

	return nil
}

// CountByStatus reports subscriber counts per status for the metrics
// collector.
func (r *SubscriberRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	q := r.sb.
		Select("status", "COUNT(*)").
		From("subscriptions").
		GroupBy("status")

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build status counts: %w", err)
	}

	rows, err := r.db.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query status counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var cnt int64
		if err := rows.Scan(&status, &cnt); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[status] = cnt
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}

	return counts, nil
}

// GetConfirmedEmailsTx reads the confirmed-subscriber set within the
// caller's transaction. Fan-out uses this as a point-in-time snapshot:
// a subscriber confirmed after the enclosing transaction commits does not
// retroactively receive the issue.
func (r *SubscriberRepository) GetConfirmedEmailsTx(ctx context.Context, tx pgx.Tx) ([]string, error) {
	q := r.sb.
		Select("email").
		From("subscriptions").
		Where(sq.Eq{"status": SubscriberStatusConfirmed}).
		OrderBy("subscribed_at ASC")

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build confirmed emails select: %w", err)
	}

	rows, err := tx.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query confirmed emails: %w", err)
	}
	defer rows.Close()

	emails := make([]string, 0)
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("scan confirmed email: %w", err)
		}
		emails = append(emails, email)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate confirmed emails: %w", err)
	}

	return emails, nil
}
