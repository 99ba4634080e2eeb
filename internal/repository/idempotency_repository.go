package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"newsletter_delivery/internal/models"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IdempotencyRepository persists the outcome of completed mutating requests,
// keyed by (principal, client-supplied key).
//
// Reservation and completion must run inside the same transaction as the
// side-effecting work. The uniqueness lock taken by the reservation insert is
// what serializes duplicate concurrent submissions: a second insert for the
// same key blocks until the first transaction commits (then sees the saved
// response) or rolls back (then reserves fresh).
type IdempotencyRepository struct {
	db *pgxpool.Pool
	sb sq.StatementBuilderType
}

func NewIdempotencyRepository(db *pgxpool.Pool) *IdempotencyRepository {
	return &IdempotencyRepository{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// TryReserveTx attempts to reserve (principalID, key) within the caller's
// transaction. True means the key is fresh and the caller must do the work
// and call CompleteTx before committing. False means a previous execution
// already committed for this key and GetSavedResponse will return its result.
func (r *IdempotencyRepository) TryReserveTx(ctx context.Context, tx pgx.Tx, principalID, key string) (bool, error) {
	if principalID == "" {
		return false, fmt.Errorf("principal id is empty")
	}
	if key == "" {
		return false, fmt.Errorf("idempotency key is empty")
	}

	q := r.sb.
		Insert("idempotency_records").
		Columns("principal_id", "idempotency_key").
		Values(principalID, key).
		Suffix("ON CONFLICT (principal_id, idempotency_key) DO NOTHING")

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("build idempotency reserve: %w", err)
	}

	tag, err := tx.Exec(ctx, sqlStr, args...)
	if err != nil {
		return false, fmt.Errorf("reserve idempotency key: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// CompleteTx stores the final response for a key reserved fresh in this
// transaction. The status_code IS NULL guard turns a duplicate completion
// into ErrAlreadyCompleted instead of silently overwriting.
func (r *IdempotencyRepository) CompleteTx(ctx context.Context, tx pgx.Tx, principalID, key string, resp *models.StoredResponse) error {
	if resp == nil {
		return fmt.Errorf("response is nil")
	}

	headers, err := json.Marshal(resp.Headers)
	if err != nil {
		return fmt.Errorf("marshal response headers: %w", err)
	}

	q := r.sb.
		Update("idempotency_records").
		Set("status_code", resp.StatusCode).
		Set("headers", headers).
		Set("body", resp.Body).
		Where(sq.Eq{"principal_id": principalID, "idempotency_key": key}).
		Where("status_code IS NULL")

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build idempotency complete: %w", err)
	}

	tag, err := tx.Exec(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("complete idempotency record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyCompleted
	}

	return nil
}

// GetSavedResponse returns the response stored for a completed key, byte for
// byte as it was first produced.
func (r *IdempotencyRepository) GetSavedResponse(ctx context.Context, principalID, key string) (*models.StoredResponse, error) {
	q := r.sb.
		Select("status_code", "headers", "body").
		From("idempotency_records").
		Where(sq.Eq{"principal_id": principalID, "idempotency_key": key}).
		Where("status_code IS NOT NULL").
		Limit(1)

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build idempotency select: %w", err)
	}

	var (
		resp       models.StoredResponse
		statusCode int16
		headers    []byte
	)
	err = r.db.QueryRow(ctx, sqlStr, args...).Scan(&statusCode, &headers, &resp.Body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get saved response: %w", err)
	}

	resp.StatusCode = int(statusCode)
	if len(headers) > 0 {
		if err := json.Unmarshal(headers, &resp.Headers); err != nil {
			return nil, fmt.Errorf("unmarshal response headers: %w", err)
		}
	}

	return &resp, nil
}
