package repository

import (
	"context"
	"errors"
	"fmt"

	"newsletter_delivery/internal/models"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// QueueRepository is the durable delivery queue: one row per (issue,
// subscriber) pair, claimed exclusively by one worker at a time.
type QueueRepository struct {
	db *pgxpool.Pool
	sb sq.StatementBuilderType
}

func NewQueueRepository(db *pgxpool.Pool) *QueueRepository {
	return &QueueRepository{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// TaskClaim is an exclusive claim on one delivery task. The claim owns an
// open transaction holding the row lock; it must be ended with exactly one
// Resolve* call. A worker crash closes the connection and rolls the
// transaction back, which makes the task claimable again.
type TaskClaim struct {
	Task models.DeliveryTask

	tx pgx.Tx
}

// enqueueChunkSize keeps each multi-VALUES insert well under Postgres's
// 65535 bind-parameter limit (two parameters per row).
const enqueueChunkSize = 1000

// EnqueueBatchTx inserts one pending task per email within the caller's
// transaction. The caller must have already computed the confirmed-subscriber
// set: no filtering happens here. Large batches are split into chunked
// inserts, all inside the same transaction, so fan-out stays all-or-nothing.
func (r *QueueRepository) EnqueueBatchTx(ctx context.Context, tx pgx.Tx, issueID uuid.UUID, emails []string) error {
	if issueID == uuid.Nil {
		return fmt.Errorf("issue id is empty")
	}

	for start := 0; start < len(emails); start += enqueueChunkSize {
		end := min(start+enqueueChunkSize, len(emails))

		q := r.sb.
			Insert("delivery_queue").
			Columns("issue_id", "subscriber_email")
		for _, email := range emails[start:end] {
			q = q.Values(issueID, email)
		}

		sqlStr, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("build enqueue batch: %w", err)
		}

		if _, err := tx.Exec(ctx, sqlStr, args...); err != nil {
			return fmt.Errorf("enqueue delivery tasks: %w", err)
		}
	}

	return nil
}

// ClaimNext atomically claims one pending task, or returns (nil, nil) when
// the queue is empty. SKIP LOCKED makes concurrent claimants pass over each
// other's rows instead of blocking, so workers drain the queue in parallel.
func (r *QueueRepository) ClaimNext(ctx context.Context) (*TaskClaim, error) {
	q := r.sb.
		Select("issue_id", "subscriber_email", "attempts", "last_attempted_at", "created_at").
		From("delivery_queue").
		Suffix("FOR UPDATE SKIP LOCKED").
		Limit(1)

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build claim select: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}

	var (
		task          models.DeliveryTask
		lastAttempted pgtype.Timestamptz
	)
	err = tx.QueryRow(ctx, sqlStr, args...).Scan(
		&task.IssueID,
		&task.SubscriberEmail,
		&task.Attempts,
		&lastAttempted,
		&task.CreatedAt,
	)
	if err != nil {
		_ = tx.Rollback(ctx)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("claim next task: %w", err)
	}

	if lastAttempted.Valid {
		t := lastAttempted.Time
		task.LastAttemptedAt = &t
	}

	return &TaskClaim{Task: task, tx: tx}, nil
}

// ResolveSuccess deletes the task. Terminal: the task is never claimable
// again.
func (r *QueueRepository) ResolveSuccess(ctx context.Context, claim *TaskClaim) error {
	return r.deleteAndCommit(ctx, claim, "resolve success")
}

// ResolvePermanentFailure deletes the task. Reporting the failure for
// operator visibility is the caller's job; the queue only guarantees the
// task is never retried.
func (r *QueueRepository) ResolvePermanentFailure(ctx context.Context, claim *TaskClaim) error {
	return r.deleteAndCommit(ctx, claim, "resolve permanent failure")
}

// ResolveTransientFailure increments the attempt counter and releases the
// claim, leaving the task eligible for the next poll cycle.
func (r *QueueRepository) ResolveTransientFailure(ctx context.Context, claim *TaskClaim) error {
	if claim == nil || claim.tx == nil {
		return fmt.Errorf("claim is nil")
	}

	q := r.sb.
		Update("delivery_queue").
		Set("attempts", sq.Expr("attempts + 1")).
		Set("last_attempted_at", sq.Expr("NOW()")).
		Where(sq.Eq{
			"issue_id":         claim.Task.IssueID,
			"subscriber_email": claim.Task.SubscriberEmail,
		})

	sqlStr, args, err := q.ToSql()
	if err != nil {
		_ = claim.tx.Rollback(ctx)
		return fmt.Errorf("build resolve transient: %w", err)
	}

	if _, err := claim.tx.Exec(ctx, sqlStr, args...); err != nil {
		_ = claim.tx.Rollback(ctx)
		return fmt.Errorf("resolve transient failure: %w", err)
	}

	if err := claim.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transient failure: %w", err)
	}

	return nil
}

func (r *QueueRepository) deleteAndCommit(ctx context.Context, claim *TaskClaim, op string) error {
	if claim == nil || claim.tx == nil {
		return fmt.Errorf("claim is nil")
	}

	q := r.sb.
		Delete("delivery_queue").
		Where(sq.Eq{
			"issue_id":         claim.Task.IssueID,
			"subscriber_email": claim.Task.SubscriberEmail,
		})

	sqlStr, args, err := q.ToSql()
	if err != nil {
		_ = claim.tx.Rollback(ctx)
		return fmt.Errorf("build %s: %w", op, err)
	}

	if _, err := claim.tx.Exec(ctx, sqlStr, args...); err != nil {
		_ = claim.tx.Rollback(ctx)
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := claim.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit %s: %w", op, err)
	}

	return nil
}

// PendingStats reports the queue depth and the highest attempt count among
// pending tasks. The metrics collector polls this to expose tasks stuck in
// transient-failure retry loops.
func (r *QueueRepository) PendingStats(ctx context.Context) (pending, maxAttempts int64, err error) {
	q := r.sb.
		Select("COUNT(*)", "COALESCE(MAX(attempts), 0)").
		From("delivery_queue")

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return 0, 0, fmt.Errorf("build pending stats: %w", err)
	}

	if err := r.db.QueryRow(ctx, sqlStr, args...).Scan(&pending, &maxAttempts); err != nil {
		return 0, 0, fmt.Errorf("query pending stats: %w", err)
	}

	return pending, maxAttempts, nil
}
