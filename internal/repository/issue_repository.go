package repository

import (
	"context"
	"errors"
	"fmt"

	"newsletter_delivery/internal/models"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type IssueRepository struct {
	db *pgxpool.Pool
	sb sq.StatementBuilderType
}

func NewIssueRepository(db *pgxpool.Pool) *IssueRepository {
	return &IssueRepository{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// CreateTx inserts the issue within the caller's transaction. Issues are
// immutable: there is no update path.
func (r *IssueRepository) CreateTx(ctx context.Context, tx pgx.Tx, issue *models.NewsletterIssue) error {
	if issue == nil {
		return fmt.Errorf("issue is nil")
	}
	if issue.ID == uuid.Nil {
		return fmt.Errorf("issue id is empty")
	}
	if issue.Title == "" {
		return fmt.Errorf("title is empty")
	}

	q := r.sb.
		Insert("newsletter_issues").
		Columns("id", "title", "html_content", "text_content").
		Values(issue.ID, issue.Title, issue.HTMLContent, issue.TextContent).
		Suffix("RETURNING published_at")

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build issue insert: %w", err)
	}

	if err := tx.QueryRow(ctx, sqlStr, args...).Scan(&issue.PublishedAt); err != nil {
		return fmt.Errorf("insert issue: %w", err)
	}

	return nil
}

func (r *IssueRepository) Get(ctx context.Context, id uuid.UUID) (*models.NewsletterIssue, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("issue id is empty")
	}

	q := r.sb.
		Select("id", "title", "html_content", "text_content", "published_at").
		From("newsletter_issues").
		Where(sq.Eq{"id": id}).
		Limit(1)

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build issue select: %w", err)
	}

	var issue models.NewsletterIssue
	err = r.db.QueryRow(ctx, sqlStr, args...).Scan(
		&issue.ID,
		&issue.Title,
		&issue.HTMLContent,
		&issue.TextContent,
		&issue.PublishedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get issue: %w", err)
	}

	return &issue, nil
}
