package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udupa-navya/cf-feedback-agent/internal/models"
)

// FeedbackRepository handles data access for ingested feedback items.
type FeedbackRepository struct {
	db *pgxpool.Pool
}

// NewFeedbackRepository creates a new feedback repository.
func NewFeedbackRepository(db *pgxpool.Pool) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

// InsertFeedback stores an item. Inserting an ID that already exists is a no-op.
func (r *FeedbackRepository) InsertFeedback(ctx context.Context, item models.FeedbackItem) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO feedback_items (id, text, source, received_at, author, link)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`,
		item.ID, item.Text, item.Source, item.ReceivedAt, item.Author, item.Link,
	)
	if err != nil {
		return fmt.Errorf("failed to insert feedback item: %w", err)
	}

	return nil
}

// ListUnprocessed returns up to limit items not yet triaged, oldest first.
// A non-positive limit returns every unprocessed item.
func (r *FeedbackRepository) ListUnprocessed(ctx context.Context, limit int) ([]models.FeedbackItem, error) {
	query := `
		SELECT id, text, source, received_at, author, link
		FROM feedback_items
		WHERE processed_at IS NULL
		ORDER BY received_at ASC, id ASC`

	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`

		args = append(args, limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list unprocessed feedback: %w", err)
	}
	defer rows.Close()

	var items []models.FeedbackItem

	for rows.Next() {
		var item models.FeedbackItem
		if err := rows.Scan(&item.ID, &item.Text, &item.Source, &item.ReceivedAt, &item.Author, &item.Link); err != nil {
			return nil, fmt.Errorf("failed to scan feedback item: %w", err)
		}

		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feedback items: %w", err)
	}

	return items, nil
}

// MarkProcessed stamps the given items as triaged.
func (r *FeedbackRepository) MarkProcessed(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := r.db.Exec(ctx, `
		UPDATE feedback_items SET processed_at = $2
		WHERE id = ANY($1) AND processed_at IS NULL`,
		ids, at,
	)
	if err != nil {
		return fmt.Errorf("failed to mark feedback processed: %w", err)
	}

	return nil
}
