package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"rlchat-backend/internal/models"
)

// ErrMessageNotFound is returned when feedback references a message id that
// was never assigned.
var ErrMessageNotFound = errors.New("message not found")

type FeedbackRepo struct {
	pool *pgxpool.Pool
}

func NewFeedbackRepo(pool *pgxpool.Pool) *FeedbackRepo {
	return &FeedbackRepo{pool: pool}
}

// Record stores a rating for a message. Latest feedback wins: a second vote
// on the same message replaces the earlier rating instead of accumulating.
func (r *FeedbackRepo) Record(ctx context.Context, f *models.Feedback) error {
	query := `INSERT INTO feedback (message_id, rating)
		VALUES ($1, $2)
		ON CONFLICT (message_id) DO UPDATE SET rating = EXCLUDED.rating, created_at = NOW()
		RETURNING id, created_at`

	err := r.pool.QueryRow(ctx, query, f.MessageID, f.Rating).Scan(&f.ID, &f.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrMessageNotFound
		}
		return err
	}
	return nil
}

func (r *FeedbackRepo) CountByRating(ctx context.Context, rating int) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM feedback WHERE rating = $1", rating).Scan(&count)
	return count, err
}

// BestExamples returns up to limit (prompt, response) pairs drawn from
// positively rated model replies, most recently rated first. A reply pairs
// with the user turn it recorded via reply_to, falling back to the
// immediately preceding id for turns written without one. A reply whose
// prompt is missing or not user-role is excluded outright.
func (r *FeedbackRepo) BestExamples(ctx context.Context, limit int) ([]models.Example, error) {
	query := `
		SELECT prompt.content, reply.content
		FROM messages reply
		JOIN feedback f ON f.message_id = reply.id
		JOIN messages prompt ON prompt.id = COALESCE(reply.reply_to, reply.id - 1)
		WHERE f.rating = 1
		  AND reply.role = 'model'
		  AND prompt.role = 'user'
		ORDER BY f.created_at DESC, f.id DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	examples := []models.Example{}
	for rows.Next() {
		var ex models.Example
		if err := rows.Scan(&ex.Prompt, &ex.Response); err != nil {
			return nil, err
		}
		examples = append(examples, ex)
	}

	return examples, rows.Err()
}
