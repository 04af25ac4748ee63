package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"rlchat-backend/internal/models"
)

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

// Create appends a turn to the transcript. The id comes from the sequence,
// so it is strictly greater than every previously assigned id.
func (r *MessageRepo) Create(ctx context.Context, m *models.Message) error {
	query := `INSERT INTO messages (role, content, reply_to)
		VALUES ($1, $2, $3) RETURNING id, created_at`

	return r.pool.QueryRow(ctx, query, m.Role, m.Content, m.ReplyTo).Scan(&m.ID, &m.CreatedAt)
}

func (r *MessageRepo) GetByID(ctx context.Context, id int64) (*models.Message, error) {
	m := &models.Message{}
	query := `SELECT id, role, content, reply_to, created_at FROM messages WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(&m.ID, &m.Role, &m.Content, &m.ReplyTo, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *MessageRepo) CountByRole(ctx context.Context, role string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM messages WHERE role = $1", role).Scan(&count)
	return count, err
}
