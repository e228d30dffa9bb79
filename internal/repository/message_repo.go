package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"groupwire/internal/domain"
)

// MessageRepository define el contrato de persistencia para mensajes.
type MessageRepository interface {
	Create(ctx context.Context, message domain.Message) error
	Paginate(ctx context.Context, groupID string, page, limit int) (domain.MessagePage, error)
}

type PgMessageRepository struct {
	pool *pgxpool.Pool
}

func NewPgMessageRepository(pool *pgxpool.Pool) *PgMessageRepository {
	return &PgMessageRepository{pool: pool}
}

func (r *PgMessageRepository) Create(ctx context.Context, message domain.Message) error {
	const query = `
		INSERT INTO messages (id, group_id, content, sender, is_media, media_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	var mediaURL interface{}
	if message.MediaURL != "" {
		mediaURL = message.MediaURL
	}

	_, err := r.pool.Exec(ctx, query,
		message.ID,
		message.GroupID,
		message.Content,
		message.Sender,
		message.IsMedia,
		mediaURL,
		message.CreatedAt,
	)
	return err
}

func (r *PgMessageRepository) Paginate(ctx context.Context, groupID string, page, limit int) (domain.MessagePage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}
	offset := (page - 1) * limit

	const countQuery = `SELECT COUNT(*) FROM messages WHERE group_id = $1`
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, groupID).Scan(&total); err != nil {
		return domain.MessagePage{}, err
	}

	const query = `
		SELECT id, group_id, content, sender, is_media, media_url, created_at
		FROM messages
		WHERE group_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, groupID, limit, offset)
	if err != nil {
		return domain.MessagePage{}, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		var mediaURL *string

		err = rows.Scan(
			&msg.ID,
			&msg.GroupID,
			&msg.Content,
			&msg.Sender,
			&msg.IsMedia,
			&mediaURL,
			&msg.CreatedAt,
		)
		if err != nil {
			return domain.MessagePage{}, err
		}
		if mediaURL != nil {
			msg.MediaURL = *mediaURL
		}
		messages = append(messages, msg)
	}

	if err = rows.Err(); err != nil {
		return domain.MessagePage{}, err
	}

	return domain.MessagePage{Messages: messages, Total: total}, nil
}
