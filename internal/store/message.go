package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/bazaar-market/apiserver/types"
	"github.com/google/uuid"
)

// MessageRepository handles persistence for direct messages.
type MessageRepository struct {
	db *sql.DB
}

func NewMessageRepository(db *sql.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create inserts a message. The id and created_at are assigned by the
// database and returned on the message.
func (r *MessageRepository) Create(ctx context.Context, msg types.Message) (types.Message, error) {
	const query = `
		INSERT INTO messages (sender_id, receiver_id, content)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`
	if err := r.db.QueryRowContext(ctx, query, msg.SenderID, msg.ReceiverID, msg.Content).Scan(&msg.ID, &msg.CreatedAt); err != nil {
		return types.Message{}, mapWriteError(err)
	}
	return msg, nil
}

// ListBetween returns every message exchanged between a and b, oldest first.
// The result does not depend on the argument order.
func (r *MessageRepository) ListBetween(ctx context.Context, a, b uuid.UUID) ([]types.Message, error) {
	const query = `
		SELECT id, sender_id, receiver_id, content, created_at
		FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2)
		   OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY created_at ASC, id ASC`
	return r.list(ctx, query, a, b)
}

// ListInvolving returns every message sent or received by user, newest first.
func (r *MessageRepository) ListInvolving(ctx context.Context, user uuid.UUID) ([]types.Message, error) {
	const query = `
		SELECT id, sender_id, receiver_id, content, created_at
		FROM messages
		WHERE sender_id = $1 OR receiver_id = $1
		ORDER BY created_at DESC, id DESC`
	return r.list(ctx, query, user)
}

// ListInvolvingSince returns messages sent or received by user strictly
// after since, oldest first.
func (r *MessageRepository) ListInvolvingSince(ctx context.Context, user uuid.UUID, since time.Time) ([]types.Message, error) {
	const query = `
		SELECT id, sender_id, receiver_id, content, created_at
		FROM messages
		WHERE (sender_id = $1 OR receiver_id = $1)
		  AND created_at > $2
		ORDER BY created_at ASC, id ASC`
	return r.list(ctx, query, user, since)
}

func (r *MessageRepository) list(ctx context.Context, query string, args ...any) ([]types.Message, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]types.Message, 0)
	for rows.Next() {
		var msg types.Message
		if err := rows.Scan(&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}
