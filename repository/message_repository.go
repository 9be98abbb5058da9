package repository

import (
	"database/sql"

	"github.com/andersonmia/nbr/model"
)

// IMessageRepository stores a copy of every notification rendered for a
// customer.
type IMessageRepository interface {
	CreateMessage(message *model.Message) error
}

type MessageRepository struct {
	DB *sql.DB
}

func NewMessageRepository(db *sql.DB) *MessageRepository {
	return &MessageRepository{DB: db}
}

func (r *MessageRepository) CreateMessage(message *model.Message) error {
	query := `INSERT INTO messages (user_id, body) VALUES ($1, $2) RETURNING id, created_at`
	return r.DB.QueryRow(query, message.UserID, message.Body).Scan(&message.ID, &message.CreatedAt)
}
