package model

import "time"

// Message is a persisted copy of a notification sent to a customer.
type Message struct {
	ID        int       `json:"id"`
	UserID    int       `json:"user_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}
