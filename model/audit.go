package model

import "time"

// AuditEntry is a write-once diagnostic record of an attempted operation.
// The application never reads these back.
type AuditEntry struct {
	ID        int       `json:"id"`
	Action    string    `json:"action"`
	Context   string    `json:"context"`
	CreatedAt time.Time `json:"created_at"`
}
