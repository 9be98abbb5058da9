package repository

import (
	"database/sql"

	"github.com/andersonmia/nbr/model"
)

// IAuditRepository is the sink behind the audit trail. It deliberately runs
// on the root connection pool rather than a business transaction: a failure
// audit entry must survive the rollback it describes.
type IAuditRepository interface {
	InsertEntry(entry *model.AuditEntry) error
}

type AuditRepository struct {
	DB *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{DB: db}
}

func (r *AuditRepository) InsertEntry(entry *model.AuditEntry) error {
	query := `INSERT INTO audit_entries (action, context) VALUES ($1, $2) RETURNING id, created_at`
	return r.DB.QueryRow(query, entry.Action, entry.Context).Scan(&entry.ID, &entry.CreatedAt)
}
