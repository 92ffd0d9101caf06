package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/drivehq/selection-api/internal/models"
)

// AuditRepository persists system-wide audit log entries. The table is
// append-only and independent of any applicant's lifetime.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs an AuditRepository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create appends one system audit entry.
func (r *AuditRepository) Create(ctx context.Context, entry *models.SystemAuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.MetaRaw == nil {
		meta := entry.Meta
		if meta == nil {
			meta = map[string]interface{}{}
		}
		raw, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("marshal audit meta: %w", err)
		}
		entry.MetaRaw = raw
	}
	const query = `INSERT INTO audit_logs (id, action, entity, entity_id, performed_by, ip, meta, created_at)
        VALUES (:id, :action, :entity, :entity_id, :performed_by, :ip, :meta, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

// ListRecent returns the newest system audit entries up to limit.
func (r *AuditRepository) ListRecent(ctx context.Context, limit int) ([]models.SystemAuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT id, action, entity, entity_id, performed_by, ip, meta, created_at
        FROM audit_logs ORDER BY created_at DESC LIMIT %d`, limit)
	var entries []models.SystemAuditLog
	if err := r.db.SelectContext(ctx, &entries, query); err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	for i := range entries {
		if len(entries[i].MetaRaw) > 0 {
			_ = json.Unmarshal(entries[i].MetaRaw, &entries[i].Meta)
		}
	}
	return entries, nil
}
