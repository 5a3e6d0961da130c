package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"valeservice/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type AuditLogsRepository interface {
	// Insert appends an entry using the caller's transaction. id and
	// created_at are assigned by the database.
	Insert(ctx context.Context, q DBTX, entry *models.AuditEntry) error

	// Get audit entries for a specific resource, oldest first
	ListByResource(ctx context.Context, tenantID uuid.UUID, filter *models.AuditFilter) ([]*models.AuditEntry, error)

	// Get audit entries written for a tenant within [from, to)
	ListByTenantBetween(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]*models.AuditEntry, error)
}

type auditLogsRepo struct {
	db DBTX
}

func NewAuditLogsRepo(db DBTX) AuditLogsRepository {
	return &auditLogsRepo{db: db}
}

const auditColumns = `id, tenant_id, user_id, action, resource_type, resource_id, before_state, after_state, request_id, created_at`

func marshalState(state models.JSONB) ([]byte, error) {
	if state == nil {
		return nil, nil
	}
	return json.Marshal(state)
}

func (r *auditLogsRepo) Insert(ctx context.Context, q DBTX, entry *models.AuditEntry) error {
	beforeBytes, err := marshalState(entry.BeforeState)
	if err != nil {
		return fmt.Errorf("failed to marshal before_state: %w", err)
	}
	afterBytes, err := marshalState(entry.AfterState)
	if err != nil {
		return fmt.Errorf("failed to marshal after_state: %w", err)
	}

	query := `
		INSERT INTO audit_entries (tenant_id, user_id, action, resource_type, resource_id, before_state, after_state, request_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`
	return q.QueryRow(ctx, query, entry.TenantID, entry.UserID, entry.Action, entry.ResourceType,
		entry.ResourceID, beforeBytes, afterBytes, entry.RequestID).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *auditLogsRepo) ListByResource(ctx context.Context, tenantID uuid.UUID, filter *models.AuditFilter) ([]*models.AuditEntry, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM audit_entries
		WHERE tenant_id = $1 AND resource_type = $2 AND resource_id = $3
		ORDER BY id
		LIMIT $4 OFFSET $5
	`
	rows, err := r.db.Query(ctx, query, tenantID, filter.ResourceType, filter.ResourceID, filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	return scanAuditEntries(rows)
}

func (r *auditLogsRepo) ListByTenantBetween(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]*models.AuditEntry, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM audit_entries
		WHERE tenant_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY id
	`
	rows, err := r.db.Query(ctx, query, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	return scanAuditEntries(rows)
}

func scanAuditEntries(rows pgx.Rows) ([]*models.AuditEntry, error) {
	defer rows.Close()

	entries := []*models.AuditEntry{}
	for rows.Next() {
		entry := &models.AuditEntry{}
		var beforeBytes, afterBytes []byte
		err := rows.Scan(&entry.ID, &entry.TenantID, &entry.UserID, &entry.Action, &entry.ResourceType,
			&entry.ResourceID, &beforeBytes, &afterBytes, &entry.RequestID, &entry.CreatedAt)
		if err != nil {
			return nil, err
		}

		if len(beforeBytes) > 0 {
			if err := json.Unmarshal(beforeBytes, &entry.BeforeState); err != nil {
				return nil, fmt.Errorf("failed to unmarshal before_state: %w", err)
			}
		}
		if len(afterBytes) > 0 {
			if err := json.Unmarshal(afterBytes, &entry.AfterState); err != nil {
				return nil, fmt.Errorf("failed to unmarshal after_state: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
