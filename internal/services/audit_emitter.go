package services

import (
	"context"
	"fmt"

	"valeservice/internal/models"
	"valeservice/internal/repositories"

	"github.com/google/uuid"
)

// Stock change reasons recorded in product audit entries.
const (
	stockDecrease = "stock_decrease"
	stockRestore  = "stock_restore"
	stockAdjust   = "stock_adjust"
)

// auditEmitter appends audit entries inside a caller owned transaction. It
// never begins or commits.
type auditEmitter struct {
	auditRepo repositories.AuditLogsRepository
}

func (e *auditEmitter) record(ctx context.Context, tx repositories.DBTX, entry *models.AuditEntry) error {
	if err := e.auditRepo.Insert(ctx, tx, entry); err != nil {
		return fmt.Errorf("failed to record %s audit for %s %s: %w", entry.Action, entry.ResourceType, entry.ResourceID, err)
	}
	return nil
}

// recordStockChange writes the product UPDATE entry for a stock movement.
func (e *auditEmitter) recordStockChange(ctx context.Context, tx repositories.DBTX, userID *uuid.UUID, requestID *string,
	before *models.Product, newStock int, reason string, quantity int) error {
	after := *before
	after.StockQuantity = newStock
	afterState := after.Snapshot()
	afterState["details"] = map[string]interface{}{
		"action":    reason,
		"quantity":  quantity,
		"new_stock": newStock,
	}

	return e.record(ctx, tx, &models.AuditEntry{
		TenantID:     before.TenantID,
		UserID:       userID,
		Action:       models.ActionUpdate,
		ResourceType: models.ResourceProduct,
		ResourceID:   before.ID.String(),
		BeforeState:  before.Snapshot(),
		AfterState:   afterState,
		RequestID:    requestID,
	})
}
