package jobs

import (
	"context"
	"fmt"

	"valeservice/internal/models"
	"valeservice/internal/telemetry"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxLowStockScan bounds one low-stock pass across all tenants.
const maxLowStockScan = 1000

// LowStockSource is implemented by repositories.ProductRepository.
type LowStockSource interface {
	ListLowStock(ctx context.Context, limit int) ([]*models.LowStockProduct, error)
}

type InventoryAlertService struct {
	products LowStockSource
	metrics  *telemetry.Metrics
	logger   *zap.Logger
}

type InventoryAlert struct {
	TenantID     uuid.UUID
	TenantSlug   string
	ProductID    uuid.UUID
	ProductName  string
	CurrentStock int
	Threshold    int
}

func NewInventoryAlertService(products LowStockSource, metrics *telemetry.Metrics, logger *zap.Logger) *InventoryAlertService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InventoryAlertService{
		products: products,
		metrics:  metrics,
		logger:   logger,
	}
}

// CheckLowStock returns the low-stock alerts of every active tenant grouped by tenant.
func (a *InventoryAlertService) CheckLowStock(ctx context.Context) (map[uuid.UUID][]InventoryAlert, error) {
	lowStock, err := a.products.ListLowStock(ctx, maxLowStockScan)
	if err != nil {
		return nil, fmt.Errorf("failed to list low stock products: %w", err)
	}

	alerts := make(map[uuid.UUID][]InventoryAlert)
	for _, p := range lowStock {
		alerts[p.TenantID] = append(alerts[p.TenantID], InventoryAlert{
			TenantID:     p.TenantID,
			TenantSlug:   p.TenantSlug,
			ProductID:    p.ProductID,
			ProductName:  p.Name,
			CurrentStock: p.StockQuantity,
			Threshold:    p.StockMinimum,
		})
	}
	if len(lowStock) == maxLowStockScan {
		a.logger.Warn("low stock scan truncated", zap.Int("limit", maxLowStockScan))
	}

	a.metrics.SetLowStock(len(lowStock))
	return alerts, nil
}

func (a *InventoryAlertService) LogLowStockAlerts(alerts []InventoryAlert) {
	for _, alert := range alerts {
		a.logger.Warn("low stock",
			zap.String("tenant_id", alert.TenantID.String()),
			zap.String("tenant", alert.TenantSlug),
			zap.String("product_id", alert.ProductID.String()),
			zap.String("product", alert.ProductName),
			zap.Int("stock_quantity", alert.CurrentStock),
			zap.Int("stock_minimum", alert.Threshold),
		)
	}
}

// ScheduledLowStockCheck is run by the background scheduler.
func (a *InventoryAlertService) ScheduledLowStockCheck(ctx context.Context) error {
	alerts, err := a.CheckLowStock(ctx)
	if err != nil {
		a.logger.Error("scheduled low stock check failed", zap.Error(err))
		return err
	}

	total := 0
	for _, tenantAlerts := range alerts {
		a.LogLowStockAlerts(tenantAlerts)
		total += len(tenantAlerts)
	}
	a.logger.Info("low stock check completed", zap.Int("tenants", len(alerts)), zap.Int("products", total))
	return nil
}
