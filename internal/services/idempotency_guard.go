package services

import (
	"context"
	"errors"

	"valeservice/internal/caching"
	"valeservice/internal/common"
	"valeservice/internal/models"
	"valeservice/internal/repositories"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// idempotencyGuard answers whether a request token was already admitted for
// a tenant. The replay cache may short-circuit a hit, but only Postgres can
// answer a miss.
type idempotencyGuard struct {
	orderRepo repositories.OrderRepository
	cache     caching.CacheService
	logger    *zap.Logger
}

func newIdempotencyGuard(orderRepo repositories.OrderRepository, cache caching.CacheService, logger *zap.Logger) *idempotencyGuard {
	if cache == nil {
		cache = caching.NoopCache{}
	}
	return &idempotencyGuard{orderRepo: orderRepo, cache: cache, logger: logger}
}

// admit returns the order stored for (tenantID, requestID), or nil when the
// token has not been seen.
func (g *idempotencyGuard) admit(ctx context.Context, tenantID uuid.UUID, requestID string) (*models.Order, error) {
	cached, err := g.cache.GetOrderByRequest(ctx, tenantID, requestID)
	if err != nil {
		g.logger.Debug("replay cache lookup failed", zap.String("request_id", requestID), zap.Error(err))
	} else if cached != nil {
		return cached, nil
	}

	order, err := g.orderRepo.FindByRequestID(ctx, tenantID, requestID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, common.NewTransientError("idempotency lookup", err)
	}
	return order, nil
}
