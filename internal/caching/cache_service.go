package caching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"valeservice/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "valeservice"

type CacheService interface {
	// Order replay caching. A miss returns nil, nil.
	GetOrderByRequest(ctx context.Context, tenantID uuid.UUID, requestID string) (*models.Order, error)
	SetOrder(ctx context.Context, order *models.Order, ttl time.Duration) error
	DeleteOrder(ctx context.Context, tenantID uuid.UUID, requestID string) error

	// Tenant caching
	GetTenant(ctx context.Context, tenantID uuid.UUID) (*models.Tenant, error)
	SetTenant(ctx context.Context, tenant *models.Tenant, ttl time.Duration) error

	Ping(ctx context.Context) error
	Close() error
}

type redisCacheService struct {
	client redis.UniversalClient
}

// NewRedisCacheService connects to addr, which may carry a redis:// or
// rediss:// scheme.
func NewRedisCacheService(addr, password string, db int) CacheService {
	parsedAddr := strings.TrimPrefix(strings.TrimPrefix(addr, "redis://"), "rediss://")

	client := redis.NewClient(&redis.Options{
		Addr:         parsedAddr,
		Password:     password,
		DB:           db,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})
	return NewCacheService(client)
}

func NewCacheService(client redis.UniversalClient) CacheService {
	return &redisCacheService{client: client}
}

func OrderRequestKey(tenantID uuid.UUID, requestID string) string {
	return fmt.Sprintf("%s:order:req:%s:%s", keyPrefix, tenantID.String(), requestID)
}

func TenantKey(tenantID uuid.UUID) string {
	return fmt.Sprintf("%s:tenant:%s", keyPrefix, tenantID.String())
}

func (r *redisCacheService) getJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (r *redisCacheService) setJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, ttl).Err()
}

func (r *redisCacheService) GetOrderByRequest(ctx context.Context, tenantID uuid.UUID, requestID string) (*models.Order, error) {
	var order models.Order
	found, err := r.getJSON(ctx, OrderRequestKey(tenantID, requestID), &order)
	if err != nil || !found {
		return nil, err
	}
	// entries written under another tenant's key are never trusted
	if order.TenantID != tenantID || order.RequestID != requestID {
		return nil, nil
	}
	return &order, nil
}

// setOrderScript stores an order snapshot unless the stored one is CANCELLED
// and the new one is not. CANCELLED is terminal, so a create path finishing
// late cannot put a COMMITTED snapshot back over a cancellation.
var setOrderScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current and ARGV[2] ~= 'CANCELLED' then
	local ok, stored = pcall(cjson.decode, current)
	if ok and stored['status'] == 'CANCELLED' then
		return 0
	end
end
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[1], ARGV[1])
end
return 1
`)

func (r *redisCacheService) SetOrder(ctx context.Context, order *models.Order, ttl time.Duration) error {
	data, err := json.Marshal(order)
	if err != nil {
		return err
	}
	key := OrderRequestKey(order.TenantID, order.RequestID)
	return setOrderScript.Run(ctx, r.client, []string{key}, data, order.Status, ttl.Milliseconds()).Err()
}

func (r *redisCacheService) DeleteOrder(ctx context.Context, tenantID uuid.UUID, requestID string) error {
	return r.client.Del(ctx, OrderRequestKey(tenantID, requestID)).Err()
}

func (r *redisCacheService) GetTenant(ctx context.Context, tenantID uuid.UUID) (*models.Tenant, error) {
	var tenant models.Tenant
	found, err := r.getJSON(ctx, TenantKey(tenantID), &tenant)
	if err != nil || !found {
		return nil, err
	}
	return &tenant, nil
}

func (r *redisCacheService) SetTenant(ctx context.Context, tenant *models.Tenant, ttl time.Duration) error {
	return r.setJSON(ctx, TenantKey(tenant.ID), tenant, ttl)
}

func (r *redisCacheService) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *redisCacheService) Close() error {
	return r.client.Close()
}

// NoopCache is used when no redis address is configured. Every lookup misses.
type NoopCache struct{}

func (NoopCache) GetOrderByRequest(context.Context, uuid.UUID, string) (*models.Order, error) {
	return nil, nil
}
func (NoopCache) SetOrder(context.Context, *models.Order, time.Duration) error { return nil }
func (NoopCache) DeleteOrder(context.Context, uuid.UUID, string) error         { return nil }
func (NoopCache) GetTenant(context.Context, uuid.UUID) (*models.Tenant, error) { return nil, nil }
func (NoopCache) SetTenant(context.Context, *models.Tenant, time.Duration) error {
	return nil
}
func (NoopCache) Ping(context.Context) error { return nil }
func (NoopCache) Close() error               { return nil }
