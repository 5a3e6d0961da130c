package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "valeservice/docs"
	"valeservice/internal/caching"
	"valeservice/internal/events"
	"valeservice/internal/handlers"
	"valeservice/internal/jobs"
	"valeservice/internal/jobs/background"
	"valeservice/internal/logger"
	"valeservice/internal/middleware"
	"valeservice/internal/repositories"
	"valeservice/internal/services"
	"valeservice/internal/telemetry"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const shutdownTimeout = 15 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, rootOpts)
		},
	}
}

func runServe(ctx context.Context, opts *RootOptions) error {
	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.close()
	cfg := a.cfg
	log := a.logger

	if cfg.Auth.GeneratedSecret {
		log.Warn("JWT_SECRET not set, using a generated development secret")
	}

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.Insecure)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Warn("failed to flush traces", zap.Error(err))
		}
	}()

	metrics := telemetry.NewMetrics("valeservice")

	var cache caching.CacheService = caching.NoopCache{}
	if cfg.Redis.Addr != "" {
		cache = caching.NewRedisCacheService(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err := cache.Ping(ctx); err != nil {
			log.Warn("redis unavailable, replays will be served from the database", zap.Error(err))
		}
	}
	defer func() { _ = cache.Close() }()

	publisher := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.OrderTopic)
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warn("failed to close event publisher", zap.Error(err))
		}
	}()

	var storage services.MinioService
	if cfg.Minio.Endpoint != "" {
		storage, err = services.NewMinioService(cfg.Minio.Endpoint, cfg.Minio.AccessKey, cfg.Minio.SecretKey, cfg.Minio.UseSSL)
		if err != nil {
			return fmt.Errorf("failed to initialize object storage: %w", err)
		}
	}

	// Repositories
	tenantRepo := repositories.NewTenantRepo(a.pool)
	productRepo := repositories.NewProductRepo(a.pool)
	orderRepo := repositories.NewOrderRepo(a.pool)
	auditRepo := repositories.NewAuditLogsRepo(a.pool)

	// Services
	tenantService := services.NewTenantService(a.pool, tenantRepo, auditRepo, cache, log)
	orderService := services.NewOrderService(a.pool, orderRepo, productRepo, auditRepo, cache, publisher, metrics, log,
		services.OrderServiceConfig{
			LockTimeout:    cfg.Orders.LockTimeout,
			TxTimeout:      cfg.Orders.TxTimeout,
			ReplayCacheTTL: cfg.Orders.ReplayCacheTTL,
		})
	productService := services.NewProductService(a.pool, productRepo, auditRepo, cfg.Orders.LockTimeout, log)
	auditService := services.NewAuditService(auditRepo, tenantRepo, storage, cfg.Minio.ArchiveBucket, log)
	resolver := services.NewTenantResolver(tenantService, log)

	defaultTenant, err := tenantService.EnsureDefaultTenant(ctx)
	if err != nil {
		return fmt.Errorf("failed to ensure default tenant: %w", err)
	}
	log.Info("default tenant ready", zap.String("tenant_id", defaultTenant.ID.String()))

	// Background jobs
	alerts := jobs.NewInventoryAlertService(productRepo, metrics, log)
	var archiver services.AuditService
	if storage != nil {
		archiver = auditService
	}
	scheduler, err := background.NewJobScheduler(alerts, archiver, metrics, background.Intervals{
		LowStock:     cfg.Jobs.LowStockInterval,
		AuditArchive: cfg.Jobs.AuditArchiveInterval,
	}, log)
	if err != nil {
		return err
	}
	scheduler.Start()
	defer func() {
		if err := scheduler.Stop(); err != nil {
			log.Warn("failed to stop scheduler", zap.Error(err))
		}
	}()

	jwtMiddleware, stopJWKS, err := middleware.JWTMiddleware(middleware.JWTConfig{
		Secret:  cfg.Auth.JWTSecret,
		JWKSURL: cfg.Auth.JWKSURL,
	}, log)
	if err != nil {
		return err
	}
	defer stopJWKS()

	e := newServer(cfg.Server.RateLimitRPS, metrics)

	healthHandlers := handlers.NewHealthHandlers(a.pool, cache)
	e.GET("/health", healthHandlers.HealthCheck)
	e.GET("/health/ready", healthHandlers.ReadinessCheck)
	e.GET("/health/live", healthHandlers.LivenessCheck)
	e.GET("/metrics", metrics.Handler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	versions := middleware.NewVersionMiddleware()
	v1 := versions.Group(e, "v1", jwtMiddleware)
	registerRoutes(v1,
		handlers.NewOrderHandlers(orderService, resolver),
		handlers.NewProductHandlers(productService, resolver),
		handlers.NewAuditLogsHandlers(auditService, resolver),
		handlers.NewTenantHandlers(tenantService, resolver),
	)

	serverErr := make(chan error, 1)
	go func() {
		log.Info("valeservice starting", zap.Int("port", cfg.Server.Port), zap.String("version", telemetry.ServiceVersion))
		if err := e.Start(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func newServer(rps float64, metrics *telemetry.Metrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.RequestID())
	e.Use(logger.Middleware())
	e.Use(metrics.Middleware())
	e.Use(echoMiddleware.CORS())
	e.Pre(echoMiddleware.RemoveTrailingSlash())
	if rps > 0 {
		e.Use(echoMiddleware.RateLimiter(echoMiddleware.NewRateLimiterMemoryStore(rate.Limit(rps))))
	}
	return e
}

func registerRoutes(g *echo.Group, orders *handlers.OrderHandlers, products *handlers.ProductHandlers, audit *handlers.AuditLogsHandlers, tenants *handlers.TenantHandlers) {
	g.GET("/tenant", tenants.GetCurrentTenant)

	g.GET("/orders", orders.GetOrders)
	g.POST("/orders", orders.CreateOrder)
	g.GET("/orders/:id", orders.GetOrder)
	g.PATCH("/orders/:id", orders.UpdateOrderComment)
	g.POST("/orders/:id/cancel", orders.CancelOrder)
	g.DELETE("/orders/:id", orders.CancelOrder)

	g.GET("/products", products.ListProducts)
	g.POST("/products", products.CreateProduct)
	g.GET("/products/:id", products.GetProduct)
	g.PUT("/products/:id", products.UpdateProduct)
	g.DELETE("/products/:id", products.DeleteProduct)

	g.GET("/audit/:resource_type/:id", audit.GetEntityHistory)
}
