package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"valeservice/internal/common"
	"valeservice/internal/models"
	"valeservice/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const archiveContentType = "application/x-ndjson"

var ErrArchiveNotConfigured = errors.New("audit archive storage is not configured")

type AuditService interface {
	ListForResource(ctx context.Context, tenantID uuid.UUID, resourceType, resourceID string, limit, offset int) ([]*models.AuditEntry, error)
	// ArchiveDay exports the audit entries written on day (UTC) as one JSON
	// lines object per tenant.
	ArchiveDay(ctx context.Context, day time.Time) (*ArchiveResult, error)
}

type ArchiveResult struct {
	Day     string   `json:"day"`
	Entries int      `json:"entries"`
	Objects []string `json:"objects"`
}

type auditService struct {
	auditRepo  repositories.AuditLogsRepository
	tenantRepo repositories.TenantRepository
	storage    MinioService
	bucket     string
	logger     *zap.Logger
}

// NewAuditService builds the audit service. storage may be nil, in which
// case ArchiveDay returns ErrArchiveNotConfigured.
func NewAuditService(auditRepo repositories.AuditLogsRepository, tenantRepo repositories.TenantRepository, storage MinioService, bucket string, logger *zap.Logger) AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &auditService{
		auditRepo:  auditRepo,
		tenantRepo: tenantRepo,
		storage:    storage,
		bucket:     bucket,
		logger:     logger,
	}
}

func (s *auditService) ListForResource(ctx context.Context, tenantID uuid.UUID, resourceType, resourceID string, limit, offset int) ([]*models.AuditEntry, error) {
	switch resourceType {
	case models.ResourceOrder, models.ResourceProduct, models.ResourceTenant:
	default:
		return nil, common.NewValidationError("resource_type", "resource_type must be order, product or tenant")
	}
	if err := common.ValidateRequiredString(resourceID, "resource_id"); err != nil {
		return nil, common.NewValidationError("resource_id", err.Error())
	}
	limit, offset, err := common.ValidatePaginationParams(limit, offset)
	if err != nil {
		return nil, common.NewValidationError("offset", err.Error())
	}

	entries, err := s.auditRepo.ListByResource(ctx, tenantID, &models.AuditFilter{
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		return nil, storageError("list audit entries", err)
	}
	return entries, nil
}

func ArchiveObjectName(tenantID uuid.UUID, day time.Time) string {
	return fmt.Sprintf("audit/%s/%s.jsonl", tenantID.String(), day.Format(time.DateOnly))
}

func (s *auditService) ArchiveDay(ctx context.Context, day time.Time) (*ArchiveResult, error) {
	if s.storage == nil {
		return nil, ErrArchiveNotConfigured
	}

	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)
	result := &ArchiveResult{Day: from.Format(time.DateOnly), Objects: []string{}}

	if err := s.storage.EnsureBucketExists(ctx, s.bucket); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket %s: %w", s.bucket, err)
	}

	tenants, err := s.tenantRepo.ListActive(ctx)
	if err != nil {
		return nil, storageError("list tenants", err)
	}

	for _, tenant := range tenants {
		entries, err := s.auditRepo.ListByTenantBetween(ctx, tenant.ID, from, to)
		if err != nil {
			return result, storageError("list audit entries", err)
		}
		if len(entries) == 0 {
			continue
		}

		var buf bytes.Buffer
		encoder := json.NewEncoder(&buf)
		for _, entry := range entries {
			if err := encoder.Encode(entry); err != nil {
				return result, fmt.Errorf("failed to encode audit entry %d: %w", entry.ID, err)
			}
		}

		objectName := ArchiveObjectName(tenant.ID, from)
		if err := s.storage.PutObject(ctx, s.bucket, objectName, &buf, int64(buf.Len()), archiveContentType); err != nil {
			return result, fmt.Errorf("failed to upload %s: %w", objectName, err)
		}

		result.Entries += len(entries)
		result.Objects = append(result.Objects, objectName)
		s.logger.Info("audit entries archived",
			zap.String("tenant", tenant.Slug), zap.String("object", objectName), zap.Int("entries", len(entries)))
	}

	return result, nil
}
