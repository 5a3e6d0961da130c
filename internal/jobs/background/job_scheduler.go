package background

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"valeservice/internal/jobs"
	"valeservice/internal/services"
	"valeservice/internal/telemetry"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

const (
	JobLowStock     = "inventory-alerts"
	JobAuditArchive = "audit-archive"

	jobTimeout = 5 * time.Minute
)

// Intervals configures how often each job runs. A zero interval disables the job.
type Intervals struct {
	LowStock     time.Duration
	AuditArchive time.Duration
}

// JobScheduler runs the periodic maintenance jobs of one process
type JobScheduler struct {
	scheduler gocron.Scheduler
	alerts    *jobs.InventoryAlertService
	audit     services.AuditService
	metrics   *telemetry.Metrics
	logger    *zap.Logger
	jobs      map[string]gocron.Job
	mu        sync.RWMutex
	now       func() time.Time
}

// NewJobScheduler creates the scheduler and registers the enabled jobs.
// audit may be nil when no archive storage is configured.
func NewJobScheduler(alerts *jobs.InventoryAlertService, audit services.AuditService, metrics *telemetry.Metrics, intervals Intervals, logger *zap.Logger) (*JobScheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	js := &JobScheduler{
		scheduler: scheduler,
		alerts:    alerts,
		audit:     audit,
		metrics:   metrics,
		logger:    logger,
		jobs:      make(map[string]gocron.Job),
		now:       time.Now,
	}

	if err := js.registerJobs(intervals); err != nil {
		_ = scheduler.Shutdown()
		return nil, err
	}
	return js, nil
}

// Start starts the job scheduler
func (js *JobScheduler) Start() {
	js.logger.Info("starting background job scheduler", zap.Strings("jobs", js.JobNames()))
	js.scheduler.Start()
}

// Stop waits for running jobs and stops the scheduler
func (js *JobScheduler) Stop() error {
	js.logger.Info("stopping background job scheduler")
	return js.scheduler.Shutdown()
}

func (js *JobScheduler) JobNames() []string {
	js.mu.RLock()
	defer js.mu.RUnlock()

	names := make([]string, 0, len(js.jobs))
	for name := range js.jobs {
		names = append(names, name)
	}
	return names
}

// RunNow triggers a registered job outside its schedule.
func (js *JobScheduler) RunNow(name string) error {
	js.mu.RLock()
	job, ok := js.jobs[name]
	js.mu.RUnlock()
	if !ok {
		return fmt.Errorf("job %s is not registered", name)
	}
	return job.RunNow()
}

func (js *JobScheduler) registerJobs(intervals Intervals) error {
	if js.alerts != nil && intervals.LowStock > 0 {
		if err := js.register(JobLowStock, intervals.LowStock, js.processInventoryAlerts); err != nil {
			return err
		}
	}
	if js.audit != nil && intervals.AuditArchive > 0 {
		if err := js.register(JobAuditArchive, intervals.AuditArchive, js.archiveAuditEntries); err != nil {
			return err
		}
	}
	return nil
}

func (js *JobScheduler) register(name string, interval time.Duration, task func(context.Context) error) error {
	job, err := js.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()
			if err := task(ctx); err != nil {
				js.logger.Error("background job failed", zap.String("job", name), zap.Error(err))
			}
		}),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to create %s job: %w", name, err)
	}

	js.mu.Lock()
	js.jobs[name] = job
	js.mu.Unlock()
	return nil
}

func (js *JobScheduler) processInventoryAlerts(ctx context.Context) error {
	return js.alerts.ScheduledLowStockCheck(ctx)
}

// archiveAuditEntries exports the previous UTC day.
func (js *JobScheduler) archiveAuditEntries(ctx context.Context) error {
	day := js.now().UTC().AddDate(0, 0, -1)
	result, err := js.audit.ArchiveDay(ctx, day)
	if errors.Is(err, services.ErrArchiveNotConfigured) {
		return nil
	}
	if err != nil {
		return err
	}

	js.metrics.AddArchived(result.Entries)
	js.logger.Info("audit archive completed",
		zap.String("day", result.Day), zap.Int("entries", result.Entries), zap.Int("objects", len(result.Objects)))
	return nil
}
