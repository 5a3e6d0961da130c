package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"valeservice/internal/repositories"
	"valeservice/internal/services"

	"github.com/spf13/cobra"
)

// ArchiveOptions holds flags for the archive-audit command.
type ArchiveOptions struct {
	*RootOptions
	Date string
}

// NewArchiveAuditCommand creates the archive-audit command.
func NewArchiveAuditCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ArchiveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "archive-audit",
		Short: "Export one day of audit entries to object storage",
		Long: `Export the audit entries written on one UTC day as one JSON lines
object per tenant. Defaults to yesterday.

Example:
  valeservice archive-audit --date 2024-05-01`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArchive(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Date, "date", "", "day to archive (YYYY-MM-DD, UTC)")

	return cmd
}

func parseArchiveDate(value string, now time.Time) (time.Time, error) {
	if value == "" {
		return now.UTC().AddDate(0, 0, -1), nil
	}
	day, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q: expected YYYY-MM-DD", value)
	}
	return day, nil
}

func runArchive(cmd *cobra.Command, opts *ArchiveOptions) error {
	day, err := parseArchiveDate(opts.Date, time.Now())
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.close()

	if a.cfg.Minio.Endpoint == "" {
		return services.ErrArchiveNotConfigured
	}
	storage, err := services.NewMinioService(a.cfg.Minio.Endpoint, a.cfg.Minio.AccessKey, a.cfg.Minio.SecretKey, a.cfg.Minio.UseSSL)
	if err != nil {
		return fmt.Errorf("failed to initialize object storage: %w", err)
	}

	auditService := services.NewAuditService(
		repositories.NewAuditLogsRepo(a.pool),
		repositories.NewTenantRepo(a.pool),
		storage,
		a.cfg.Minio.ArchiveBucket,
		a.logger,
	)

	result, err := auditService.ArchiveDay(cmd.Context(), day)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}
