// Package jobs holds the concrete scheduled jobs.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/twchip/chipkline/pkg/logger"
)

// SnapshotPurger removes stored series rows older than the retention window.
type SnapshotPurger interface {
	PurgeStale(ctx context.Context, retention time.Duration) (int64, error)
}

// CodeRefresher re-fetches the listed-company name table.
type CodeRefresher interface {
	Refresh(ctx context.Context) error
}

// snapshotRetention matches the cache TTL: snapshots older than a week are
// stale in the same way cache entries are.
const snapshotRetention = 7 * 24 * time.Hour

// MaintenanceJob purges stale snapshots and refreshes the company code
// table. Runs nightly after the Taiwan market close data has settled.
type MaintenanceJob struct {
	purger SnapshotPurger // nil when Postgres is disabled
	codes  CodeRefresher
	logger *logger.Logger
}

// NewMaintenanceJob creates the nightly maintenance job.
func NewMaintenanceJob(purger SnapshotPurger, codes CodeRefresher, log *logger.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		purger: purger,
		codes:  codes,
		logger: log,
	}
}

// Name returns the job name.
func (j *MaintenanceJob) Name() string {
	return "maintenance"
}

// Schedule runs at 22:30 every day (after market data settles).
func (j *MaintenanceJob) Schedule() string {
	return "0 30 22 * * *"
}

// Run executes the maintenance job.
func (j *MaintenanceJob) Run(ctx context.Context) error {
	if j.purger != nil {
		removed, err := j.purger.PurgeStale(ctx, snapshotRetention)
		if err != nil {
			return fmt.Errorf("snapshot purge: %w", err)
		}
		j.logger.WithField("rows", removed).Info("Purged stale snapshots")
	}

	if j.codes != nil {
		if err := j.codes.Refresh(ctx); err != nil {
			return fmt.Errorf("company code refresh: %w", err)
		}
		j.logger.Info("Refreshed company code table")
	}

	return nil
}
