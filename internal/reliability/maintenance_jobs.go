package reliability

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/restock/internal/database"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
)

const (
	defaultCriticalFreeBytes = 500 << 20
	defaultLowFreeBytes      = 5 << 30
	defaultRetentionDays     = 90
)

// ArchiveUploadJob uploads pending archives and rotates old bundles (nightly)
type ArchiveUploadJob struct {
	uploader      *ArchiveUploader
	retentionDays int
	timeout       time.Duration
	log           zerolog.Logger
}

// NewArchiveUploadJob creates the job. Zero retention keeps 90 days.
func NewArchiveUploadJob(uploader *ArchiveUploader, retentionDays int, log zerolog.Logger) *ArchiveUploadJob {
	if retentionDays <= 0 {
		retentionDays = defaultRetentionDays
	}
	return &ArchiveUploadJob{
		uploader:      uploader,
		retentionDays: retentionDays,
		timeout:       10 * time.Minute,
		log:           log.With().Str("job", "archive_upload").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *ArchiveUploadJob) Name() string {
	return "archive_upload"
}

// Run executes the archive upload job
func (j *ArchiveUploadJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	if _, err := j.uploader.UploadPending(ctx); err != nil {
		return err
	}
	if _, err := j.uploader.RotateOldBundles(ctx, j.retentionDays); err != nil {
		j.log.Warn().Err(err).Msg("Bundle rotation failed")
	}
	return nil
}

// LedgerMaintenanceJob checks the ledger database and the data disk (daily)
type LedgerMaintenanceJob struct {
	db                *database.DB
	dataDir           string
	criticalFreeBytes uint64
	lowFreeBytes      uint64
	log               zerolog.Logger
}

// NewLedgerMaintenanceJob creates a new ledger maintenance job
func NewLedgerMaintenanceJob(db *database.DB, dataDir string, log zerolog.Logger) *LedgerMaintenanceJob {
	return &LedgerMaintenanceJob{
		db:                db,
		dataDir:           dataDir,
		criticalFreeBytes: defaultCriticalFreeBytes,
		lowFreeBytes:      defaultLowFreeBytes,
		log:               log.With().Str("job", "ledger_maintenance").Logger(),
	}
}

// SetDiskThresholds overrides the critical and low free-space thresholds
func (j *LedgerMaintenanceJob) SetDiskThresholds(critical, low uint64) {
	j.criticalFreeBytes = critical
	j.lowFreeBytes = low
}

// Name returns the job name for scheduler
func (j *LedgerMaintenanceJob) Name() string {
	return "ledger_maintenance"
}

// Run executes the ledger maintenance job
func (j *LedgerMaintenanceJob) Run() error {
	j.log.Info().Msg("Starting ledger maintenance")
	startTime := time.Now()

	if j.db != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		// Ledger corruption cannot be repaired automatically
		if err := j.db.HealthCheck(ctx); err != nil {
			j.log.Error().Err(err).Msg("Ledger integrity check failed")
			return err
		}
		if err := j.db.WALCheckpoint("TRUNCATE"); err != nil {
			j.log.Warn().Err(err).Msg("WAL checkpoint failed")
		}
		if stats, err := j.db.GetStats(); err == nil {
			j.log.Info().
				Int64("size_bytes", stats.SizeBytes).
				Int64("wal_size_bytes", stats.WALSizeBytes).
				Int64("freelist_count", stats.FreelistCount).
				Msg("Ledger metrics")
		}
	}

	if err := j.checkDiskSpace(); err != nil {
		return err
	}

	j.log.Info().Dur("duration_ms", time.Since(startTime)).Msg("Ledger maintenance completed")
	return nil
}

// checkDiskSpace fails when the data directory is nearly full: the daily
// state file could no longer be written.
func (j *LedgerMaintenanceJob) checkDiskSpace() error {
	if j.dataDir == "" {
		return nil
	}
	usage, err := disk.Usage(j.dataDir)
	if err != nil {
		return fmt.Errorf("failed to stat filesystem: %w", err)
	}

	availableGB := float64(usage.Free) / 1e9
	j.log.Debug().Float64("available_gb", availableGB).Msg("Disk space check")

	if usage.Free < j.criticalFreeBytes {
		j.log.Error().Float64("available_gb", availableGB).Msg("CRITICAL: Insufficient disk space")
		return fmt.Errorf("only %.2f GB free in %s", availableGB, j.dataDir)
	}
	if usage.Free < j.lowFreeBytes {
		j.log.Warn().Float64("available_gb", availableGB).Msg("Disk space running low")
	}
	return nil
}
