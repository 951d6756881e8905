package di

import (
	"context"
	"fmt"

	"github.com/aristath/restock/internal/config"
	"github.com/aristath/restock/internal/reliability"
	"github.com/aristath/restock/internal/scheduler"
	"github.com/rs/zerolog"
)

// Cron schedules (seconds field first)
const (
	RolloverSchedule          = "5 0 0 * * *"
	HeartbeatSchedule         = "@hourly"
	ArchiveUploadSchedule     = "0 30 2 * * *"
	LedgerMaintenanceSchedule = "0 0 3 * * *"
)

// RegisterJobs creates the background jobs and adds them to the scheduler.
// The archive upload job is only registered when R2 credentials are set,
// unless the container already carries an ArchiveStore.
func RegisterJobs(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil || container.StateStore == nil || container.Loop == nil {
		return fmt.Errorf("services must be initialized before jobs")
	}

	container.Scheduler = scheduler.New(cfg.Location, log)

	container.RolloverJob = scheduler.NewDailyRolloverJob(container.StateStore, log)
	if err := container.Scheduler.AddJob(RolloverSchedule, container.RolloverJob); err != nil {
		return fmt.Errorf("failed to register daily rollover job: %w", err)
	}

	container.HeartbeatJob = scheduler.NewHeartbeatJob(container.Loop, container.Cooldowns, log)
	if err := container.Scheduler.AddJob(HeartbeatSchedule, container.HeartbeatJob); err != nil {
		return fmt.Errorf("failed to register heartbeat job: %w", err)
	}

	container.LedgerUpkeep = reliability.NewLedgerMaintenanceJob(container.LedgerDB, cfg.DataDir, log)
	if err := container.Scheduler.AddJob(LedgerMaintenanceSchedule, container.LedgerUpkeep); err != nil {
		return fmt.Errorf("failed to register ledger maintenance job: %w", err)
	}

	if container.ArchiveStore == nil && cfg.R2.Enabled() {
		client, err := reliability.NewR2Client(ctx, reliability.R2Config{
			AccountID:       cfg.R2.AccountID,
			AccessKeyID:     cfg.R2.AccessKeyID,
			SecretAccessKey: cfg.R2.SecretAccessKey,
			Bucket:          cfg.R2.Bucket,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to create R2 client: %w", err)
		}
		container.ArchiveStore = client
	}
	if container.ArchiveStore == nil {
		log.Info().Msg("R2 credentials not configured, archive upload disabled")
		return nil
	}

	uploader := reliability.NewArchiveUploader(container.ArchiveStore, cfg.ArchiveDir(), cfg.ScreenshotDir, log)
	container.ArchiveUpload = reliability.NewArchiveUploadJob(uploader, cfg.ArchiveRetentionDays, log)
	if err := container.Scheduler.AddJob(ArchiveUploadSchedule, container.ArchiveUpload); err != nil {
		return fmt.Errorf("failed to register archive upload job: %w", err)
	}
	return nil
}
