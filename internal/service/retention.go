package service

import (
	"context"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"paperstack/internal/backup"
	"paperstack/internal/database"
	"paperstack/internal/notify"
	"paperstack/internal/storage"
	"paperstack/internal/types"
	"paperstack/logger"
	"time"
)

type (
	// RetentionCleaner deletes completed backups older than the retention
	// window. Pending, running and failed jobs are never touched.
	RetentionCleaner interface {
		Run(ctx context.Context) (int, error)
	}

	retentionCleaner struct {
		settings SettingsService
		jobs     database.BackupJobRepository
		storage  storage.Storage
		notifier notify.Notifier
		now      func() time.Time
	}

	cleanupNotification struct {
		Deleted       int
		RetentionDays int
		RanAt         string
	}
)

func NewRetentionCleaner(settings SettingsService, jobs database.BackupJobRepository,
	st storage.Storage, notifier notify.Notifier) RetentionCleaner {
	return &retentionCleaner{
		settings: settings,
		jobs:     jobs,
		storage:  st,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run performs one cleanup pass and returns the number of backups removed. The
// archive is deleted before the record so a failed blob delete leaves the job
// visible for the next pass. A cancelled pass still records last_cleanup and
// reports what it removed.
func (r *retentionCleaner) Run(ctx context.Context) (int, error) {
	settings, err := r.settings.Get(ctx)
	if err != nil {
		return 0, err
	}
	if !settings.AutoDelete {
		logger.Debug("auto delete disabled, skipping cleanup")
		return 0, nil
	}

	ranAt := r.now()
	cutoff := ranAt.Add(-time.Duration(settings.RetentionDays) * 24 * time.Hour)
	expired, err := r.jobs.FindCompletedBefore(ctx, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "failed to find expired backups")
	}

	deleted, runErr := r.deleteExpired(ctx, expired)

	finalCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()

	if err := r.settings.MarkCleanup(finalCtx, ranAt); err != nil {
		return deleted, err
	}

	logger.Info("retention cleanup finished",
		zap.Int("deleted", deleted),
		zap.Int("candidates", len(expired)),
		zap.Int("retention_days", settings.RetentionDays),
		zap.Bool("interrupted", runErr != nil))

	if deleted > 0 && settings.EmailNotifications && settings.NotificationEmail != nil {
		err := r.notifier.Notify(finalCtx, *settings.NotificationEmail, notify.TemplateCleanup, cleanupNotification{
			Deleted:       deleted,
			RetentionDays: settings.RetentionDays,
			RanAt:         ranAt.Format(time.RFC3339),
		})
		if err != nil {
			logger.Warn("failed to send cleanup notification", zap.Error(err))
		}
	}
	return deleted, runErr
}

func (r *retentionCleaner) deleteExpired(ctx context.Context, expired []*types.BackupJob) (int, error) {
	deleted := 0
	for _, job := range expired {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}

		key := backup.ArchiveKey(job.ID)
		if err := r.storage.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
			logger.Warn("failed to delete expired archive, keeping record",
				zap.String("job", job.ID.String()),
				zap.String("key", key),
				zap.Error(err))
			continue
		}

		if err := r.jobs.Delete(ctx, job.ID); err != nil {
			logger.Error("failed to delete expired backup record",
				zap.String("job", job.ID.String()),
				zap.Error(err))
			continue
		}
		deleted++
	}
	return deleted, nil
}
