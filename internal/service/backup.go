package service

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"os"
	"paperstack/internal/backup"
	"paperstack/internal/database"
	"paperstack/internal/eventbus"
	"paperstack/internal/notify"
	"paperstack/internal/storage"
	"paperstack/internal/types"
	"paperstack/logger"
	"time"
)

const (
	archiveContentType = "application/zip"
	finalizeTimeout    = 30 * time.Second
)

var ErrBackupNotReady = errors.New("backup has not completed")

type (
	BackupService interface {
		Start(ctx context.Context) error
		Stop()
		Create(ctx context.Context, backupType types.BackupType, createdBy string) (*types.BackupJob, error)
		Execute(ctx context.Context, jobID uuid.UUID) error
		Get(ctx context.Context, jobID uuid.UUID) (*types.BackupJob, error)
		List(ctx context.Context, limit int) ([]*types.BackupJob, error)
		Download(ctx context.Context, jobID uuid.UUID) (*types.File, error)
		Stats(ctx context.Context) (*types.BackupStats, error)
		HasActive(ctx context.Context, createdBy string) (bool, error)
		ReconcileStale(ctx context.Context) (int, error)
		Recover(ctx context.Context) (int, error)
	}

	BackupOptions struct {
		Workers           int
		QueueSize         int
		JobTimeout        time.Duration
		StaleCeiling      time.Duration
		HeartbeatInterval time.Duration
	}

	backupService struct {
		jobs     database.BackupJobRepository
		settings SettingsService
		builder  backup.Builder
		storage  storage.Storage
		notifier notify.Notifier
		events   eventbus.Bus
		pool     *backup.Pool
		opts     BackupOptions
		now      func() time.Time
	}

	jobNotification struct {
		JobID       string
		Type        types.BackupType
		CompletedAt string
		FileCount   int
		TotalSize   int64
		DownloadURL string
		Error       string
	}
)

func NewBackupService(jobs database.BackupJobRepository, settings SettingsService, builder backup.Builder,
	st storage.Storage, notifier notify.Notifier, events eventbus.Bus, opts BackupOptions) BackupService {
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 2 * time.Hour
	}
	if opts.StaleCeiling <= 0 {
		opts.StaleCeiling = 15 * time.Minute
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = opts.StaleCeiling / 3
	}

	return &backupService{
		jobs:     jobs,
		settings: settings,
		builder:  builder,
		storage:  st,
		notifier: notifier,
		events:   events,
		pool:     backup.NewPool(opts.Workers, opts.QueueSize),
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start launches the workers and picks up what a previous process left behind:
// running jobs past the stale ceiling are failed, pending ones are dispatched.
func (b *backupService) Start(ctx context.Context) error {
	b.pool.Start(ctx, b.Execute, b.onPanic)

	if _, err := b.ReconcileStale(ctx); err != nil {
		return err
	}
	_, err := b.Recover(ctx)
	return err
}

// Recover re-dispatches pending jobs left in the table by a previous process.
func (b *backupService) Recover(ctx context.Context) (int, error) {
	pending, err := b.jobs.FindByStatus(ctx, types.JobStatusPending)
	if err != nil {
		return 0, errors.Wrap(err, "failed to load pending backups")
	}

	for _, job := range pending {
		logger.Info("resuming pending backup", zap.String("job", job.ID.String()))
		b.dispatch(ctx, job)
	}
	return len(pending), nil
}

func (b *backupService) Stop() {
	b.pool.Stop()
}

func (b *backupService) Create(ctx context.Context, backupType types.BackupType, createdBy string) (*types.BackupJob, error) {
	if !backupType.Valid() {
		return nil, &backup.InvalidScopeError{Type: string(backupType)}
	}

	job := &types.BackupJob{
		ID:        uuid.New(),
		Type:      backupType,
		Status:    types.JobStatusPending,
		CreatedBy: createdBy,
		CreatedAt: b.now(),
	}
	if err := b.jobs.Save(ctx, job); err != nil {
		return nil, errors.Wrap(err, "failed to create backup job")
	}

	logger.Info("backup job created",
		zap.String("job", job.ID.String()),
		zap.String("type", string(job.Type)),
		zap.String("created_by", createdBy))
	b.publish(job.ID, types.JobStatusPending, "backup queued")
	b.dispatch(ctx, job)
	return job, nil
}

// dispatch hands the job to the pool. A job the pool cannot take is failed right
// away rather than left pending with nobody to run it.
func (b *backupService) dispatch(ctx context.Context, job *types.BackupJob) {
	err := b.pool.Submit(job.ID)
	if err == nil {
		return
	}

	message := "failed to dispatch backup: " + err.Error()
	logger.Error("backup dispatch failed",
		zap.String("job", job.ID.String()),
		zap.Error(err))

	at := b.now()
	if _, ferr := b.jobs.Fail(ctx, job.ID, message, at, types.JobStatusPending); ferr != nil {
		logger.Error("failed to record dispatch failure", zap.Error(ferr))
		return
	}
	job.Status = types.JobStatusFailed
	job.ErrorMessage = &message
	job.CompletedAt = &at
	b.publish(job.ID, types.JobStatusFailed, message)
}

// Execute runs a pending job to completion. Every failure after the job has
// started is recorded on the job row; the returned error is informational.
func (b *backupService) Execute(ctx context.Context, jobID uuid.UUID) error {
	job, err := b.jobs.FindByID(ctx, jobID)
	if err != nil {
		return errors.Wrap(err, "failed to load backup job")
	}

	started, err := b.jobs.MarkRunning(ctx, jobID, b.now())
	if err != nil {
		return errors.Wrap(err, "failed to start backup job")
	}
	if !started {
		logger.Info("backup job is not pending, skipping",
			zap.String("job", jobID.String()))
		return backup.ErrJobNotPending
	}
	b.publish(jobID, types.JobStatusRunning, "backup started")

	runCtx, cancel := context.WithTimeout(ctx, b.opts.JobTimeout)
	defer cancel()

	stopHeartbeat := b.heartbeat(runCtx, jobID)
	result, runErr := b.run(runCtx, job)
	stopHeartbeat()

	if runErr != nil {
		message := b.describe(runCtx, runErr)
		b.fail(job, message)
		return errors.New(message)
	}

	b.complete(job, result)
	return nil
}

func (b *backupService) run(ctx context.Context, job *types.BackupJob) (types.JobResult, error) {
	archive, err := b.builder.Build(ctx, job.ID, job.Type)
	if err != nil {
		return types.JobResult{}, err
	}

	defer func() {
		if err := os.Remove(archive.Path); err != nil && !os.IsNotExist(err) {
			logger.Warn("failed to remove staged archive",
				zap.String("path", archive.Path),
				zap.Error(err))
		}
	}()

	fi, err := os.Open(archive.Path)
	if err != nil {
		return types.JobResult{}, errors.Wrap(err, "failed to open staged archive")
	}

	defer func() {
		_ = fi.Close()
	}()

	key := backup.ArchiveKey(job.ID)
	err = b.storage.Save(ctx, key, types.File{
		Content: fi,
		Stat: types.FileStat{
			Size:        archive.Size,
			Name:        key,
			ContentType: archiveContentType,
		},
	})
	if err != nil {
		b.discard(key)
		return types.JobResult{}, &backup.UploadError{Key: key, Err: err}
	}

	return types.JobResult{
		FileCount:   archive.Manifest.FileCount,
		TotalSize:   archive.Manifest.TotalSize,
		DownloadURL: b.storage.URL(key),
		CompletedAt: b.now(),
	}, nil
}

func (b *backupService) describe(runCtx context.Context, err error) string {
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return (&backup.TimeoutError{After: b.opts.JobTimeout}).Error()
	}
	if errors.Is(runCtx.Err(), context.Canceled) || errors.Is(err, context.Canceled) {
		return "backup interrupted: worker stopped before completion"
	}
	return err.Error()
}

func (b *backupService) complete(job *types.BackupJob, result types.JobResult) {
	ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()

	ok, err := b.jobs.Complete(ctx, job.ID, result)
	if err != nil {
		logger.Error("failed to record backup completion",
			zap.String("job", job.ID.String()),
			zap.Error(err))
		return
	}
	if !ok {
		// reconciliation failed the job while it was still uploading
		logger.Warn("backup finished after it was marked failed, discarding archive",
			zap.String("job", job.ID.String()))
		b.discard(backup.ArchiveKey(job.ID))
		return
	}

	logger.Info("backup completed",
		zap.String("job", job.ID.String()),
		zap.Int("files", result.FileCount),
		zap.Int64("size", result.TotalSize))
	b.publish(job.ID, types.JobStatusCompleted, "backup completed")
	b.notify(ctx, notify.TemplateBackupCompleted, jobNotification{
		JobID:       job.ID.String(),
		Type:        job.Type,
		CompletedAt: result.CompletedAt.Format(time.RFC3339),
		FileCount:   result.FileCount,
		TotalSize:   result.TotalSize,
		DownloadURL: result.DownloadURL,
	})
}

func (b *backupService) fail(job *types.BackupJob, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()

	at := b.now()
	ok, err := b.jobs.Fail(ctx, job.ID, message, at)
	if err != nil {
		logger.Error("failed to record backup failure",
			zap.String("job", job.ID.String()),
			zap.Error(err))
		return
	}
	if !ok {
		return
	}

	logger.Error("backup failed",
		zap.String("job", job.ID.String()),
		zap.String("reason", message))
	b.publish(job.ID, types.JobStatusFailed, message)
	b.notify(ctx, notify.TemplateBackupFailed, jobNotification{
		JobID:       job.ID.String(),
		Type:        job.Type,
		CompletedAt: at.Format(time.RFC3339),
		Error:       message,
	})
}

func (b *backupService) onPanic(jobID uuid.UUID, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()

	_, ferr := b.jobs.Fail(ctx, jobID, err.Error(), b.now(), types.JobStatusPending, types.JobStatusRunning)
	if ferr != nil {
		logger.Error("failed to record backup panic", zap.Error(ferr))
		return
	}
	b.publish(jobID, types.JobStatusFailed, err.Error())
}

// heartbeat keeps heartbeat_at fresh until the returned stop func is called.
func (b *backupService) heartbeat(ctx context.Context, jobID uuid.UUID) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(b.opts.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := b.jobs.Heartbeat(ctx, jobID, b.now()); err != nil && ctx.Err() == nil {
					logger.Warn("backup heartbeat failed",
						zap.String("job", jobID.String()),
						zap.Error(err))
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func (b *backupService) discard(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()
	if err := b.storage.Delete(ctx, key); err != nil {
		logger.Warn("failed to discard archive",
			zap.String("key", key),
			zap.Error(err))
	}
}

func (b *backupService) notify(ctx context.Context, tmpl notify.Template, data interface{}) {
	settings, err := b.settings.Get(ctx)
	if err != nil {
		logger.Warn("skipping notification, settings unavailable", zap.Error(err))
		return
	}
	if !settings.EmailNotifications || settings.NotificationEmail == nil {
		return
	}

	if err := b.notifier.Notify(ctx, *settings.NotificationEmail, tmpl, data); err != nil {
		logger.Warn("failed to send notification",
			zap.String("template", string(tmpl)),
			zap.Error(err))
	}
}

func (b *backupService) publish(jobID uuid.UUID, status types.JobStatus, message string) {
	if b.events == nil {
		return
	}

	data, _ := json.Marshal(types.JobEvent{JobID: jobID.String(), Status: status, At: b.now()})
	evType := eventbus.Info
	switch status {
	case types.JobStatusCompleted:
		evType = eventbus.Complete
	case types.JobStatusFailed:
		evType = eventbus.Error
	}
	b.events.BroadcastWithData(jobID.String(), evType, message, data)
}

func (b *backupService) Get(ctx context.Context, jobID uuid.UUID) (*types.BackupJob, error) {
	return b.jobs.FindByID(ctx, jobID)
}

func (b *backupService) List(ctx context.Context, limit int) ([]*types.BackupJob, error) {
	return b.jobs.FindAll(ctx, limit)
}

func (b *backupService) Download(ctx context.Context, jobID uuid.UUID) (*types.File, error) {
	job, err := b.jobs.FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != types.JobStatusCompleted {
		return nil, errors.Wrap(ErrBackupNotReady, fmt.Sprintf("backup %s is %s", jobID, job.Status))
	}
	return b.storage.Get(ctx, backup.ArchiveKey(jobID))
}

func (b *backupService) Stats(ctx context.Context) (*types.BackupStats, error) {
	settings, err := b.settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	latest, err := b.jobs.FindLatestCompleted(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load latest backup")
	}

	stats := &types.BackupStats{
		BackupFrequency: settings.Frequency,
		StorageUsed:     b.storageUsed(ctx),
	}
	if latest != nil {
		stats.TotalFiles = latest.FileCount
		stats.TotalSize = latest.TotalSize
		stats.LastBackup = latest.CompletedAt
	}

	next, ok, err := backup.NextTrigger(settings.Frequency, settings.BackupTime, b.now())
	if err != nil {
		logger.Warn("failed to compute next backup", zap.Error(err))
	} else if ok {
		stats.NextScheduled = &next
	}
	return stats, nil
}

// storageUsed sums the archives in the blob store, falling back to the sizes
// recorded on completed jobs when the store cannot be listed.
func (b *backupService) storageUsed(ctx context.Context) int64 {
	objects, err := b.storage.List(ctx, backup.ArchivePrefix)
	if err == nil {
		var total int64
		for _, obj := range objects {
			total += obj.Size
		}
		return total
	}

	logger.Warn("failed to list backup archives", zap.Error(err))
	total, err := b.jobs.SumCompletedSize(ctx)
	if err != nil {
		logger.Warn("failed to sum backup sizes", zap.Error(err))
		return 0
	}
	return total
}

func (b *backupService) HasActive(ctx context.Context, createdBy string) (bool, error) {
	count, err := b.jobs.CountActive(ctx, createdBy)
	return count > 0, err
}

// ReconcileStale fails running jobs whose heartbeat is older than the stale
// ceiling. Their worker is assumed dead.
func (b *backupService) ReconcileStale(ctx context.Context) (int, error) {
	stale, err := b.jobs.FindStaleRunning(ctx, b.now().Add(-b.opts.StaleCeiling))
	if err != nil {
		return 0, errors.Wrap(err, "failed to find stale backups")
	}

	count := 0
	message := fmt.Sprintf("backup timed out: no heartbeat for %s", b.opts.StaleCeiling)
	for _, job := range stale {
		ok, err := b.jobs.Fail(ctx, job.ID, message, b.now())
		if err != nil {
			logger.Error("failed to fail stale backup",
				zap.String("job", job.ID.String()),
				zap.Error(err))
			continue
		}
		if ok {
			count++
			logger.Warn("stale backup marked failed", zap.String("job", job.ID.String()))
			b.publish(job.ID, types.JobStatusFailed, message)
		}
	}
	return count, nil
}
