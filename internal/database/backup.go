package database

import (
	"context"
	"errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"paperstack/internal/types"
	"time"
)

type (
	backupSettingsRepository struct {
		db *gorm.DB
	}

	backupJobRepository struct {
		db *gorm.DB
	}
)

func NewBackupSettingsRepository(db *gorm.DB) BackupSettingsRepository {
	return &backupSettingsRepository{db: db}
}

func (b backupSettingsRepository) Find(ctx context.Context) (*types.BackupSettings, error) {
	settings := &types.BackupSettings{}
	err := b.db.WithContext(ctx).Where("id = ?", types.SettingsID).First(settings).Error
	return settings, err
}

func (b backupSettingsRepository) FindOrCreate(ctx context.Context, defaults *types.BackupSettings) (*types.BackupSettings, error) {
	settings, err := b.Find(ctx)
	if err == nil {
		return settings, nil
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// two concurrent first reads race on the fixed primary key; the loser keeps
	// the winner's row.
	defaults.ID = types.SettingsID
	err = b.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(defaults).Error
	if err != nil {
		return nil, err
	}
	return b.Find(ctx)
}

func (b backupSettingsRepository) Save(ctx context.Context, settings *types.BackupSettings) error {
	settings.ID = types.SettingsID
	return b.db.WithContext(ctx).Save(settings).Error
}

func (b backupSettingsRepository) UpdateLastCleanup(ctx context.Context, at time.Time) error {
	return b.db.WithContext(ctx).
		Model(&types.BackupSettings{}).
		Where("id = ?", types.SettingsID).
		Update("last_cleanup", at).Error
}

func NewBackupJobRepository(db *gorm.DB) BackupJobRepository {
	return &backupJobRepository{db: db}
}

func (b backupJobRepository) Save(ctx context.Context, job *types.BackupJob) error {
	return b.db.WithContext(ctx).Save(job).Error
}

func (b backupJobRepository) FindByID(ctx context.Context, id uuid.UUID) (*types.BackupJob, error) {
	job := &types.BackupJob{}
	err := b.db.WithContext(ctx).Where("id = ?", id).First(job).Error
	return job, err
}

func (b backupJobRepository) FindAll(ctx context.Context, limit int) ([]*types.BackupJob, error) {
	result := make([]*types.BackupJob, 0)
	q := b.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&result).Error
	return result, err
}

func (b backupJobRepository) FindByStatus(ctx context.Context, statuses ...types.JobStatus) ([]*types.BackupJob, error) {
	result := make([]*types.BackupJob, 0)
	err := b.db.WithContext(ctx).
		Where("status IN ?", statuses).
		Order("created_at ASC").
		Find(&result).Error
	return result, err
}

func (b backupJobRepository) FindStaleRunning(ctx context.Context, before time.Time) ([]*types.BackupJob, error) {
	result := make([]*types.BackupJob, 0)
	err := b.db.WithContext(ctx).
		Where("status = ? AND COALESCE(heartbeat_at, started_at, created_at) < ?", types.JobStatusRunning, before).
		Find(&result).Error
	return result, err
}

func (b backupJobRepository) FindCompletedBefore(ctx context.Context, cutoff time.Time) ([]*types.BackupJob, error) {
	result := make([]*types.BackupJob, 0)
	err := b.db.WithContext(ctx).
		Where("status = ? AND completed_at IS NOT NULL AND completed_at < ?", types.JobStatusCompleted, cutoff).
		Order("completed_at ASC").
		Find(&result).Error
	return result, err
}

// FindLatestCompleted returns nil without an error when no job has completed yet.
func (b backupJobRepository) FindLatestCompleted(ctx context.Context) (*types.BackupJob, error) {
	job := &types.BackupJob{}
	err := b.db.WithContext(ctx).
		Where("status = ?", types.JobStatusCompleted).
		Order("completed_at DESC").
		First(job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return job, err
}

func (b backupJobRepository) CountActive(ctx context.Context, createdBy string) (int64, error) {
	var count int64
	err := b.db.WithContext(ctx).
		Model(&types.BackupJob{}).
		Where("created_by = ? AND status IN ?", createdBy, []types.JobStatus{types.JobStatusPending, types.JobStatusRunning}).
		Count(&count).Error
	return count, err
}

func (b backupJobRepository) SumCompletedSize(ctx context.Context) (int64, error) {
	var total int64
	err := b.db.WithContext(ctx).
		Model(&types.BackupJob{}).
		Where("status = ?", types.JobStatusCompleted).
		Select("COALESCE(SUM(total_size), 0)").
		Scan(&total).Error
	return total, err
}

func (b backupJobRepository) MarkRunning(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	result := b.db.WithContext(ctx).
		Model(&types.BackupJob{}).
		Where("id = ? AND status = ?", id, types.JobStatusPending).
		Updates(map[string]interface{}{
			"status":       types.JobStatusRunning,
			"started_at":   at,
			"heartbeat_at": at,
		})
	return result.RowsAffected == 1, result.Error
}

func (b backupJobRepository) Heartbeat(ctx context.Context, id uuid.UUID, at time.Time) error {
	return b.db.WithContext(ctx).
		Model(&types.BackupJob{}).
		Where("id = ? AND status = ?", id, types.JobStatusRunning).
		Update("heartbeat_at", at).Error
}

func (b backupJobRepository) Complete(ctx context.Context, id uuid.UUID, res types.JobResult) (bool, error) {
	result := b.db.WithContext(ctx).
		Model(&types.BackupJob{}).
		Where("id = ? AND status = ?", id, types.JobStatusRunning).
		Updates(map[string]interface{}{
			"status":        types.JobStatusCompleted,
			"file_count":    res.FileCount,
			"total_size":    res.TotalSize,
			"download_url":  res.DownloadURL,
			"completed_at":  res.CompletedAt,
			"error_message": nil,
		})
	return result.RowsAffected == 1, result.Error
}

// Fail moves the job to failed from any of the given statuses (running when none
// are given).
func (b backupJobRepository) Fail(ctx context.Context, id uuid.UUID, message string, at time.Time, from ...types.JobStatus) (bool, error) {
	if len(from) == 0 {
		from = []types.JobStatus{types.JobStatusRunning}
	}

	result := b.db.WithContext(ctx).
		Model(&types.BackupJob{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(map[string]interface{}{
			"status":        types.JobStatusFailed,
			"error_message": message,
			"completed_at":  at,
		})
	return result.RowsAffected == 1, result.Error
}

func (b backupJobRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return b.db.WithContext(ctx).Where("id = ?", id).Delete(&types.BackupJob{}).Error
}
