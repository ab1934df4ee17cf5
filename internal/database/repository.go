package database

import (
	"context"
	"github.com/google/uuid"
	"paperstack/internal/types"
	"time"
)

type BackupSettingsRepository interface {
	Find(ctx context.Context) (*types.BackupSettings, error)
	FindOrCreate(ctx context.Context, defaults *types.BackupSettings) (*types.BackupSettings, error)
	Save(ctx context.Context, settings *types.BackupSettings) error
	UpdateLastCleanup(ctx context.Context, at time.Time) error
}

type BackupJobRepository interface {
	Save(ctx context.Context, job *types.BackupJob) error
	FindByID(ctx context.Context, id uuid.UUID) (*types.BackupJob, error)
	FindAll(ctx context.Context, limit int) ([]*types.BackupJob, error)
	FindByStatus(ctx context.Context, statuses ...types.JobStatus) ([]*types.BackupJob, error)
	FindStaleRunning(ctx context.Context, before time.Time) ([]*types.BackupJob, error)
	FindCompletedBefore(ctx context.Context, cutoff time.Time) ([]*types.BackupJob, error)
	FindLatestCompleted(ctx context.Context) (*types.BackupJob, error)
	CountActive(ctx context.Context, createdBy string) (int64, error)
	SumCompletedSize(ctx context.Context) (int64, error)

	// MarkRunning moves a pending job to running. It reports false when the job
	// was not pending, which makes a second dispatch of the same job a no-op.
	MarkRunning(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	Heartbeat(ctx context.Context, id uuid.UUID, at time.Time) error
	Complete(ctx context.Context, id uuid.UUID, result types.JobResult) (bool, error)
	Fail(ctx context.Context, id uuid.UUID, message string, at time.Time, from ...types.JobStatus) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type DocumentRepository interface {
	FindAll(ctx context.Context) ([]*types.Document, error)
}

type UserRepository interface {
	FindAll(ctx context.Context) ([]*types.User, error)
}

type StaffRepository interface {
	FindAll(ctx context.Context) ([]*types.Staff, error)
}
