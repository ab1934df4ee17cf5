package types

import (
	"time"
)

type (
	CreateBackupParams struct {
		Type BackupType `json:"type"`
	}

	CreateBackupResponse struct {
		BackupID string `json:"backup_id"`
	}

	BackupStats struct {
		TotalFiles      int        `json:"total_files"`
		TotalSize       int64      `json:"total_size"`
		LastBackup      *time.Time `json:"last_backup"`
		BackupFrequency Frequency  `json:"backup_frequency"`
		StorageUsed     int64      `json:"storage_used"`
		NextScheduled   *time.Time `json:"next_scheduled"`
	}

	// JobEvent is published on the event bus whenever a job changes state.
	JobEvent struct {
		JobID  string    `json:"job_id"`
		Status JobStatus `json:"status"`
		At     time.Time `json:"at"`
	}
)
