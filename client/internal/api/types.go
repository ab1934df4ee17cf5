package api

import (
	"encoding/json"
	"time"
)

type (
	CreateBackupParams struct {
		Type string `json:"type" validate:"required,oneof=full documents"`
	}

	// SettingsPatch holds the settings fields to change. Nil fields are left
	// as they are on the server.
	SettingsPatch struct {
		Frequency          *string `json:"frequency,omitempty" validate:"omitempty,oneof=daily weekly monthly manual"`
		BackupTime         *string `json:"backup_time,omitempty" validate:"omitempty,clock"`
		RetentionDays      *int    `json:"retention_days,omitempty" validate:"omitempty,min=1,max=365"`
		AutoDelete         *bool   `json:"auto_delete,omitempty"`
		CompressBackups    *bool   `json:"compress_backups,omitempty"`
		EmailNotifications *bool   `json:"email_notifications,omitempty"`
		NotificationEmail  *string `json:"notification_email,omitempty" validate:"omitempty,email"`
	}
)

type (
	BackupJob struct {
		ID           string     `json:"id"`
		Type         string     `json:"type"`
		Status       string     `json:"status"`
		CreatedBy    string     `json:"created_by"`
		CreatedAt    time.Time  `json:"created_at"`
		StartedAt    *time.Time `json:"started_at"`
		CompletedAt  *time.Time `json:"completed_at"`
		FileCount    int        `json:"file_count"`
		TotalSize    int64      `json:"total_size"`
		DownloadURL  *string    `json:"download_url"`
		ErrorMessage *string    `json:"error_message"`
	}

	BackupStats struct {
		TotalFiles      int        `json:"total_files"`
		TotalSize       int64      `json:"total_size"`
		LastBackup      *time.Time `json:"last_backup"`
		BackupFrequency string     `json:"backup_frequency"`
		StorageUsed     int64      `json:"storage_used"`
		NextScheduled   *time.Time `json:"next_scheduled"`
	}

	Settings struct {
		Frequency          string     `json:"frequency"`
		BackupTime         string     `json:"backup_time"`
		RetentionDays      int        `json:"retention_days"`
		AutoDelete         bool       `json:"auto_delete"`
		CompressBackups    bool       `json:"compress_backups"`
		EmailNotifications bool       `json:"email_notifications"`
		NotificationEmail  *string    `json:"notification_email"`
		LastCleanup        *time.Time `json:"last_cleanup"`
		UpdatedAt          time.Time  `json:"updated_at"`
	}

	Trigger struct {
		Name    string    `json:"name"`
		NextRun time.Time `json:"next_run"`
	}

	Event struct {
		Type    EventType       `json:"type"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}

	EventType string
)

const (
	Error    EventType = "error"
	Info     EventType = "info"
	Success  EventType = "success"
	Complete EventType = "complete"
)
