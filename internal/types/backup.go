package types

import (
	"github.com/google/uuid"
	"time"
)

const (
	// SystemPrincipal is recorded as created_by for scheduler triggered jobs.
	SystemPrincipal = "system"

	// SettingsID is the primary key of the one logical backup_settings row.
	SettingsID uint = 1
)

type (
	Frequency  string
	BackupType string
	JobStatus  string
	SourceKind string
)

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyManual  Frequency = "manual"

	BackupTypeFull      BackupType = "full"
	BackupTypeDocuments BackupType = "documents"

	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"

	SourceKindDocument     SourceKind = "document"
	SourceKindProfileImage SourceKind = "profile-image"
	SourceKindTableExport  SourceKind = "table-export"
)

func (t BackupType) Valid() bool {
	return t == BackupTypeFull || t == BackupTypeDocuments
}

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyManual:
		return true
	}
	return false
}

func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

type (
	BackupSettings struct {
		ID                 uint       `json:"-" gorm:"primaryKey"`
		Frequency          Frequency  `json:"frequency"`
		BackupTime         string     `json:"backup_time"`
		RetentionDays      int        `json:"retention_days"`
		AutoDelete         bool       `json:"auto_delete"`
		CompressBackups    bool       `json:"compress_backups"`
		EmailNotifications bool       `json:"email_notifications"`
		NotificationEmail  *string    `json:"notification_email"`
		LastCleanup        *time.Time `json:"last_cleanup"`
		CreatedAt          time.Time  `json:"created_at"`
		UpdatedAt          time.Time  `json:"updated_at"`
	}

	// BackupSettingsPatch carries the fields of a partial settings update. Nil
	// fields are left untouched.
	BackupSettingsPatch struct {
		Frequency          *Frequency `json:"frequency" validate:"omitempty,oneof=daily weekly monthly manual"`
		BackupTime         *string    `json:"backup_time" validate:"omitempty,clock"`
		RetentionDays      *int       `json:"retention_days" validate:"omitempty,min=1,max=365"`
		AutoDelete         *bool      `json:"auto_delete"`
		CompressBackups    *bool      `json:"compress_backups"`
		EmailNotifications *bool      `json:"email_notifications"`
		NotificationEmail  *string    `json:"notification_email"`
	}

	BackupJob struct {
		ID           uuid.UUID  `json:"id" gorm:"primaryKey"`
		Type         BackupType `json:"type" gorm:"index"`
		Status       JobStatus  `json:"status" gorm:"index"`
		CreatedBy    string     `json:"created_by"`
		CreatedAt    time.Time  `json:"created_at"`
		StartedAt    *time.Time `json:"started_at"`
		HeartbeatAt  *time.Time `json:"-"`
		CompletedAt  *time.Time `json:"completed_at" gorm:"index"`
		FileCount    int        `json:"file_count"`
		TotalSize    int64      `json:"total_size"`
		DownloadURL  *string    `json:"download_url"`
		ErrorMessage *string    `json:"error_message"`
	}

	// JobResult is what a successful run writes onto its job row.
	JobResult struct {
		FileCount   int
		TotalSize   int64
		DownloadURL string
		CompletedAt time.Time
	}

	ManifestEntry struct {
		Name       string     `json:"name"`
		SourceKind SourceKind `json:"source_kind"`
		SizeBytes  int64      `json:"size_bytes"`
	}

	Manifest struct {
		JobID     uuid.UUID       `json:"job_id"`
		Scope     BackupType      `json:"scope"`
		CreatedAt time.Time       `json:"created_at"`
		FileCount int             `json:"file_count"`
		TotalSize int64           `json:"total_size"`
		Files     []ManifestEntry `json:"files"`
	}
)

func (BackupSettings) TableName() string {
	return "backup_settings"
}

func (BackupJob) TableName() string {
	return "backup_jobs"
}

// DefaultBackupSettings returns the documented built-in policy.
func DefaultBackupSettings() *BackupSettings {
	return &BackupSettings{
		ID:                 SettingsID,
		Frequency:          FrequencyWeekly,
		BackupTime:         "02:00",
		RetentionDays:      30,
		AutoDelete:         true,
		CompressBackups:    true,
		EmailNotifications: false,
		NotificationEmail:  nil,
	}
}

func (p BackupSettingsPatch) Empty() bool {
	return p.Frequency == nil && p.BackupTime == nil && p.RetentionDays == nil &&
		p.AutoDelete == nil && p.CompressBackups == nil &&
		p.EmailNotifications == nil && p.NotificationEmail == nil
}
