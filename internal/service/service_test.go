package service

import (
	"context"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"io"
	"paperstack/internal/backup"
	"paperstack/internal/database"
	"paperstack/internal/eventbus"
	"paperstack/internal/notify"
	"paperstack/internal/storage"
	"paperstack/internal/types"
	"strings"
	"sync"
	"testing"
	"time"
)

type (
	sentNotification struct {
		To       string
		Template notify.Template
		Data     interface{}
	}

	recordingNotifier struct {
		lock sync.Mutex
		sent []sentNotification
	}

	// flakyStorage fails the operations that have an error configured.
	flakyStorage struct {
		storage.Storage
		saveErr   error
		deleteErr error
	}

	builderFunc func(ctx context.Context, jobID uuid.UUID, scope types.BackupType) (*backup.Archive, error)

	harness struct {
		db       *gorm.DB
		jobs     database.BackupJobRepository
		settings SettingsService
		content  storage.Storage
		backups  storage.Storage
		notifier *recordingNotifier
		events   eventbus.Bus
	}
)

func (r *recordingNotifier) Notify(ctx context.Context, to string, tmpl notify.Template, data interface{}) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.sent = append(r.sent, sentNotification{To: to, Template: tmpl, Data: data})
	return nil
}

func (r *recordingNotifier) Sent() []sentNotification {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]sentNotification(nil), r.sent...)
}

func (f *flakyStorage) Save(ctx context.Context, location string, file types.File) error {
	if f.saveErr != nil {
		_, _ = io.Copy(io.Discard, file.Content)
		return f.saveErr
	}
	return f.Storage.Save(ctx, location, file)
}

func (f *flakyStorage) Delete(ctx context.Context, location string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.Storage.Delete(ctx, location)
}

func (fn builderFunc) Build(ctx context.Context, jobID uuid.UUID, scope types.BackupType) (*backup.Archive, error) {
	return fn(ctx, jobID, scope)
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	return &harness{
		db:       db,
		jobs:     database.NewBackupJobRepository(db),
		settings: NewSettingsService(database.NewBackupSettingsRepository(db)),
		content:  storage.NewMemoryStorage(),
		backups:  storage.NewMemoryStorage(),
		notifier: &recordingNotifier{},
		events:   eventbus.New(),
	}
}

func (h *harness) builder(t *testing.T) backup.Builder {
	return backup.NewBuilder(
		database.NewDocumentRepository(h.db),
		database.NewUserRepository(h.db),
		database.NewStaffRepository(h.db),
		h.content,
		backup.BuilderOptions{StagingDir: t.TempDir()})
}

func (h *harness) service(t *testing.T, builder backup.Builder, st storage.Storage, opts BackupOptions) *backupService {
	if builder == nil {
		builder = h.builder(t)
	}
	if st == nil {
		st = h.backups
	}
	return NewBackupService(h.jobs, h.settings, builder, st, h.notifier, h.events, opts).(*backupService)
}

func (h *harness) document(t *testing.T, id uint, title, key, content string) {
	t.Helper()
	require.NoError(t, h.db.Create(&types.Document{
		ID:       id,
		Title:    title,
		FileKey:  key,
		FileName: key,
	}).Error)
	if content != "" {
		require.NoError(t, h.content.Save(context.Background(), key, types.File{
			Content: io.NopCloser(strings.NewReader(content)),
			Stat:    types.FileStat{Size: int64(len(content)), Name: key},
		}))
	}
}

func (h *harness) job(t *testing.T, status types.JobStatus, createdBy string, createdAt time.Time) *types.BackupJob {
	t.Helper()
	job := &types.BackupJob{
		ID:        uuid.New(),
		Type:      types.BackupTypeDocuments,
		Status:    status,
		CreatedBy: createdBy,
		CreatedAt: createdAt.UTC(),
	}
	require.NoError(t, h.jobs.Save(context.Background(), job))
	return job
}

func (h *harness) enableNotifications(t *testing.T) {
	t.Helper()
	enabled := true
	email := "admin@uni.edu"
	_, err := h.settings.Update(context.Background(), types.BackupSettingsPatch{
		EmailNotifications: &enabled,
		NotificationEmail:  &email,
	})
	require.NoError(t, err)
}

var errBoom = errors.New("boom")
