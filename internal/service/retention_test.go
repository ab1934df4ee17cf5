package service

import (
	"context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"paperstack/internal/backup"
	"paperstack/internal/notify"
	"paperstack/internal/storage"
	"paperstack/internal/types"
	"strings"
	"testing"
	"time"
)

func (h *harness) completed(t *testing.T, st storage.Storage, completedAt time.Time) *types.BackupJob {
	t.Helper()
	ctx := context.Background()
	job := h.job(t, types.JobStatusPending, "admin", completedAt.Add(-time.Minute))
	_, err := h.jobs.MarkRunning(ctx, job.ID, completedAt.Add(-time.Minute))
	require.NoError(t, err)

	key := backup.ArchiveKey(job.ID)
	require.NoError(t, st.Save(ctx, key, types.File{
		Content: io.NopCloser(strings.NewReader("zip")),
		Stat:    types.FileStat{Size: 3, Name: key},
	}))
	ok, err := h.jobs.Complete(ctx, job.ID, types.JobResult{
		FileCount:   1,
		TotalSize:   3,
		DownloadURL: st.URL(key),
		CompletedAt: completedAt.UTC(),
	})
	require.NoError(t, err)
	require.True(t, ok)
	return job
}

func TestRetentionCleaner_DeletesOnlyExpiredCompleted(t *testing.T) {
	h := newHarness(t)
	h.enableNotifications(t)
	ctx := context.Background()
	now := time.Now().UTC()

	expired := h.completed(t, h.backups, now.Add(-31*24*time.Hour))
	recent := h.completed(t, h.backups, now.Add(-29*24*time.Hour))

	oldFailed := h.job(t, types.JobStatusPending, "admin", now.Add(-60*24*time.Hour))
	_, err := h.jobs.Fail(ctx, oldFailed.ID, "boom", now.Add(-60*24*time.Hour), types.JobStatusPending)
	require.NoError(t, err)
	oldPending := h.job(t, types.JobStatusPending, "admin", now.Add(-60*24*time.Hour))

	cleaner := NewRetentionCleaner(h.settings, h.jobs, h.backups, h.notifier)
	deleted, err := cleaner.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = h.jobs.FindByID(ctx, expired.ID)
	assert.Error(t, err)
	_, err = h.backups.Get(ctx, backup.ArchiveKey(expired.ID))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	for _, kept := range []*types.BackupJob{recent, oldFailed, oldPending} {
		_, err := h.jobs.FindByID(ctx, kept.ID)
		assert.NoError(t, err)
	}
	_, err = h.backups.Get(ctx, backup.ArchiveKey(recent.ID))
	assert.NoError(t, err)

	settings, err := h.settings.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, settings.LastCleanup)

	sent := h.notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, notify.TemplateCleanup, sent[0].Template)
}

func TestRetentionCleaner_BlobFailureKeepsRecord(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	st := &flakyStorage{Storage: h.backups, deleteErr: errBoom}
	job := h.completed(t, st, time.Now().Add(-90*24*time.Hour))

	deleted, err := NewRetentionCleaner(h.settings, h.jobs, st, h.notifier).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)

	stored, err := h.jobs.FindByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusCompleted, stored.Status)

	settings, err := h.settings.Get(ctx)
	require.NoError(t, err)
	assert.NotNil(t, settings.LastCleanup)
	assert.Empty(t, h.notifier.Sent())
}

func TestRetentionCleaner_AutoDeleteDisabled(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	job := h.completed(t, h.backups, time.Now().Add(-90*24*time.Hour))

	off := false
	_, err := h.settings.Update(ctx, types.BackupSettingsPatch{AutoDelete: &off})
	require.NoError(t, err)

	deleted, err := NewRetentionCleaner(h.settings, h.jobs, h.backups, h.notifier).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)

	_, err = h.jobs.FindByID(ctx, job.ID)
	assert.NoError(t, err)

	settings, err := h.settings.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, settings.LastCleanup)
}

// cancellingStorage cancels the pass when it is asked to delete its second archive.
type cancellingStorage struct {
	storage.Storage
	cancel  context.CancelFunc
	deletes int
}

func (c *cancellingStorage) Delete(ctx context.Context, location string) error {
	c.deletes++
	if c.deletes == 2 {
		c.cancel()
		return context.Canceled
	}
	return c.Storage.Delete(ctx, location)
}

func TestRetentionCleaner_CancelledPassRecordsCleanup(t *testing.T) {
	h := newHarness(t)
	h.enableNotifications(t)
	now := time.Now().UTC()
	first := h.completed(t, h.backups, now.Add(-90*24*time.Hour))
	second := h.completed(t, h.backups, now.Add(-60*24*time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	st := &cancellingStorage{Storage: h.backups, cancel: cancel}

	deleted, err := NewRetentionCleaner(h.settings, h.jobs, st, h.notifier).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, deleted)

	bg := context.Background()
	_, err = h.jobs.FindByID(bg, first.ID)
	assert.Error(t, err)
	_, err = h.jobs.FindByID(bg, second.ID)
	assert.NoError(t, err)

	settings, err := h.settings.Get(bg)
	require.NoError(t, err)
	assert.NotNil(t, settings.LastCleanup)
	require.Len(t, h.notifier.Sent(), 1)
}

func TestRetentionCleaner_CutoffIsExclusive(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	now := time.Date(2026, 10, 14, 3, 0, 0, 0, time.UTC)
	cutoff := now.Add(-30 * 24 * time.Hour)

	atCutoff := h.completed(t, h.backups, cutoff)
	pastCutoff := h.completed(t, h.backups, cutoff.Add(-time.Millisecond))

	cleaner := NewRetentionCleaner(h.settings, h.jobs, h.backups, h.notifier).(*retentionCleaner)
	cleaner.now = func() time.Time { return now }

	deleted, err := cleaner.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = h.jobs.FindByID(ctx, atCutoff.ID)
	assert.NoError(t, err)
	_, err = h.jobs.FindByID(ctx, pastCutoff.ID)
	assert.Error(t, err)
}
