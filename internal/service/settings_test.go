package service

import (
	"context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"paperstack/internal/backup"
	"paperstack/internal/types"
	"testing"
	"time"
)

func TestSettingsService_GetCreatesDefaults(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.settings.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.FrequencyWeekly, first.Frequency)
	assert.Equal(t, "02:00", first.BackupTime)
	assert.Equal(t, 30, first.RetentionDays)
	assert.True(t, first.AutoDelete)
	assert.True(t, first.CompressBackups)
	assert.False(t, first.EmailNotifications)
	assert.Nil(t, first.NotificationEmail)
	assert.Nil(t, first.LastCleanup)

	second, err := h.settings.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, h.db.Model(&types.BackupSettings{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestSettingsService_Update(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	daily := types.FrequencyDaily
	at := "04:30"
	days := 7
	updated, err := h.settings.Update(ctx, types.BackupSettingsPatch{
		Frequency:     &daily,
		BackupTime:    &at,
		RetentionDays: &days,
	})
	require.NoError(t, err)
	assert.Equal(t, types.FrequencyDaily, updated.Frequency)
	assert.Equal(t, "04:30", updated.BackupTime)
	assert.Equal(t, 7, updated.RetentionDays)
	assert.True(t, updated.AutoDelete, "fields not in the patch are kept")

	stored, err := h.settings.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.FrequencyDaily, stored.Frequency)
	assert.Equal(t, 7, stored.RetentionDays)
}

func TestSettingsService_UpdateRejectsInvalid(t *testing.T) {
	hourly := types.Frequency("hourly")
	badTime := "25:00"
	zero := 0
	tooMany := 366
	enabled := true
	badEmail := "not-an-email"

	tests := []struct {
		name  string
		patch types.BackupSettingsPatch
		field string
	}{
		{name: "frequency", patch: types.BackupSettingsPatch{Frequency: &hourly}, field: "frequency"},
		{name: "backup time", patch: types.BackupSettingsPatch{BackupTime: &badTime}, field: "backup_time"},
		{name: "retention below range", patch: types.BackupSettingsPatch{RetentionDays: &zero}, field: "retention_days"},
		{name: "retention above range", patch: types.BackupSettingsPatch{RetentionDays: &tooMany}, field: "retention_days"},
		{name: "notifications without email", patch: types.BackupSettingsPatch{EmailNotifications: &enabled}, field: "notification_email"},
		{name: "notifications with bad email", patch: types.BackupSettingsPatch{EmailNotifications: &enabled, NotificationEmail: &badEmail}, field: "notification_email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()

			_, err := h.settings.Update(ctx, tt.patch)
			var verr *backup.ValidationError
			require.ErrorAs(t, err, &verr)
			require.Len(t, verr.Fields, 1)
			assert.Equal(t, tt.field, verr.Fields[0].Field)

			stored, err := h.settings.Get(ctx)
			require.NoError(t, err)
			assert.Equal(t, types.DefaultBackupSettings().Frequency, stored.Frequency)
			assert.Equal(t, 30, stored.RetentionDays)
			assert.False(t, stored.EmailNotifications)
		})
	}
}

func TestSettingsService_EmptyPatchDoesNotWrite(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	before, err := h.settings.Get(ctx)
	require.NoError(t, err)

	after, err := h.settings.Update(ctx, types.BackupSettingsPatch{})
	require.NoError(t, err)
	assert.True(t, before.UpdatedAt.Equal(after.UpdatedAt))
}

func TestSettingsService_DisablingNotificationsClearsEmail(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.enableNotifications(t)

	disabled := false
	updated, err := h.settings.Update(ctx, types.BackupSettingsPatch{EmailNotifications: &disabled})
	require.NoError(t, err)
	assert.False(t, updated.EmailNotifications)
	assert.Nil(t, updated.NotificationEmail)
}

func TestSettingsService_ResetKeepsLastCleanup(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.enableNotifications(t)

	monthly := types.FrequencyMonthly
	clock := "23:45"
	days := 90
	off := false
	_, err := h.settings.Update(ctx, types.BackupSettingsPatch{
		Frequency:       &monthly,
		BackupTime:      &clock,
		RetentionDays:   &days,
		AutoDelete:      &off,
		CompressBackups: &off,
	})
	require.NoError(t, err)

	cleaned := time.Date(2026, 10, 1, 3, 0, 0, 0, time.UTC)
	require.NoError(t, h.settings.MarkCleanup(ctx, cleaned))

	reset, err := h.settings.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.FrequencyWeekly, reset.Frequency)
	assert.Equal(t, 30, reset.RetentionDays)

	stored, err := h.settings.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.FrequencyWeekly, stored.Frequency)
	assert.Equal(t, "02:00", stored.BackupTime)
	assert.Equal(t, 30, stored.RetentionDays)
	assert.True(t, stored.AutoDelete)
	assert.True(t, stored.CompressBackups)
	assert.False(t, stored.EmailNotifications)
	assert.Nil(t, stored.NotificationEmail)
	require.NotNil(t, stored.LastCleanup)
	assert.True(t, cleaned.Equal(*stored.LastCleanup))
}
