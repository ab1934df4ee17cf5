package httphandlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"io"
	"net/http"
	"net/http/httptest"
	"paperstack/internal/backup"
	"paperstack/internal/eventbus"
	"paperstack/internal/service"
	"paperstack/internal/types"
	"strings"
	"testing"
	"time"
)

const testAccessKey = "secret-key"

type (
	fakeBackups struct {
		service.BackupService
		jobs      map[uuid.UUID]*types.BackupJob
		createdBy string
		archive   string
	}

	fakeSettings struct {
		service.SettingsService
		current *types.BackupSettings
	}

	fakeScheduler struct {
		settings *fakeSettings
		patches  []types.BackupSettingsPatch
		resets   int
	}
)

func (f *fakeBackups) Create(ctx context.Context, backupType types.BackupType, createdBy string) (*types.BackupJob, error) {
	if !backupType.Valid() {
		return nil, &backup.InvalidScopeError{Type: string(backupType)}
	}
	f.createdBy = createdBy
	job := &types.BackupJob{ID: uuid.New(), Type: backupType, Status: types.JobStatusPending, CreatedBy: createdBy}
	f.jobs[job.ID] = job
	return job, nil
}

func (f *fakeBackups) Get(ctx context.Context, id uuid.UUID) (*types.BackupJob, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return job, nil
}

func (f *fakeBackups) List(ctx context.Context, limit int) ([]*types.BackupJob, error) {
	out := make([]*types.BackupJob, 0, len(f.jobs))
	for _, job := range f.jobs {
		out = append(out, job)
	}
	return out, nil
}

func (f *fakeBackups) Download(ctx context.Context, id uuid.UUID) (*types.File, error) {
	job, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != types.JobStatusCompleted {
		return nil, service.ErrBackupNotReady
	}
	return &types.File{
		Content: io.NopCloser(strings.NewReader(f.archive)),
		Stat:    types.FileStat{Size: int64(len(f.archive))},
	}, nil
}

func (f *fakeBackups) Stats(ctx context.Context) (*types.BackupStats, error) {
	return &types.BackupStats{TotalFiles: 3, BackupFrequency: types.FrequencyWeekly}, nil
}

func (f *fakeSettings) Get(ctx context.Context) (*types.BackupSettings, error) {
	return f.current, nil
}

func (f *fakeScheduler) UpdateSettings(ctx context.Context, patch types.BackupSettingsPatch) (*types.BackupSettings, error) {
	if patch.RetentionDays != nil && *patch.RetentionDays > 365 {
		return nil, &backup.ValidationError{Fields: []backup.FieldError{{Field: "retention_days", Reason: "must be between 1 and 365"}}}
	}
	f.patches = append(f.patches, patch)
	if patch.Frequency != nil {
		f.settings.current.Frequency = *patch.Frequency
	}
	return f.settings.current, nil
}

func (f *fakeScheduler) ResetSettings(ctx context.Context) (*types.BackupSettings, error) {
	f.resets++
	f.settings.current = types.DefaultBackupSettings()
	return f.settings.current, nil
}

func (f *fakeScheduler) Triggers() []service.Trigger {
	return []service.Trigger{{Name: "cleanup"}}
}

type testServer struct {
	backups   *fakeBackups
	scheduler *fakeScheduler
	events    eventbus.Bus
	server    *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	settings := &fakeSettings{current: types.DefaultBackupSettings()}
	ts := &testServer{
		backups:   &fakeBackups{jobs: make(map[uuid.UUID]*types.BackupJob), archive: "PK-zip-bytes"},
		scheduler: &fakeScheduler{settings: settings},
		events:    eventbus.New(),
	}
	h := NewApiHandler(ts.backups, settings, ts.scheduler, ts.events, testAccessKey)
	ts.server = httptest.NewServer(Routes(h))
	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, ts.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set(accessKeyHeader, testAccessKey)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, data interface{}) response {
	t.Helper()
	var raw struct {
		Error   bool            `json:"error"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	if data != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, data))
	}
	return response{Error: raw.Error, Message: raw.Message}
}

func TestRoutes_RequireAccessKey(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/v1/backup/stats", nil, map[string]string{accessKeyHeader: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.True(t, decode(t, resp, nil).Error)

	health, err := http.Get(ts.server.URL + "/v1/h")
	require.NoError(t, err)
	defer health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}

func TestCreateBackup(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/v1/backup/create", types.CreateBackupParams{Type: types.BackupTypeFull},
		map[string]string{principalHeader: "registrar"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var out types.CreateBackupResponse
	r := decode(t, resp, &out)
	assert.False(t, r.Error)
	_, err := uuid.Parse(out.BackupID)
	assert.NoError(t, err)
	assert.Equal(t, "registrar", ts.backups.createdBy)
}

func TestCreateBackup_DefaultPrincipal(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/v1/backup/create", types.CreateBackupParams{Type: types.BackupTypeDocuments}, nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, defaultPrincipal, ts.backups.createdBy)
}

func TestCreateBackup_InvalidType(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/v1/backup/create", map[string]string{"type": "incremental"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	r := decode(t, resp, nil)
	assert.True(t, r.Error)
	assert.Contains(t, r.Message, "incremental")
	assert.Empty(t, ts.backups.jobs)
}

func TestStats(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/v1/backup/stats", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var stats types.BackupStats
	decode(t, resp, &stats)
	assert.Equal(t, 3, stats.TotalFiles)
	assert.Equal(t, types.FrequencyWeekly, stats.BackupFrequency)
}

func TestSettingsRoutes(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/v1/backup/settings", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	for _, method := range []string{http.MethodPut, http.MethodPost} {
		resp = ts.do(t, method, "/v1/backup/settings", map[string]string{"frequency": "daily"}, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var settings types.BackupSettings
		decode(t, resp, &settings)
		assert.Equal(t, types.FrequencyDaily, settings.Frequency)
	}
	assert.Len(t, ts.scheduler.patches, 2)

	resp = ts.do(t, http.MethodDelete, "/v1/backup/settings", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var reset types.BackupSettings
	decode(t, resp, &reset)
	assert.Equal(t, types.FrequencyWeekly, reset.Frequency)
	assert.Equal(t, 1, ts.scheduler.resets)
}

func TestUpdateSettings_ValidationError(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPut, "/v1/backup/settings", map[string]int{"retention_days": 400}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var fields []backup.FieldError
	r := decode(t, resp, &fields)
	assert.True(t, r.Error)
	require.Len(t, fields, 1)
	assert.Equal(t, "retention_days", fields[0].Field)
}

func TestJobRoutes(t *testing.T) {
	ts := newTestServer(t)
	job := &types.BackupJob{ID: uuid.New(), Type: types.BackupTypeFull, Status: types.JobStatusCompleted}
	ts.backups.jobs[job.ID] = job
	pending := &types.BackupJob{ID: uuid.New(), Type: types.BackupTypeFull, Status: types.JobStatusPending}
	ts.backups.jobs[pending.ID] = pending

	resp := ts.do(t, http.MethodGet, "/v1/backup/jobs", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var jobs []types.BackupJob
	decode(t, resp, &jobs)
	assert.Len(t, jobs, 2)

	resp = ts.do(t, http.MethodGet, "/v1/backup/jobs/"+job.ID.String(), nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/v1/backup/jobs/"+uuid.NewString(), nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/v1/backup/jobs/not-a-uuid", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/v1/backup/jobs/"+job.ID.String()+"/download", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/zip", resp.Header.Get("Content-Type"))
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "PK-zip-bytes", string(data))

	resp = ts.do(t, http.MethodGet, "/v1/backup/jobs/"+pending.ID.String()+"/download", nil, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestStreamEvents(t *testing.T) {
	ts := newTestServer(t)
	job := &types.BackupJob{ID: uuid.New(), Type: types.BackupTypeFull, Status: types.JobStatusRunning}
	ts.backups.jobs[job.ID] = job

	resp := ts.do(t, http.MethodGet, "/v1/backup/jobs/"+job.ID.String()+"/events", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	lines := bufio.NewScanner(resp.Body)
	require.True(t, lines.Scan())
	var first eventbus.Event
	require.NoError(t, json.Unmarshal(lines.Bytes(), &first))
	assert.Equal(t, eventbus.Info, first.Type)
	assert.Equal(t, string(types.JobStatusRunning), first.Message)

	go func() {
		time.Sleep(50 * time.Millisecond)
		ts.events.Broadcast(job.ID.String(), eventbus.Complete, "backup completed")
	}()

	require.True(t, lines.Scan())
	var last eventbus.Event
	require.NoError(t, json.Unmarshal(lines.Bytes(), &last))
	assert.Equal(t, eventbus.Complete, last.Type)
	assert.False(t, lines.Scan(), "stream ends after the terminal event")
}

func TestStreamEvents_TerminalJob(t *testing.T) {
	ts := newTestServer(t)
	job := &types.BackupJob{ID: uuid.New(), Type: types.BackupTypeFull, Status: types.JobStatusFailed}
	ts.backups.jobs[job.ID] = job

	resp := ts.do(t, http.MethodGet, "/v1/backup/jobs/"+job.ID.String()+"/events", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)
	var ev eventbus.Event
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &ev))
	assert.Equal(t, eventbus.Error, ev.Type)
}
