package api

import (
	"context"
	"encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestService(t *testing.T, handler http.HandlerFunc) Service {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewService(NewClient(Config{Host: srv.URL, AccessKey: "key", Principal: "registrar"}))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestService_CreateBackup(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/backup/create", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "key", r.Header.Get(accessKeyHeader))
		assert.Equal(t, "registrar", r.Header.Get(principalHeader))

		var body CreateBackupParams
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "full", body.Type)

		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"error":   false,
			"message": "backup started",
			"data":    map[string]string{"backup_id": "7c1f"},
		})
	})

	id, err := svc.CreateBackup(context.Background(), CreateBackupParams{Type: "full"})
	require.NoError(t, err)
	assert.Equal(t, "7c1f", id)
}

func TestService_ErrorMessage(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":   true,
			"message": "invalid backup settings: retention_days: must be between 1 and 365",
		})
	})

	days := 400
	_, err := svc.UpdateSettings(context.Background(), SettingsPatch{RetentionDays: &days})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retention_days")
}

func TestService_ListBackups(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/backup/jobs", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"data": []map[string]interface{}{
				{"id": "a", "status": "completed", "file_count": 3},
				{"id": "b", "status": "failed"},
			},
		})
	})

	jobs, err := svc.ListBackups(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, 3, jobs[0].FileCount)
	assert.Equal(t, "failed", jobs[1].Status)
}

func TestService_DownloadBackup(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/backup/jobs/missing/download" {
			writeJSON(w, http.StatusNotFound, map[string]interface{}{"error": true, "message": "backup not found"})
			return
		}
		_, _ = w.Write([]byte("zip-bytes"))
	})

	body, err := svc.DownloadBackup(context.Background(), "abc")
	require.NoError(t, err)
	defer body.Close()
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "zip-bytes", string(data))

	_, err = svc.DownloadBackup(context.Background(), "missing")
	assert.EqualError(t, err, "backup not found")
}

func TestService_WatchBackup(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"type":"info","message":"running"}` + "\n"))
		_, _ = w.Write([]byte("not json\n"))
		_, _ = w.Write([]byte(`{"type":"complete","message":"backup completed"}` + "\n"))
	})

	ch, err := svc.WatchBackup(context.Background(), "abc")
	require.NoError(t, err)

	events := make([]Event, 0)
	for ev := range ch {
		events = append(events, ev)
	}
	require.Len(t, events, 2)
	assert.Equal(t, Info, events[0].Type)
	assert.Equal(t, Complete, events[1].Type)
}

func TestClient_NotConfigured(t *testing.T) {
	svc := NewService(NewClient(Config{}))
	_, err := svc.Stats(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
}
