package httphandlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"io"
	"net/http"
	"paperstack/internal/backup"
	"paperstack/internal/eventbus"
	"paperstack/internal/service"
	"paperstack/internal/storage"
	"paperstack/internal/types"
	"paperstack/logger"
	"strconv"
	"time"
)

const defaultListLimit = 50

type (
	// SettingsScheduler applies settings writes together with the matching
	// trigger changes.
	SettingsScheduler interface {
		UpdateSettings(ctx context.Context, patch types.BackupSettingsPatch) (*types.BackupSettings, error)
		ResetSettings(ctx context.Context) (*types.BackupSettings, error)
		Triggers() []service.Trigger
	}

	ApiHandler struct {
		backups   service.BackupService
		settings  service.SettingsService
		scheduler SettingsScheduler
		eb        eventbus.Bus
		accessKey string
	}
)

func NewApiHandler(backups service.BackupService, settings service.SettingsService,
	scheduler SettingsScheduler, eb eventbus.Bus, accessKey string) *ApiHandler {
	return &ApiHandler{
		backups:   backups,
		settings:  settings,
		scheduler: scheduler,
		eb:        eb,
		accessKey: accessKey,
	}
}

func (handler *ApiHandler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(accessKeyHeader)
		if handler.accessKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(handler.accessKey)) != 1 {
			unauthorized(w, errors.New("invalid access key"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func principal(r *http.Request) string {
	if p := r.Header.Get(principalHeader); p != "" {
		return p
	}
	return defaultPrincipal
}

func (handler *ApiHandler) CreateBackup(w http.ResponseWriter, r *http.Request) {
	var params types.CreateBackupParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		badRequest(w, errors.Wrap(err, "invalid request body"), nil)
		return
	}

	job, err := handler.backups.Create(r.Context(), params.Type, principal(r))
	if err != nil {
		handler.fail(w, err)
		return
	}

	created(w, "backup started", types.CreateBackupResponse{BackupID: job.ID.String()})
}

func (handler *ApiHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := handler.backups.Stats(r.Context())
	if err != nil {
		handler.fail(w, err)
		return
	}
	ok(w, "success", stats)
}

func (handler *ApiHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := handler.settings.Get(r.Context())
	if err != nil {
		handler.fail(w, err)
		return
	}
	ok(w, "success", settings)
}

func (handler *ApiHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch types.BackupSettingsPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil && !errors.Is(err, io.EOF) {
		badRequest(w, errors.Wrap(err, "invalid request body"), nil)
		return
	}

	settings, err := handler.scheduler.UpdateSettings(r.Context(), patch)
	if err != nil {
		handler.fail(w, err)
		return
	}
	ok(w, "settings updated", settings)
}

func (handler *ApiHandler) ResetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := handler.scheduler.ResetSettings(r.Context())
	if err != nil {
		handler.fail(w, err)
		return
	}
	ok(w, "settings reset", settings)
}

func (handler *ApiHandler) ListTriggers(w http.ResponseWriter, r *http.Request) {
	ok(w, "success", handler.scheduler.Triggers())
}

func (handler *ApiHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			badRequest(w, errors.New("limit must be a non-negative number"), nil)
			return
		}
		limit = n
	}

	jobs, err := handler.backups.List(r.Context(), limit)
	if err != nil {
		handler.fail(w, err)
		return
	}
	ok(w, "success", jobs)
}

func (handler *ApiHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, err, nil)
		return
	}

	job, err := handler.backups.Get(r.Context(), jobID)
	if err != nil {
		handler.fail(w, err)
		return
	}
	ok(w, "success", job)
}

func (handler *ApiHandler) DownloadBackup(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, err, nil)
		return
	}

	result, err := handler.backups.Download(r.Context(), jobID)
	if err != nil {
		handler.fail(w, err)
		return
	}

	defer func() {
		_ = result.Content.Close()
	}()

	if result.Stat.Size > 0 {
		w.Header().Add("Content-Length", fmt.Sprintf("%d", result.Stat.Size))
	}
	w.Header().Add("Content-Type", "application/zip")
	w.Header().Add("Content-Disposition", fmt.Sprintf("attachment; filename=backup-%s.zip", jobID))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, result.Content); err != nil {
		logger.Warn("backup download interrupted",
			zap.String("job", jobID.String()),
			zap.Error(err))
	}
}

// StreamEvents writes the job's current state followed by its lifecycle events
// until the job reaches a terminal status or the client goes away.
func (handler *ApiHandler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, err, nil)
		return
	}

	ch := handler.eb.Register(jobID.String())
	defer handler.eb.Unregister(jobID.String(), ch)

	job, err := handler.backups.Get(r.Context(), jobID)
	if err != nil {
		handler.fail(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	snapshot, _ := json.Marshal(types.JobEvent{JobID: job.ID.String(), Status: job.Status, At: time.Now().UTC()})
	_ = writeStreamLine(w, eventbus.Event{Type: statusEventType(job.Status), Message: string(job.Status), Data: snapshot})
	if job.Status.Terminal() {
		return
	}

	for {
		select {
		case ev := <-ch:
			_ = writeStreamLine(w, ev)
			if ev.Type == eventbus.Complete || ev.Type == eventbus.Error {
				return
			}
		case <-r.Context().Done():
			logger.Debug("event stream client disconnected", zap.String("job", jobID.String()))
			return
		}
	}
}

func statusEventType(status types.JobStatus) eventbus.Type {
	switch status {
	case types.JobStatusCompleted:
		return eventbus.Complete
	case types.JobStatusFailed:
		return eventbus.Error
	default:
		return eventbus.Info
	}
}

func (handler *ApiHandler) fail(w http.ResponseWriter, err error) {
	var validationErr *backup.ValidationError
	switch {
	case errors.As(err, &validationErr):
		badRequest(w, err, validationErr.Fields)
	case backup.IsClientError(err):
		badRequest(w, err, nil)
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, storage.ErrNotFound):
		notFound(w, errors.New("backup not found"))
	case errors.Is(err, service.ErrBackupNotReady):
		conflict(w, err)
	default:
		logger.Error("request failed", zap.Error(err))
		serverError(w, err)
	}
}
