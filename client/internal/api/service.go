package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

type (
	Service interface {
		BackupService
		SettingsService
	}

	BackupService interface {
		CreateBackup(ctx context.Context, params CreateBackupParams) (string, error)
		ListBackups(ctx context.Context, limit int) ([]BackupJob, error)
		GetBackup(ctx context.Context, id string) (BackupJob, error)
		DownloadBackup(ctx context.Context, id string) (io.ReadCloser, error)
		WatchBackup(ctx context.Context, id string) (<-chan Event, error)
		Stats(ctx context.Context) (BackupStats, error)
	}

	SettingsService interface {
		GetSettings(ctx context.Context) (Settings, error)
		UpdateSettings(ctx context.Context, patch SettingsPatch) (Settings, error)
		ResetSettings(ctx context.Context) (Settings, error)
		Triggers(ctx context.Context) ([]Trigger, error)
	}

	Pinger interface {
		Ping(ctx context.Context, host, accessKey string) error
	}
)

type service struct {
	apiClient Client
}

func NewService(apiClient Client) Service {
	return service{apiClient: apiClient}
}

func (s service) CreateBackup(ctx context.Context, params CreateBackupParams) (string, error) {
	var response struct {
		Data struct {
			BackupID string `json:"backup_id"`
		} `json:"data"`
	}

	err := s.apiClient.Do(ctx, Params{
		Method:   "POST",
		Path:     "backup/create",
		Body:     params,
		Response: &response,
	})
	return response.Data.BackupID, err
}

func (s service) ListBackups(ctx context.Context, limit int) ([]BackupJob, error) {
	var response struct {
		Data []BackupJob `json:"data"`
	}

	param := Params{
		Method:   "GET",
		Path:     "backup/jobs",
		Response: &response,
	}
	if limit > 0 {
		param.QueryParams = map[string]string{"limit": strconv.Itoa(limit)}
	}

	if err := s.apiClient.Do(ctx, param); err != nil {
		return nil, err
	}
	return response.Data, nil
}

func (s service) GetBackup(ctx context.Context, id string) (BackupJob, error) {
	var response struct {
		Data BackupJob `json:"data"`
	}

	err := s.apiClient.Do(ctx, Params{
		Method:   "GET",
		Path:     fmt.Sprintf("backup/jobs/%s", id),
		Response: &response,
	})
	return response.Data, err
}

func (s service) DownloadBackup(ctx context.Context, id string) (io.ReadCloser, error) {
	param := Params{
		Method: "GET",
		Path:   fmt.Sprintf("backup/jobs/%s/download", id),
	}
	return s.apiClient.Download(ctx, param)
}

// WatchBackup follows the job's event stream. The channel is closed when the
// stream ends.
func (s service) WatchBackup(ctx context.Context, id string) (<-chan Event, error) {
	resp, err := s.apiClient.Stream(ctx, Params{
		Method: "GET",
		Path:   fmt.Sprintf("backup/jobs/%s/events", id),
	})
	if err != nil {
		return nil, err
	}

	ch := make(chan Event, 16)
	go func() {
		defer close(ch)
		defer func() {
			_ = resp.Close()
		}()

		sc := bufio.NewScanner(resp)
		for sc.Scan() {
			ev := Event{}
			if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
				continue
			}

			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func (s service) Stats(ctx context.Context) (BackupStats, error) {
	var response struct {
		Data BackupStats `json:"data"`
	}

	err := s.apiClient.Do(ctx, Params{
		Method:   "GET",
		Path:     "backup/stats",
		Response: &response,
	})
	return response.Data, err
}

func (s service) GetSettings(ctx context.Context) (Settings, error) {
	var response struct {
		Data Settings `json:"data"`
	}

	err := s.apiClient.Do(ctx, Params{
		Method:   "GET",
		Path:     "backup/settings",
		Response: &response,
	})
	return response.Data, err
}

func (s service) UpdateSettings(ctx context.Context, patch SettingsPatch) (Settings, error) {
	var response struct {
		Data Settings `json:"data"`
	}

	err := s.apiClient.Do(ctx, Params{
		Method:   "PUT",
		Path:     "backup/settings",
		Body:     patch,
		Response: &response,
	})
	return response.Data, err
}

func (s service) ResetSettings(ctx context.Context) (Settings, error) {
	var response struct {
		Data Settings `json:"data"`
	}

	err := s.apiClient.Do(ctx, Params{
		Method:   "DELETE",
		Path:     "backup/settings",
		Response: &response,
	})
	return response.Data, err
}

func (s service) Triggers(ctx context.Context) ([]Trigger, error) {
	var response struct {
		Data []Trigger `json:"data"`
	}

	err := s.apiClient.Do(ctx, Params{
		Method:   "GET",
		Path:     "backup/triggers",
		Response: &response,
	})
	return response.Data, err
}

type pinger struct{}

// NewPinger checks a host and access key pair before they are saved.
func NewPinger() Pinger {
	return pinger{}
}

func (pinger) Ping(ctx context.Context, host, accessKey string) error {
	c := NewClient(Config{Host: host, AccessKey: accessKey})
	return c.Do(ctx, Params{Method: "GET", Path: "backup/stats"})
}
