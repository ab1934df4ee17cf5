package service

import (
	"context"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"paperstack/internal/backup"
	"paperstack/internal/database"
	"paperstack/internal/misc"
	"paperstack/internal/types"
	"reflect"
	"strings"
	"time"
)

type (
	SettingsService interface {
		Get(ctx context.Context) (*types.BackupSettings, error)
		Update(ctx context.Context, patch types.BackupSettingsPatch) (*types.BackupSettings, error)
		Reset(ctx context.Context) (*types.BackupSettings, error)
		MarkCleanup(ctx context.Context, at time.Time) error
	}

	settingsService struct {
		repo     database.BackupSettingsRepository
		validate *validator.Validate
	}
)

func NewSettingsService(repo database.BackupSettingsRepository) SettingsService {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, _, err := misc.ParseClock(fl.Field().String())
		return err == nil
	})

	return &settingsService{repo: repo, validate: v}
}

// Get returns the active policy, creating the defaults on first use.
func (s *settingsService) Get(ctx context.Context) (*types.BackupSettings, error) {
	settings, err := s.repo.FindOrCreate(ctx, types.DefaultBackupSettings())
	if err != nil {
		return nil, errors.Wrap(err, "failed to load backup settings")
	}
	return settings, nil
}

func (s *settingsService) Update(ctx context.Context, patch types.BackupSettingsPatch) (*types.BackupSettings, error) {
	if err := s.validatePatch(patch); err != nil {
		return nil, err
	}

	current, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}

	if patch.Empty() {
		return current, nil
	}

	merged := merge(*current, patch)
	if err := s.normalizeNotifications(&merged); err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, &merged); err != nil {
		return nil, errors.Wrap(err, "failed to save backup settings")
	}
	return &merged, nil
}

// Reset restores the built-in policy. The cleanup bookkeeping survives.
func (s *settingsService) Reset(ctx context.Context) (*types.BackupSettings, error) {
	current, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}

	defaults := types.DefaultBackupSettings()
	defaults.LastCleanup = current.LastCleanup
	defaults.CreatedAt = current.CreatedAt
	if err := s.repo.Save(ctx, defaults); err != nil {
		return nil, errors.Wrap(err, "failed to reset backup settings")
	}
	return defaults, nil
}

func (s *settingsService) MarkCleanup(ctx context.Context, at time.Time) error {
	if _, err := s.Get(ctx); err != nil {
		return err
	}
	return s.repo.UpdateLastCleanup(ctx, at)
}

func (s *settingsService) validatePatch(patch types.BackupSettingsPatch) error {
	err := s.validate.Struct(patch)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return err
	}

	result := &backup.ValidationError{}
	for _, fe := range fieldErrors {
		result.Fields = append(result.Fields, backup.FieldError{
			Field:  fe.Field(),
			Reason: reason(fe),
		})
	}
	return result
}

func (s *settingsService) normalizeNotifications(settings *types.BackupSettings) error {
	if !settings.EmailNotifications {
		settings.NotificationEmail = nil
		return nil
	}

	if settings.NotificationEmail == nil || s.validate.Var(*settings.NotificationEmail, "required,email") != nil {
		return &backup.ValidationError{Fields: []backup.FieldError{{
			Field:  "notification_email",
			Reason: "a valid address is required when email_notifications is enabled",
		}}}
	}
	return nil
}

func merge(current types.BackupSettings, patch types.BackupSettingsPatch) types.BackupSettings {
	if patch.Frequency != nil {
		current.Frequency = *patch.Frequency
	}
	if patch.BackupTime != nil {
		current.BackupTime = *patch.BackupTime
	}
	if patch.RetentionDays != nil {
		current.RetentionDays = *patch.RetentionDays
	}
	if patch.AutoDelete != nil {
		current.AutoDelete = *patch.AutoDelete
	}
	if patch.CompressBackups != nil {
		current.CompressBackups = *patch.CompressBackups
	}
	if patch.EmailNotifications != nil {
		current.EmailNotifications = *patch.EmailNotifications
	}
	if patch.NotificationEmail != nil {
		email := strings.TrimSpace(*patch.NotificationEmail)
		current.NotificationEmail = &email
	}
	return current
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "clock":
		return "must be a HH:MM time between 00:00 and 23:59"
	case "min", "max":
		return "must be between 1 and 365"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}
