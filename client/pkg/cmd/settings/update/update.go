package update

import (
	"context"
	"fmt"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"paperstack/client/internal/api"
	"paperstack/client/internal/cmdutil"
	"reflect"
	"strings"
	"time"
)

func NewUpdateSettingsCmd(svc api.Service, render func(api.Settings)) *cobra.Command {
	mValidator := newValidator()
	var (
		frequency, backupTime, email       string
		retention                          int
		autoDelete, compress, notification bool
	)

	cmd := &cobra.Command{
		Use:     "update",
		Short:   "Change the backup policy",
		Long:    "Change one or more fields of the backup policy. Fields without a flag keep their current value.",
		Example: "paperstack settings update --frequency daily --time 01:30 --retention 14",
		Run: func(cmd *cobra.Command, args []string) {
			flags := cmd.Flags()
			patch := api.SettingsPatch{}
			if flags.Changed("frequency") {
				patch.Frequency = &frequency
			}
			if flags.Changed("time") {
				patch.BackupTime = &backupTime
			}
			if flags.Changed("retention") {
				patch.RetentionDays = &retention
			}
			if flags.Changed("auto-delete") {
				patch.AutoDelete = &autoDelete
			}
			if flags.Changed("compress") {
				patch.CompressBackups = &compress
			}
			if flags.Changed("notify") {
				patch.EmailNotifications = &notification
			}
			if flags.Changed("email") {
				patch.NotificationEmail = &email
			}

			if err := validate(mValidator, patch); err != nil {
				cmdutil.PrintE(err.Error())
				return
			}

			cmdutil.StartLoading("Working...")
			defer cmdutil.StopLoading()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			settings, err := svc.UpdateSettings(ctx, patch)
			if err != nil {
				cmdutil.PrintE(err.Error())
				return
			}

			cmdutil.StopLoading()
			cmdutil.PrintS("Backup settings updated!")
			render(settings)
		},
	}

	cmd.Flags().StringVarP(&frequency, "frequency", "f", "", "How often backups run: daily, weekly, monthly or manual")
	cmd.Flags().StringVarP(&backupTime, "time", "t", "", "Time of day the backup runs, HH:MM in UTC")
	cmd.Flags().IntVarP(&retention, "retention", "r", 0, "Days a completed backup is kept, 1 to 365")
	cmd.Flags().BoolVar(&autoDelete, "auto-delete", true, "Delete backups older than the retention period")
	cmd.Flags().BoolVar(&compress, "compress", true, "Compress backup archives")
	cmd.Flags().BoolVar(&notification, "notify", false, "Email a summary after each backup")
	cmd.Flags().StringVarP(&email, "email", "e", "", "Address that receives backup notifications")
	return cmd
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		return strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	})
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := time.Parse("15:04", fl.Field().String())
		return err == nil
	})
	return v
}

func validate(v *validator.Validate, patch api.SettingsPatch) error {
	err := v.Struct(patch)
	if err == nil {
		return nil
	}

	var vError validator.ValidationErrors
	if !errors.As(err, &vError) {
		return err
	}

	messages := make([]string, 0, len(vError))
	for _, nextErr := range vError {
		messages = append(messages, fmt.Sprintf("Invalid value input for: %s", nextErr.Field()))
	}
	return errors.New(strings.Join(messages, "\n"))
}
