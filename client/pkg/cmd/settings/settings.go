package settings

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"paperstack/client/internal/api"
	"paperstack/client/internal/cmdutil"
	"paperstack/client/pkg/cmd/settings/get"
	"paperstack/client/pkg/cmd/settings/reset"
	"paperstack/client/pkg/cmd/settings/triggers"
	"paperstack/client/pkg/cmd/settings/update"
	"strconv"
)

func NewSettingsCmd(svc api.Service) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "settings <command>",
		Aliases: []string{"s"},
		Short:   "Manage the backup policy",
		Long:    "View and change how often backups run, how long they are kept and who is notified",
	}

	cmd.AddCommand(get.NewGetSettingsCmd(svc, Render))
	cmd.AddCommand(update.NewUpdateSettingsCmd(svc, Render))
	cmd.AddCommand(reset.NewResetSettingsCmd(svc, Render))
	cmd.AddCommand(triggers.NewTriggersCmd(svc))
	return cmd
}

// Render prints the policy as a two column table.
func Render(s api.Settings) {
	email := "-"
	if s.NotificationEmail != nil {
		email = *s.NotificationEmail
	}

	tw := table.NewWriter()
	tw.AppendRows([]table.Row{
		{"Frequency", s.Frequency},
		{"Backup Time (UTC)", s.BackupTime},
		{"Retention Days", strconv.Itoa(s.RetentionDays)},
		{"Auto Delete", s.AutoDelete},
		{"Compress Backups", s.CompressBackups},
		{"Email Notifications", s.EmailNotifications},
		{"Notification Email", email},
		{"Last Cleanup", cmdutil.FormatTime(s.LastCleanup)},
	})
	cmdutil.Print("")
	cmdutil.Print(tw.Render())
}
