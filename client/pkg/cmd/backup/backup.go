package backup

import (
	"github.com/spf13/cobra"
	"paperstack/client/internal/api"
	"paperstack/client/pkg/cmd/backup/create"
	"paperstack/client/pkg/cmd/backup/download"
	"paperstack/client/pkg/cmd/backup/list"
	"paperstack/client/pkg/cmd/backup/stats"
	"paperstack/client/pkg/cmd/backup/status"
	"paperstack/client/pkg/cmd/backup/watch"
)

func NewBackupCmd(svc api.Service) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "backup <command>",
		Aliases: []string{"bc"},
		Short:   "Manage repository backups",
		Long:    "Start backups, follow their progress, list past backups and download archives",
	}

	cmd.AddCommand(create.NewCreateBackupCmd(svc))
	cmd.AddCommand(list.NewListBackupsCmd(svc))
	cmd.AddCommand(status.NewBackupStatusCmd(svc))
	cmd.AddCommand(watch.NewWatchBackupCmd(svc))
	cmd.AddCommand(download.NewDownloadBackupCmd(svc))
	cmd.AddCommand(stats.NewStatsCmd(svc))
	return cmd
}
