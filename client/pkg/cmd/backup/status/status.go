package status

import (
	"context"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"paperstack/client/internal/api"
	"paperstack/client/internal/cmdutil"
	"time"
)

func NewBackupStatusCmd(svc api.Service) *cobra.Command {
	return &cobra.Command{
		Use:   "status <backup_id>",
		Short: "Show a backup",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cmdutil.StartLoading("Working...")
			defer cmdutil.StopLoading()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			job, err := svc.GetBackup(ctx, args[0])
			if err != nil {
				cmdutil.PrintE(err.Error())
				return
			}

			created := job.CreatedAt
			tw := table.NewWriter()
			tw.AppendRows([]table.Row{
				{"ID", job.ID},
				{"Type", job.Type},
				{"Status", job.Status},
				{"Created By", job.CreatedBy},
				{"Created", cmdutil.FormatTime(&created)},
				{"Started", cmdutil.FormatTime(job.StartedAt)},
				{"Completed", cmdutil.FormatTime(job.CompletedAt)},
				{"Files", job.FileCount},
				{"Size", cmdutil.HumanSize(job.TotalSize)},
			})
			if job.DownloadURL != nil {
				tw.AppendRow(table.Row{"Location", *job.DownloadURL})
			}
			if job.ErrorMessage != nil {
				tw.AppendRow(table.Row{"Error", *job.ErrorMessage})
			}
			cmdutil.Print("")
			cmdutil.Print(tw.Render())
		},
	}
}
