package stats

import (
	"context"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"paperstack/client/internal/api"
	"paperstack/client/internal/cmdutil"
	"time"
)

func NewStatsCmd(svc api.Service) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show backup statistics",
		Run: func(cmd *cobra.Command, args []string) {
			cmdutil.StartLoading("Working...")
			defer cmdutil.StopLoading()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			stats, err := svc.Stats(ctx)
			if err != nil {
				cmdutil.PrintE(err.Error())
				return
			}

			tw := table.NewWriter()
			tw.AppendRows([]table.Row{
				{"Last Backup", cmdutil.FormatTime(stats.LastBackup)},
				{"Files", stats.TotalFiles},
				{"Size", cmdutil.HumanSize(stats.TotalSize)},
				{"Storage Used", cmdutil.HumanSize(stats.StorageUsed)},
				{"Frequency", stats.BackupFrequency},
				{"Next Scheduled", cmdutil.FormatTime(stats.NextScheduled)},
			})
			cmdutil.Print("")
			cmdutil.Print(tw.Render())
		},
	}
}
