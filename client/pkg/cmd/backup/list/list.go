package list

import (
	"context"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"paperstack/client/internal/api"
	"paperstack/client/internal/cmdutil"
	"strconv"
	"time"
)

func NewListBackupsCmd(svc api.Service) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List backups",
		Long:  "List backups, most recent first",
		Run: func(cmd *cobra.Command, args []string) {
			cmdutil.StartLoading("Working...")
			defer cmdutil.StopLoading()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			jobs, err := svc.ListBackups(ctx, limit)
			if err != nil {
				cmdutil.PrintE(err.Error())
				return
			}

			header := table.Row{"ID", "Type", "Status", "Files", "Size", "Created By", "Created", "Completed"}
			tw := table.NewWriter()
			tw.AppendHeader(header)
			for _, next := range jobs {
				created := next.CreatedAt
				row := table.Row{
					next.ID,
					next.Type,
					next.Status,
					strconv.Itoa(next.FileCount),
					cmdutil.HumanSize(next.TotalSize),
					next.CreatedBy,
					cmdutil.FormatTime(&created),
					cmdutil.FormatTime(next.CompletedAt),
				}
				tw.AppendRow(row)
				tw.AppendSeparator()
			}
			cmdutil.Print("")
			cmdutil.Print(tw.Render())
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of backups to show")
	return cmd
}
