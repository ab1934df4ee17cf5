package triggers

import (
	"context"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"paperstack/client/internal/api"
	"paperstack/client/internal/cmdutil"
	"time"
)

func NewTriggersCmd(svc api.Service) *cobra.Command {
	return &cobra.Command{
		Use:   "triggers",
		Short: "Show the server's scheduled tasks",
		Run: func(cmd *cobra.Command, args []string) {
			cmdutil.StartLoading("Working...")
			defer cmdutil.StopLoading()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			triggers, err := svc.Triggers(ctx)
			if err != nil {
				cmdutil.PrintE(err.Error())
				return
			}

			tw := table.NewWriter()
			tw.AppendHeader(table.Row{"Name", "Next Run"})
			for _, next := range triggers {
				nextRun := next.NextRun
				tw.AppendRow(table.Row{next.Name, cmdutil.FormatTime(&nextRun)})
			}
			cmdutil.Print("")
			cmdutil.Print(tw.Render())
		},
	}
}
