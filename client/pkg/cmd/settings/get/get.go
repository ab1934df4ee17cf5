package get

import (
	"context"
	"github.com/spf13/cobra"
	"paperstack/client/internal/api"
	"paperstack/client/internal/cmdutil"
	"time"
)

func NewGetSettingsCmd(svc api.Service, render func(api.Settings)) *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Show the backup policy",
		Run: func(cmd *cobra.Command, args []string) {
			cmdutil.StartLoading("Working...")
			defer cmdutil.StopLoading()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			settings, err := svc.GetSettings(ctx)
			if err != nil {
				cmdutil.PrintE(err.Error())
				return
			}
			cmdutil.StopLoading()
			render(settings)
		},
	}
}
