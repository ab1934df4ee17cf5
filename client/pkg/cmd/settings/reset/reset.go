package reset

import (
	"context"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"paperstack/client/internal/api"
	"paperstack/client/internal/cmdutil"
	"time"
)

func NewResetSettingsCmd(svc api.Service, render func(api.Settings)) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Restore the default backup policy",
		Long:  "Restore the default policy: weekly at 02:00 UTC, kept for 30 days, compressed, no notifications",
		Run: func(cmd *cobra.Command, args []string) {
			if !yes {
				p := promptui.Prompt{
					Label:     "Reset the backup policy to its defaults",
					IsConfirm: true,
				}
				if _, err := p.Run(); err != nil {
					cmdutil.Print("Aborted")
					return
				}
			}

			cmdutil.StartLoading("Working...")
			defer cmdutil.StopLoading()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			settings, err := svc.ResetSettings(ctx)
			if err != nil {
				cmdutil.PrintE(err.Error())
				return
			}

			cmdutil.StopLoading()
			cmdutil.PrintS("Backup settings reset!")
			render(settings)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}
