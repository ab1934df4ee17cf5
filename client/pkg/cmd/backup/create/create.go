package create

import (
	"context"
	"fmt"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"paperstack/client/internal/api"
	"paperstack/client/internal/cmdutil"
	"paperstack/client/pkg/cmd/backup/watch"
	"time"
)

func NewCreateBackupCmd(svc api.Service) *cobra.Command {
	mValidator := validator.New(validator.WithRequiredStructEnabled())
	params := api.CreateBackupParams{}
	var follow bool

	cmd := &cobra.Command{
		Use:     "create",
		Short:   "Start a backup",
		Long:    "Start a backup of the repository. A 'full' backup covers documents, profile images and the user and staff tables; 'documents' covers documents only.",
		Example: "paperstack backup create --type full --watch",
		Run: func(cmd *cobra.Command, args []string) {
			if err := mValidator.Struct(params); err != nil {
				cmdutil.PrintE(fmt.Sprintf("Invalid backup type %q: must be full or documents", params.Type))
				return
			}

			cmdutil.StartLoading("Working...")
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			id, err := svc.CreateBackup(ctx, params)
			cancel()
			cmdutil.StopLoading()
			if err != nil {
				cmdutil.PrintE(err.Error())
				return
			}

			cmdutil.PrintS("Backup started: " + id)
			if follow {
				watch.Follow(cmd.Context(), svc, id)
			}
		},
	}

	cmd.Flags().StringVarP(&params.Type, "type", "t", "full", "Backup type: full or documents")
	cmd.Flags().BoolVarP(&follow, "watch", "w", false, "Follow the backup until it finishes")
	return cmd
}
