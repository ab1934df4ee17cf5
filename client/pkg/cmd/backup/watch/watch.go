package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/spf13/cobra"
	"os"
	"os/signal"
	"paperstack/client/internal/api"
	"paperstack/client/internal/cmdutil"
)

func NewWatchBackupCmd(svc api.Service) *cobra.Command {
	return &cobra.Command{
		Use:     "watch <backup_id>",
		Short:   "Follow a backup",
		Long:    "Stream status changes of a backup until it completes or fails",
		Example: "paperstack backup watch 0b7e5a9e-7d7c-4c1e-9d6f-5e1f0b5c8a11",
		Args:    cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			Follow(cmd.Context(), svc, args[0])
		},
	}
}

// Follow prints the backup's events until the stream ends or the user
// interrupts.
func Follow(parent context.Context, svc api.Service, id string) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt)
	defer cancel()

	events, err := svc.WatchBackup(ctx, id)
	if err != nil {
		cmdutil.PrintE(err.Error())
		return
	}

	cmdutil.StartLoading("Waiting for backup...")
	defer cmdutil.StopLoading()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if handleEvent(ev) {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// handleEvent prints one event and reports whether the job is finished.
func handleEvent(ev api.Event) bool {
	status := ev.Message
	var data struct {
		Status string `json:"status"`
	}
	if len(ev.Data) > 0 && json.Unmarshal(ev.Data, &data) == nil && data.Status != "" {
		status = data.Status
	}

	switch ev.Type {
	case api.Complete:
		cmdutil.StopLoading()
		cmdutil.PrintS("Backup completed")
		return true
	case api.Error:
		cmdutil.StopLoading()
		cmdutil.PrintE("Backup failed: " + ev.Message)
		return true
	default:
		cmdutil.Print(fmt.Sprintf("\nstatus: %s", status))
		return false
	}
}
