package cmd

import (
	"github.com/spf13/cobra"
	"os"
	"paperstack/client/internal/api"
	"paperstack/client/internal/auth"
	"paperstack/client/internal/config"
	"paperstack/client/pkg/cmd/backup"
	configcmd "paperstack/client/pkg/cmd/config"
	"paperstack/client/pkg/cmd/settings"
)

func New() (*cobra.Command, error) {
	cfg, err := config.Parse()
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	// a missing key only matters once a command talks to the server
	accessKey, _ := auth.Get()
	apiClient := api.NewClient(api.Config{
		Host:      cfg.Host,
		AccessKey: accessKey,
		Principal: cfg.Principal,
	})
	svc := api.NewService(apiClient)

	cmd := &cobra.Command{
		Use:   "paperstack",
		Short: "paperstack - manage research repository backups",
	}

	cmd.AddCommand(configcmd.NewConfigCmd())
	cmd.AddCommand(backup.NewBackupCmd(svc))
	cmd.AddCommand(settings.NewSettingsCmd(svc))
	return cmd, nil
}
