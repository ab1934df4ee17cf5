package configcmd

import (
	"github.com/spf13/cobra"
	"paperstack/client/internal/api"
	initcmd "paperstack/client/pkg/cmd/config/init"
)

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config <command>",
		Aliases: []string{"c"},
		Short:   "Manage paperstack client configuration",
	}

	cmd.AddCommand(initcmd.NewConfigInitCmd(api.NewPinger()))
	return cmd
}
