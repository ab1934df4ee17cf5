package initcmd

import (
	"fmt"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"net/url"
	"os"
	"paperstack/client/internal/api"
	"paperstack/client/internal/auth"
	"paperstack/client/internal/cmdutil"
	"paperstack/client/internal/config"
	"strings"
)

func NewConfigInitCmd(svc api.Pinger) *cobra.Command {
	var host, accessKey, principal string
	cmd := &cobra.Command{
		Use:     "init",
		Short:   "Set paperstack configuration",
		Long:    "Check the server and access key, then save them. The key is kept in the system keyring.",
		Example: "paperstack config init --host <https://papers.uni.edu> --access-key <key> --principal <name>",
		Run: func(cmd *cobra.Command, args []string) {
			uri, err := url.Parse(host)
			if err != nil || uri.Host == "" {
				cmdutil.PrintE("Invalid host: " + host)
				return
			}

			if len(accessKey) == 0 {
				cmdutil.PrintE("Access key is required")
				return
			}

			cmdutil.StartLoading("Running test...")
			defer cmdutil.StopLoading()

			serverUrl := toURL(uri)
			err = svc.Ping(cmd.Context(), serverUrl, accessKey)
			if err != nil {
				color.Cyan(err.Error())
				return
			}

			if err := config.SaveConfig(config.Config{Host: serverUrl, Principal: principal}); err != nil {
				cmdutil.Print(fmt.Sprintf("Failed to save config: %s", color.RedString(err.Error())))
				return
			}

			if err := auth.Save(accessKey); err != nil {
				cmdutil.Print(fmt.Sprintf("Failed to save access key: %s", color.RedString(err.Error())))
				return
			}

			_, _ = fmt.Fprintln(os.Stdout, fmt.Sprintf("\n%s: Configuration set successfully", color.GreenString("Test passed")))
		},
	}
	cmd.Flags().StringVarP(&host, "host", "i", "", "paperstack server host url")
	cmd.Flags().StringVarP(&accessKey, "access-key", "a", "", "paperstack server access key")
	cmd.Flags().StringVarP(&principal, "principal", "p", "", "name recorded as the creator of your backups")
	return cmd
}

func toURL(u *url.URL) string {
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}
