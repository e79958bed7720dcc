package cmd

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/oneclickvirt/console/src/client/api"
	"github.com/oneclickvirt/console/src/request"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s v%s (%s) built %s\n", getBinaryName(), Version, CommitID, BuildDate)

		serverAddr := viper.GetString("server.address")
		if server != "" {
			serverAddr = server
		}
		if serverAddr != "" {
			fmt.Fprintf(out, "\nServer: %s\n", serverAddr)
			if serverVer := serverVersion(cmd.Context(), serverAddr); serverVer != "" {
				fmt.Fprintf(out, "Server Version: v%s\n", serverVer)
			}
		}

		fmt.Fprintf(out, "\nBuild Info:\n")
		fmt.Fprintf(out, "  Go: %s\n", runtime.Version())
		fmt.Fprintf(out, "  OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		fmt.Fprintf(out, "  Commit: %s\n", CommitID)
		fmt.Fprintf(out, "  Date: %s\n", BuildDate)
		return nil
	},
}

// serverVersion asks an anonymous health client, empty when unknown
func serverVersion(ctx context.Context, address string) string {
	cfg := request.Health.Config(api.BaseURL(address))
	cfg.Timeout = 5 * time.Second
	c := api.NewClient(api.Clients{Interactive: request.New(cfg)})
	h, err := c.Health(ctx)
	if err != nil {
		return ""
	}
	return h.System.Version
}
