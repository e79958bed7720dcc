package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oneclickvirt/console/src/client/tui"
	"github.com/oneclickvirt/console/src/session"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive session dashboard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !app.state.IsLoggedIn() {
			return session.ErrNotLoggedIn
		}
		// notifications would draw over the alternate screen
		if n, ok := app.notifier.(*cliNotifier); ok {
			n.muted.Store(true)
			defer n.muted.Store(false)
		}
		unbind := app.monitor.Bind(app.state)
		defer unbind()
		return tui.Run(cmd.Context(), app.state, app.monitor)
	},
}
