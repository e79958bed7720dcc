package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oneclickvirt/console/src/monitor"
	"github.com/oneclickvirt/console/src/session"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep checking the session in the foreground",
	Long: `Run the session monitor until interrupted or until the session ends.
SIGCONT (resuming a stopped job) counts as the user coming back and
SIGUSR1 as the terminal regaining focus; both force a check.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !app.state.IsLoggedIn() {
			return session.ErrNotLoggedIn
		}
		return runWatch(cmd.Context(), cmd, make(chan os.Signal, 1), true)
	},
}

// watchEvent is one thing the foreground monitor reports
type watchEvent int

const (
	eventVisible watchEvent = iota
	eventFocus
)

func runWatch(ctx context.Context, cmd *cobra.Command, sigs chan os.Signal, notify bool) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	if notify {
		signal.Notify(sigs, append(attentionSignals(), os.Interrupt, syscall.SIGTERM)...)
		defer signal.Stop(sigs)
	}

	ended := make(chan struct{})
	var once sync.Once
	unsubscribe := app.state.OnChange(func(prev, next session.Snapshot) {
		if prev.LoggedIn() && !next.LoggedIn() {
			once.Do(func() { close(ended) })
		}
	})
	defer unsubscribe()

	unbind := app.monitor.Bind(app.state)
	defer unbind()
	defer app.monitor.Stop()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Watching session of %s, press Ctrl+C to stop\n", app.state.DisplayName())

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ended:
			fmt.Fprintln(out, "Session ended")
			return nil
		case sig := <-sigs:
			ev, ok := attentionEvent(sig)
			if !ok {
				return nil
			}
			var outcome monitor.Outcome
			if ev == eventVisible {
				outcome = app.monitor.OnBecameVisible(ctx)
			} else {
				outcome = app.monitor.OnGainedFocus(ctx)
			}
			fmt.Fprintf(out, "%s check: %s\n", time.Now().Format(time.TimeOnly), sessionText(outcome))
		}
	}
}
