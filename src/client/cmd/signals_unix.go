//go:build !windows

package cmd

import (
	"os"
	"syscall"
)

func attentionSignals() []os.Signal {
	return []os.Signal{syscall.SIGCONT, syscall.SIGUSR1}
}

func attentionEvent(sig os.Signal) (watchEvent, bool) {
	switch sig {
	case syscall.SIGCONT:
		return eventVisible, true
	case syscall.SIGUSR1:
		return eventFocus, true
	}
	return 0, false
}
