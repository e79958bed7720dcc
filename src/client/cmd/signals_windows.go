//go:build windows

package cmd

import "os"

func attentionSignals() []os.Signal { return nil }

func attentionEvent(os.Signal) (watchEvent, bool) { return 0, false }
