// Package main is the ocv command: a terminal console for the
// OneClickVirt panel.
package main

import (
	"fmt"

	"github.com/oneclickvirt/console/src/client/paths"
)

// InitCLI prepares the environment before any command runs. Logging is
// set up later, once the config file has been read.
func InitCLI() error {
	if err := paths.EnsureDirs(); err != nil {
		return fmt.Errorf("init directories: %w", err)
	}
	return nil
}
