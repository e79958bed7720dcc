// Package cmd implements the ocv commands
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/oneclickvirt/console/src/client/paths"
	"github.com/oneclickvirt/console/src/host"
	"github.com/oneclickvirt/console/src/request"
)

var (
	// Build info - set via -ldflags at build time
	ProjectName = "ocv"
	Version     = "dev"
	CommitID    = "unknown"
	BuildDate   = "unknown"

	cfgFile     string
	server      string
	output      string
	noColor     bool
	timeout     int
	assumeYes   bool
	showMetrics bool

	app *App
)

// publicRoutes are the commands usable without a session
var publicRoutes = []string{"/status", "/version", "/logout", "/whoami"}

var rootCmd = &cobra.Command{
	Use:           getBinaryName(),
	Short:         "Terminal console for the OneClickVirt panel",
	Long:          `ocv signs in to a OneClickVirt panel and manages providers, instances and images from the terminal.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !needsApp(cmd) {
			return nil
		}

		cfg := appConfigFromViper()
		cfg.Route = routeOf(cmd)
		notifier := newNotifier(cmd.ErrOrStderr(), !noColor)
		confirmer := newConfirmer(cmd.InOrStdin(), cmd.ErrOrStderr(), assumeYes)

		request.ProjectName = ProjectName
		request.Version = Version
		a, err := newApp(cmd.Context(), cfg, notifier, confirmer, slog.Default())
		if err != nil {
			return err
		}
		app = a
		return nil
	},
}

// Execute runs the root command. Failures a command did not report itself
// and panics are notified through the app's error handler.
func Execute() (err error) {
	defer finish()
	defer func() {
		if r := recover(); r != nil {
			if app == nil {
				panic(r)
			}
			app.handler.Panicked(r)
			err = ErrReported
		}
	}()

	err = rootCmd.ExecuteContext(context.Background())
	if err != nil && app != nil && !errors.Is(err, ErrReported) {
		app.handler.Uncaught(err)
	}
	return err
}

// finish prints metrics when asked and releases the app
func finish() {
	if app != nil {
		if showMetrics {
			app.writeMetrics(rootCmd.ErrOrStderr())
		}
		if err := app.Close(); err != nil {
			slog.Warn("close session store", "error", err)
		}
		app = nil
	}
	closeLogging()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVarP(&server, "server", "s", "", "server address")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "", "output format: json, yaml, table")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().IntVar(&timeout, "timeout", 0, "interactive request timeout in seconds")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "answer yes to every confirmation")
	rootCmd.PersistentFlags().BoolVar(&showMetrics, "metrics", false, "print request and monitor metrics on exit")

	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd, viewCmd)
	rootCmd.AddCommand(statusCmd, watchCmd, tuiCmd)
	rootCmd.AddCommand(providersCmd, instancesCmd, imagesCmd)
	rootCmd.AddCommand(configCmd, versionCmd)
}

func initConfig() {
	viper.SetConfigFile(paths.ResolveConfigPath(cfgFile))
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("OCV")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	for key, value := range defaults() {
		viper.SetDefault(key, value)
	}

	viper.ReadInConfig()

	if err := initLogging(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not initialize log file: %v\n", err)
	}
}

// defaults are the config keys and their default values
func defaults() map[string]any {
	return map[string]any{
		"server.address":      "",
		"server.timeout":      int(request.Interactive.Timeout.Seconds()),
		"session.backend":     "file",
		"session.file":        "",
		"session.redis_url":   "",
		"session.sqlite_path": "",
		"session.prefix":      "ocv:session:",
		"session.ttl":         "0s",
		"monitor.interval":    "5m",
		"monitor.debounce":    "30s",
		"logging.level":       "warn",
		"logging.file":        "",
		"logging.max_size":    10,
		"logging.max_files":   5,
		"output.format":       "table",
	}
}

// needsApp reports whether cmd talks to the server
func needsApp(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "config", "version", "help", "completion":
			return false
		}
	}
	return true
}

// routeOf maps a command to the navigator destination it stands for
func routeOf(cmd *cobra.Command) string {
	if cmd.Name() == "login" {
		return host.PathLogin
	}
	var parts []string
	for c := cmd; c != nil && c.HasParent(); c = c.Parent() {
		parts = append([]string{c.Name()}, parts...)
	}
	if len(parts) == 0 {
		return host.PathHome
	}
	return "/" + strings.Join(parts, "/")
}

func getBinaryName() string {
	return filepath.Base(os.Args[0])
}

func getOutputFormat() string {
	if output != "" {
		return output
	}
	return viper.GetString("output.format")
}
