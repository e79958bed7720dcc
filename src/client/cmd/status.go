package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/oneclickvirt/console/src/monitor"
)

// errUnhealthy is already shown by the status report
var errUnhealthy = fmt.Errorf("server unhealthy: %w", ErrReported)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check server health and the session",
	Long: `Check server health and re-validate the session right away.
Exits with code 0 if the server is healthy, 1 otherwise.

Examples:
  ` + getBinaryName() + ` status
  ` + getBinaryName() + ` status --output json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatus(cmd)
	},
}

// statusReport is what status prints
type statusReport struct {
	Server       string `json:"server" yaml:"server"`
	Healthy      bool   `json:"healthy" yaml:"healthy"`
	Version      string `json:"version,omitempty" yaml:"version,omitempty"`
	Error        string `json:"error,omitempty" yaml:"error,omitempty"`
	ResponseTime int64  `json:"response_time_ms" yaml:"response_time_ms"`
	Session      string `json:"session" yaml:"session"`
	User         string `json:"user,omitempty" yaml:"user,omitempty"`
	Role         string `json:"role,omitempty" yaml:"role,omitempty"`
}

// sessionText describes a check outcome for humans
func sessionText(o monitor.Outcome) string {
	switch o {
	case monitor.OutcomeValid:
		return "valid"
	case monitor.OutcomeInvalid:
		return "expired"
	case monitor.OutcomeAnonymous:
		return "not logged in"
	case monitor.OutcomeError:
		return "unknown (server unreachable)"
	default:
		return string(o)
	}
}

func runStatus(cmd *cobra.Command) error {
	ctx := cmd.Context()
	report := statusReport{Server: app.api.BaseURL()}

	start := time.Now()
	health, err := app.api.Health(ctx)
	report.ResponseTime = time.Since(start).Milliseconds()
	if err != nil {
		report.Error = err.Error()
	} else {
		report.Healthy = health.Healthy
		report.Version = health.System.Version
		if !health.Healthy && health.Database.Error != "" {
			report.Error = health.Database.Error
		}
	}

	report.Session = sessionText(app.monitor.ForceCheck(ctx))
	if app.state.IsLoggedIn() {
		report.User = app.state.DisplayName()
		report.Role = app.state.RoleText()
	}

	if err := printResult(cmd.OutOrStdout(), report, func(tw *tabwriter.Writer) {
		status := "OK"
		if !report.Healthy {
			status = "ERROR"
		}
		fmt.Fprintf(tw, "Server:\t%s\n", report.Server)
		fmt.Fprintf(tw, "Status:\t%s\n", status)
		if report.Version != "" {
			fmt.Fprintf(tw, "Version:\t%s\n", report.Version)
		}
		if report.Error != "" {
			fmt.Fprintf(tw, "Error:\t%s\n", report.Error)
		}
		fmt.Fprintf(tw, "Response time:\t%dms\n", report.ResponseTime)
		fmt.Fprintf(tw, "Session:\t%s\n", report.Session)
		if report.User != "" {
			fmt.Fprintf(tw, "User:\t%s (%s)\n", report.User, report.Role)
		}
	}); err != nil {
		return err
	}

	if !report.Healthy {
		return errUnhealthy
	}
	return nil
}
