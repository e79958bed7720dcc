package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/oneclickvirt/console/src/apierror"
	"github.com/oneclickvirt/console/src/session"
)

var (
	loginAdmin    bool
	loginUsername string
	whoamiRefresh bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and keep the session",
	Long: `Sign in with a username and password. The session is kept in the
configured session backend until logout or expiry.

Examples:
  ` + getBinaryName() + ` login -u alice
  ` + getBinaryName() + ` login --admin -u root`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLogin(cmd)
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !app.state.IsLoggedIn() {
			fmt.Fprintln(cmd.OutOrStdout(), "Not logged in")
			return nil
		}
		app.state.Logout(cmd.Context())
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWhoami(cmd)
	},
}

var viewCmd = &cobra.Command{
	Use:       "view [user|admin]",
	Short:     "Show or switch the view mode",
	Long:      `Administrators may switch between the admin and the user view. Without an argument the current view is printed.`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{string(session.ViewUser), string(session.ViewAdmin)},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runView(cmd, args)
	},
}

func init() {
	loginCmd.Flags().BoolVar(&loginAdmin, "admin", false, "sign in through the administrator flow")
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "username (prompted when empty)")
	whoamiCmd.Flags().BoolVar(&whoamiRefresh, "refresh", false, "fetch the profile from the server first")
}

func runLogin(cmd *cobra.Command) error {
	in := bufio.NewReader(cmd.InOrStdin())
	out := cmd.ErrOrStderr()

	creds := session.Credentials{Username: loginUsername}
	if creds.Username == "" {
		fmt.Fprint(out, "Username: ")
		name, err := readLine(in)
		if err != nil {
			return fmt.Errorf("failed to read username: %w", err)
		}
		creds.Username = name
	}
	password, err := readSecret(in, cmd.InOrStdin(), out, "Password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	creds.Password = password
	if creds.Username == "" || creds.Password == "" {
		return errors.New("username and password cannot be empty")
	}

	login := app.state.Login
	if loginAdmin {
		login = app.state.AdminLogin
	}
	if _, err := run(cmd.Context(), app, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, login(ctx, creds)
	}, apierror.ExecOptions{}); err != nil {
		return err
	}

	if _, err := app.state.FetchUserInfo(cmd.Context()); err != nil {
		app.logger.Warn("could not fetch user info after login", "error", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", app.state.DisplayName(), app.state.RoleText())
	return nil
}

// identity is what whoami prints
type identity struct {
	LoggedIn    bool     `json:"logged_in" yaml:"logged_in"`
	Username    string   `json:"username,omitempty" yaml:"username,omitempty"`
	DisplayName string   `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	Email       string   `json:"email,omitempty" yaml:"email,omitempty"`
	Role        string   `json:"role,omitempty" yaml:"role,omitempty"`
	RoleText    string   `json:"role_text,omitempty" yaml:"role_text,omitempty"`
	ViewMode    string   `json:"view_mode,omitempty" yaml:"view_mode,omitempty"`
	Avatar      string   `json:"avatar,omitempty" yaml:"avatar,omitempty"`
	Permissions []string `json:"permissions,omitempty" yaml:"permissions,omitempty"`
}

func currentIdentity(s *session.State) identity {
	snap := s.Snapshot()
	if !snap.LoggedIn() {
		return identity{}
	}
	return identity{
		LoggedIn:    true,
		Username:    snap.User.Username,
		DisplayName: s.DisplayName(),
		Email:       snap.User.Email,
		Role:        string(snap.Role),
		RoleText:    s.RoleText(),
		ViewMode:    string(snap.ViewMode),
		Avatar:      s.AvatarURL(),
		Permissions: snap.Permissions,
	}
}

func runWhoami(cmd *cobra.Command) error {
	if whoamiRefresh && app.state.IsLoggedIn() {
		if _, err := run(cmd.Context(), app, func(ctx context.Context) (session.User, error) {
			return app.state.FetchUserInfo(ctx)
		}, apierror.ExecOptions{}); err != nil {
			return err
		}
	}

	id := currentIdentity(app.state)
	return printResult(cmd.OutOrStdout(), id, func(tw *tabwriter.Writer) {
		if !id.LoggedIn {
			fmt.Fprintln(tw, "Not logged in")
			return
		}
		fmt.Fprintf(tw, "User:\t%s\n", id.DisplayName)
		fmt.Fprintf(tw, "Username:\t%s\n", orDash(id.Username))
		fmt.Fprintf(tw, "Email:\t%s\n", orDash(id.Email))
		fmt.Fprintf(tw, "Role:\t%s\n", id.RoleText)
		fmt.Fprintf(tw, "View:\t%s\n", id.ViewMode)
		if len(id.Permissions) > 0 {
			fmt.Fprintf(tw, "Permissions:\t%s\n", strings.Join(id.Permissions, ", "))
		}
	})
}

func runView(cmd *cobra.Command, args []string) error {
	if !app.state.IsLoggedIn() {
		return session.ErrNotLoggedIn
	}
	if len(args) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), app.state.ViewMode())
		return nil
	}

	mode := session.ViewMode(args[0])
	if app.state.ViewMode() == mode {
		fmt.Fprintf(cmd.OutOrStdout(), "Already in the %s view\n", mode)
		return nil
	}
	if _, err := app.state.SwitchViewMode(mode); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Switched to the %s view\n", mode)
	return nil
}
