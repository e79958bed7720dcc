// Package host defines the collaborators the session core consumes from
// whatever environment embeds it: navigation, notification and
// confirmation. The core only decides what to do; rendering is up to the host.
package host

import "context"

// Severity is the level attached to a user-visible notification
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Well-known destinations
const (
	PathHome           = "/home"
	PathLogin          = "/login"
	PathRegister       = "/register"
	PathForgotPassword = "/forgot-password"
)

// PublicPaths are destinations reachable without a session. The status
// monitor never redirects away from these.
var PublicPaths = []string{PathHome, PathLogin, PathRegister, PathForgotPassword}

// IsPublicPath reports whether path is one of PublicPaths
func IsPublicPath(path string) bool {
	for _, p := range PublicPaths {
		if p == path {
			return true
		}
	}
	return false
}

// Navigator moves the host to another destination
type Navigator interface {
	NavigateTo(path string)
	CurrentPath() string
	// CurrentRouteRequiresAuth reports whether the current destination is
	// only reachable with a session.
	CurrentRouteRequiresAuth() bool
}

// Notifier shows a message to the user
type Notifier interface {
	Notify(message string, severity Severity)
}

// ConfirmOptions customises a confirmation dialog
type ConfirmOptions struct {
	ConfirmText string
	CancelText  string
	Severity    Severity
}

// DefaultConfirmOptions returns the options used when the caller passes none
func DefaultConfirmOptions() ConfirmOptions {
	return ConfirmOptions{
		ConfirmText: "OK",
		CancelText:  "Cancel",
		Severity:    SeverityWarning,
	}
}

// Confirmer asks the user to accept or reject an action.
// Dismissal and cancellation both return false.
type Confirmer interface {
	Confirm(ctx context.Context, message, title string, opts ConfirmOptions) bool
}

// NopNotifier discards every notification
type NopNotifier struct{}

// Notify implements Notifier
func (NopNotifier) Notify(string, Severity) {}
