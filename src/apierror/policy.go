package apierror

import (
	"net/http"

	"github.com/oneclickvirt/console/src/host"
)

// Action is the recovery step attached to a code
type Action int

const (
	ActionNone Action = iota
	// ActionReauthenticate clears the session and sends the user to login
	// when the token was revoked or the current route needs a session
	ActionReauthenticate
	// ActionPermissionDenied only notifies
	ActionPermissionDenied
	// ActionAccountDisabled clears the session and sends the user to login
	ActionAccountDisabled
	// ActionPayloadTooLarge only notifies
	ActionPayloadTooLarge
)

// Policy messages
const (
	MsgSessionInvalidated = "Your login session has been invalidated, please log in again"
	MsgSessionExpired     = "Login expired, please log in again"
	MsgPermissionDenied   = "You do not have permission to perform this action"
	MsgAccountDisabled    = "Your account has been disabled, please contact an administrator"
	MsgPayloadTooLarge    = "The uploaded file or data is too large, please reduce its size"
)

// PolicyFor returns the recovery action for code
func PolicyFor(code int) Action {
	switch code {
	case CodeUnauthorized, http.StatusUnauthorized:
		return ActionReauthenticate
	case CodeForbidden, CodeUserPermissionDeny, CodePermissionDeny, http.StatusForbidden:
		return ActionPermissionDenied
	case CodeUserDisabled:
		return ActionAccountDisabled
	case CodeRequestTooLarge, http.StatusRequestEntityTooLarge:
		return ActionPayloadTooLarge
	default:
		return ActionNone
	}
}

func (c *Classifier) applyPolicy(code int, serverMessage, message string) {
	switch PolicyFor(code) {
	case ActionReauthenticate:
		if indicatesRevocation(serverMessage, message) {
			c.forceLogin(MsgSessionInvalidated, host.SeverityWarning)
			return
		}
		if c.nav != nil && c.nav.CurrentRouteRequiresAuth() {
			c.forceLogin(MsgSessionExpired, host.SeverityWarning)
		}

	case ActionPermissionDenied:
		c.notifier.Notify(MsgPermissionDenied, host.SeverityError)

	case ActionAccountDisabled:
		c.forceLogin(MsgAccountDisabled, host.SeverityError)

	case ActionPayloadTooLarge:
		c.notifier.Notify(MsgPayloadTooLarge, host.SeverityError)
	}
}

func (c *Classifier) forceLogin(message string, severity host.Severity) {
	if c.session != nil {
		c.session.ClearUserData()
	}
	if c.nav != nil {
		c.nav.NavigateTo(host.PathLogin)
	}
	c.notifier.Notify(message, severity)
	c.logger.Info("session reset by recovery policy", "reason", message)
}
