// Package apierror turns every failure the console sees into one normalized
// Record and applies the recovery policy attached to business codes.
package apierror

import (
	"net/http"
	"sync"
)

// Success codes
const (
	CodeSuccess   = 0
	CodeSuccessOK = 200
)

// Locally synthesized codes
const (
	// CodeTransport means the request was sent but no response arrived
	CodeTransport = -1
	// CodeRequest means the request could not be built or was never sent
	CodeRequest = -2
)

// Generic errors 1000-1999
const (
	CodeError           = 1000
	CodeInvalidParam    = 1001
	CodeInternalError   = 1002
	CodeUnauthorized    = 1003
	CodeForbidden       = 1004
	CodeNotFound        = 1005
	CodeConflict        = 1006
	CodeValidationError = 1007
)

// Identity errors 2000-2999
const (
	CodeUserNotFound       = 2001
	CodeUserExists         = 2002
	CodeInvalidCredentials = 2003
	CodeUserDisabled       = 2004
	CodeUserPermissionDeny = 2005
)

// Role and permission errors 3000-3999
const (
	CodeRoleNotFound       = 3001
	CodeRoleExists         = 3002
	CodePermissionDeny     = 3003
	CodeInvalidRole        = 3004
	CodeRoleInUse          = 3005
	CodePermissionNotFound = 3006
)

// Business rule errors 4000-4999
const (
	CodeInviteCodeInvalid = 4001
	CodeInviteCodeExpired = 4002
	CodeCaptchaInvalid    = 4003
	CodeCaptchaRequired   = 4004
)

// System errors 5000-5999
const (
	CodeConfigError      = 5001
	CodeDatabaseError    = 5002
	CodeCacheError       = 5003
	CodeExternalAPIError = 5004
	CodeRequestTooLarge  = 5005
)

// Family groups codes by numeric range
type Family string

const (
	FamilySuccess    Family = "success"
	FamilyGeneric    Family = "generic"
	FamilyIdentity   Family = "identity"
	FamilyPermission Family = "permission"
	FamilyBusiness   Family = "business"
	FamilySystem     Family = "system"
	FamilyTransport  Family = "transport"
	FamilyRequest    Family = "request"
	FamilyHTTP       Family = "http"
	FamilyUnknown    Family = "unknown"
)

// FamilyOf returns the family a code belongs to
func FamilyOf(code int) Family {
	switch {
	case code == CodeSuccess || code == CodeSuccessOK:
		return FamilySuccess
	case code == CodeTransport:
		return FamilyTransport
	case code == CodeRequest:
		return FamilyRequest
	case code >= 1000 && code < 2000:
		return FamilyGeneric
	case code >= 2000 && code < 3000:
		return FamilyIdentity
	case code >= 3000 && code < 4000:
		return FamilyPermission
	case code >= 4000 && code < 5000:
		return FamilyBusiness
	case code >= 5000 && code < 6000:
		return FamilySystem
	case code >= 100 && code < 600:
		return FamilyHTTP
	default:
		return FamilyUnknown
	}
}

// Generic fallback messages
const (
	MsgRequestFailed   = "Request failed"
	MsgUnknown         = "Unknown error"
	MsgTransportFailed = "Network connection failed, please check your network settings"
	MsgRequestInvalid  = "Request configuration error"
)

var defaultMessages = map[int]string{
	CodeSuccess:   "Operation succeeded",
	CodeSuccessOK: "Operation succeeded",

	CodeError:           "Operation failed",
	CodeInvalidParam:    "Invalid request parameters",
	CodeInternalError:   "Internal server error",
	CodeUnauthorized:    "Unauthorized access",
	CodeForbidden:       "Access forbidden",
	CodeNotFound:        "Resource not found",
	CodeConflict:        "Resource conflict",
	CodeValidationError: "Data validation failed",

	CodeUserNotFound:       "User not found",
	CodeUserExists:         "User already exists",
	CodeInvalidCredentials: "Invalid username or password",
	CodeUserDisabled:       "User has been disabled, please contact an administrator",
	CodeUserPermissionDeny: "Insufficient user permissions",

	CodeRoleNotFound:       "Role not found",
	CodeRoleExists:         "Role already exists",
	CodePermissionDeny:     "Permission denied",
	CodeInvalidRole:        "Invalid role",
	CodeRoleInUse:          "Role is in use and cannot be deleted",
	CodePermissionNotFound: "Permission not found",

	CodeInviteCodeInvalid: "Invalid invite code",
	CodeInviteCodeExpired: "Invite code has expired",
	CodeCaptchaInvalid:    "Invalid verification code",
	CodeCaptchaRequired:   "Verification code required",

	CodeConfigError:      "Configuration error",
	CodeDatabaseError:    "Database error",
	CodeCacheError:       "Cache error",
	CodeExternalAPIError: "External API call failed",
	CodeRequestTooLarge:  "Request body too large, please reduce the data size",
}

var familyMessages = map[Family]string{
	FamilyGeneric:    "Request failed",
	FamilyIdentity:   "Account error",
	FamilyPermission: "Permission error",
	FamilyBusiness:   "Business rule violation",
	FamilySystem:     "System error",
}

// Taxonomy maps codes to canonical messages. It is safe for concurrent use.
type Taxonomy struct {
	mu      sync.RWMutex
	entries map[int]string
}

// NewTaxonomy returns a taxonomy preloaded with the backend's code table
func NewTaxonomy() *Taxonomy {
	t := &Taxonomy{entries: make(map[int]string, len(defaultMessages))}
	for code, msg := range defaultMessages {
		t.entries[code] = msg
	}
	return t
}

// Register adds or replaces the canonical message for code
func (t *Taxonomy) Register(code int, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[code] = message
}

// Lookup returns the registered message for code
func (t *Taxonomy) Lookup(code int) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	msg, ok := t.entries[code]
	return msg, ok
}

// Resolve picks the message for a failure: the registered entry, then the
// server's own message, then the family default.
func (t *Taxonomy) Resolve(code int, serverMessage string) string {
	if msg, ok := t.Lookup(code); ok {
		return msg
	}
	if serverMessage != "" {
		return serverMessage
	}
	family := FamilyOf(code)
	if msg, ok := familyMessages[family]; ok {
		return msg
	}
	if family == FamilyHTTP {
		if text := http.StatusText(code); text != "" {
			return text
		}
	}
	return MsgRequestFailed
}
