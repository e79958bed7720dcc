package apierror

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/url"
	"strings"

	"github.com/oneclickvirt/console/src/host"
)

// Options controls the side effects of a single classification
type Options struct {
	// ShowMessage notifies the user with the final message
	ShowMessage bool
	// AutoRedirect runs the code-specific recovery policy
	AutoRedirect bool
	// CustomMessage replaces the resolved message when set
	CustomMessage string
	// Severity of the notification, defaults to error
	Severity host.Severity
}

// DefaultOptions notifies and applies recovery policy
func DefaultOptions() Options {
	return Options{
		ShowMessage:  true,
		AutoRedirect: true,
		Severity:     host.SeverityError,
	}
}

// Silent classifies without any side effect. The request pipeline uses it
// so that callers decide how to present failures.
func Silent() Options {
	return Options{}
}

// SessionResetter is the part of the session the recovery policy needs
type SessionResetter interface {
	ClearUserData()
}

// Classifier is the single chokepoint turning failures into Records
type Classifier struct {
	taxonomy *Taxonomy
	session  SessionResetter
	nav      host.Navigator
	notifier host.Notifier
	logger   *slog.Logger
}

// ClassifierOption configures a Classifier
type ClassifierOption func(*Classifier)

// WithTaxonomy replaces the default code table
func WithTaxonomy(t *Taxonomy) ClassifierOption {
	return func(c *Classifier) { c.taxonomy = t }
}

// WithSession sets the session cleared by the recovery policy
func WithSession(s SessionResetter) ClassifierOption {
	return func(c *Classifier) { c.session = s }
}

// WithNavigator sets the navigator used for forced redirects
func WithNavigator(n host.Navigator) ClassifierOption {
	return func(c *Classifier) { c.nav = n }
}

// WithNotifier sets the notifier used for user-visible messages
func WithNotifier(n host.Notifier) ClassifierOption {
	return func(c *Classifier) { c.notifier = n }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) ClassifierOption {
	return func(c *Classifier) { c.logger = l }
}

// NewClassifier creates a classifier. Missing collaborators turn the
// matching side effects into no-ops.
func NewClassifier(opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		taxonomy: NewTaxonomy(),
		notifier: host.NopNotifier{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Taxonomy returns the code table in use
func (c *Classifier) Taxonomy() *Taxonomy {
	return c.taxonomy
}

// Classify normalizes err into exactly one Record and applies the side
// effects requested by opts. A nil error yields nil.
func (c *Classifier) Classify(err error, opts Options) *Record {
	if err == nil {
		return nil
	}

	rec, serverMessage := c.normalize(err)

	c.logger.Debug("classified failure",
		"code", rec.Code,
		"status", rec.Status,
		"message", rec.Message,
		"family", rec.Family())

	if opts.AutoRedirect && rec.Code > 0 {
		c.applyPolicy(rec.Code, serverMessage, rec.Message)
	}

	if opts.CustomMessage != "" {
		rec.Message = opts.CustomMessage
	}

	if opts.ShowMessage {
		text := rec.Message
		if rec.Details != "" {
			text += ": " + rec.Details
		}
		severity := opts.Severity
		if severity == "" {
			severity = host.SeverityError
		}
		c.notifier.Notify(text, severity)
	}

	return rec
}

// normalize returns a fresh Record plus the message the server sent, if any
func (c *Classifier) normalize(err error) (*Record, string) {
	var existing *Record
	if errors.As(err, &existing) {
		cp := *existing
		return &cp, existing.ServerMessage
	}

	var failure *Failure
	if errors.As(err, &failure) {
		return c.fromFailure(failure)
	}

	if isTransport(err) {
		return &Record{Code: CodeTransport, Message: MsgTransportFailed, OriginalError: err}, ""
	}
	return &Record{Code: CodeRequest, Message: MsgRequestInvalid, OriginalError: err}, ""
}

func (c *Classifier) fromFailure(f *Failure) (*Record, string) {
	if f.Response != nil {
		fields := f.Response.Fields
		if fields == nil {
			fields = map[string]any{}
		}

		code, ok := intField(fields, "code")
		if !ok || code == 0 {
			code, ok = intField(fields, "status")
		}
		if !ok || code == 0 {
			code = f.Response.Status
		}

		serverMessage := ""
		for _, key := range []string{"message", "msg", "error"} {
			if s := stringField(fields, key); s != "" {
				serverMessage = s
				break
			}
		}

		message := c.taxonomy.Resolve(code, serverMessage)
		// a failed response never carries a success code
		if code == CodeSuccess || code == CodeSuccessOK {
			code = CodeError
			message = serverMessage
			if message == "" {
				message = c.taxonomy.Resolve(code, "")
			}
		}

		return &Record{
			Code:          code,
			Message:       message,
			Details:       stringField(fields, "details"),
			Status:        f.Response.Status,
			ServerMessage: serverMessage,
			OriginalError: f,
		}, serverMessage
	}

	if f.Sent {
		return &Record{Code: CodeTransport, Message: MsgTransportFailed, OriginalError: f}, ""
	}
	return &Record{Code: CodeRequest, Message: MsgRequestInvalid, OriginalError: f}, ""
}

func isTransport(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// revocationMarkers are substrings the backend uses when a token was revoked
var revocationMarkers = []string{"revoked", "invalidated", "已失效", "已撤销"}

func indicatesRevocation(messages ...string) bool {
	for _, m := range messages {
		lower := strings.ToLower(m)
		for _, marker := range revocationMarkers {
			if strings.Contains(lower, marker) {
				return true
			}
		}
	}
	return false
}
