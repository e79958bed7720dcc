package apierror

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/oneclickvirt/console/src/host"
)

// Fallback messages for failures nobody handled
const (
	MsgUncaught         = "The system encountered an unexpected error, please retry"
	MsgPanic            = "The system encountered an internal error, please restart the operation"
	MsgValidationPrefix = "Form validation failed"
	DefaultConfirmTitle = "Confirm operation"
)

// Handler is the facade call sites import to handle failures, notify and
// confirm without touching the classifier directly.
type Handler struct {
	classifier *Classifier
	notifier   host.Notifier
	confirmer  host.Confirmer
	logger     *slog.Logger
}

// NewHandler creates a facade. A nil notifier discards messages, a nil
// confirmer rejects every confirmation.
func NewHandler(c *Classifier, notifier host.Notifier, confirmer host.Confirmer) *Handler {
	if notifier == nil {
		notifier = host.NopNotifier{}
	}
	return &Handler{
		classifier: c,
		notifier:   notifier,
		confirmer:  confirmer,
		logger:     c.logger,
	}
}

// Handle classifies err with opts
func (h *Handler) Handle(err error, opts Options) *Record {
	return h.classifier.Classify(err, opts)
}

// Notify shows message with the given severity
func (h *Handler) Notify(message string, severity host.Severity) {
	if severity == "" {
		severity = host.SeverityInfo
	}
	h.notifier.Notify(message, severity)
}

// Confirm asks the user to accept an action
func (h *Handler) Confirm(ctx context.Context, message, title string, opts ...host.ConfirmOptions) bool {
	if h.confirmer == nil {
		return false
	}
	if title == "" {
		title = DefaultConfirmTitle
	}
	o := host.DefaultConfirmOptions()
	if len(opts) > 0 {
		o = opts[0]
	}
	return h.confirmer.Confirm(ctx, message, title, o)
}

// ValidationErrors notifies one message summarising per-field failures
func (h *Handler) ValidationErrors(fields map[string][]string, prefix string) {
	if prefix == "" {
		prefix = MsgValidationPrefix
	}
	if len(fields) == 0 {
		h.notifier.Notify(prefix, host.SeverityError)
		return
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, strings.Join(fields[name], ", ")))
	}
	h.notifier.Notify(prefix+": "+strings.Join(parts, "; "), host.SeverityError)
}

// Uncaught is the last-resort net for failures no caller handled
func (h *Handler) Uncaught(err error) *Record {
	h.logger.Error("uncaught failure", "error", err)
	opts := DefaultOptions()
	opts.CustomMessage = MsgUncaught
	return h.classifier.Classify(err, opts)
}

// Recover turns a panic into a notification. Use it directly with defer.
func (h *Handler) Recover() {
	if r := recover(); r != nil {
		h.Panicked(r)
	}
}

// Panicked notifies a value already taken from recover
func (h *Handler) Panicked(r any) *Record {
	err, ok := r.(error)
	if !ok {
		err = fmt.Errorf("panic: %v", r)
	}
	h.logger.Error("recovered panic", "panic", r)
	opts := DefaultOptions()
	opts.CustomMessage = MsgPanic
	return h.classifier.Classify(err, opts)
}
