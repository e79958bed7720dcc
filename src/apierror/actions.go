package apierror

import (
	"context"
	"fmt"

	"github.com/oneclickvirt/console/src/host"
)

// Default action messages
const (
	MsgOperationSucceeded = "Operation succeeded"
	MsgDeleteConfirm      = "Are you sure you want to delete? This cannot be undone."
	MsgDeleteSucceeded    = "Deleted successfully"
	MsgBatchSucceeded     = "Batch operation completed"
)

// Result is what an action hands back to the caller
type Result[T any] struct {
	Success   bool
	Cancelled bool
	Data      T
	Error     *Record
}

// ExecOptions tunes Execute, Submit and Delete
type ExecOptions struct {
	// SuccessMessage is notified on success when set
	SuccessMessage string
	// ConfirmMessage asks for confirmation first when set
	ConfirmMessage string
	// Quiet suppresses the failure notification
	Quiet bool
	// ErrorOptions overrides how failures are classified
	ErrorOptions *Options
}

func (o ExecOptions) classifyOptions() Options {
	if o.ErrorOptions != nil {
		return *o.ErrorOptions
	}
	opts := DefaultOptions()
	opts.ShowMessage = !o.Quiet
	return opts
}

// Execute runs fn and classifies its failure. Whatever fn returned
// alongside the error is kept in Data.
func Execute[T any](ctx context.Context, h *Handler, fn func(context.Context) (T, error), opts ExecOptions) Result[T] {
	data, err := fn(ctx)
	if err != nil {
		return Result[T]{Data: data, Error: h.Handle(err, opts.classifyOptions())}
	}
	if opts.SuccessMessage != "" {
		h.Notify(opts.SuccessMessage, host.SeveritySuccess)
	}
	return Result[T]{Success: true, Data: data}
}

// Wrap runs fn and turns its failure into a notified Record
func (h *Handler) Wrap(ctx context.Context, fn func(context.Context) error) Result[struct{}] {
	return Execute(ctx, h, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}, ExecOptions{})
}

// Submit runs fn after an optional confirmation
func Submit[T any](ctx context.Context, h *Handler, fn func(context.Context) (T, error), opts ExecOptions) Result[T] {
	if opts.SuccessMessage == "" {
		opts.SuccessMessage = MsgOperationSucceeded
	}
	if opts.ConfirmMessage != "" && !h.Confirm(ctx, opts.ConfirmMessage, "") {
		return Result[T]{Cancelled: true}
	}
	return Execute(ctx, h, fn, opts)
}

// Delete is Submit with delete-specific defaults
func Delete[T any](ctx context.Context, h *Handler, fn func(context.Context) (T, error), opts ExecOptions) Result[T] {
	if opts.ConfirmMessage == "" {
		opts.ConfirmMessage = MsgDeleteConfirm
	}
	if opts.SuccessMessage == "" {
		opts.SuccessMessage = MsgDeleteSucceeded
	}
	return Submit(ctx, h, fn, opts)
}

// BatchOptions tunes Batch
type BatchOptions struct {
	ExecOptions
	// ContinueOnError keeps processing after an item fails
	ContinueOnError bool
	// SkipConfirm runs without asking first
	SkipConfirm bool
}

// ItemResult is the outcome for one batch item
type ItemResult[I, R any] struct {
	Item    I
	Result  R
	Error   *Record
	Success bool
}

// BatchReport summarises a batch
type BatchReport[I, R any] struct {
	Results      []ItemResult[I, R]
	Errors       []ItemResult[I, R]
	SuccessCount int
	ErrorCount   int
	Total        int
}

// Batch runs fn for every item in order. Item failures are classified
// silently; without ContinueOnError the first failure aborts the batch
// and is handled like an Execute failure.
func Batch[I, R any](ctx context.Context, h *Handler, items []I, fn func(context.Context, I, int) (R, error), opts BatchOptions) Result[BatchReport[I, R]] {
	if opts.ConfirmMessage == "" {
		opts.ConfirmMessage = fmt.Sprintf("Are you sure you want to process %d items?", len(items))
	}
	if opts.SuccessMessage == "" {
		opts.SuccessMessage = MsgBatchSucceeded
	}
	if !opts.SkipConfirm && !h.Confirm(ctx, opts.ConfirmMessage, "") {
		return Result[BatchReport[I, R]]{Cancelled: true}
	}

	run := func(ctx context.Context) (BatchReport[I, R], error) {
		report := BatchReport[I, R]{Total: len(items)}
		for i, item := range items {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			res, err := fn(ctx, item, i)
			if err != nil {
				report.Errors = append(report.Errors, ItemResult[I, R]{
					Item:  item,
					Error: h.Handle(err, Silent()),
				})
				report.ErrorCount++
				if !opts.ContinueOnError {
					return report, err
				}
				continue
			}
			report.Results = append(report.Results, ItemResult[I, R]{Item: item, Result: res, Success: true})
			report.SuccessCount++
		}
		return report, nil
	}

	return Execute(ctx, h, run, opts.ExecOptions)
}
