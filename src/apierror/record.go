package apierror

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Record is the normalized result of classifying a failure
type Record struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`

	// Status is the HTTP status when a response arrived, 0 otherwise
	Status int `json:"-"`
	// ServerMessage is the text the server sent before taxonomy override
	ServerMessage string `json:"-"`

	OriginalError error `json:"-"`
}

func (r *Record) Error() string {
	if r.Details != "" {
		return fmt.Sprintf("[%d] %s: %s", r.Code, r.Message, r.Details)
	}
	return fmt.Sprintf("[%d] %s", r.Code, r.Message)
}

// Unwrap exposes the original failure to errors.Is / errors.As
func (r *Record) Unwrap() error {
	return r.OriginalError
}

// Family returns the code family of the record
func (r *Record) Family() Family {
	return FamilyOf(r.Code)
}

// Transient reports whether the record describes a failure with no answer
// from the server, which says nothing about session validity.
func (r *Record) Transient() bool {
	return r.Code == CodeTransport || r.Code == CodeRequest
}

// ResponseBody is the decoded body of a response that signalled failure
type ResponseBody struct {
	Status int
	Fields map[string]any
}

// Failure is a raw, unclassified failure produced by the request pipeline
type Failure struct {
	// Response is set when the server answered
	Response *ResponseBody
	// Sent is true when the request left the client
	Sent bool
	Err  error
}

func (f *Failure) Error() string {
	switch {
	case f.Response != nil:
		return fmt.Sprintf("server responded with status %d", f.Response.Status)
	case f.Err != nil:
		return f.Err.Error()
	case f.Sent:
		return "no response received"
	default:
		return "request not sent"
	}
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// intField reads a numeric field that may arrive as a JSON number or string
func intField(fields map[string]any, key string) (int, bool) {
	v, ok := fields[key]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	}
	return 0, false
}

func stringField(fields map[string]any, key string) string {
	v, ok := fields[key]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	default:
		b, err := json.Marshal(s)
		if err != nil {
			return fmt.Sprint(s)
		}
		return string(b)
	}
}
