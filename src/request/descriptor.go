package request

import (
	"net/http"
	"net/url"
	"time"
)

// Descriptor describes one outgoing call
type Descriptor struct {
	Method string
	Path   string
	Query  url.Values
	// Body is sent as-is when it is []byte or io.Reader, JSON-encoded otherwise.
	// An io.Reader body can only be sent once, so it is not retried.
	Body        any
	ContentType string
	Header      http.Header

	// Timeout overrides the client timeout for this call
	Timeout time.Duration
	// Retry is the number of extra attempts after a failed one; zero means
	// exactly one attempt
	Retry int
	// RetryDelay is the pause between attempts, DefaultRetryDelay when zero
	RetryDelay time.Duration
}

func (d Descriptor) method() string {
	if d.Method == "" {
		return http.MethodGet
	}
	return d.Method
}

func (d Descriptor) retryDelay() time.Duration {
	if d.RetryDelay > 0 {
		return d.RetryDelay
	}
	return DefaultRetryDelay
}
