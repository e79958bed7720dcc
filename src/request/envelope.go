package request

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
)

// Envelope is the backend's response wrapper
type Envelope struct {
	Code    int             `json:"code"`
	Msg     string          `json:"msg,omitempty"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data"`

	// numeric is set when code arrived as an integral JSON number
	numeric bool
}

// IsSuccessCode reports whether an envelope code means success
func IsSuccessCode(code int) bool {
	return code == 0 || code == 200
}

// Success reports whether the envelope carries a success code. Only a JSON
// number equal to 0 or 200 counts; null, fractional and quoted codes fail.
func (e *Envelope) Success() bool {
	return e.numeric && IsSuccessCode(e.Code)
}

// Text returns the human-readable message, preferring message over msg
func (e *Envelope) Text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Msg
}

// decodeEnvelope inspects a body. It reports ok=false when the body is not
// a JSON object with a code field; fields is the generic view of the body.
func decodeEnvelope(body []byte) (env *Envelope, fields map[string]any, ok bool) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, nil, false
	}
	rawCode, present := raw["code"]
	if !present {
		return nil, nil, false
	}

	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, nil, false
	}

	env = &Envelope{Data: raw["data"], Code: -1}
	if code, ok := numericCode(rawCode); ok {
		env.Code = code
		env.numeric = true
	}
	_ = json.Unmarshal(raw["msg"], &env.Msg)
	_ = json.Unmarshal(raw["message"], &env.Message)
	return env, fields, true
}

// numericCode accepts only an integral JSON number
func numericCode(raw json.RawMessage) (int, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] == '"' || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(f), true
}

// Response is a successful reply
type Response struct {
	StatusCode int
	Header     http.Header
	RequestID  string

	// Envelope is nil when the endpoint does not wrap its replies
	Envelope *Envelope
	// Body is the raw reply; nil for binary passthrough
	Body []byte
	// Stream is set only for binary passthrough; the caller must close it
	Stream io.ReadCloser
}

// Data returns the envelope payload, or the raw body when not enveloped
func (r *Response) Data() json.RawMessage {
	if r.Envelope != nil {
		return r.Envelope.Data
	}
	return r.Body
}

// Decode unmarshals Data into v
func (r *Response) Decode(v any) error {
	if r.Stream != nil {
		return fmt.Errorf("binary response cannot be decoded")
	}
	data := r.Data()
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
