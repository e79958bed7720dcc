package apierror

import (
	"context"
	"errors"
	"net"
	"net/url"
	"sync"
	"testing"

	"github.com/oneclickvirt/console/src/host"
)

type notice struct {
	message  string
	severity host.Severity
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []notice
}

func (n *recordingNotifier) Notify(message string, severity host.Severity) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice{message, severity})
}

func (n *recordingNotifier) last() (notice, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.notices) == 0 {
		return notice{}, false
	}
	return n.notices[len(n.notices)-1], true
}

type fakeSession struct {
	cleared int
}

func (s *fakeSession) ClearUserData() { s.cleared++ }

func newTestClassifier(start string) (*Classifier, *fakeSession, *host.Router, *recordingNotifier) {
	sess := &fakeSession{}
	router := host.NewRouter(start)
	notifier := &recordingNotifier{}
	c := NewClassifier(WithSession(sess), WithNavigator(router), WithNotifier(notifier))
	return c, sess, router, notifier
}

func responseFailure(status int, fields map[string]any) *Failure {
	return &Failure{Response: &ResponseBody{Status: status, Fields: fields}, Sent: true}
}

func TestClassifyNil(t *testing.T) {
	c := NewClassifier()
	if rec := c.Classify(nil, DefaultOptions()); rec != nil {
		t.Errorf("Classify(nil) = %v, want nil", rec)
	}
}

func TestClassifyResponseBody(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		fields      map[string]any
		wantCode    int
		wantMessage string
		wantDetails string
	}{
		{
			name:        "known code overrides server message",
			status:      200,
			fields:      map[string]any{"code": float64(2001), "msg": "no such user"},
			wantCode:    2001,
			wantMessage: "User not found",
		},
		{
			name:        "unknown code keeps server message",
			status:      200,
			fields:      map[string]any{"code": float64(4099), "message": "quota exhausted"},
			wantCode:    4099,
			wantMessage: "quota exhausted",
		},
		{
			name:        "message preferred over msg and error",
			status:      400,
			fields:      map[string]any{"code": float64(4500), "message": "first", "msg": "second", "error": "third"},
			wantCode:    4500,
			wantMessage: "first",
		},
		{
			name:        "error field used last",
			status:      400,
			fields:      map[string]any{"code": float64(4500), "error": "third"},
			wantCode:    4500,
			wantMessage: "third",
		},
		{
			name:        "falls back to status field",
			status:      500,
			fields:      map[string]any{"status": float64(1005)},
			wantCode:    1005,
			wantMessage: "Resource not found",
		},
		{
			name:        "falls back to http status",
			status:      502,
			fields:      map[string]any{},
			wantCode:    502,
			wantMessage: "Bad Gateway",
		},
		{
			name:        "family default without message",
			status:      200,
			fields:      map[string]any{"code": float64(5999)},
			wantCode:    5999,
			wantMessage: "System error",
		},
		{
			name:        "details carried",
			status:      400,
			fields:      map[string]any{"code": float64(1001), "details": "name is required"},
			wantCode:    1001,
			wantMessage: "Invalid request parameters",
			wantDetails: "name is required",
		},
		{
			name:        "string code",
			status:      200,
			fields:      map[string]any{"code": "3003"},
			wantCode:    3003,
			wantMessage: "Permission denied",
		},
		{
			name:        "non-numeric code on a failed 200 keeps server message",
			status:      200,
			fields:      map[string]any{"code": "abc", "msg": "x"},
			wantCode:    CodeError,
			wantMessage: "x",
		},
		{
			name:        "quoted success code is still a failure",
			status:      200,
			fields:      map[string]any{"code": "0"},
			wantCode:    CodeError,
			wantMessage: "Operation failed",
		},
		{
			name:        "null code",
			status:      200,
			fields:      map[string]any{"code": nil, "message": "broken"},
			wantCode:    CodeError,
			wantMessage: "broken",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClassifier()
			rec := c.Classify(responseFailure(tt.status, tt.fields), Silent())
			if rec.Code != tt.wantCode {
				t.Errorf("Code = %d, want %d", rec.Code, tt.wantCode)
			}
			if rec.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", rec.Message, tt.wantMessage)
			}
			if rec.Details != tt.wantDetails {
				t.Errorf("Details = %q, want %q", rec.Details, tt.wantDetails)
			}
			if rec.Status != tt.status {
				t.Errorf("Status = %d, want %d", rec.Status, tt.status)
			}
		})
	}
}

func TestClassifyTransportAndRequest(t *testing.T) {
	c := NewClassifier()

	sent := c.Classify(&Failure{Sent: true, Err: errors.New("connection reset")}, Silent())
	if sent.Code != CodeTransport || sent.Message != MsgTransportFailed {
		t.Errorf("sent failure = %+v", sent)
	}

	unsent := c.Classify(&Failure{Err: errors.New("bad url")}, Silent())
	if unsent.Code != CodeRequest || unsent.Message != MsgRequestInvalid {
		t.Errorf("unsent failure = %+v", unsent)
	}

	urlErr := &url.Error{Op: "Get", URL: "http://x", Err: &net.OpError{Op: "dial", Err: errors.New("refused")}}
	if rec := c.Classify(urlErr, Silent()); rec.Code != CodeTransport {
		t.Errorf("url.Error code = %d, want %d", rec.Code, CodeTransport)
	}
	if rec := c.Classify(context.DeadlineExceeded, Silent()); rec.Code != CodeTransport {
		t.Errorf("deadline code = %d, want %d", rec.Code, CodeTransport)
	}
	if rec := c.Classify(errors.New("plain"), Silent()); rec.Code != CodeRequest {
		t.Errorf("plain error code = %d, want %d", rec.Code, CodeRequest)
	}
}

func TestClassifyKeepsOriginalError(t *testing.T) {
	cause := errors.New("boom")
	c := NewClassifier()
	rec := c.Classify(&Failure{Sent: true, Err: cause}, Silent())
	if !errors.Is(rec, cause) {
		t.Error("Record should unwrap to the original cause")
	}
}

func TestClassifyRecordPassthrough(t *testing.T) {
	c, sess, _, _ := newTestClassifier("/dashboard")
	first := c.Classify(responseFailure(401, map[string]any{"code": float64(401), "msg": "token revoked"}), Silent())
	if sess.cleared != 0 {
		t.Fatal("silent classification must not clear the session")
	}

	second := c.Classify(first, DefaultOptions())
	if second == first {
		t.Error("passthrough should return a copy")
	}
	if second.Code != 401 {
		t.Errorf("Code = %d, want 401", second.Code)
	}
	if sess.cleared != 1 {
		t.Errorf("session cleared %d times, want 1", sess.cleared)
	}
}

func TestClassifyShowMessage(t *testing.T) {
	c, _, _, notifier := newTestClassifier("/dashboard")

	c.Classify(responseFailure(200, map[string]any{"code": float64(1001), "details": "size"}), Options{ShowMessage: true})
	n, ok := notifier.last()
	if !ok {
		t.Fatal("expected a notification")
	}
	if n.message != "Invalid request parameters: size" || n.severity != host.SeverityError {
		t.Errorf("notice = %+v", n)
	}

	rec := c.Classify(errors.New("x"), Options{ShowMessage: true, CustomMessage: "custom", Severity: host.SeverityWarning})
	if rec.Message != "custom" {
		t.Errorf("Message = %q, want custom", rec.Message)
	}
	n, _ = notifier.last()
	if n.message != "custom" || n.severity != host.SeverityWarning {
		t.Errorf("notice = %+v", n)
	}
}

func TestClassifySilentHasNoSideEffects(t *testing.T) {
	c, sess, router, notifier := newTestClassifier("/dashboard")
	for _, code := range []int{401, 1003, 2004, 403, 413} {
		c.Classify(responseFailure(200, map[string]any{"code": float64(code)}), Silent())
	}
	if sess.cleared != 0 || len(router.History()) != 0 || len(notifier.notices) != 0 {
		t.Errorf("silent classification had side effects: cleared=%d nav=%v notices=%v",
			sess.cleared, router.History(), notifier.notices)
	}
}

func TestTaxonomyRegister(t *testing.T) {
	tax := NewTaxonomy()
	tax.Register(4500, "Instance quota reached")
	c := NewClassifier(WithTaxonomy(tax))

	rec := c.Classify(responseFailure(200, map[string]any{"code": float64(4500), "msg": "quota"}), Silent())
	if rec.Message != "Instance quota reached" {
		t.Errorf("Message = %q", rec.Message)
	}
	if c.Taxonomy() != tax {
		t.Error("Taxonomy() should return the configured table")
	}
}

func TestFamilyOf(t *testing.T) {
	tests := []struct {
		code int
		want Family
	}{
		{0, FamilySuccess},
		{200, FamilySuccess},
		{-1, FamilyTransport},
		{-2, FamilyRequest},
		{1003, FamilyGeneric},
		{2004, FamilyIdentity},
		{3003, FamilyPermission},
		{4001, FamilyBusiness},
		{5005, FamilySystem},
		{404, FamilyHTTP},
		{9000, FamilyUnknown},
	}
	for _, tt := range tests {
		if got := FamilyOf(tt.code); got != tt.want {
			t.Errorf("FamilyOf(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestRecordError(t *testing.T) {
	r := &Record{Code: 1001, Message: "Invalid request parameters"}
	if r.Error() != "[1001] Invalid request parameters" {
		t.Errorf("Error() = %q", r.Error())
	}
	r.Details = "name"
	if r.Error() != "[1001] Invalid request parameters: name" {
		t.Errorf("Error() = %q", r.Error())
	}
	if !(&Record{Code: CodeTransport}).Transient() {
		t.Error("transport record should be transient")
	}
	if (&Record{Code: 1003}).Transient() {
		t.Error("1003 should not be transient")
	}
}
