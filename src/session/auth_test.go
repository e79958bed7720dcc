package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/oneclickvirt/console/src/apierror"
	"github.com/oneclickvirt/console/src/request"
)

// fakeBackend answers the authentication endpoints
type fakeBackend struct {
	loginBody  map[string]any
	infoStatus int
	infoBody   string
	logouts    atomic.Int32
	logoutFail bool
	lastAuth   string
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.lastAuth = r.Header.Get("Authorization")
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case PathLogin:
		json.NewDecoder(r.Body).Decode(&b.loginBody)
		if b.loginBody["password"] != "secret" {
			io.WriteString(w, `{"code":2003,"msg":"wrong password"}`)
			return
		}
		userType := ""
		if b.loginBody["username"] == "root" {
			userType = `,"userType":"admin"`
		}
		io.WriteString(w, `{"code":0,"data":{"token":"tok-`+b.loginBody["username"].(string)+`","user":{"id":1,"username":"`+b.loginBody["username"].(string)+`"`+userType+`}}}`)
	case PathUserInfo:
		if b.infoStatus != 0 {
			w.WriteHeader(b.infoStatus)
		}
		io.WriteString(w, b.infoBody)
	case PathLogout:
		b.logouts.Add(1)
		if b.logoutFail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		io.WriteString(w, `{"code":0,"data":null}`)
	default:
		http.NotFound(w, r)
	}
}

func newAuthState(t *testing.T, backend *fakeBackend) *State {
	t.Helper()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	s := New(nil)
	s.SetRequester(request.New(request.Config{BaseURL: srv.URL}, request.WithTokenSource(s)))
	return s
}

func TestLogin(t *testing.T) {
	backend := &fakeBackend{}
	s := newAuthState(t, backend)

	if err := s.Login(context.Background(), Credentials{Username: "alice", Password: "secret"}); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if s.Token() != "tok-alice" || s.Role() != RoleUser || s.ViewMode() != ViewUser {
		t.Errorf("after login %+v", s.Snapshot())
	}
	if backend.loginBody["loginType"] != "username" || backend.loginBody["userType"] != "user" {
		t.Errorf("login body = %v", backend.loginBody)
	}
}

func TestAdminLogin(t *testing.T) {
	backend := &fakeBackend{}
	s := newAuthState(t, backend)

	if err := s.AdminLogin(context.Background(), Credentials{Username: "ops", Password: "secret"}); err != nil {
		t.Fatalf("AdminLogin() error = %v", err)
	}
	if s.Role() != RoleAdmin || s.ViewMode() != ViewAdmin {
		t.Errorf("server sent no role, admin flow default expected: %+v", s.Snapshot())
	}
	if backend.loginBody["userType"] != "admin" {
		t.Errorf("login body = %v", backend.loginBody)
	}
}

func TestLoginServerRoleWins(t *testing.T) {
	s := newAuthState(t, &fakeBackend{})

	if err := s.Login(context.Background(), Credentials{Username: "root", Password: "secret"}); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if s.Role() != RoleAdmin {
		t.Errorf("Role() = %q, want admin from server", s.Role())
	}
}

func TestLoginFailureIsReturned(t *testing.T) {
	s := newAuthState(t, &fakeBackend{})

	err := s.Login(context.Background(), Credentials{Username: "alice", Password: "nope"})
	var rec *apierror.Record
	if !errors.As(err, &rec) || rec.Code != apierror.CodeInvalidCredentials {
		t.Fatalf("Login() error = %v", err)
	}
	if s.IsLoggedIn() {
		t.Error("failed login must not establish a session")
	}
}

func TestLoginWithoutRequester(t *testing.T) {
	if err := New(nil).Login(context.Background(), Credentials{}); !errors.Is(err, ErrNoRequester) {
		t.Errorf("error = %v, want ErrNoRequester", err)
	}
}

func TestFetchUserInfo(t *testing.T) {
	backend := &fakeBackend{
		infoBody: `{"code":0,"data":{"user":{"id":9,"username":"alice","userType":"admin"},"nickname":"Ali","permissions":["a"]}}`,
	}
	s := newAuthState(t, backend)
	s.Establish("tok", User{UserType: "user"})

	u, err := s.FetchUserInfo(context.Background())
	if err != nil {
		t.Fatalf("FetchUserInfo() error = %v", err)
	}
	if u.Username != "alice" || u.Nickname != "Ali" || u.ID != 9 {
		t.Errorf("user = %+v", u)
	}
	if s.Role() != RoleAdmin {
		t.Errorf("Role() = %q, nested userType should win", s.Role())
	}
	if backend.lastAuth != "Bearer tok" {
		t.Errorf("Authorization = %q", backend.lastAuth)
	}
	if !s.HasPermission("a") {
		t.Error("permissions not applied")
	}
}

func TestFetchUserInfoKeepsRoleWhenAbsent(t *testing.T) {
	s := newAuthState(t, &fakeBackend{infoBody: `{"code":0,"data":{"username":"ops"}}`})
	s.Establish("tok", User{UserType: "admin"})

	if _, err := s.FetchUserInfo(context.Background()); err != nil {
		t.Fatalf("FetchUserInfo() error = %v", err)
	}
	if s.Role() != RoleAdmin {
		t.Errorf("Role() = %q, want admin kept", s.Role())
	}
}

func TestFetchUserInfoAnonymous(t *testing.T) {
	s := newAuthState(t, &fakeBackend{})
	if _, err := s.FetchUserInfo(context.Background()); !errors.Is(err, ErrNotLoggedIn) {
		t.Errorf("error = %v, want ErrNotLoggedIn", err)
	}
}

func TestLogout(t *testing.T) {
	for _, fail := range []bool{false, true} {
		backend := &fakeBackend{logoutFail: fail}
		s := newAuthState(t, backend)
		s.Establish("tok", User{UserType: "admin"})

		s.Logout(context.Background())

		if backend.logouts.Load() != 1 {
			t.Errorf("fail=%v: logout calls = %d", fail, backend.logouts.Load())
		}
		if s.IsLoggedIn() || s.Role() != RoleUser {
			t.Errorf("fail=%v: session not cleared: %+v", fail, s.Snapshot())
		}
	}
}

func TestRevalidate(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		startRole string
		wantValid bool
		wantErr   bool
		wantToken bool
		wantRole  Role
	}{
		{
			name:      "valid session",
			body:      `{"code":0,"data":{"user":{"userType":"user"}}}`,
			startRole: "user",
			wantValid: true, wantToken: true, wantRole: RoleUser,
		},
		{
			name:      "role promoted on server",
			body:      `{"code":0,"data":{"userType":"admin"}}`,
			startRole: "user",
			wantValid: true, wantToken: true, wantRole: RoleAdmin,
		},
		{
			name:      "http 401 clears",
			status:    http.StatusUnauthorized,
			body:      `{"code":401,"msg":"expired"}`,
			startRole: "admin",
			wantRole:  RoleUser,
		},
		{
			name:      "code 1003 clears",
			body:      `{"code":1003,"msg":"unauthorized"}`,
			startRole: "user",
			wantRole:  RoleUser,
		},
		{
			name:      "disabled account clears",
			body:      `{"code":2004,"msg":"disabled"}`,
			startRole: "user",
			wantRole:  RoleUser,
		},
		{
			name:      "server error is indeterminate",
			status:    http.StatusBadGateway,
			body:      `upstream down`,
			startRole: "admin",
			wantErr:   true, wantToken: true, wantRole: RoleAdmin,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newAuthState(t, &fakeBackend{infoStatus: tt.status, infoBody: tt.body})
			s.Establish("tok", User{UserType: tt.startRole})

			valid, err := s.Revalidate(context.Background())
			if valid != tt.wantValid {
				t.Errorf("valid = %v, want %v", valid, tt.wantValid)
			}
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if s.IsLoggedIn() != tt.wantToken {
				t.Errorf("IsLoggedIn() = %v, want %v", s.IsLoggedIn(), tt.wantToken)
			}
			if s.Role() != tt.wantRole {
				t.Errorf("Role() = %q, want %q", s.Role(), tt.wantRole)
			}
		})
	}
}

func TestRevalidateWithoutToken(t *testing.T) {
	s := newAuthState(t, &fakeBackend{})
	valid, err := s.Revalidate(context.Background())
	if valid || err != nil {
		t.Errorf("Revalidate() = %v, %v", valid, err)
	}
}
