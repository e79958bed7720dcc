package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/oneclickvirt/console/src/apierror"
	"github.com/oneclickvirt/console/src/request"
)

// Authentication endpoints
const (
	PathLogin    = "/v1/auth/login"
	PathLogout   = "/v1/auth/logout"
	PathUserInfo = "/v1/user/info"
)

// Credentials is the login form
type Credentials struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	Captcha   string `json:"captcha,omitempty"`
	CaptchaID string `json:"captchaId,omitempty"`
}

type loginRequest struct {
	Credentials
	LoginType string `json:"loginType"`
	UserType  string `json:"userType"`
}

type loginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// userInfo is the /v1/user/info payload. Identity fields may be nested under
// "user", at the top level, or both.
type userInfo struct {
	User        *User    `json:"user"`
	UserType    string   `json:"userType"`
	Permissions []string `json:"permissions"`
}

func (s *State) client() (*request.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.requester == nil {
		return nil, ErrNoRequester
	}
	return s.requester, nil
}

// Login signs in a regular user. Failures are returned to the caller.
func (s *State) Login(ctx context.Context, creds Credentials) error {
	return s.login(ctx, creds, RoleUser)
}

// AdminLogin signs in an administrator. Failures are returned to the caller.
func (s *State) AdminLogin(ctx context.Context, creds Credentials) error {
	return s.login(ctx, creds, RoleAdmin)
}

func (s *State) login(ctx context.Context, creds Credentials, role Role) error {
	c, err := s.client()
	if err != nil {
		return err
	}

	data, err := request.Call[loginResponse](ctx, c, request.Descriptor{
		Method: http.MethodPost,
		Path:   PathLogin,
		Body: loginRequest{
			Credentials: creds,
			LoginType:   "username",
			UserType:    string(role),
		},
	})
	if err != nil {
		return err
	}
	if data.Token == "" {
		return fmt.Errorf("login response carried no token")
	}

	// the server's role wins over the one requested
	if data.User.UserType == "" {
		data.User.UserType = string(role)
	}
	s.Establish(data.Token, data.User)
	s.logger.Info("logged in", "username", data.User.Username, "role", data.User.UserType)
	return nil
}

// FetchUserInfo refreshes the identity from the server
func (s *State) FetchUserInfo(ctx context.Context) (User, error) {
	if !s.IsLoggedIn() {
		return User{}, ErrNotLoggedIn
	}
	u, perms, err := s.fetchUser(ctx)
	if err != nil {
		return User{}, err
	}
	if u.UserType == "" {
		u.UserType = string(s.Role())
	}
	s.SetUser(u)
	if perms != nil {
		s.SetPermissions(perms)
	}
	return s.User(), nil
}

// fetchUser returns the merged identity; UserType stays empty when the
// server did not send one
func (s *State) fetchUser(ctx context.Context) (User, []string, error) {
	c, err := s.client()
	if err != nil {
		return User{}, nil, err
	}
	resp, err := c.Get(ctx, PathUserInfo, nil)
	if err != nil {
		return User{}, nil, err
	}

	var flat User
	var info userInfo
	data := resp.Data()
	if len(data) > 0 {
		if err := json.Unmarshal(data, &flat); err != nil {
			return User{}, nil, fmt.Errorf("failed to decode user info: %w", err)
		}
		if err := json.Unmarshal(data, &info); err != nil {
			return User{}, nil, fmt.Errorf("failed to decode user info: %w", err)
		}
	}

	var u User
	role := info.UserType
	if info.User != nil {
		u = *info.User
		if info.User.UserType != "" {
			role = info.User.UserType
		}
	}
	u = u.merge(flat)
	u.UserType = role
	return u, info.Permissions, nil
}

// Logout tells the server and always clears the local session
func (s *State) Logout(ctx context.Context) {
	defer s.ClearUserData()

	if !s.IsLoggedIn() {
		return
	}
	c, err := s.client()
	if err != nil {
		return
	}
	if _, err := c.Post(ctx, PathLogout, nil); err != nil {
		s.logger.Warn("logout request failed", "error", err)
	}
}

// Revalidate asks the server whether the session is still valid. A false
// result with a nil error means the session was cleared. A non-nil error
// means the answer is unknown and the session was left alone.
func (s *State) Revalidate(ctx context.Context) (bool, error) {
	if !s.IsLoggedIn() {
		s.ClearUserData()
		return false, nil
	}

	u, _, err := s.fetchUser(ctx)
	if err != nil {
		var rec *apierror.Record
		if errors.As(err, &rec) && invalidatesSession(rec) {
			s.ClearUserData()
			return false, nil
		}
		return false, err
	}

	if u.UserType == "" {
		u.UserType = string(RoleUser)
	}
	if Role(u.UserType) != s.Role() {
		s.logger.Info("role changed on server", "from", s.Role(), "to", u.UserType)
		s.SetUser(u)
	}
	return true, nil
}

func invalidatesSession(rec *apierror.Record) bool {
	if rec.Status == http.StatusUnauthorized {
		return true
	}
	switch rec.Code {
	case apierror.CodeUnauthorized, http.StatusUnauthorized, apierror.CodeUserDisabled:
		return true
	}
	return false
}
