// Package session holds the authenticated identity of the console: token,
// role, view mode and permissions, persisted through a Store.
package session

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/oneclickvirt/console/src/request"
)

// Role is the server-authoritative identity class
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ViewMode is the perspective currently rendered
type ViewMode string

const (
	ViewUser  ViewMode = "user"
	ViewAdmin ViewMode = "admin"
)

// Errors
var (
	ErrNotLoggedIn       = errors.New("not logged in")
	ErrInvalidViewMode   = errors.New("invalid view mode")
	ErrViewModeForbidden = errors.New("view mode can only be switched by administrators")
	ErrNoRequester       = errors.New("session has no request client")
)

// storeTimeout bounds every persistence call
const storeTimeout = 5 * time.Second

// User is the identity returned by the server
type User struct {
	ID       int64  `json:"id,omitempty" yaml:"id,omitempty"`
	UUID     string `json:"uuid,omitempty" yaml:"uuid,omitempty"`
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	Nickname string `json:"nickname,omitempty" yaml:"nickname,omitempty"`
	Email    string `json:"email,omitempty" yaml:"email,omitempty"`
	Phone    string `json:"phone,omitempty" yaml:"phone,omitempty"`
	Avatar   string `json:"avatar,omitempty" yaml:"avatar,omitempty"`
	UserType string `json:"userType,omitempty" yaml:"user_type,omitempty"`
	Level    int    `json:"level,omitempty" yaml:"level,omitempty"`
	Status   int    `json:"status,omitempty" yaml:"status,omitempty"`
}

// merge overwrites fields of u with the non-zero fields of other
func (u User) merge(other User) User {
	if other.ID != 0 {
		u.ID = other.ID
	}
	if other.UUID != "" {
		u.UUID = other.UUID
	}
	if other.Username != "" {
		u.Username = other.Username
	}
	if other.Nickname != "" {
		u.Nickname = other.Nickname
	}
	if other.Email != "" {
		u.Email = other.Email
	}
	if other.Phone != "" {
		u.Phone = other.Phone
	}
	if other.Avatar != "" {
		u.Avatar = other.Avatar
	}
	if other.UserType != "" {
		u.UserType = other.UserType
	}
	if other.Level != 0 {
		u.Level = other.Level
	}
	if other.Status != 0 {
		u.Status = other.Status
	}
	return u
}

// Snapshot is a consistent read of the session
type Snapshot struct {
	Token       string   `json:"-" yaml:"-"`
	Role        Role     `json:"role" yaml:"role"`
	ViewMode    ViewMode `json:"view_mode" yaml:"view_mode"`
	Permissions []string `json:"permissions,omitempty" yaml:"permissions,omitempty"`
	User        User     `json:"user" yaml:"user"`
}

// LoggedIn reports whether the snapshot carries a token
func (s Snapshot) LoggedIn() bool {
	return s.Token != ""
}

// Listener observes every mutation with the state before and after it
type Listener func(prev, next Snapshot)

// State is the session. All mutations are applied as one update under a
// lock, persisted, and then announced to listeners.
type State struct {
	mu          sync.RWMutex
	token       string
	role        Role
	viewMode    ViewMode
	viewModeSet bool // a view mode has been persisted
	permissions []string
	user        User

	store     Store
	requester *request.Client
	logger    *slog.Logger

	// pending store writes of the update in progress. Each update takes a
	// ticket under mu and flushes in ticket order after mu is released.
	pending []storeOp
	ticket  uint64
	pmu     sync.Mutex
	pcond   *sync.Cond
	flushed uint64

	lmu       sync.Mutex
	listeners map[int]Listener
	nextID    int
}

// Option configures a State
type Option func(*State)

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(s *State) { s.logger = l }
}

// WithRequester sets the client used by the authentication flows
func WithRequester(c *request.Client) Option {
	return func(s *State) { s.requester = c }
}

// New creates an anonymous session backed by store (memory when nil)
func New(store Store, opts ...Option) *State {
	if store == nil {
		store = NewMemoryStore()
	}
	s := &State{
		role:      RoleUser,
		viewMode:  ViewUser,
		store:     store,
		logger:    slog.Default(),
		listeners: make(map[int]Listener),
	}
	s.pcond = sync.NewCond(&s.pmu)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetRequester sets the client used by the authentication flows. The
// client usually reads its token from this State, so it is wired after New.
func (s *State) SetRequester(c *request.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requester = c
}

// Restore loads persisted values. The view mode invariant is enforced on
// whatever was stored.
func (s *State) Restore(ctx context.Context) error {
	values := make(map[string]string, len(PersistedKeys))
	present := make(map[string]bool, len(PersistedKeys))
	for _, key := range PersistedKeys {
		v, ok, err := s.store.Get(ctx, key)
		if err != nil {
			return err
		}
		values[key], present[key] = v, ok
	}

	s.update(func() {
		s.token = values[KeyToken]
		if Role(values[KeyUserType]) == RoleAdmin {
			s.role = RoleAdmin
		} else {
			s.role = RoleUser
		}
		s.viewModeSet = present[KeyViewMode]
		if s.role == RoleAdmin && ViewMode(values[KeyViewMode]) != ViewUser {
			s.viewMode = ViewAdmin
		} else {
			s.viewMode = ViewUser
		}
	})
	return nil
}

// OnChange registers fn for every mutation and returns a function that
// removes it
func (s *State) OnChange(fn Listener) func() {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.lmu.Lock()
		defer s.lmu.Unlock()
		delete(s.listeners, id)
	}
}

// storeOp is one queued write; an empty value deletes keys
type storeOp struct {
	keys  []string
	value string
}

// update applies fn as one atomic change, writes its queued store
// operations in update order without holding mu, and notifies listeners
// afterwards.
func (s *State) update(fn func()) {
	s.mu.Lock()
	prev := s.snapshotLocked()
	fn()
	next := s.snapshotLocked()
	ops := s.pending
	s.pending = nil
	ticket := s.ticket
	s.ticket++
	s.mu.Unlock()

	s.pmu.Lock()
	for s.flushed != ticket {
		s.pcond.Wait()
	}
	s.flush(ops)
	s.flushed++
	s.pcond.Broadcast()
	s.pmu.Unlock()

	s.lmu.Lock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.lmu.Unlock()

	for _, l := range listeners {
		l(prev, next)
	}
}

// persist queues a write for the running update. Callers hold mu.
func (s *State) persist(key, value string) {
	s.pending = append(s.pending, storeOp{keys: []string{key}, value: value})
}

func (s *State) flush(ops []storeOp) {
	for _, op := range ops {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		var err error
		if op.value == "" {
			err = s.store.Delete(ctx, op.keys...)
		} else {
			err = s.store.Set(ctx, op.keys[0], op.value)
		}
		cancel()
		if err != nil {
			s.logger.Warn("failed to persist session value", "keys", op.keys, "error", err)
		}
	}
}

// SetToken stores and persists token
func (s *State) SetToken(token string) {
	s.update(func() {
		s.token = token
		s.persist(KeyToken, token)
	})
}

// SetUser merges identity fields. A role in u replaces the current role and
// re-derives the view mode.
func (s *State) SetUser(u User) {
	s.update(func() {
		s.setUserLocked(u)
	})
}

func (s *State) setUserLocked(u User) {
	s.user = s.user.merge(u)
	if u.UserType == "" {
		return
	}

	s.role = Role(u.UserType)
	s.persist(KeyUserType, u.UserType)

	switch {
	case s.role != RoleAdmin:
		// only an administrator's choice is kept
		s.viewMode = ViewUser
		if s.viewModeSet {
			s.viewModeSet = false
			s.persist(KeyViewMode, "")
		}
	case !s.viewModeSet:
		s.viewMode = ViewAdmin
		s.viewModeSet = true
		s.persist(KeyViewMode, string(ViewAdmin))
	}
}

// Establish sets token and identity as one update
func (s *State) Establish(token string, u User) {
	s.update(func() {
		s.token = token
		s.persist(KeyToken, token)
		s.setUserLocked(u)
	})
}

// SetPermissions replaces the permission set
func (s *State) SetPermissions(permissions []string) {
	s.update(func() {
		s.permissions = slices.Clone(permissions)
	})
}

// SwitchViewMode changes the view mode. Only administrators may switch; on
// failure the state is left unchanged.
func (s *State) SwitchViewMode(mode ViewMode) (bool, error) {
	if mode != ViewUser && mode != ViewAdmin {
		return false, ErrInvalidViewMode
	}
	s.mu.RLock()
	role := s.role
	s.mu.RUnlock()
	if role != RoleAdmin {
		return false, ErrViewModeForbidden
	}

	var switched bool
	s.update(func() {
		// the role may have changed since the read above
		if s.role != RoleAdmin {
			return
		}
		s.viewMode = mode
		s.viewModeSet = true
		s.persist(KeyViewMode, string(mode))
		switched = true
	})
	if !switched {
		return false, ErrViewModeForbidden
	}
	return true, nil
}

// ClearUserData resets the session to anonymous and removes every
// persisted key
func (s *State) ClearUserData() {
	s.update(func() {
		s.token = ""
		s.role = RoleUser
		s.viewMode = ViewUser
		s.viewModeSet = false
		s.permissions = nil
		s.user = User{}
		s.pending = append(s.pending, storeOp{keys: PersistedKeys})
	})
}

func (s *State) snapshotLocked() Snapshot {
	return Snapshot{
		Token:       s.token,
		Role:        s.role,
		ViewMode:    s.viewMode,
		Permissions: slices.Clone(s.permissions),
		User:        s.user,
	}
}

// Snapshot returns a consistent copy of the session
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Token returns the bearer token, empty when anonymous
func (s *State) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Role returns the current role
func (s *State) Role() Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role
}

// ViewMode returns the current view mode
func (s *State) ViewMode() ViewMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewMode
}

// User returns the current identity
func (s *State) User() User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

func (s *State) IsLoggedIn() bool { return s.Token() != "" }
func (s *State) IsAdmin() bool    { return s.Role() == RoleAdmin }
func (s *State) IsUser() bool     { return s.Role() == RoleUser }

// HasRole reports whether the current role is r
func (s *State) HasRole(r Role) bool {
	return s.Role() == r
}

// HasPermission is always true for administrators
func (s *State) HasPermission(p string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.role == RoleAdmin {
		return true
	}
	return slices.Contains(s.permissions, p)
}

// DisplayName returns the nickname, then the username, then "User"
func (s *State) DisplayName() string {
	u := s.User()
	switch {
	case u.Nickname != "":
		return u.Nickname
	case u.Username != "":
		return u.Username
	default:
		return "User"
	}
}

// AvatarURL returns the user's avatar or a generated initials avatar
func (s *State) AvatarURL() string {
	u := s.User()
	if u.Avatar != "" {
		return u.Avatar
	}
	seed := u.Username
	if seed == "" {
		seed = "User"
	}
	return "https://api.dicebear.com/7.x/initials/svg?seed=" + url.QueryEscape(seed)
}

// RoleText returns a label for the current role
func (s *State) RoleText() string {
	switch s.Role() {
	case RoleAdmin:
		return "Administrator"
	case RoleUser:
		return "User"
	default:
		return "Unknown"
	}
}
