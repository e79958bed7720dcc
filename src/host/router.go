package host

import (
	"strings"
	"sync"
)

// Router is an in-memory Navigator for hosts without a real route table
// (command-line tools, tests). Every path requires authentication unless
// it is public or registered with Public.
type Router struct {
	mu      sync.RWMutex
	current string
	public  map[string]bool
	history []string

	// OnNavigate is called after every NavigateTo, outside the lock
	OnNavigate func(from, to string)
}

// NewRouter creates a router positioned at start
func NewRouter(start string) *Router {
	r := &Router{
		current: start,
		public:  make(map[string]bool),
	}
	for _, p := range PublicPaths {
		r.public[p] = true
	}
	return r
}

// Public marks additional paths as reachable without a session
func (r *Router) Public(paths ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range paths {
		r.public[p] = true
	}
}

// NavigateTo implements Navigator
func (r *Router) NavigateTo(path string) {
	r.mu.Lock()
	from := r.current
	r.current = path
	r.history = append(r.history, path)
	hook := r.OnNavigate
	r.mu.Unlock()

	if hook != nil {
		hook(from, path)
	}
}

// CurrentPath implements Navigator
func (r *Router) CurrentPath() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// CurrentRouteRequiresAuth implements Navigator
func (r *Router) CurrentRouteRequiresAuth() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	path := r.current
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	return !r.public[path]
}

// History returns every destination navigated to, oldest first
func (r *Router) History() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.history))
	copy(out, r.history)
	return out
}
