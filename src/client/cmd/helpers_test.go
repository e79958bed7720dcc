package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// backend fakes the panel API below /api
type backend struct {
	mu        sync.Mutex
	unhealthy bool
	revoked   bool
	deleted   []string
	pulled    []string
	requests  []string
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, r.Method+" "+r.URL.Path)
	w.Header().Set("Content-Type", "application/json")

	authed := strings.HasPrefix(r.Header.Get("Authorization"), "Bearer tok-") && !b.revoked
	path := strings.TrimPrefix(r.URL.Path, "/api")

	switch {
	case path == "/health":
		if b.unhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			io.WriteString(w, `{"code":0,"msg":"done","data":{"healthy":false,"database":{"healthy":false,"error":"db down"}}}`)
			return
		}
		io.WriteString(w, `{"code":0,"msg":"done","data":{"healthy":true,"database":{"healthy":true},"system":{"version":"1.0.0"}}}`)

	case path == "/v1/auth/login":
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret" {
			io.WriteString(w, `{"code":2003,"msg":"wrong password"}`)
			return
		}
		userType := "user"
		if body["username"] == "root" {
			userType = "admin"
		}
		io.WriteString(w, `{"code":0,"data":{"token":"tok-`+body["username"]+`","user":{"id":1,"username":"`+body["username"]+`","userType":"`+userType+`"}}}`)

	case path == "/v1/auth/logout":
		io.WriteString(w, `{"code":0}`)

	case !authed:
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"code":401,"msg":"token expired"}`)

	case path == "/v1/user/info":
		name := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer tok-")
		userType := "user"
		if name == "root" {
			userType = "admin"
		}
		io.WriteString(w, `{"code":0,"data":{"user":{"id":1,"username":"`+name+`","nickname":"`+strings.ToUpper(name)+`","userType":"`+userType+`"}}}`)

	case path == "/v1/providers":
		io.WriteString(w, `{"code":200,"data":[{"id":1,"name":"lxd-1","type":"lxd","status":"active"}]}`)

	case path == "/v1/providers/p1/instances" && r.Method == http.MethodGet:
		io.WriteString(w, `{"code":200,"data":[{"id":"a","name":"web","status":"running","ip":"10.0.0.2"}]}`)

	case strings.HasPrefix(path, "/v1/providers/p1/instances/") && r.Method == http.MethodDelete:
		name := strings.TrimPrefix(path, "/v1/providers/p1/instances/")
		if name == "bad" {
			io.WriteString(w, `{"code":500,"msg":"instance busy"}`)
			return
		}
		b.deleted = append(b.deleted, name)
		io.WriteString(w, `{"code":200,"msg":"deleted"}`)

	case path == "/v1/providers/p1/images/pull":
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		b.pulled = append(b.pulled, body["image"])
		io.WriteString(w, `{"code":200,"msg":"pulled"}`)

	default:
		http.NotFound(w, r)
	}
}

func (b *backend) count(prefix string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, r := range b.requests {
		if strings.HasPrefix(r, prefix) {
			n++
		}
	}
	return n
}

// testEnv points every path and the server address at temp locations
func testEnv(t *testing.T) (*backend, string) {
	t.Helper()
	b := &backend{}
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("APPDATA", filepath.Join(home, "AppData", "Roaming"))
	t.Setenv("LOCALAPPDATA", filepath.Join(home, "AppData", "Local"))
	t.Setenv("OCV_SERVER_ADDRESS", srv.URL)
	t.Setenv("OCV_SESSION_BACKEND", "file")
	t.Setenv("OCV_SESSION_FILE", filepath.Join(home, "session.yml"))
	t.Setenv("OCV_LOGGING_FILE", filepath.Join(home, "cli.log"))
	return b, home
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// execute runs the root command once with args and stdin
func execute(t *testing.T, stdin string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	resetFlags(rootCmd)
	viper.Reset()

	var out, errOut bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(stdin))

	err = Execute()
	return out.String(), errOut.String(), err
}

// login signs in through the command and fails the test on error
func login(t *testing.T, args ...string) {
	t.Helper()
	if _, stderr, err := execute(t, "secret\n", append([]string{"login"}, args...)...); err != nil {
		t.Fatalf("login %v error = %v, stderr = %s", args, err, stderr)
	}
}
