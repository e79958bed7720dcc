// Package request is the console's HTTP pipeline: every call is
// authenticated, tagged and unwrapped from the backend envelope, and every
// failure comes back as an *apierror.Record.
package request

import (
	"net/http"
	"time"
)

// ProjectName is set at build time - used for User-Agent
var ProjectName = "ocv"

// Version is set at build time
var Version = "dev"

// DefaultRetryDelay is used when a descriptor asks for retries without a delay
const DefaultRetryDelay = time.Second

// ImagePullTimeout is the per-call override used for image pulls
const ImagePullTimeout = 100 * time.Second

// Config configures one client instance
type Config struct {
	// BaseURL is prefixed to every descriptor path
	BaseURL string `yaml:"base_url"`
	// Timeout bounds each attempt; descriptors may override it
	Timeout time.Duration `yaml:"timeout"`
	// RequestIDPrefix starts every X-Request-ID
	RequestIDPrefix string `yaml:"request_id_prefix"`
	// Headers are sent with every request
	Headers map[string]string `yaml:"headers"`
	// Transport overrides http.DefaultTransport
	Transport http.RoundTripper `yaml:"-"`
}

// Profile is a named timeout profile
type Profile struct {
	Name            string
	Timeout         time.Duration
	RequestIDPrefix string
}

// Built-in profiles. Each one is meant for its own client instance.
var (
	// Interactive is the short default for UI-driven calls
	Interactive = Profile{Name: "interactive", Timeout: 6 * time.Second, RequestIDPrefix: "req"}
	// Health is used for provider health checks
	Health = Profile{Name: "health", Timeout: 60 * time.Second, RequestIDPrefix: "health"}
	// Upload is used for file uploads
	Upload = Profile{Name: "upload", Timeout: 120 * time.Second, RequestIDPrefix: "upload"}
	// Export is used for exports
	Export = Profile{Name: "export", Timeout: 180 * time.Second, RequestIDPrefix: "export"}
	// Instance is used to create and delete instances
	Instance = Profile{Name: "instance", Timeout: 120 * time.Second, RequestIDPrefix: "instance"}
)

// Profiles lists the built-in profiles by name
var Profiles = map[string]Profile{
	Interactive.Name: Interactive,
	Health.Name:      Health,
	Upload.Name:      Upload,
	Export.Name:      Export,
	Instance.Name:    Instance,
}

// Config builds a client configuration for the profile
func (p Profile) Config(baseURL string) Config {
	return Config{
		BaseURL:         baseURL,
		Timeout:         p.Timeout,
		RequestIDPrefix: p.RequestIDPrefix,
	}
}
