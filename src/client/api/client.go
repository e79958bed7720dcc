// Package api holds the domain calls the console makes against the
// backend: providers, instances, images, dashboard and health.
package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/oneclickvirt/console/src/request"
)

// Endpoint paths, relative to the API base
const (
	PathHealth         = "/health"
	PathProviders      = "/v1/providers"
	PathDashboardStats = "/v1/dashboard/stats"
)

// Clients are the pipeline instances the API spreads its calls over
type Clients struct {
	// Interactive serves short UI-driven calls
	Interactive *request.Client
	// Health serves server health checks
	Health *request.Client
	// Instance serves instance creation and deletion
	Instance *request.Client
}

// Client is the console's domain API
type Client struct {
	interactive *request.Client
	health      *request.Client
	instance    *request.Client
}

// NewClient creates an API client. Missing profiles fall back to the
// interactive client.
func NewClient(c Clients) *Client {
	api := &Client{
		interactive: c.Interactive,
		health:      c.Health,
		instance:    c.Instance,
	}
	if api.health == nil {
		api.health = c.Interactive
	}
	if api.instance == nil {
		api.instance = c.Interactive
	}
	return api
}

// BaseURL returns the address the interactive client talks to
func (c *Client) BaseURL() string {
	return c.interactive.BaseURL()
}

// BaseURL turns a server address into the API base URL: the backend serves
// everything below /api.
func BaseURL(address string) string {
	address = strings.TrimRight(strings.TrimSpace(address), "/")
	if address == "" || strings.HasSuffix(address, "/api") {
		return address
	}
	return address + "/api"
}

// Health is the server health report
type Health struct {
	Healthy  bool `json:"healthy"`
	Database struct {
		Healthy bool   `json:"healthy"`
		Error   string `json:"error,omitempty"`
	} `json:"database"`
	System struct {
		Version string `json:"version,omitempty"`
	} `json:"system"`
}

// Health asks the server for its health report. An unhealthy server
// answers 503 and the call fails.
func (c *Client) Health(ctx context.Context) (Health, error) {
	return request.Call[Health](ctx, c.health, request.Descriptor{
		Method: http.MethodGet,
		Path:   PathHealth,
	})
}

// DashboardStats returns the dashboard counters as sent by the server
func (c *Client) DashboardStats(ctx context.Context) (map[string]any, error) {
	return request.Call[map[string]any](ctx, c.interactive, request.Descriptor{
		Method: http.MethodGet,
		Path:   PathDashboardStats,
	})
}

func providerPath(provider string, parts ...string) string {
	p := PathProviders + "/" + url.PathEscape(provider)
	for _, part := range parts {
		p += "/" + url.PathEscape(part)
	}
	return p
}
