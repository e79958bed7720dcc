package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/oneclickvirt/console/src/request"
)

// Provider is a virtualization node known to the backend
type Provider struct {
	ID     json.Number `json:"id"`
	Name   string      `json:"name"`
	Type   string      `json:"type"`
	Status string      `json:"status,omitempty"`
}

// Providers lists the providers the current user may use
func (c *Client) Providers(ctx context.Context) ([]Provider, error) {
	return request.Call[[]Provider](ctx, c.interactive, request.Descriptor{
		Method: http.MethodGet,
		Path:   PathProviders,
	})
}

// ProviderStatus returns the live status of one provider
func (c *Client) ProviderStatus(ctx context.Context, provider string) (map[string]any, error) {
	return request.Call[map[string]any](ctx, c.health, request.Descriptor{
		Method: http.MethodGet,
		Path:   providerPath(provider, "status"),
	})
}
