package api

import (
	"context"
	"net/http"
	"time"

	"github.com/oneclickvirt/console/src/request"
)

// Instance is a container or virtual machine on a provider
type Instance struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Status   string            `json:"status"`
	Type     string            `json:"type"`
	Image    string            `json:"image"`
	IP       string            `json:"ip"`
	CPU      string            `json:"cpu"`
	Memory   string            `json:"memory"`
	Disk     string            `json:"disk"`
	Created  time.Time         `json:"created"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// CreateInstanceRequest describes a new instance
type CreateInstanceRequest struct {
	Name         string            `json:"name"`
	Image        string            `json:"image"`
	CPU          string            `json:"cpu,omitempty"`
	Memory       string            `json:"memory,omitempty"`
	Disk         string            `json:"disk,omitempty"`
	Network      string            `json:"network,omitempty"`
	Ports        []string          `json:"ports,omitempty"`
	Env          map[string]string `json:"env,omitempty"`
	InstanceType string            `json:"instance_type,omitempty"`
}

// Instances lists the instances of a provider
func (c *Client) Instances(ctx context.Context, provider string) ([]Instance, error) {
	return request.Call[[]Instance](ctx, c.interactive, request.Descriptor{
		Method: http.MethodGet,
		Path:   providerPath(provider, "instances"),
	})
}

// Instance fetches one instance by name
func (c *Client) Instance(ctx context.Context, provider, name string) (Instance, error) {
	return request.Call[Instance](ctx, c.interactive, request.Descriptor{
		Method: http.MethodGet,
		Path:   providerPath(provider, "instances", name),
	})
}

// CreateInstance creates an instance on the instance profile
func (c *Client) CreateInstance(ctx context.Context, provider string, req CreateInstanceRequest) error {
	_, err := c.instance.Post(ctx, providerPath(provider, "instances"), req)
	return err
}

// StartInstance starts a stopped instance
func (c *Client) StartInstance(ctx context.Context, provider, name string) error {
	_, err := c.interactive.Post(ctx, providerPath(provider, "instances", name, "start"), nil)
	return err
}

// StopInstance stops a running instance
func (c *Client) StopInstance(ctx context.Context, provider, name string) error {
	_, err := c.interactive.Post(ctx, providerPath(provider, "instances", name, "stop"), nil)
	return err
}

// DeleteInstance removes an instance on the instance profile
func (c *Client) DeleteInstance(ctx context.Context, provider, name string) error {
	_, err := c.instance.Delete(ctx, providerPath(provider, "instances", name), nil)
	return err
}
