package api

import (
	"context"
	"net/http"
	"time"

	"github.com/oneclickvirt/console/src/request"
)

// Image is a system image available on a provider
type Image struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Tag         string    `json:"tag"`
	Size        string    `json:"size"`
	Created     time.Time `json:"created"`
	Description string    `json:"description,omitempty"`
}

// Images lists the images of a provider
func (c *Client) Images(ctx context.Context, provider string) ([]Image, error) {
	return request.Call[[]Image](ctx, c.interactive, request.Descriptor{
		Method: http.MethodGet,
		Path:   providerPath(provider, "images"),
	})
}

// PullImage downloads an image onto a provider, bounded by
// request.ImagePullTimeout instead of the interactive timeout
func (c *Client) PullImage(ctx context.Context, provider, image string) error {
	_, err := c.interactive.Send(ctx, request.Descriptor{
		Method:  http.MethodPost,
		Path:    providerPath(provider, "images", "pull"),
		Body:    map[string]string{"image": image},
		Timeout: request.ImagePullTimeout,
	})
	return err
}

// DeleteImage removes an image from a provider
func (c *Client) DeleteImage(ctx context.Context, provider, image string) error {
	_, err := c.interactive.Delete(ctx, providerPath(provider, "images", image), nil)
	return err
}
