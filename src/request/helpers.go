package request

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
)

// Call sends d and decodes the payload into T
func Call[T any](ctx context.Context, c *Client, d Descriptor) (T, error) {
	var out T
	resp, err := c.Send(ctx, d)
	if err != nil {
		return out, err
	}
	if err := resp.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}

// Get sends a GET with the given query
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Send(ctx, Descriptor{Method: http.MethodGet, Path: path, Query: query})
}

// Post sends body as JSON
func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Send(ctx, Descriptor{Method: http.MethodPost, Path: path, Body: body})
}

// Put sends body as JSON
func (c *Client) Put(ctx context.Context, path string, body any) (*Response, error) {
	return c.Send(ctx, Descriptor{Method: http.MethodPut, Path: path, Body: body})
}

// Delete sends a DELETE, with an optional JSON body
func (c *Client) Delete(ctx context.Context, path string, body any) (*Response, error) {
	return c.Send(ctx, Descriptor{Method: http.MethodDelete, Path: path, Body: body})
}

// Upload posts a multipart form with one file part plus plain fields
func (c *Client) Upload(ctx context.Context, path, field, filename string, content io.Reader, fields map[string]string) (*Response, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, c.classifier.Classify(fmt.Errorf("failed to write field %s: %w", k, err), silent)
		}
	}
	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		return nil, c.classifier.Classify(fmt.Errorf("failed to create form file: %w", err), silent)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, c.classifier.Classify(fmt.Errorf("failed to read upload: %w", err), silent)
	}
	if err := w.Close(); err != nil {
		return nil, c.classifier.Classify(fmt.Errorf("failed to close form: %w", err), silent)
	}

	return c.Send(ctx, Descriptor{
		Method:      http.MethodPost,
		Path:        path,
		Body:        buf.Bytes(),
		ContentType: w.FormDataContentType(),
	})
}

// Download fetches a binary resource. The caller must close the reader.
// Endpoints that answer with JSON instead of a stream yield the raw body.
func (c *Client) Download(ctx context.Context, path string, query url.Values) (io.ReadCloser, error) {
	resp, err := c.Get(ctx, path, query)
	if err != nil {
		return nil, err
	}
	if resp.Stream != nil {
		return resp.Stream, nil
	}
	return io.NopCloser(bytes.NewReader(resp.Body)), nil
}
