package hcloud

import (
	"context"
	"fmt"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// CreateServer creates a server and returns it with its create action.
func (c *RealClient) CreateServer(ctx context.Context, opts hcloud.ServerCreateOpts) (*hcloud.Server, *hcloud.Action, error) {
	if opts.Location == nil && c.region != "" {
		opts.Location = &hcloud.Location{Name: c.region}
	}
	result, _, err := c.client.Server.Create(ctx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create server %s: %w", opts.Name, err)
	}
	return result.Server, result.Action, nil
}

// GetServer returns the server with id or a not_found error.
func (c *RealClient) GetServer(ctx context.Context, id int64) (*hcloud.Server, error) {
	return getByID(ctx, "server", id, c.client.Server.GetByID)
}

// UpdateServer changes the name and labels of the server with id.
func (c *RealClient) UpdateServer(ctx context.Context, id int64, opts hcloud.ServerUpdateOpts) (*hcloud.Server, error) {
	server, _, err := c.client.Server.Update(ctx, &hcloud.Server{ID: id}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to update server %d: %w", id, err)
	}
	return server, nil
}

// DeleteServer deletes the server with id and returns the delete action.
// A server that is already gone yields a nil action.
func (c *RealClient) DeleteServer(ctx context.Context, id int64) (*hcloud.Action, error) {
	result, _, err := c.client.Server.DeleteWithResult(ctx, &hcloud.Server{ID: id})
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to delete server %d: %w", id, err)
	}
	return result.Action, nil
}
