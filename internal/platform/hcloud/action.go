package hcloud

import (
	"context"
	"fmt"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// GetAction returns the action with id or a not_found error.
func (c *RealClient) GetAction(ctx context.Context, id int64) (*hcloud.Action, error) {
	return getByID(ctx, "action", id, c.client.Action.GetByID)
}

// ListLocations returns every location visible to the credential.
func (c *RealClient) ListLocations(ctx context.Context) ([]*hcloud.Location, error) {
	locations, err := c.client.Location.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	return locations, nil
}

// GetLocation returns the location with id or a not_found error.
func (c *RealClient) GetLocation(ctx context.Context, id int64) (*hcloud.Location, error) {
	return getByID(ctx, "location", id, c.client.Location.GetByID)
}
