package hcloud

import (
	"context"
	"fmt"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// DescribeVolumes lists volumes matching filter.
func (c *RealClient) DescribeVolumes(ctx context.Context, filter Filter) ([]*hcloud.Volume, error) {
	volumes, err := c.client.Volume.AllWithOpts(ctx, hcloud.VolumeListOpts{
		ListOpts: filter.listOpts(),
		Name:     filter.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe volumes: %w", err)
	}
	return volumes, nil
}

// GetVolume returns the volume with id or a not_found error.
func (c *RealClient) GetVolume(ctx context.Context, id int64) (*hcloud.Volume, error) {
	return getByID(ctx, "volume", id, c.client.Volume.GetByID)
}

// CreateVolume creates a detached volume.
func (c *RealClient) CreateVolume(ctx context.Context, opts hcloud.VolumeCreateOpts) (*hcloud.Volume, error) {
	if opts.Location == nil && opts.Server == nil && c.region != "" {
		opts.Location = &hcloud.Location{Name: c.region}
	}
	result, _, err := c.client.Volume.Create(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create volume %s: %w", opts.Name, err)
	}
	return result.Volume, nil
}
