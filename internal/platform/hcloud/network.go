package hcloud

import (
	"context"
	"fmt"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// DescribeNetworks lists networks matching filter.
func (c *RealClient) DescribeNetworks(ctx context.Context, filter Filter) ([]*hcloud.Network, error) {
	networks, err := c.client.Network.AllWithOpts(ctx, hcloud.NetworkListOpts{
		ListOpts: filter.listOpts(),
		Name:     filter.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe networks: %w", err)
	}
	return networks, nil
}

// GetNetwork returns the network with id or a not_found error.
func (c *RealClient) GetNetwork(ctx context.Context, id int64) (*hcloud.Network, error) {
	return getByID(ctx, "network", id, c.client.Network.GetByID)
}

// CreateNetwork creates a network.
func (c *RealClient) CreateNetwork(ctx context.Context, opts hcloud.NetworkCreateOpts) (*hcloud.Network, error) {
	network, _, err := c.client.Network.Create(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create network %s: %w", opts.Name, err)
	}
	return network, nil
}

// AddSubnet adds subnet to network and returns the pending action.
func (c *RealClient) AddSubnet(ctx context.Context, network *hcloud.Network, subnet hcloud.NetworkSubnet) (*hcloud.Action, error) {
	action, _, err := c.client.Network.AddSubnet(ctx, network, hcloud.NetworkAddSubnetOpts{Subnet: subnet})
	if err != nil {
		return nil, fmt.Errorf("failed to add subnet to network %d: %w", network.ID, err)
	}
	return action, nil
}

// LabelNetwork merges labels into the network's labels.
func (c *RealClient) LabelNetwork(ctx context.Context, network *hcloud.Network, labels map[string]string) error {
	_, _, err := c.client.Network.Update(ctx, network, hcloud.NetworkUpdateOpts{
		Labels: mergeLabels(network.Labels, labels),
	})
	if err != nil {
		return fmt.Errorf("failed to label network %d: %w", network.ID, err)
	}
	return nil
}

func mergeLabels(existing, extra map[string]string) map[string]string {
	out := make(map[string]string, len(existing)+len(extra))
	for k, v := range existing {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
