package hcloud

import (
	"context"
	"fmt"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// CreateLoadBalancer creates a load balancer and returns its create action.
func (c *RealClient) CreateLoadBalancer(ctx context.Context, opts hcloud.LoadBalancerCreateOpts) (*hcloud.LoadBalancer, *hcloud.Action, error) {
	if opts.Location == nil && opts.NetworkZone == "" && c.region != "" {
		opts.Location = &hcloud.Location{Name: c.region}
	}
	result, _, err := c.client.LoadBalancer.Create(ctx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create load balancer %s: %w", opts.Name, err)
	}
	return result.LoadBalancer, result.Action, nil
}

// GetLoadBalancer returns the load balancer with id or a not_found error.
func (c *RealClient) GetLoadBalancer(ctx context.Context, id int64) (*hcloud.LoadBalancer, error) {
	return getByID(ctx, "load balancer", id, c.client.LoadBalancer.GetByID)
}

// DeleteLoadBalancer deletes the load balancer with id.
func (c *RealClient) DeleteLoadBalancer(ctx context.Context, id int64) error {
	return (&DeleteOperation[*hcloud.LoadBalancer]{
		ID:           id,
		ResourceType: "load balancer",
		Get:          c.client.LoadBalancer.GetByID,
		Delete:       c.client.LoadBalancer.Delete,
	}).Execute(ctx)
}
