package hcloud

import (
	"context"
	"fmt"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// DescribeFirewalls lists firewalls matching filter.
func (c *RealClient) DescribeFirewalls(ctx context.Context, filter Filter) ([]*hcloud.Firewall, error) {
	firewalls, err := c.client.Firewall.AllWithOpts(ctx, hcloud.FirewallListOpts{
		ListOpts: filter.listOpts(),
		Name:     filter.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe firewalls: %w", err)
	}
	return firewalls, nil
}

// CreateFirewall creates a firewall. Rules are applied separately.
func (c *RealClient) CreateFirewall(ctx context.Context, opts hcloud.FirewallCreateOpts) (*hcloud.Firewall, error) {
	result, _, err := c.client.Firewall.Create(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create firewall %s: %w", opts.Name, err)
	}
	return result.Firewall, nil
}

// SetFirewallRules replaces the rules of firewall.
func (c *RealClient) SetFirewallRules(ctx context.Context, firewall *hcloud.Firewall, rules []hcloud.FirewallRule) ([]*hcloud.Action, error) {
	actions, _, err := c.client.Firewall.SetRules(ctx, firewall, hcloud.FirewallSetRulesOpts{Rules: rules})
	if err != nil {
		return nil, fmt.Errorf("failed to set rules on firewall %d: %w", firewall.ID, err)
	}
	return actions, nil
}

// LabelFirewall merges labels into the firewall's labels.
func (c *RealClient) LabelFirewall(ctx context.Context, firewall *hcloud.Firewall, labels map[string]string) error {
	_, _, err := c.client.Firewall.Update(ctx, firewall, hcloud.FirewallUpdateOpts{
		Labels: mergeLabels(firewall.Labels, labels),
	})
	if err != nil {
		return fmt.Errorf("failed to label firewall %d: %w", firewall.ID, err)
	}
	return nil
}

// DeleteFirewall deletes the firewall with id.
func (c *RealClient) DeleteFirewall(ctx context.Context, id int64) error {
	return (&DeleteOperation[*hcloud.Firewall]{
		ID:           id,
		ResourceType: "firewall",
		Get:          c.client.Firewall.GetByID,
		Delete:       c.client.Firewall.Delete,
	}).Execute(ctx)
}
