package hcloud

import (
	"context"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/hcprov/internal/util/labels"
)

// Filter narrows a describe call. Empty fields do not filter.
type Filter struct {
	Name   string
	Labels map[string]string
}

func (f Filter) listOpts() hcloud.ListOpts {
	return hcloud.ListOpts{LabelSelector: labels.Selector(f.Labels)}
}

// NetworkClient manages networks and their subnets.
type NetworkClient interface {
	DescribeNetworks(ctx context.Context, filter Filter) ([]*hcloud.Network, error)
	GetNetwork(ctx context.Context, id int64) (*hcloud.Network, error)
	CreateNetwork(ctx context.Context, opts hcloud.NetworkCreateOpts) (*hcloud.Network, error)
	AddSubnet(ctx context.Context, network *hcloud.Network, subnet hcloud.NetworkSubnet) (*hcloud.Action, error)
	LabelNetwork(ctx context.Context, network *hcloud.Network, labels map[string]string) error
}

// FirewallClient manages firewalls, the security groups of Hetzner Cloud.
type FirewallClient interface {
	DescribeFirewalls(ctx context.Context, filter Filter) ([]*hcloud.Firewall, error)
	CreateFirewall(ctx context.Context, opts hcloud.FirewallCreateOpts) (*hcloud.Firewall, error)
	SetFirewallRules(ctx context.Context, firewall *hcloud.Firewall, rules []hcloud.FirewallRule) ([]*hcloud.Action, error)
	LabelFirewall(ctx context.Context, firewall *hcloud.Firewall, labels map[string]string) error
	DeleteFirewall(ctx context.Context, id int64) error
}

// VolumeClient manages data disks.
type VolumeClient interface {
	DescribeVolumes(ctx context.Context, filter Filter) ([]*hcloud.Volume, error)
	GetVolume(ctx context.Context, id int64) (*hcloud.Volume, error)
	CreateVolume(ctx context.Context, opts hcloud.VolumeCreateOpts) (*hcloud.Volume, error)
}

// ServerClient manages instances.
type ServerClient interface {
	CreateServer(ctx context.Context, opts hcloud.ServerCreateOpts) (*hcloud.Server, *hcloud.Action, error)
	GetServer(ctx context.Context, id int64) (*hcloud.Server, error)
	UpdateServer(ctx context.Context, id int64, opts hcloud.ServerUpdateOpts) (*hcloud.Server, error)
	DeleteServer(ctx context.Context, id int64) (*hcloud.Action, error)
}

// LoadBalancerClient manages load balancers.
type LoadBalancerClient interface {
	CreateLoadBalancer(ctx context.Context, opts hcloud.LoadBalancerCreateOpts) (*hcloud.LoadBalancer, *hcloud.Action, error)
	GetLoadBalancer(ctx context.Context, id int64) (*hcloud.LoadBalancer, error)
	DeleteLoadBalancer(ctx context.Context, id int64) error
}

// ActionClient reads the status of asynchronous provider operations.
type ActionClient interface {
	GetAction(ctx context.Context, id int64) (*hcloud.Action, error)
}

// LocationClient lists the regions visible to a credential.
type LocationClient interface {
	ListLocations(ctx context.Context) ([]*hcloud.Location, error)
	GetLocation(ctx context.Context, id int64) (*hcloud.Location, error)
}

// Cloud combines every client a workflow may use.
type Cloud interface {
	NetworkClient
	FirewallClient
	VolumeClient
	ServerClient
	LoadBalancerClient
	ActionClient
	LocationClient
}
