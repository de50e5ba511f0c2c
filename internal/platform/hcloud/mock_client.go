package hcloud

import (
	"context"
	"net"
	"sync/atomic"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// MockClient is a Cloud whose behaviour is set per method through the Func
// fields. Unset methods succeed with plausible values.
type MockClient struct {
	// Network
	DescribeNetworksFunc func(ctx context.Context, filter Filter) ([]*hcloud.Network, error)
	GetNetworkFunc       func(ctx context.Context, id int64) (*hcloud.Network, error)
	CreateNetworkFunc    func(ctx context.Context, opts hcloud.NetworkCreateOpts) (*hcloud.Network, error)
	AddSubnetFunc        func(ctx context.Context, network *hcloud.Network, subnet hcloud.NetworkSubnet) (*hcloud.Action, error)
	LabelNetworkFunc     func(ctx context.Context, network *hcloud.Network, labels map[string]string) error

	// Firewall
	DescribeFirewallsFunc func(ctx context.Context, filter Filter) ([]*hcloud.Firewall, error)
	CreateFirewallFunc    func(ctx context.Context, opts hcloud.FirewallCreateOpts) (*hcloud.Firewall, error)
	SetFirewallRulesFunc  func(ctx context.Context, firewall *hcloud.Firewall, rules []hcloud.FirewallRule) ([]*hcloud.Action, error)
	LabelFirewallFunc     func(ctx context.Context, firewall *hcloud.Firewall, labels map[string]string) error
	DeleteFirewallFunc    func(ctx context.Context, id int64) error

	// Volume
	DescribeVolumesFunc func(ctx context.Context, filter Filter) ([]*hcloud.Volume, error)
	GetVolumeFunc       func(ctx context.Context, id int64) (*hcloud.Volume, error)
	CreateVolumeFunc    func(ctx context.Context, opts hcloud.VolumeCreateOpts) (*hcloud.Volume, error)

	// Server
	CreateServerFunc func(ctx context.Context, opts hcloud.ServerCreateOpts) (*hcloud.Server, *hcloud.Action, error)
	GetServerFunc    func(ctx context.Context, id int64) (*hcloud.Server, error)
	UpdateServerFunc func(ctx context.Context, id int64, opts hcloud.ServerUpdateOpts) (*hcloud.Server, error)
	DeleteServerFunc func(ctx context.Context, id int64) (*hcloud.Action, error)

	// LoadBalancer
	CreateLoadBalancerFunc func(ctx context.Context, opts hcloud.LoadBalancerCreateOpts) (*hcloud.LoadBalancer, *hcloud.Action, error)
	GetLoadBalancerFunc    func(ctx context.Context, id int64) (*hcloud.LoadBalancer, error)
	DeleteLoadBalancerFunc func(ctx context.Context, id int64) error

	// Action and location
	GetActionFunc     func(ctx context.Context, id int64) (*hcloud.Action, error)
	ListLocationsFunc func(ctx context.Context) ([]*hcloud.Location, error)
	GetLocationFunc   func(ctx context.Context, id int64) (*hcloud.Location, error)

	nextID atomic.Int64
}

var _ Cloud = (*MockClient)(nil)

func (m *MockClient) id() int64 {
	return 1000 + m.nextID.Add(1)
}

// DescribeNetworks mocks network lookup. The default finds nothing.
func (m *MockClient) DescribeNetworks(ctx context.Context, filter Filter) ([]*hcloud.Network, error) {
	if m.DescribeNetworksFunc != nil {
		return m.DescribeNetworksFunc(ctx, filter)
	}
	return nil, nil
}

// GetNetwork mocks network retrieval.
func (m *MockClient) GetNetwork(ctx context.Context, id int64) (*hcloud.Network, error) {
	if m.GetNetworkFunc != nil {
		return m.GetNetworkFunc(ctx, id)
	}
	return &hcloud.Network{ID: id}, nil
}

// CreateNetwork mocks network creation.
func (m *MockClient) CreateNetwork(ctx context.Context, opts hcloud.NetworkCreateOpts) (*hcloud.Network, error) {
	if m.CreateNetworkFunc != nil {
		return m.CreateNetworkFunc(ctx, opts)
	}
	return &hcloud.Network{ID: m.id(), Name: opts.Name, IPRange: opts.IPRange, Labels: opts.Labels}, nil
}

// AddSubnet mocks subnet creation.
func (m *MockClient) AddSubnet(ctx context.Context, network *hcloud.Network, subnet hcloud.NetworkSubnet) (*hcloud.Action, error) {
	if m.AddSubnetFunc != nil {
		return m.AddSubnetFunc(ctx, network, subnet)
	}
	return &hcloud.Action{ID: m.id(), Status: hcloud.ActionStatusSuccess}, nil
}

// LabelNetwork mocks network labelling.
func (m *MockClient) LabelNetwork(ctx context.Context, network *hcloud.Network, labels map[string]string) error {
	if m.LabelNetworkFunc != nil {
		return m.LabelNetworkFunc(ctx, network, labels)
	}
	return nil
}

// DescribeFirewalls mocks firewall lookup. The default finds nothing.
func (m *MockClient) DescribeFirewalls(ctx context.Context, filter Filter) ([]*hcloud.Firewall, error) {
	if m.DescribeFirewallsFunc != nil {
		return m.DescribeFirewallsFunc(ctx, filter)
	}
	return nil, nil
}

// CreateFirewall mocks firewall creation.
func (m *MockClient) CreateFirewall(ctx context.Context, opts hcloud.FirewallCreateOpts) (*hcloud.Firewall, error) {
	if m.CreateFirewallFunc != nil {
		return m.CreateFirewallFunc(ctx, opts)
	}
	return &hcloud.Firewall{ID: m.id(), Name: opts.Name, Labels: opts.Labels}, nil
}

// SetFirewallRules mocks rule application.
func (m *MockClient) SetFirewallRules(ctx context.Context, firewall *hcloud.Firewall, rules []hcloud.FirewallRule) ([]*hcloud.Action, error) {
	if m.SetFirewallRulesFunc != nil {
		return m.SetFirewallRulesFunc(ctx, firewall, rules)
	}
	return nil, nil
}

// LabelFirewall mocks firewall labelling.
func (m *MockClient) LabelFirewall(ctx context.Context, firewall *hcloud.Firewall, labels map[string]string) error {
	if m.LabelFirewallFunc != nil {
		return m.LabelFirewallFunc(ctx, firewall, labels)
	}
	return nil
}

// DeleteFirewall mocks firewall deletion.
func (m *MockClient) DeleteFirewall(ctx context.Context, id int64) error {
	if m.DeleteFirewallFunc != nil {
		return m.DeleteFirewallFunc(ctx, id)
	}
	return nil
}

// DescribeVolumes mocks volume lookup. The default finds nothing.
func (m *MockClient) DescribeVolumes(ctx context.Context, filter Filter) ([]*hcloud.Volume, error) {
	if m.DescribeVolumesFunc != nil {
		return m.DescribeVolumesFunc(ctx, filter)
	}
	return nil, nil
}

// GetVolume mocks volume retrieval. The default volume is available.
func (m *MockClient) GetVolume(ctx context.Context, id int64) (*hcloud.Volume, error) {
	if m.GetVolumeFunc != nil {
		return m.GetVolumeFunc(ctx, id)
	}
	return &hcloud.Volume{ID: id, Status: hcloud.VolumeStatusAvailable}, nil
}

// CreateVolume mocks volume creation.
func (m *MockClient) CreateVolume(ctx context.Context, opts hcloud.VolumeCreateOpts) (*hcloud.Volume, error) {
	if m.CreateVolumeFunc != nil {
		return m.CreateVolumeFunc(ctx, opts)
	}
	return &hcloud.Volume{ID: m.id(), Name: opts.Name, Size: opts.Size, Status: hcloud.VolumeStatusCreating}, nil
}

// CreateServer mocks server creation.
func (m *MockClient) CreateServer(ctx context.Context, opts hcloud.ServerCreateOpts) (*hcloud.Server, *hcloud.Action, error) {
	if m.CreateServerFunc != nil {
		return m.CreateServerFunc(ctx, opts)
	}
	return &hcloud.Server{ID: m.id(), Name: opts.Name, Status: hcloud.ServerStatusInitializing, Labels: opts.Labels},
		&hcloud.Action{ID: m.id(), Status: hcloud.ActionStatusRunning}, nil
}

// GetServer mocks server retrieval. The default server is running.
func (m *MockClient) GetServer(ctx context.Context, id int64) (*hcloud.Server, error) {
	if m.GetServerFunc != nil {
		return m.GetServerFunc(ctx, id)
	}
	return &hcloud.Server{
		ID:     id,
		Status: hcloud.ServerStatusRunning,
		PublicNet: hcloud.ServerPublicNet{
			IPv4: hcloud.ServerPublicNetIPv4{IP: net.ParseIP("203.0.113.10")},
		},
	}, nil
}

// UpdateServer mocks server modification.
func (m *MockClient) UpdateServer(ctx context.Context, id int64, opts hcloud.ServerUpdateOpts) (*hcloud.Server, error) {
	if m.UpdateServerFunc != nil {
		return m.UpdateServerFunc(ctx, id, opts)
	}
	return &hcloud.Server{ID: id, Name: opts.Name, Labels: opts.Labels, Status: hcloud.ServerStatusRunning}, nil
}

// DeleteServer mocks server deletion.
func (m *MockClient) DeleteServer(ctx context.Context, id int64) (*hcloud.Action, error) {
	if m.DeleteServerFunc != nil {
		return m.DeleteServerFunc(ctx, id)
	}
	return &hcloud.Action{ID: m.id(), Status: hcloud.ActionStatusRunning}, nil
}

// CreateLoadBalancer mocks load balancer creation.
func (m *MockClient) CreateLoadBalancer(ctx context.Context, opts hcloud.LoadBalancerCreateOpts) (*hcloud.LoadBalancer, *hcloud.Action, error) {
	if m.CreateLoadBalancerFunc != nil {
		return m.CreateLoadBalancerFunc(ctx, opts)
	}
	return &hcloud.LoadBalancer{ID: m.id(), Name: opts.Name, Labels: opts.Labels},
		&hcloud.Action{ID: m.id(), Status: hcloud.ActionStatusRunning}, nil
}

// GetLoadBalancer mocks load balancer retrieval.
func (m *MockClient) GetLoadBalancer(ctx context.Context, id int64) (*hcloud.LoadBalancer, error) {
	if m.GetLoadBalancerFunc != nil {
		return m.GetLoadBalancerFunc(ctx, id)
	}
	return &hcloud.LoadBalancer{ID: id}, nil
}

// DeleteLoadBalancer mocks load balancer deletion.
func (m *MockClient) DeleteLoadBalancer(ctx context.Context, id int64) error {
	if m.DeleteLoadBalancerFunc != nil {
		return m.DeleteLoadBalancerFunc(ctx, id)
	}
	return nil
}

// GetAction mocks action retrieval. The default action has succeeded.
func (m *MockClient) GetAction(ctx context.Context, id int64) (*hcloud.Action, error) {
	if m.GetActionFunc != nil {
		return m.GetActionFunc(ctx, id)
	}
	return &hcloud.Action{ID: id, Status: hcloud.ActionStatusSuccess}, nil
}

// ListLocations mocks location listing.
func (m *MockClient) ListLocations(ctx context.Context) ([]*hcloud.Location, error) {
	if m.ListLocationsFunc != nil {
		return m.ListLocationsFunc(ctx)
	}
	return []*hcloud.Location{{ID: 1, Name: "fsn1"}, {ID: 2, Name: "nbg1"}, {ID: 3, Name: "hel1"}}, nil
}

// GetLocation mocks location retrieval.
func (m *MockClient) GetLocation(ctx context.Context, id int64) (*hcloud.Location, error) {
	if m.GetLocationFunc != nil {
		return m.GetLocationFunc(ctx, id)
	}
	return &hcloud.Location{ID: id}, nil
}
