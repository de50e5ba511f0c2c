package testing

import (
	"context"
	"maps"
	"net"
	"slices"
	"strconv"
	"sync"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	hcloud_internal "github.com/imamik/hcprov/internal/platform/hcloud"
)

// InfraFixture is a MockClient backed by a small in-memory Hetzner project.
// Created objects become visible to later describe calls, so a second
// workflow run over the same fixture binds instead of creating.
//
// Individual Func fields of Mock() may be replaced after construction to
// inject failures.
type InfraFixture struct {
	mock *hcloud_internal.MockClient

	mu             sync.Mutex
	nextID         int64
	networks       map[int64]*hcloud.Network
	firewalls      map[int64]*hcloud.Firewall
	volumes        map[int64]*hcloud.Volume
	servers        map[int64]*hcloud.Server
	loadBalancers  map[int64]*hcloud.LoadBalancer
	serverStatuses []hcloud.ServerStatus
	statusCalls    int
	calls          map[string]int
}

// NewInfraFixture creates an empty project.
func NewInfraFixture() *InfraFixture {
	f := &InfraFixture{
		mock:          &hcloud_internal.MockClient{},
		nextID:        100,
		networks:      map[int64]*hcloud.Network{},
		firewalls:     map[int64]*hcloud.Firewall{},
		volumes:       map[int64]*hcloud.Volume{},
		servers:       map[int64]*hcloud.Server{},
		loadBalancers: map[int64]*hcloud.LoadBalancer{},
		calls:         map[string]int{},
	}
	f.install()
	return f
}

// Mock returns the underlying MockClient.
func (f *InfraFixture) Mock() *hcloud_internal.MockClient {
	return f.mock
}

// Calls returns how many times method was invoked.
func (f *InfraFixture) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// WithNetwork adds an existing network with the given subnets.
func (f *InfraFixture) WithNetwork(id int64, name, cidr string, subnets ...string) *InfraFixture {
	f.mu.Lock()
	defer f.mu.Unlock()
	network := &hcloud.Network{ID: id, Name: name, IPRange: mustCIDR(cidr), Labels: map[string]string{}}
	for _, s := range subnets {
		network.Subnets = append(network.Subnets, hcloud.NetworkSubnet{
			Type:        hcloud.NetworkSubnetTypeCloud,
			IPRange:     mustCIDR(s),
			NetworkZone: hcloud.NetworkZoneEUCentral,
		})
	}
	f.networks[id] = network
	return f
}

// WithFirewall adds an existing firewall scoped to networkID.
func (f *InfraFixture) WithFirewall(id int64, name string, networkID int64, rules ...hcloud.FirewallRule) *InfraFixture {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.firewalls[id] = &hcloud.Firewall{
		ID:     id,
		Name:   name,
		Labels: map[string]string{"hcprov.io/network": formatID(networkID)},
		Rules:  rules,
	}
	return f
}

// WithServerStatuses makes GetServer report statuses in order, starting
// over from the first. The last one repeats. UpdateServer reports the status
// GetServer would report next.
func (f *InfraFixture) WithServerStatuses(statuses ...hcloud.ServerStatus) *InfraFixture {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.serverStatuses = statuses
	f.statusCalls = 0
	return f
}

// Network returns a copy of the network with id.
func (f *InfraFixture) Network(id int64) (*hcloud.Network, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.networks[id]
	if !ok {
		return nil, false
	}
	return cloneNetwork(n), true
}

// FirewallByName returns a copy of the firewall named name.
func (f *InfraFixture) FirewallByName(name string) (*hcloud.Firewall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, fw := range f.firewalls {
		if fw.Name == name {
			return cloneFirewall(fw), true
		}
	}
	return nil, false
}

// Servers returns the number of servers in the project.
func (f *InfraFixture) Servers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.servers)
}

// LoadBalancers returns the number of load balancers in the project.
func (f *InfraFixture) LoadBalancers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.loadBalancers)
}

// Firewalls returns the number of firewalls in the project.
func (f *InfraFixture) Firewalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.firewalls)
}

func (f *InfraFixture) record(method string) {
	f.calls[method]++
}

func (f *InfraFixture) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *InfraFixture) action(command string) *hcloud.Action {
	return &hcloud.Action{ID: f.id(), Command: command, Status: hcloud.ActionStatusRunning}
}

func (f *InfraFixture) install() {
	m := f.mock

	m.DescribeNetworksFunc = func(_ context.Context, filter hcloud_internal.Filter) ([]*hcloud.Network, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.record("DescribeNetworks")
		var out []*hcloud.Network
		for _, n := range f.networks {
			if filter.Name == "" || n.Name == filter.Name {
				out = append(out, cloneNetwork(n))
			}
		}
		return out, nil
	}
	m.GetNetworkFunc = func(_ context.Context, id int64) (*hcloud.Network, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.record("GetNetwork")
		n, ok := f.networks[id]
		if !ok {
			return nil, hcloud_internal.NotFoundError("network", id)
		}
		return cloneNetwork(n), nil
	}
	m.CreateNetworkFunc = func(_ context.Context, opts hcloud.NetworkCreateOpts) (*hcloud.Network, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.record("CreateNetwork")
		n := &hcloud.Network{ID: f.id(), Name: opts.Name, IPRange: opts.IPRange, Labels: maps.Clone(opts.Labels)}
		f.networks[n.ID] = n
		return cloneNetwork(n), nil
	}
	m.AddSubnetFunc = func(_ context.Context, network *hcloud.Network, subnet hcloud.NetworkSubnet) (*hcloud.Action, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.record("AddSubnet")
		n, ok := f.networks[network.ID]
		if !ok {
			return nil, hcloud_internal.NotFoundError("network", network.ID)
		}
		n.Subnets = append(n.Subnets, subnet)
		return f.action("add_subnet"), nil
	}
	m.LabelNetworkFunc = func(_ context.Context, network *hcloud.Network, labels map[string]string) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.record("LabelNetwork")
		if n, ok := f.networks[network.ID]; ok {
			if n.Labels == nil {
				n.Labels = map[string]string{}
			}
			maps.Copy(n.Labels, labels)
		}
		return nil
	}

	m.DescribeFirewallsFunc = func(_ context.Context, filter hcloud_internal.Filter) ([]*hcloud.Firewall, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.record("DescribeFirewalls")
		var out []*hcloud.Firewall
		for _, fw := range f.firewalls {
			if filter.Name != "" && fw.Name != filter.Name {
				continue
			}
			if !hasLabels(fw.Labels, filter.Labels) {
				continue
			}
			out = append(out, cloneFirewall(fw))
		}
		return out, nil
	}
	m.CreateFirewallFunc = func(_ context.Context, opts hcloud.FirewallCreateOpts) (*hcloud.Firewall, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.record("CreateFirewall")
		fw := &hcloud.Firewall{ID: f.id(), Name: opts.Name, Labels: maps.Clone(opts.Labels), Rules: opts.Rules}
		fw.AppliedTo = slices.Clone(opts.ApplyTo)
		f.firewalls[fw.ID] = fw
		return cloneFirewall(fw), nil
	}
	m.SetFirewallRulesFunc = func(_ context.Context, firewall *hcloud.Firewall, rules []hcloud.FirewallRule) ([]*hcloud.Action, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.record("SetFirewallRules")
		fw, ok := f.firewalls[firewall.ID]
		if !ok {
			return nil, hcloud_internal.NotFoundError("firewall", firewall.ID)
		}
		fw.Rules = slices.Clone(rules)
		return []*hcloud.Action{f.action("set_firewall_rules")}, nil
	}
	m.LabelFirewallFunc = func(_ context.Context, firewall *hcloud.Firewall, labels map[string]string) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.record("LabelFirewall")
		if fw, ok := f.firewalls[firewall.ID]; ok {
			if fw.Labels == nil {
				fw.Labels = map[string]string{}
			}
			maps.Copy(fw.Labels, labels)
		}
		return nil
	}
	m.DeleteFirewallFunc = func(_ context.Context, id int64) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.record("DeleteFirewall")
		delete(f.firewalls, id)
		return nil
	}

	m.DescribeVolumesFunc = func(_ context.Context, filter hcloud_internal.Filter) ([]*hcloud.Volume, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.record("DescribeVolumes")
		var out []*hcloud.Volume
		for _, v := range f.volumes {
			if filter.Name == "" || v.Name == filter.Name {
				c := *v
				out = append(out, &c)
			}
		}
		return out, nil
	}
	m.CreateVolumeFunc = func(_ context.Context, opts hcloud.VolumeCreateOpts) (*hcloud.Volume, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.record("CreateVolume")
		v := &hcloud.Volume{ID: f.id(), Name: opts.Name, Size: opts.Size, Status: hcloud.VolumeStatusCreating, Labels: maps.Clone(opts.Labels)}
		f.volumes[v.ID] = v
		c := *v
		return &c, nil
	}
	m.GetVolumeFunc = func(_ context.Context, id int64) (*hcloud.Volume, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.record("GetVolume")
		v, ok := f.volumes[id]
		if !ok {
			return nil, hcloud_internal.NotFoundError("volume", id)
		}
		// Volumes become available on the first read after creation.
		v.Status = hcloud.VolumeStatusAvailable
		c := *v
		return &c, nil
	}

	m.CreateServerFunc = func(_ context.Context, opts hcloud.ServerCreateOpts) (*hcloud.Server, *hcloud.Action, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.record("CreateServer")
		s := &hcloud.Server{ID: f.id(), Name: opts.Name, Status: hcloud.ServerStatusInitializing, Labels: maps.Clone(opts.Labels)}
		if opts.PublicNet == nil || opts.PublicNet.EnableIPv4 {
			s.PublicNet.IPv4 = hcloud.ServerPublicNetIPv4{IP: net.ParseIP("203.0.113.20")}
		}
		for i, n := range opts.Networks {
			s.PrivateNet = append(s.PrivateNet, hcloud.ServerPrivateNet{
				Network: n,
				IP:      net.IPv4(10, 0, 1, byte(10+i)),
			})
		}
		f.servers[s.ID] = s
		c := *s
		return &c, f.action("create_server"), nil
	}
	m.GetServerFunc = func(_ context.Context, id int64) (*hcloud.Server, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.record("GetServer")
		s, ok := f.servers[id]
		if !ok {
			return nil, hcloud_internal.NotFoundError("server", id)
		}
		s.Status = hcloud.ServerStatusRunning
		if len(f.serverStatuses) > 0 {
			i := min(f.statusCalls, len(f.serverStatuses)-1)
			s.Status = f.serverStatuses[i]
		}
		f.statusCalls++
		c := *s
		return &c, nil
	}
	m.UpdateServerFunc = func(_ context.Context, id int64, opts hcloud.ServerUpdateOpts) (*hcloud.Server, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.record("UpdateServer")
		s, ok := f.servers[id]
		if !ok {
			return nil, hcloud_internal.NotFoundError("server", id)
		}
		if opts.Name != "" {
			s.Name = opts.Name
		}
		if opts.Labels != nil {
			s.Labels = maps.Clone(opts.Labels)
		}
		if len(f.serverStatuses) > 0 {
			s.Status = f.serverStatuses[min(f.statusCalls, len(f.serverStatuses)-1)]
		}
		c := *s
		return &c, nil
	}
	m.DeleteServerFunc = func(_ context.Context, id int64) (*hcloud.Action, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.record("DeleteServer")
		if _, ok := f.servers[id]; !ok {
			return nil, nil
		}
		delete(f.servers, id)
		return f.action("delete_server"), nil
	}

	m.CreateLoadBalancerFunc = func(_ context.Context, opts hcloud.LoadBalancerCreateOpts) (*hcloud.LoadBalancer, *hcloud.Action, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.record("CreateLoadBalancer")
		lb := &hcloud.LoadBalancer{ID: f.id(), Name: opts.Name, Labels: maps.Clone(opts.Labels)}
		f.loadBalancers[lb.ID] = lb
		c := *lb
		return &c, f.action("create_load_balancer"), nil
	}
	m.GetLoadBalancerFunc = func(_ context.Context, id int64) (*hcloud.LoadBalancer, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.record("GetLoadBalancer")
		lb, ok := f.loadBalancers[id]
		if !ok {
			return nil, hcloud_internal.NotFoundError("load balancer", id)
		}
		c := *lb
		return &c, nil
	}
	m.DeleteLoadBalancerFunc = func(_ context.Context, id int64) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.record("DeleteLoadBalancer")
		delete(f.loadBalancers, id)
		return nil
	}
}

func hasLabels(have, want map[string]string) bool {
	for k, v := range want {
		if have[k] != v {
			return false
		}
	}
	return true
}

func cloneNetwork(n *hcloud.Network) *hcloud.Network {
	c := *n
	c.Subnets = slices.Clone(n.Subnets)
	c.Labels = maps.Clone(n.Labels)
	return &c
}

func cloneFirewall(fw *hcloud.Firewall) *hcloud.Firewall {
	c := *fw
	c.Rules = slices.Clone(fw.Rules)
	c.Labels = maps.Clone(fw.Labels)
	c.AppliedTo = slices.Clone(fw.AppliedTo)
	return &c
}

func mustCIDR(s string) *net.IPNet {
	_, ipNet, err := net.ParseCIDR(s)
	if err != nil {
		panic(err)
	}
	return ipNet
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
