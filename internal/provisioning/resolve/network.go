package resolve

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/hcprov/internal/descriptor"
	hcloud_internal "github.com/imamik/hcprov/internal/platform/hcloud"
	"github.com/imamik/hcprov/internal/util/async"
	"github.com/imamik/hcprov/internal/util/labels"
)

// Network binds n to the network with the same name, creating it when absent.
func (r *Resolver) Network(ctx context.Context, n descriptor.Network) (*hcloud.Network, error) {
	ipRange, err := parseCIDR(n.IPRange)
	if err != nil {
		return nil, fmt.Errorf("network %s: %w", n.Ref, err)
	}

	network, _, err := ensure(ctx, r, ensureOp[*hcloud.Network]{
		kind: "network",
		name: n.Name,
		ref:  n.Ref,
		describe: func(ctx context.Context) (*hcloud.Network, bool, error) {
			networks, err := r.client.DescribeNetworks(ctx, hcloud_internal.Filter{Name: n.Name})
			if err != nil {
				return nil, false, err
			}
			for _, nw := range networks {
				if nw.Name == n.Name {
					return nw, true, nil
				}
			}
			return nil, false, nil
		},
		create: func(ctx context.Context) (*hcloud.Network, error) {
			return r.client.CreateNetwork(ctx, hcloud.NetworkCreateOpts{
				Name:    n.Name,
				IPRange: ipRange,
				Labels:  n.Labels,
			})
		},
		patch: func(nw *hcloud.Network) map[string]any {
			if nw.ID == n.RemoteID {
				return nil
			}
			return map[string]any{descriptor.FieldRemoteID: nw.ID}
		},
		tag: func(ctx context.Context, nw *hcloud.Network) error {
			return r.client.LabelNetwork(ctx, nw, labels.NewLabelBuilder(n.Name).WithOwner(n.Ref.String()).Build())
		},
	})
	return network, err
}

// Networks resolves every network concurrently, keyed by reference.
func (r *Resolver) Networks(ctx context.Context, networks []descriptor.Network) (map[descriptor.Reference]*hcloud.Network, error) {
	jobs := make([]async.Job[*hcloud.Network], len(networks))
	for i, n := range networks {
		jobs[i] = async.Job[*hcloud.Network]{
			Name: n.Ref.String(),
			Func: func(ctx context.Context) (*hcloud.Network, error) { return r.Network(ctx, n) },
		}
	}
	results, err := async.Join(ctx, r.rt.MaxConcurrentOps(), jobs)
	if err != nil {
		return nil, err
	}
	out := make(map[descriptor.Reference]*hcloud.Network, len(networks))
	for i, n := range networks {
		out[n.Ref] = results[i]
	}
	return out, nil
}

// SubnetHandle is a resolved subnet. Hetzner has no subnet ids, so the
// remote id is "<networkID>/<cidr>".
type SubnetHandle struct {
	Network  *hcloud.Network
	IPRange  *net.IPNet
	RemoteID string
}

// SubnetID formats the remote id of a subnet.
func SubnetID(networkID int64, ipRange *net.IPNet) string {
	return strconv.FormatInt(networkID, 10) + "/" + ipRange.String()
}

// Subnet binds s to the subnet with the same range inside network, adding
// it when absent. Subnets carry no labels, so nothing is tagged.
func (r *Resolver) Subnet(ctx context.Context, s descriptor.Subnet, network *hcloud.Network) (SubnetHandle, error) {
	if network == nil {
		return SubnetHandle{}, fmt.Errorf("subnet %s: network %s is not resolved", s.Ref, s.Network)
	}
	ipRange, err := parseCIDR(s.IPRange)
	if err != nil {
		return SubnetHandle{}, fmt.Errorf("subnet %s: %w", s.Ref, err)
	}
	zone := hcloud.NetworkZone(s.NetworkZone)
	if zone == "" {
		zone = hcloud.NetworkZoneEUCentral
	}
	subnetType := hcloud.NetworkSubnetType(s.Type)
	if subnetType == "" {
		subnetType = hcloud.NetworkSubnetTypeCloud
	}

	handle, _, err := ensure(ctx, r, ensureOp[SubnetHandle]{
		kind: "subnet",
		name: ipRange.String(),
		ref:  s.Ref,
		describe: func(ctx context.Context) (SubnetHandle, bool, error) {
			// Re-read the network; sibling resolutions may have added subnets.
			current, err := r.client.GetNetwork(ctx, network.ID)
			if err != nil {
				return SubnetHandle{}, false, err
			}
			for _, sub := range current.Subnets {
				if sub.IPRange != nil && sub.IPRange.String() == ipRange.String() {
					return SubnetHandle{Network: current, IPRange: sub.IPRange, RemoteID: SubnetID(current.ID, sub.IPRange)}, true, nil
				}
			}
			return SubnetHandle{}, false, nil
		},
		create: func(ctx context.Context) (SubnetHandle, error) {
			action, err := r.client.AddSubnet(ctx, network, hcloud.NetworkSubnet{
				Type:        subnetType,
				IPRange:     ipRange,
				NetworkZone: zone,
			})
			if err != nil {
				return SubnetHandle{}, err
			}
			if err := r.AwaitAction(ctx, action); err != nil {
				return SubnetHandle{}, err
			}
			return SubnetHandle{Network: network, IPRange: ipRange, RemoteID: SubnetID(network.ID, ipRange)}, nil
		},
		patch: func(h SubnetHandle) map[string]any {
			if h.RemoteID == s.RemoteID {
				return nil
			}
			return map[string]any{descriptor.FieldRemoteID: h.RemoteID}
		},
	})
	return handle, err
}

// Subnets resolves subnets grouped by network. Subnets of one network are
// resolved one after another, since each one rewrites the network's subnet
// list; different networks run concurrently.
func (r *Resolver) Subnets(ctx context.Context, subnets []descriptor.Subnet, networks map[descriptor.Reference]*hcloud.Network) (map[descriptor.Reference]SubnetHandle, error) {
	var order []descriptor.Reference
	groups := make(map[descriptor.Reference][]descriptor.Subnet)
	for _, s := range subnets {
		if _, ok := groups[s.Network]; !ok {
			order = append(order, s.Network)
		}
		groups[s.Network] = append(groups[s.Network], s)
	}

	jobs := make([]async.Job[[]SubnetHandle], len(order))
	for i, ref := range order {
		group := groups[ref]
		jobs[i] = async.Job[[]SubnetHandle]{
			Name: ref.String(),
			Func: func(ctx context.Context) ([]SubnetHandle, error) {
				handles := make([]SubnetHandle, 0, len(group))
				for _, s := range group {
					handle, err := r.Subnet(ctx, s, networks[ref])
					if err != nil {
						return nil, err
					}
					handles = append(handles, handle)
				}
				return handles, nil
			},
		}
	}
	results, err := async.Join(ctx, r.rt.MaxConcurrentOps(), jobs)
	if err != nil {
		return nil, err
	}
	out := make(map[descriptor.Reference]SubnetHandle, len(subnets))
	for i, ref := range order {
		for k, s := range groups[ref] {
			out[s.Ref] = results[i][k]
		}
	}
	return out, nil
}

func parseCIDR(s string) (*net.IPNet, error) {
	_, ipNet, err := net.ParseCIDR(s)
	if err != nil {
		return nil, fmt.Errorf("invalid ip range %q: %w", s, err)
	}
	return ipNet, nil
}
