package loadbalancer

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/google/uuid"
	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/hcprov/internal/descriptor"
	hcloud_internal "github.com/imamik/hcprov/internal/platform/hcloud"
	"github.com/imamik/hcprov/internal/provisioning"
	"github.com/imamik/hcprov/internal/provisioning/resolve"
	"github.com/imamik/hcprov/internal/util/labels"
)

type state = provisioning.State[Payload]

// AuxFirewallName is the name of the firewall a load balancer owns.
func AuxFirewallName(lb descriptor.LoadBalancer) string {
	return lb.Name + "-lb"
}

func client(next provisioning.Stage) provisioning.Handler[Payload] {
	return func(ctx context.Context, st *state) (provisioning.Stage, error) {
		lb, err := provisioning.Load[descriptor.LoadBalancer](ctx, st.Runtime, st.Request.ResourceRef)
		if err != nil {
			return "", err
		}
		if lb.Location == "" {
			return "", provisioning.ValidationError{Field: "location", Message: fmt.Sprintf("load balancer %s has no location", lb.Ref)}
		}
		region := st.Request.Property("region", lb.Location)
		if err := st.UseClient(lb.Credential, region); err != nil {
			return "", err
		}
		st.Payload.LoadBalancer = lb
		return next, nil
	}
}

func networkState(ctx context.Context, st *state) (provisioning.Stage, error) {
	lb := st.Payload.LoadBalancer
	if lb.Network == "" {
		return StageSecurityGroups, nil
	}
	network, err := provisioning.Load[descriptor.Network](ctx, st.Runtime, lb.Network)
	if err != nil {
		return "", err
	}
	remote, err := resolve.For(st).Network(ctx, network)
	if err != nil {
		return "", err
	}
	st.Payload.Network = remote
	return StageSecurityGroups, nil
}

// auxFirewall opens every destination port to the load balancer. Traffic
// arrives from the network when there is one.
func auxFirewall(lb descriptor.LoadBalancer, network *hcloud.Network) resolve.FirewallSpec {
	var sources []string
	if network != nil && network.IPRange != nil {
		sources = []string{network.IPRange.String()}
	}
	var ports []int
	for _, svc := range lb.Services {
		if !slices.Contains(ports, svc.DestinationPort) {
			ports = append(ports, svc.DestinationPort)
		}
	}
	spec := resolve.FirewallSpec{
		Name:    AuxFirewallName(lb),
		Network: network,
		Role:    labels.RoleAuxFirewall,
		Owner:   lb.Ref.String(),
		Labels:  lb.Labels,
	}
	for _, p := range ports {
		spec.Ingress = append(spec.Ingress, descriptor.Rule{
			Protocol:    "tcp",
			Port:        strconv.Itoa(p),
			CIDRs:       sources,
			Description: fmt.Sprintf("%s port %d", lb.Name, p),
		})
	}
	if lb.TargetSelector != "" {
		spec.ApplyTo = []hcloud.FirewallResource{{
			Type:          hcloud.FirewallResourceTypeLabelSelector,
			LabelSelector: &hcloud.FirewallResourceLabelSelector{Selector: lb.TargetSelector},
		}}
	}
	return spec
}

func securityGroups(ctx context.Context, st *state) (provisioning.Stage, error) {
	lb := st.Payload.LoadBalancer
	fw, err := resolve.For(st).Firewall(ctx, auxFirewall(lb, st.Payload.Network))
	if err != nil {
		return "", err
	}
	if fw == nil {
		st.Logger.Info("auxiliary firewall was skipped, targets stay closed", "firewall", AuxFirewallName(lb))
		return StageCreate, nil
	}
	st.Payload.Firewall = fw
	if !slices.Contains(lb.Firewalls, fw.ID) {
		ids := append(slices.Clone(lb.Firewalls), fw.ID)
		if err := provisioning.PatchBack(ctx, st.Runtime, lb.Ref, map[string]any{descriptor.FieldFirewalls: ids}); err != nil {
			return "", err
		}
		st.Payload.LoadBalancer.Firewalls = ids
	}
	return StageCreate, nil
}

func create(ctx context.Context, st *state) (provisioning.Stage, error) {
	lb := st.Payload.LoadBalancer
	if lb.RemoteID != 0 {
		existing, err := st.Client.GetLoadBalancer(ctx, lb.RemoteID)
		switch {
		case err == nil:
			provisioning.Emit(st.Logger, provisioning.EventResourceExists, "load balancer", nil, "name", lb.Name, "id", existing.ID)
			st.Payload.Remote = existing
			return StagePoll, nil
		case !hcloud_internal.IsNotFound(err):
			return "", fmt.Errorf("failed to describe load balancer %d: %w", lb.RemoteID, err)
		}
	}

	remote, action, err := st.Client.CreateLoadBalancer(ctx, createOpts(lb, st.Payload.Network))
	if err != nil {
		return "", provisioning.Permanent("create load balancer "+lb.Name, err)
	}
	provisioning.Emit(st.Logger, provisioning.EventResourceCreated, "load balancer", nil, "name", lb.Name, "id", remote.ID)

	if err := provisioning.PatchBack(ctx, st.Runtime, lb.Ref, map[string]any{descriptor.FieldRemoteID: remote.ID}); err != nil {
		return "", err
	}
	st.Payload.Remote = remote
	st.Payload.Action = action
	return StagePoll, nil
}

func createOpts(lb descriptor.LoadBalancer, network *hcloud.Network) hcloud.LoadBalancerCreateOpts {
	opts := hcloud.LoadBalancerCreateOpts{
		Name:             lb.Name,
		LoadBalancerType: &hcloud.LoadBalancerType{Name: lb.Type},
		Location:         &hcloud.Location{Name: lb.Location},
		Labels:           labels.NewLabelBuilder(lb.Name).Merge(lb.Labels).WithOwner(lb.Ref.String()).Build(),
		Network:          network,
		PublicInterface:  hcloud.Ptr(true),
	}
	if lb.Algorithm != "" {
		opts.Algorithm = &hcloud.LoadBalancerAlgorithm{Type: hcloud.LoadBalancerAlgorithmType(lb.Algorithm)}
	}
	for _, svc := range lb.Services {
		protocol := svc.Protocol
		if protocol == "" {
			protocol = string(hcloud.LoadBalancerServiceProtocolTCP)
		}
		opts.Services = append(opts.Services, hcloud.LoadBalancerCreateOptsService{
			Protocol:        hcloud.LoadBalancerServiceProtocol(protocol),
			ListenPort:      hcloud.Ptr(svc.ListenPort),
			DestinationPort: hcloud.Ptr(svc.DestinationPort),
		})
	}
	if lb.TargetSelector != "" {
		opts.Targets = []hcloud.LoadBalancerCreateOptsTarget{{
			Type:          hcloud.LoadBalancerTargetTypeLabelSelector,
			LabelSelector: hcloud.LoadBalancerCreateOptsTargetLabelSelector{Selector: lb.TargetSelector},
			UsePrivateIP:  hcloud.Ptr(network != nil),
		}}
	}
	return opts
}

func awaitCreated(ctx context.Context, st *state) (provisioning.Stage, error) {
	if err := resolve.For(st).AwaitAction(ctx, st.Payload.Action); err != nil {
		return "", err
	}
	remote, err := st.Client.GetLoadBalancer(ctx, st.Payload.Remote.ID)
	if err != nil {
		return "", fmt.Errorf("failed to read load balancer %d: %w", st.Payload.Remote.ID, err)
	}
	st.Payload.Remote = remote
	if ip := remote.PublicNet.IPv4.IP; ip != nil && !ip.IsUnspecified() {
		if err := provisioning.PatchBack(ctx, st.Runtime, st.Payload.LoadBalancer.Ref, map[string]any{descriptor.FieldPublicIPv4: ip.String()}); err != nil {
			return "", err
		}
	}
	return provisioning.StageDone, nil
}

func mockCreate(ctx context.Context, st *state) (provisioning.Stage, error) {
	ref := st.Request.ResourceRef
	if _, err := provisioning.Load[descriptor.LoadBalancer](ctx, st.Runtime, ref); err != nil {
		return "", err
	}
	err := provisioning.PatchBack(ctx, st.Runtime, ref, map[string]any{
		descriptor.FieldMockID: "mock-" + uuid.NewString(),
		descriptor.FieldStatus: "running",
	})
	if err != nil {
		return "", err
	}
	return provisioning.StageDone, nil
}
