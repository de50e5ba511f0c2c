package instance

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/hcprov/internal/descriptor"
	hcloud_internal "github.com/imamik/hcprov/internal/platform/hcloud"
	"github.com/imamik/hcprov/internal/provisioning"
	"github.com/imamik/hcprov/internal/provisioning/poll"
	"github.com/imamik/hcprov/internal/provisioning/resolve"
	"github.com/imamik/hcprov/internal/util/labels"
)

type state = provisioning.State[Payload]

// client loads the instance descriptor and picks the provider client for
// its credential and location.
func client(next provisioning.Stage) provisioning.Handler[Payload] {
	return func(ctx context.Context, st *state) (provisioning.Stage, error) {
		inst, err := provisioning.Load[descriptor.Instance](ctx, st.Runtime, st.Request.ResourceRef)
		if err != nil {
			return "", err
		}
		if inst.Location == "" {
			return "", provisioning.ValidationError{Field: "location", Message: fmt.Sprintf("instance %s has no location", inst.Ref)}
		}
		region := st.Request.Property("region", inst.Location)
		if err := st.UseClient(inst.Credential, region); err != nil {
			return "", err
		}
		st.Payload.Instance = inst
		return next, nil
	}
}

func disks(ctx context.Context, st *state) (provisioning.Stage, error) {
	p := &st.Payload
	loaded, err := resolve.Descriptors[descriptor.Disk](ctx, st.Runtime, p.Instance.Disks)
	if err != nil {
		return "", err
	}

	image := p.Instance.Image
	var boot *descriptor.Disk
	var data []descriptor.Disk
	for i := range loaded {
		d := loaded[i]
		if !d.Boot {
			data = append(data, d)
			continue
		}
		if boot != nil {
			return "", provisioning.ValidationError{Field: "disks", Message: fmt.Sprintf("both %s and %s are boot disks", boot.Ref, d.Ref)}
		}
		boot = &d
		if d.Image != "" {
			image = d.Image
		}
	}
	if image == "" {
		return "", provisioning.ValidationError{Field: "disks", Message: fmt.Sprintf("instance %s has no boot image", p.Instance.Ref)}
	}

	volumes, err := resolve.For(st).Volumes(ctx, data, p.Instance.Location)
	if err != nil {
		return "", err
	}

	if image != p.Instance.Image {
		if err := provisioning.PatchBack(ctx, st.Runtime, p.Instance.Ref, map[string]any{descriptor.FieldImage: image}); err != nil {
			return "", err
		}
	}
	p.Disks = loaded
	p.Image = image
	p.Volumes = volumes
	return StageNICStates, nil
}

func nicStates(ctx context.Context, st *state) (provisioning.Stage, error) {
	nics, err := resolve.Descriptors[descriptor.NIC](ctx, st.Runtime, st.Payload.Instance.NICs)
	if err != nil {
		return "", err
	}
	sort.SliceStable(nics, func(i, j int) bool { return nics[i].DeviceIndex < nics[j].DeviceIndex })
	st.Payload.NICs = nics
	return StageSubnetStates, nil
}

func subnetStates(ctx context.Context, st *state) (provisioning.Stage, error) {
	var refs []descriptor.Reference
	for _, nic := range st.Payload.NICs {
		if nic.Subnet == "" {
			return "", provisioning.ValidationError{Field: "subnet", Message: fmt.Sprintf("nic %s has no subnet", nic.Ref)}
		}
		refs = appendUnique(refs, nic.Subnet)
	}
	subnets, err := resolve.Descriptors[descriptor.Subnet](ctx, st.Runtime, refs)
	if err != nil {
		return "", err
	}
	st.Payload.Subnets = subnets
	return StageNetworkStates, nil
}

func networkStates(ctx context.Context, st *state) (provisioning.Stage, error) {
	var refs []descriptor.Reference
	for _, s := range st.Payload.Subnets {
		refs = appendUnique(refs, s.Network)
	}
	networks, err := resolve.Descriptors[descriptor.Network](ctx, st.Runtime, refs)
	if err != nil {
		return "", err
	}
	st.Payload.Networks = networks
	return StageFirewallStates, nil
}

func firewallStates(ctx context.Context, st *state) (provisioning.Stage, error) {
	p := &st.Payload
	subnetNetwork := make(map[descriptor.Reference]descriptor.Reference, len(p.Subnets))
	for _, s := range p.Subnets {
		subnetNetwork[s.Ref] = s.Network
	}

	// One NIC per network; checked before anything is created remotely.
	attached := make(map[descriptor.Reference]descriptor.Reference, len(p.NICs))
	for _, nic := range p.NICs {
		network := subnetNetwork[nic.Subnet]
		if other, dup := attached[network]; dup {
			return "", provisioning.ValidationError{
				Field:   "nics",
				Message: fmt.Sprintf("nics %s and %s attach to the same network %s", other, nic.Ref, network),
			}
		}
		attached[network] = nic.Ref
	}

	var refs, defaults []descriptor.Reference
	for _, nic := range p.NICs {
		if len(nic.Firewalls) == 0 {
			defaults = appendUnique(defaults, subnetNetwork[nic.Subnet])
			continue
		}
		for _, fw := range nic.Firewalls {
			refs = appendUnique(refs, fw)
		}
	}
	firewalls, err := resolve.Descriptors[descriptor.Firewall](ctx, st.Runtime, refs)
	if err != nil {
		return "", err
	}

	known := make(map[descriptor.Reference]bool, len(p.Networks))
	for _, n := range p.Networks {
		known[n.Ref] = true
	}
	for _, fw := range firewalls {
		if !known[fw.Network] {
			return "", provisioning.ValidationError{
				Field:   "firewalls",
				Message: fmt.Sprintf("firewall %s belongs to network %s, which none of the NICs attach to", fw.Ref, fw.Network),
			}
		}
	}

	p.Firewalls = firewalls
	p.DefaultFirewallNetworks = defaults
	return StageResolveNetworks, nil
}

func resolveNetworks(ctx context.Context, st *state) (provisioning.Stage, error) {
	networks, err := resolve.For(st).Networks(ctx, st.Payload.Networks)
	if err != nil {
		return "", err
	}
	st.Payload.RemoteNetworks = networks
	return StageResolveSubnets, nil
}

func resolveSubnets(ctx context.Context, st *state) (provisioning.Stage, error) {
	subnets, err := resolve.For(st).Subnets(ctx, st.Payload.Subnets, st.Payload.RemoteNetworks)
	if err != nil {
		return "", err
	}
	st.Payload.RemoteSubnets = subnets
	return StageResolveSecurityGroups, nil
}

func resolveSecurityGroups(ctx context.Context, st *state) (provisioning.Stage, error) {
	p := &st.Payload
	specs := make([]resolve.FirewallSpec, 0, len(p.Firewalls)+len(p.DefaultFirewallNetworks))
	for _, fw := range p.Firewalls {
		specs = append(specs, resolve.FirewallFor(fw, p.RemoteNetworks[fw.Network]))
	}
	for _, ref := range p.DefaultFirewallNetworks {
		specs = append(specs, resolve.DefaultFirewall(p.RemoteNetworks[ref]))
	}

	resolved, err := resolve.For(st).Firewalls(ctx, specs)
	if err != nil {
		return "", err
	}

	p.RemoteFirewalls = make(map[descriptor.Reference]*hcloud.Firewall, len(p.Firewalls))
	p.DefaultFirewalls = make(map[descriptor.Reference]*hcloud.Firewall, len(p.DefaultFirewallNetworks))
	for i, fw := range p.Firewalls {
		p.RemoteFirewalls[fw.Ref] = resolved[i]
	}
	for i, ref := range p.DefaultFirewallNetworks {
		p.DefaultFirewalls[ref] = resolved[len(p.Firewalls)+i]
	}
	return StageBuildNICSpecs, nil
}

func buildNICSpecs(_ context.Context, st *state) (provisioning.Stage, error) {
	p := &st.Payload
	attached := map[int64]descriptor.Reference{}
	specs := make([]NICSpec, 0, len(p.NICs))

	for _, nic := range p.NICs {
		subnet, ok := p.RemoteSubnets[nic.Subnet]
		if !ok || subnet.Network == nil {
			return "", fmt.Errorf("nic %s: subnet %s is not resolved", nic.Ref, nic.Subnet)
		}
		if other, dup := attached[subnet.Network.ID]; dup {
			return "", provisioning.ValidationError{
				Field:   "nics",
				Message: fmt.Sprintf("nics %s and %s attach to the same network", other, nic.Ref),
			}
		}
		attached[subnet.Network.ID] = nic.Ref

		spec := NICSpec{NIC: nic, Network: subnet.Network, Subnet: subnet}
		if len(nic.Firewalls) == 0 {
			if fw := p.DefaultFirewalls[networkOf(p.Subnets, nic.Subnet)]; fw != nil {
				spec.Firewalls = append(spec.Firewalls, fw.ID)
			}
		}
		for _, ref := range nic.Firewalls {
			fw := p.RemoteFirewalls[ref]
			if fw == nil {
				st.Logger.Info("firewall was skipped, nic proceeds without it", "nic", nic.Ref.String(), "firewall", ref.String())
				continue
			}
			spec.Firewalls = append(spec.Firewalls, fw.ID)
		}
		specs = append(specs, spec)
	}

	p.Specs = specs
	return StageCreate, nil
}

func create(ctx context.Context, st *state) (provisioning.Stage, error) {
	p := &st.Payload
	inst := p.Instance
	if inst.RemoteID != 0 {
		existing, err := st.Client.GetServer(ctx, inst.RemoteID)
		switch {
		case err == nil:
			provisioning.Emit(st.Logger, provisioning.EventResourceExists, "server", nil, "name", inst.Name, "id", existing.ID)
			p.Server = existing
			return StagePoll, nil
		case !hcloud_internal.IsNotFound(err):
			return "", fmt.Errorf("failed to describe server %d: %w", inst.RemoteID, err)
		}
	}

	public := len(p.Specs) == 0
	var firewallIDs []int64
	opts := hcloud.ServerCreateOpts{
		Name:             inst.Name,
		ServerType:       &hcloud.ServerType{Name: inst.ServerType},
		Image:            &hcloud.Image{Name: p.Image},
		Location:         &hcloud.Location{Name: inst.Location},
		UserData:         inst.UserData,
		Labels:           labels.NewLabelBuilder(inst.Name).Merge(inst.Labels).WithOwner(inst.Ref.String()).Build(),
		StartAfterCreate: hcloud.Ptr(true),
		Volumes:          p.Volumes,
	}
	if len(p.Volumes) > 0 {
		opts.Automount = hcloud.Ptr(true)
	}
	for _, spec := range p.Specs {
		opts.Networks = append(opts.Networks, spec.Network)
		public = public || spec.NIC.AssignPublicIP
		for _, id := range spec.Firewalls {
			if !slices.Contains(firewallIDs, id) {
				firewallIDs = append(firewallIDs, id)
				opts.Firewalls = append(opts.Firewalls, &hcloud.ServerCreateFirewall{Firewall: hcloud.Firewall{ID: id}})
			}
		}
	}
	opts.PublicNet = &hcloud.ServerCreatePublicNet{EnableIPv4: public, EnableIPv6: public}

	server, action, err := st.Client.CreateServer(ctx, opts)
	if err != nil {
		return "", provisioning.Permanent("create server "+inst.Name, err)
	}
	provisioning.Emit(st.Logger, provisioning.EventResourceCreated, "server", nil, "name", inst.Name, "id", server.ID)

	if err := provisioning.PatchBack(ctx, st.Runtime, inst.Ref, map[string]any{descriptor.FieldRemoteID: server.ID}); err != nil {
		return "", err
	}
	p.Server = server
	p.Action = action
	return StagePoll, nil
}

// awaitRunning waits for the server to reach its desired status, running
// unless the payload names another, and records its addresses.
func awaitRunning(ctx context.Context, st *state) (provisioning.Stage, error) {
	p := &st.Payload
	id := p.Server.ID
	desired := p.Desired
	if desired == "" {
		desired = hcloud.ServerStatusRunning
	}
	snap, err := st.Runtime.Poller.Await(ctx, poll.Request{
		ResourceID:    fmt.Sprintf("server %d", id),
		Desired:       string(desired),
		FailureStates: []string{string(hcloud.ServerStatusDeleting)},
		Deadline:      st.Deadline,
		Describe: func(ctx context.Context) (poll.Snapshot, error) {
			server, err := st.Client.GetServer(ctx, id)
			if err != nil {
				return poll.Snapshot{}, err
			}
			return poll.Snapshot{ID: fmt.Sprint(id), Status: string(server.Status), Resource: server}, nil
		},
	})
	if err != nil {
		return "", err
	}
	server := snap.Resource.(*hcloud.Server)
	p.Server = server

	if err := provisioning.PatchBack(ctx, st.Runtime, p.Instance.Ref, serverFields(server)); err != nil {
		return "", err
	}
	return provisioning.StageDone, nil
}

func serverFields(server *hcloud.Server) map[string]any {
	delta := map[string]any{
		descriptor.FieldRemoteID: server.ID,
		descriptor.FieldStatus:   string(server.Status),
	}
	if ip := server.PublicNet.IPv4.IP; ip != nil && !ip.IsUnspecified() {
		delta[descriptor.FieldPublicIPv4] = ip.String()
	}
	if len(server.PrivateNet) > 0 {
		ips := make([]string, 0, len(server.PrivateNet))
		for _, n := range server.PrivateNet {
			ips = append(ips, n.IP.String())
		}
		delta[descriptor.FieldPrivateIPs] = ips
	}
	return delta
}

func networkOf(subnets []descriptor.Subnet, ref descriptor.Reference) descriptor.Reference {
	for _, s := range subnets {
		if s.Ref == ref {
			return s.Network
		}
	}
	return ""
}

func appendUnique(refs []descriptor.Reference, ref descriptor.Reference) []descriptor.Reference {
	if slices.Contains(refs, ref) {
		return refs
	}
	return append(refs, ref)
}
