package testing

import (
	"context"
	"fmt"
	"maps"
	"testing"
	"time"

	"github.com/go-logr/logr/testr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/imamik/hcprov/internal/config"
	"github.com/imamik/hcprov/internal/descriptor"
	hcloud_internal "github.com/imamik/hcprov/internal/platform/hcloud"
	"github.com/imamik/hcprov/internal/provisioning"
	"github.com/imamik/hcprov/internal/provisioning/poll"
	"github.com/imamik/hcprov/internal/store"
	"github.com/imamik/hcprov/internal/task"
)

// Epoch is the start time of every Harness clock.
var Epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// Names used by the default topology and matched by InfraFixture helpers.
const (
	NetworkName  = "web"
	NetworkCIDR  = "10.0.0.0/16"
	SubnetName   = "web-a"
	SubnetCIDR   = "10.0.1.0/24"
	FirewallName = "web-ssh"
	Location     = "fsn1"
	Credential   = "default"
	BootImage    = "ubuntu-24.04"
)

// Harness is a Runtime wired to in-process collaborators.
type Harness struct {
	Runtime  *provisioning.Runtime
	Store    *store.Memory
	Recorder *task.Recorder
	Clock    *poll.FakeClock
	Clients  *StaticClients
	Registry *prometheus.Registry
}

// NewHarness builds a Harness whose client source always returns cloud.
func NewHarness(t *testing.T, cloud hcloud_internal.Cloud) *Harness {
	t.Helper()

	settings := config.Default()
	clock := poll.NewFakeClock(Epoch)
	reg := prometheus.NewRegistry()
	metrics := provisioning.NewMetrics(reg)
	mem := store.NewMemory()
	rec := task.NewRecorder()
	clients := &StaticClients{Cloud: cloud}

	rt := &provisioning.Runtime{
		Store:    mem,
		Clients:  clients,
		Notifier: rec,
		Poller: &poll.Poller{
			Interval:    settings.PollInterval,
			Clock:       clock,
			IsTransient: hcloud_internal.IsNotYetVisible,
			Recorder:    metrics,
		},
		Settings: settings,
		Metrics:  metrics,
		Logger:   testr.New(t),
		Clock:    clock,
	}
	require.NoError(t, rt.Validate())

	return &Harness{
		Runtime:  rt,
		Store:    mem,
		Recorder: rec,
		Clock:    clock,
		Clients:  clients,
		Registry: reg,
	}
}

// Seed stores value under ref.
func (h *Harness) Seed(t *testing.T, ref descriptor.Reference, value any) {
	t.Helper()
	require.NoError(t, h.Store.Put(context.Background(), ref, value))
}

// Doc returns the stored document at ref and fails the test when it is missing.
func (h *Harness) Doc(t *testing.T, ref descriptor.Reference) store.Document {
	t.Helper()
	doc, ok := h.Store.Raw(ref)
	require.True(t, ok, "no document at %s", ref)
	return doc
}

// Run executes one request through wf.
func (h *Harness) Run(t *testing.T, wf provisioning.Workflow, req provisioning.Request) error {
	t.Helper()
	if req.TaskRef == "" {
		req.TaskRef = "tasks/" + req.ResourceRef.Name()
	}
	return wf.Run(TestContext(t), h.Runtime, req)
}

// Topology declares an instance together with its network, subnet,
// firewall, NICs and disks.
type Topology struct {
	Network   descriptor.Network
	Subnet    descriptor.Subnet
	Firewalls []descriptor.Firewall
	NICs      []descriptor.NIC
	Disks     []descriptor.Disk
	Instance  descriptor.Instance
}

// NewTopology returns an instance with one boot disk and one NIC in the
// default subnet, guarded by one firewall.
func NewTopology(name string) *Topology {
	network := descriptor.Network{
		Ref:     descriptor.NewReference(descriptor.KindNetwork, NetworkName),
		Name:    NetworkName,
		IPRange: NetworkCIDR,
	}
	subnet := descriptor.Subnet{
		Ref:         descriptor.NewReference(descriptor.KindSubnet, SubnetName),
		Network:     network.Ref,
		IPRange:     SubnetCIDR,
		NetworkZone: "eu-central",
	}
	firewall := descriptor.Firewall{
		Ref:     descriptor.NewReference(descriptor.KindFirewall, FirewallName),
		Name:    FirewallName,
		Network: network.Ref,
		Ingress: []descriptor.Rule{{Protocol: "tcp", Port: "22", CIDRs: []string{"0.0.0.0/0"}}},
	}
	boot := descriptor.Disk{
		Ref:   descriptor.NewReference(descriptor.KindDisk, name+"-boot"),
		Name:  name + "-boot",
		Boot:  true,
		Image: BootImage,
	}
	nic := descriptor.NIC{
		Ref:            descriptor.NewReference(descriptor.KindNIC, name+"-eth0"),
		Name:           name + "-eth0",
		Subnet:         subnet.Ref,
		Firewalls:      []descriptor.Reference{firewall.Ref},
		AssignPublicIP: true,
	}
	tp := &Topology{
		Network:   network,
		Subnet:    subnet,
		Firewalls: []descriptor.Firewall{firewall},
		NICs:      []descriptor.NIC{nic},
		Disks:     []descriptor.Disk{boot},
		Instance: descriptor.Instance{
			Ref:        descriptor.NewReference(descriptor.KindInstance, name),
			Name:       name,
			ServerType: "cx22",
			Location:   Location,
			Credential: Credential,
			Labels:     map[string]string{"env": "test"},
		},
	}
	return tp
}

// WithDataDisk adds a volume of sizeGB.
func (tp *Topology) WithDataDisk(name string, sizeGB int) *Topology {
	tp.Disks = append(tp.Disks, descriptor.Disk{
		Ref:    descriptor.NewReference(descriptor.KindDisk, name),
		Name:   name,
		SizeGB: sizeGB,
		Format: "ext4",
	})
	return tp
}

// WithNIC adds a NIC in the default subnet.
func (tp *Topology) WithNIC(name string, firewalls ...descriptor.Reference) *Topology {
	tp.NICs = append(tp.NICs, descriptor.NIC{
		Ref:         descriptor.NewReference(descriptor.KindNIC, name),
		Name:        name,
		DeviceIndex: len(tp.NICs),
		Subnet:      tp.Subnet.Ref,
		Firewalls:   firewalls,
	})
	return tp
}

// WithoutFirewalls removes every firewall reference, so the default
// firewall applies.
func (tp *Topology) WithoutFirewalls() *Topology {
	tp.Firewalls = nil
	for i := range tp.NICs {
		tp.NICs[i].Firewalls = nil
	}
	return tp
}

// Build fills the instance's disk and NIC references.
func (tp *Topology) Build() descriptor.Instance {
	inst := tp.Instance
	inst.Labels = maps.Clone(tp.Instance.Labels)
	inst.Disks = nil
	inst.NICs = nil
	for _, d := range tp.Disks {
		inst.Disks = append(inst.Disks, d.Ref)
	}
	for _, n := range tp.NICs {
		inst.NICs = append(inst.NICs, n.Ref)
	}
	return inst
}

// Seed stores every descriptor of the topology.
func (tp *Topology) Seed(t *testing.T, h *Harness) descriptor.Reference {
	t.Helper()
	h.Seed(t, tp.Network.Ref, tp.Network)
	h.Seed(t, tp.Subnet.Ref, tp.Subnet)
	for _, fw := range tp.Firewalls {
		h.Seed(t, fw.Ref, fw)
	}
	for _, n := range tp.NICs {
		h.Seed(t, n.Ref, n)
	}
	for _, d := range tp.Disks {
		h.Seed(t, d.Ref, d)
	}
	inst := tp.Build()
	h.Seed(t, inst.Ref, inst)
	return inst.Ref
}

// NewLoadBalancer returns a load balancer in the default network listening
// on the given ports.
func NewLoadBalancer(name string, ports ...int) descriptor.LoadBalancer {
	lb := descriptor.LoadBalancer{
		Ref:            descriptor.NewReference(descriptor.KindLoadBalancer, name),
		Name:           name,
		Type:           "lb11",
		Location:       Location,
		Credential:     Credential,
		Network:        descriptor.NewReference(descriptor.KindNetwork, NetworkName),
		Algorithm:      "round_robin",
		TargetSelector: "role=" + name,
	}
	for _, p := range ports {
		lb.Services = append(lb.Services, descriptor.Service{Protocol: "tcp", ListenPort: p, DestinationPort: p})
	}
	return lb
}

// RequestFor builds a request for ref.
func RequestFor(op provisioning.Operation, ref descriptor.Reference) provisioning.Request {
	return provisioning.Request{
		Operation:   op,
		ResourceRef: ref,
		TaskRef:     fmt.Sprintf("tasks/%s-%s", ref.Name(), op),
	}
}
