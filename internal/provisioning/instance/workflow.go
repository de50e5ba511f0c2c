package instance

import (
	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/hcprov/internal/descriptor"
	"github.com/imamik/hcprov/internal/provisioning"
	"github.com/imamik/hcprov/internal/provisioning/resolve"
)

// Instance workflow stages.
const (
	StageDisks                 provisioning.Stage = "DISKS"
	StageNICStates             provisioning.Stage = "NIC_STATES"
	StageSubnetStates          provisioning.Stage = "SUBNET_STATES"
	StageNetworkStates         provisioning.Stage = "NETWORK_STATES"
	StageFirewallStates        provisioning.Stage = "FIREWALL_STATES"
	StageResolveNetworks       provisioning.Stage = "RESOLVE_NETWORKS"
	StageResolveSubnets        provisioning.Stage = "RESOLVE_SUBNETS"
	StageResolveSecurityGroups provisioning.Stage = "RESOLVE_SECURITY_GROUPS"
	StageBuildNICSpecs         provisioning.Stage = "BUILD_NIC_SPECS"
	StageCreate                provisioning.Stage = "CREATE"
	StagePoll                  provisioning.Stage = "POLL"
	StageModify                provisioning.Stage = "MODIFY"
	StageDelete                provisioning.Stage = "DELETE"
	StageDeleteRecords         provisioning.Stage = "DELETE_RECORDS"
	StageValidateCredentials   provisioning.Stage = "VALIDATE_CREDENTIALS"
)

// Payload is the instance-specific part of the workflow state.
type Payload struct {
	Instance descriptor.Instance
	Disks    []descriptor.Disk
	// Image is the boot image taken from the boot disk.
	Image   string
	Volumes []*hcloud.Volume

	NICs      []descriptor.NIC
	Subnets   []descriptor.Subnet
	Networks  []descriptor.Network
	Firewalls []descriptor.Firewall
	// DefaultFirewallNetworks are the networks with a NIC that declares no
	// firewall.
	DefaultFirewallNetworks []descriptor.Reference

	RemoteNetworks   map[descriptor.Reference]*hcloud.Network
	RemoteSubnets    map[descriptor.Reference]resolve.SubnetHandle
	RemoteFirewalls  map[descriptor.Reference]*hcloud.Firewall
	DefaultFirewalls map[descriptor.Reference]*hcloud.Firewall

	Specs  []NICSpec
	Server *hcloud.Server
	Action *hcloud.Action
	// Desired is the status POLL waits for; empty means running.
	Desired hcloud.ServerStatus
}

// NICSpec is a NIC with every dependency resolved.
type NICSpec struct {
	NIC       descriptor.NIC
	Network   *hcloud.Network
	Subnet    resolve.SubnetHandle
	Firewalls []int64
}

type handlers = map[provisioning.Stage]provisioning.Handler[Payload]

var (
	createGraph = provisioning.MustGraph("instance-create",
		provisioning.StageMock, provisioning.StageClient,
		StageDisks, StageNICStates, StageSubnetStates, StageNetworkStates, StageFirewallStates,
		StageResolveNetworks, StageResolveSubnets, StageResolveSecurityGroups,
		StageBuildNICSpecs, StageCreate, StagePoll,
		provisioning.StageDone)
	updateGraph = provisioning.MustGraph("instance-update",
		provisioning.StageMock, provisioning.StageClient, StageModify, StagePoll, provisioning.StageDone)
	deleteGraph = provisioning.MustGraph("instance-delete",
		provisioning.StageMock, provisioning.StageClient, StageDelete, StagePoll, StageDeleteRecords, provisioning.StageDone)
	validateGraph = provisioning.MustGraph("instance-validate",
		provisioning.StageMock, provisioning.StageClient, StageValidateCredentials, provisioning.StageDone)
)

var (
	createDispatcher = provisioning.MustDispatcher(createGraph, handlers{
		provisioning.StageMock:     mockCreate,
		provisioning.StageClient:   client(StageDisks),
		StageDisks:                 disks,
		StageNICStates:             nicStates,
		StageSubnetStates:          subnetStates,
		StageNetworkStates:         networkStates,
		StageFirewallStates:        firewallStates,
		StageResolveNetworks:       resolveNetworks,
		StageResolveSubnets:        resolveSubnets,
		StageResolveSecurityGroups: resolveSecurityGroups,
		StageBuildNICSpecs:         buildNICSpecs,
		StageCreate:                create,
		StagePoll:                  awaitRunning,
	})
	updateDispatcher = provisioning.MustDispatcher(updateGraph, handlers{
		provisioning.StageMock:   mockNoop,
		provisioning.StageClient: client(StageModify),
		StageModify:              modify,
		StagePoll:                awaitRunning,
	})
	deleteDispatcher = provisioning.MustDispatcher(deleteGraph, handlers{
		provisioning.StageMock:   mockDelete,
		provisioning.StageClient: client(StageDelete),
		StageDelete:              deleteServer,
		StagePoll:                awaitDeletion,
		StageDeleteRecords:       deleteRecords,
	})
	validateDispatcher = provisioning.MustDispatcher(validateGraph, handlers{
		provisioning.StageMock:   mockNoop,
		provisioning.StageClient: client(StageValidateCredentials),
		StageValidateCredentials: validateCredentials,
	})
)

// Workflow returns the instance workflow.
func Workflow() *provisioning.Definition[Payload] {
	return &provisioning.Definition[Payload]{
		ResourceKind: descriptor.KindInstance,
		Dispatchers: map[provisioning.Operation]*provisioning.Dispatcher[Payload]{
			provisioning.OperationCreate:   createDispatcher,
			provisioning.OperationUpdate:   updateDispatcher,
			provisioning.OperationDelete:   deleteDispatcher,
			provisioning.OperationValidate: validateDispatcher,
		},
	}
}

// Graph returns the stage graph of op, or nil.
func Graph(op provisioning.Operation) *provisioning.Graph {
	if d, ok := Workflow().Dispatchers[op]; ok {
		return d.Graph()
	}
	return nil
}
