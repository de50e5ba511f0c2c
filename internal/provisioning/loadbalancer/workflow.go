package loadbalancer

import (
	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/hcprov/internal/descriptor"
	"github.com/imamik/hcprov/internal/provisioning"
)

// Load balancer workflow stages.
const (
	StageNetworkState         provisioning.Stage = "NETWORK_STATE"
	StageSecurityGroups       provisioning.Stage = "SECURITY_GROUPS"
	StageCreate               provisioning.Stage = "CREATE"
	StagePoll                 provisioning.Stage = "POLL"
	StageDeleteSecurityGroups provisioning.Stage = "DELETE_SECURITY_GROUPS"
	StageDeleteLoadBalancer   provisioning.Stage = "DELETE_LOAD_BALANCER"
	StageDeleteRecord         provisioning.Stage = "DELETE_RECORD"
)

// Payload is the load balancer part of the workflow state.
type Payload struct {
	LoadBalancer descriptor.LoadBalancer
	// Network is nil when the load balancer is public only.
	Network  *hcloud.Network
	Firewall *hcloud.Firewall
	Remote   *hcloud.LoadBalancer
	Action   *hcloud.Action
}

type handlers = map[provisioning.Stage]provisioning.Handler[Payload]

var (
	createDispatcher = provisioning.MustDispatcher(
		provisioning.MustGraph("lb-create",
			provisioning.StageMock, provisioning.StageClient,
			StageNetworkState, StageSecurityGroups, StageCreate, StagePoll,
			provisioning.StageDone),
		handlers{
			provisioning.StageMock:   mockCreate,
			provisioning.StageClient: client(StageNetworkState),
			StageNetworkState:        networkState,
			StageSecurityGroups:      securityGroups,
			StageCreate:              create,
			StagePoll:                awaitCreated,
		})
	deleteDispatcher = provisioning.MustDispatcher(
		provisioning.MustGraph("lb-delete",
			provisioning.StageMock, provisioning.StageClient,
			StageDeleteSecurityGroups, StageDeleteLoadBalancer, StageDeleteRecord,
			provisioning.StageDone),
		handlers{
			provisioning.StageMock:    mockDelete,
			provisioning.StageClient:  client(StageDeleteSecurityGroups),
			StageDeleteSecurityGroups: deleteSecurityGroups,
			StageDeleteLoadBalancer:   deleteLoadBalancer,
			StageDeleteRecord:         deleteRecord,
		})
)

// Workflow returns the load balancer workflow. It supports create and
// delete.
func Workflow() *provisioning.Definition[Payload] {
	return &provisioning.Definition[Payload]{
		ResourceKind: descriptor.KindLoadBalancer,
		Dispatchers: map[provisioning.Operation]*provisioning.Dispatcher[Payload]{
			provisioning.OperationCreate: createDispatcher,
			provisioning.OperationDelete: deleteDispatcher,
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
