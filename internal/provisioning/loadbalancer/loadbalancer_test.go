package loadbalancer_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/hcprov/internal/descriptor"
	hcloud_internal "github.com/imamik/hcprov/internal/platform/hcloud"
	"github.com/imamik/hcprov/internal/provisioning"
	"github.com/imamik/hcprov/internal/provisioning/loadbalancer"
	"github.com/imamik/hcprov/internal/store"
	testutil "github.com/imamik/hcprov/internal/testing"
	"github.com/imamik/hcprov/internal/util/labels"
)

var createPath = []provisioning.Stage{
	provisioning.StageClient,
	loadbalancer.StageNetworkState,
	loadbalancer.StageSecurityGroups,
	loadbalancer.StageCreate,
	loadbalancer.StagePoll,
	provisioning.StageDone,
}

var deletePath = []provisioning.Stage{
	provisioning.StageClient,
	loadbalancer.StageDeleteSecurityGroups,
	loadbalancer.StageDeleteLoadBalancer,
	loadbalancer.StageDeleteRecord,
	provisioning.StageDone,
}

func execute(t *testing.T, h *testutil.Harness, req provisioning.Request) (*provisioning.State[loadbalancer.Payload], error) {
	t.Helper()
	def := loadbalancer.Workflow()
	var final *provisioning.State[loadbalancer.Payload]
	def.Observe = func(st *provisioning.State[loadbalancer.Payload]) { final = st }
	err := h.Run(t, def, req)
	require.NotNil(t, final)
	require.True(t, loadbalancer.Graph(req.Operation).ValidPath(final.Path, req.IsMock), "invalid path %v", final.Path)
	return final, err
}

// seed stores the default network and lb, and returns the lb reference.
func seed(t *testing.T, h *testutil.Harness, lb descriptor.LoadBalancer) descriptor.Reference {
	t.Helper()
	network := testutil.NewTopology("unused").Network
	h.Seed(t, network.Ref, network)
	h.Seed(t, lb.Ref, lb)
	return lb.Ref
}

func stored(t *testing.T, h *testutil.Harness, ref descriptor.Reference) descriptor.LoadBalancer {
	t.Helper()
	var lb descriptor.LoadBalancer
	require.NoError(t, store.Decode(h.Doc(t, ref), &lb))
	return lb
}

func captureCreate(fixture *testutil.InfraFixture) func() []hcloud.LoadBalancerCreateOpts {
	var mu sync.Mutex
	var captured []hcloud.LoadBalancerCreateOpts
	next := fixture.Mock().CreateLoadBalancerFunc
	fixture.Mock().CreateLoadBalancerFunc = func(ctx context.Context, opts hcloud.LoadBalancerCreateOpts) (*hcloud.LoadBalancer, *hcloud.Action, error) {
		mu.Lock()
		captured = append(captured, opts)
		mu.Unlock()
		return next(ctx, opts)
	}
	return func() []hcloud.LoadBalancerCreateOpts {
		mu.Lock()
		defer mu.Unlock()
		return append([]hcloud.LoadBalancerCreateOpts(nil), captured...)
	}
}

func TestCreate(t *testing.T) {
	t.Parallel()

	fixture := testutil.NewInfraFixture().WithNetwork(10, testutil.NetworkName, testutil.NetworkCIDR, testutil.SubnetCIDR)
	created := captureCreate(fixture)
	h := testutil.NewHarness(t, fixture.Mock())
	ref := seed(t, h, testutil.NewLoadBalancer("api", 443, 6443))

	st, err := execute(t, h, testutil.RequestFor(provisioning.OperationCreate, ref))
	require.NoError(t, err)
	assert.Equal(t, createPath, st.Path)

	fw, ok := fixture.FirewallByName("api-lb")
	require.True(t, ok)
	require.Len(t, fw.Rules, 2)
	for _, rule := range fw.Rules {
		require.Len(t, rule.SourceIPs, 1)
		assert.Equal(t, testutil.NetworkCIDR, rule.SourceIPs[0].String())
	}
	assert.Equal(t, "443", *fw.Rules[0].Port)
	assert.Equal(t, "6443", *fw.Rules[1].Port)
	assert.Equal(t, labels.RoleAuxFirewall, fw.Labels[labels.KeyRole])
	assert.Equal(t, "10", fw.Labels[labels.KeyNetwork])
	require.Len(t, fw.AppliedTo, 1)
	assert.Equal(t, "role=api", fw.AppliedTo[0].LabelSelector.Selector)

	opts := created()
	require.Len(t, opts, 1)
	assert.Equal(t, int64(10), opts[0].Network.ID)
	assert.Len(t, opts[0].Services, 2)
	require.Len(t, opts[0].Targets, 1)
	assert.Equal(t, "role=api", opts[0].Targets[0].LabelSelector.Selector)
	assert.True(t, *opts[0].Targets[0].UsePrivateIP)
	assert.Equal(t, hcloud.LoadBalancerAlgorithmTypeRoundRobin, opts[0].Algorithm.Type)

	lb := stored(t, h, ref)
	assert.Equal(t, []int64{fw.ID}, lb.Firewalls)
	assert.Equal(t, st.Payload.Remote.ID, lb.RemoteID)

	finishes, fails := h.Recorder.Counts()
	assert.Equal(t, 1, finishes)
	assert.Equal(t, 0, fails)
}

func TestCreate_Rerun(t *testing.T) {
	t.Parallel()

	fixture := testutil.NewInfraFixture().WithNetwork(10, testutil.NetworkName, testutil.NetworkCIDR, testutil.SubnetCIDR)
	h := testutil.NewHarness(t, fixture.Mock())
	ref := seed(t, h, testutil.NewLoadBalancer("api", 443))

	_, err := execute(t, h, testutil.RequestFor(provisioning.OperationCreate, ref))
	require.NoError(t, err)
	first := stored(t, h, ref)

	st, err := execute(t, h, testutil.RequestFor(provisioning.OperationCreate, ref))
	require.NoError(t, err)
	assert.Equal(t, createPath, st.Path)
	assert.Equal(t, 1, fixture.Calls("CreateFirewall"))
	assert.Equal(t, 1, fixture.Calls("SetFirewallRules"))
	assert.Equal(t, 1, fixture.Calls("CreateLoadBalancer"))
	assert.Equal(t, first.Firewalls, stored(t, h, ref).Firewalls)
}

func TestCreate_WithoutNetwork(t *testing.T) {
	t.Parallel()

	fixture := testutil.NewInfraFixture()
	created := captureCreate(fixture)
	h := testutil.NewHarness(t, fixture.Mock())
	lb := testutil.NewLoadBalancer("edge", 80)
	lb.Network = ""
	ref := seed(t, h, lb)

	_, err := execute(t, h, testutil.RequestFor(provisioning.OperationCreate, ref))
	require.NoError(t, err)
	assert.Equal(t, 0, fixture.Calls("CreateNetwork"))

	fw, ok := fixture.FirewallByName("edge-lb")
	require.True(t, ok)
	require.Len(t, fw.Rules, 1)
	assert.Len(t, fw.Rules[0].SourceIPs, 2, "open to any address")

	opts := created()
	assert.Nil(t, opts[0].Network)
	assert.False(t, *opts[0].Targets[0].UsePrivateIP)
}

func TestCreate_FirewallSkipped(t *testing.T) {
	t.Parallel()

	fixture := testutil.NewInfraFixture().WithNetwork(10, testutil.NetworkName, testutil.NetworkCIDR)
	fixture.Mock().CreateFirewallFunc = func(context.Context, hcloud.FirewallCreateOpts) (*hcloud.Firewall, error) {
		return nil, errors.New("firewall limit reached")
	}
	h := testutil.NewHarness(t, fixture.Mock())
	ref := seed(t, h, testutil.NewLoadBalancer("api", 443))

	st, err := execute(t, h, testutil.RequestFor(provisioning.OperationCreate, ref))
	require.NoError(t, err)
	assert.Nil(t, st.Payload.Firewall)
	assert.Empty(t, stored(t, h, ref).Firewalls)
	assert.Equal(t, 1, fixture.LoadBalancers())
}

func TestCreate_ActionFails(t *testing.T) {
	t.Parallel()

	fixture := testutil.NewInfraFixture().WithNetwork(10, testutil.NetworkName, testutil.NetworkCIDR)
	var failing atomic.Int64
	next := fixture.Mock().CreateLoadBalancerFunc
	fixture.Mock().CreateLoadBalancerFunc = func(ctx context.Context, opts hcloud.LoadBalancerCreateOpts) (*hcloud.LoadBalancer, *hcloud.Action, error) {
		lb, action, err := next(ctx, opts)
		if action != nil {
			failing.Store(action.ID)
		}
		return lb, action, err
	}
	fixture.Mock().GetActionFunc = func(_ context.Context, id int64) (*hcloud.Action, error) {
		if id == failing.Load() {
			return &hcloud.Action{ID: id, Status: hcloud.ActionStatusError, ErrorMessage: "no capacity"}, nil
		}
		return &hcloud.Action{ID: id, Status: hcloud.ActionStatusSuccess}, nil
	}
	h := testutil.NewHarness(t, fixture.Mock())
	ref := seed(t, h, testutil.NewLoadBalancer("api", 443))

	st, err := execute(t, h, testutil.RequestFor(provisioning.OperationCreate, ref))
	assert.ErrorContains(t, err, "no capacity")
	assert.Equal(t, loadbalancer.StagePoll, st.Path[len(st.Path)-2])
	assert.NotZero(t, stored(t, h, ref).RemoteID, "the id is recorded before polling")

	finishes, fails := h.Recorder.Counts()
	assert.Equal(t, 0, finishes)
	assert.Equal(t, 1, fails)
}

func TestDelete_AuxiliaryFailureIsTolerated(t *testing.T) {
	t.Parallel()

	fixture := testutil.NewInfraFixture().WithNetwork(10, testutil.NetworkName, testutil.NetworkCIDR)
	h := testutil.NewHarness(t, fixture.Mock())
	ref := seed(t, h, testutil.NewLoadBalancer("api", 443))
	_, err := execute(t, h, testutil.RequestFor(provisioning.OperationCreate, ref))
	require.NoError(t, err)

	lb := stored(t, h, ref)
	require.Len(t, lb.Firewalls, 1)
	require.NoError(t, h.Store.Patch(context.Background(), ref, map[string]any{
		descriptor.FieldFirewalls: append(lb.Firewalls, 999),
	}))
	next := fixture.Mock().DeleteFirewallFunc
	fixture.Mock().DeleteFirewallFunc = func(ctx context.Context, id int64) error {
		if id == 999 {
			return errors.New("firewall is still applied")
		}
		return next(ctx, id)
	}

	st, err := execute(t, h, testutil.RequestFor(provisioning.OperationDelete, ref))
	require.NoError(t, err)
	assert.Equal(t, deletePath, st.Path)

	require.True(t, st.Cleanup.HasErrors())
	require.Len(t, st.Cleanup.Errors, 1)
	assert.ErrorContains(t, &st.Cleanup, "delete firewall 999: firewall is still applied")

	assert.Equal(t, 0, fixture.LoadBalancers())
	assert.Equal(t, 0, fixture.Firewalls())
	_, ok := h.Store.Raw(ref)
	assert.False(t, ok)

	count, err := promtestutil.GatherAndCount(h.Registry, "hcprov_cleanup_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	finishes, fails := h.Recorder.Counts()
	assert.Equal(t, 2, finishes)
	assert.Equal(t, 0, fails)
}

func TestDelete_NeverCreated(t *testing.T) {
	t.Parallel()

	fixture := testutil.NewInfraFixture()
	h := testutil.NewHarness(t, fixture.Mock())
	ref := seed(t, h, testutil.NewLoadBalancer("api", 443))

	st, err := execute(t, h, testutil.RequestFor(provisioning.OperationDelete, ref))
	require.NoError(t, err)
	assert.Equal(t, deletePath, st.Path)
	assert.Equal(t, 0, fixture.Calls("DeleteLoadBalancer"))
	assert.Equal(t, 0, fixture.Calls("DeleteFirewall"))
}

func TestDelete_PrimaryFailureFails(t *testing.T) {
	t.Parallel()

	fixture := testutil.NewInfraFixture()
	fixture.Mock().DeleteLoadBalancerFunc = func(context.Context, int64) error {
		return hcloud.Error{Code: hcloud.ErrorCodeLocked, Message: "load balancer is locked"}
	}
	h := testutil.NewHarness(t, fixture.Mock())
	lb := testutil.NewLoadBalancer("api", 443)
	lb.RemoteID = 77
	ref := seed(t, h, lb)

	st, err := execute(t, h, testutil.RequestFor(provisioning.OperationDelete, ref))
	var permanent *provisioning.PermanentProviderError
	require.ErrorAs(t, err, &permanent)
	assert.Equal(t, loadbalancer.StageDeleteLoadBalancer, st.Path[len(st.Path)-2])
	_, ok := h.Store.Raw(ref)
	assert.True(t, ok)
	assert.Empty(t, h.Clients.Invalidated())
}

func TestCreate_RejectedCredentialDropsClient(t *testing.T) {
	t.Parallel()

	fixture := testutil.NewInfraFixture()
	fixture.Mock().DescribeNetworksFunc = func(context.Context, hcloud_internal.Filter) ([]*hcloud.Network, error) {
		return nil, hcloud.Error{Code: hcloud.ErrorCodeUnauthorized, Message: "unable to authenticate"}
	}
	h := testutil.NewHarness(t, fixture.Mock())
	ref := seed(t, h, testutil.NewLoadBalancer("api", 443))

	st, err := execute(t, h, testutil.RequestFor(provisioning.OperationCreate, ref))
	require.True(t, hcloud_internal.IsUnauthorized(err))
	assert.Equal(t, loadbalancer.StageNetworkState, st.Path[len(st.Path)-2])
	assert.Equal(t, []testutil.ClientKey{{Credential: testutil.Credential, Region: testutil.Location}}, h.Clients.Invalidated())
	assert.Equal(t, 0, fixture.Calls("CreateLoadBalancer"))
}

func TestMock(t *testing.T) {
	t.Parallel()

	fixture := testutil.NewInfraFixture()
	h := testutil.NewHarness(t, fixture.Mock())
	ref := seed(t, h, testutil.NewLoadBalancer("api", 443))

	req := testutil.RequestFor(provisioning.OperationCreate, ref)
	req.IsMock = true
	st, err := execute(t, h, req)
	require.NoError(t, err)
	assert.Equal(t, []provisioning.Stage{provisioning.StageMock, provisioning.StageDone}, st.Path)
	assert.Regexp(t, `^mock-`, stored(t, h, ref).MockID)
	assert.Equal(t, 0, fixture.Calls("CreateLoadBalancer"))

	req = testutil.RequestFor(provisioning.OperationDelete, ref)
	req.IsMock = true
	_, err = execute(t, h, req)
	require.NoError(t, err)
	_, ok := h.Store.Raw(ref)
	assert.False(t, ok)
}

func TestUnsupportedOperation(t *testing.T) {
	t.Parallel()

	h := testutil.NewHarness(t, testutil.NewInfraFixture().Mock())
	ref := seed(t, h, testutil.NewLoadBalancer("api", 443))

	wf := loadbalancer.Workflow()
	assert.False(t, wf.Supports(provisioning.OperationUpdate))
	err := h.Run(t, wf, testutil.RequestFor(provisioning.OperationUpdate, ref))
	var ve provisioning.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "operation", ve.Field)
	assert.Nil(t, loadbalancer.Graph(provisioning.OperationUpdate))
}
