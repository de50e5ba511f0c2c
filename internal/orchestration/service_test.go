package orchestration_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/imamik/hcprov/internal/descriptor"
	"github.com/imamik/hcprov/internal/orchestration"
	"github.com/imamik/hcprov/internal/provisioning"
	"github.com/imamik/hcprov/internal/provisioning/instance"
	"github.com/imamik/hcprov/internal/provisioning/loadbalancer"
	testutil "github.com/imamik/hcprov/internal/testing"
)

// gate is a workflow that blocks until released and tracks how many runs
// overlap.
type gate struct {
	release chan struct{}
	started chan string
	running atomic.Int32
	peak    atomic.Int32
}

func newGate() *gate {
	return &gate{release: make(chan struct{}), started: make(chan string, 8)}
}

func (g *gate) Kind() descriptor.Kind                   { return descriptor.KindDisk }
func (g *gate) Supports(op provisioning.Operation) bool { return op == provisioning.OperationCreate }

func (g *gate) Run(ctx context.Context, rt *provisioning.Runtime, req provisioning.Request) error {
	n := g.running.Add(1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}
	g.started <- req.TaskRef
	<-g.release
	g.running.Add(-1)
	return rt.Notifier.Finish(ctx, req.TaskRef)
}

func diskRequest(name string) provisioning.Request {
	return testutil.RequestFor(provisioning.OperationCreate, descriptor.NewReference(descriptor.KindDisk, name))
}

func TestSubmit_RoutesByKind(t *testing.T) {
	t.Parallel()

	fixture := testutil.NewInfraFixture().WithNetwork(10, testutil.NetworkName, testutil.NetworkCIDR, testutil.SubnetCIDR)
	h := testutil.NewHarness(t, fixture.Mock())
	inst := testutil.NewTopology("web-1").Seed(t, h)
	lb := testutil.NewLoadBalancer("api", 443)
	h.Seed(t, lb.Ref, lb)

	svc := orchestration.NewService(h.Runtime, instance.Workflow(), loadbalancer.Workflow())
	assert.Equal(t, []descriptor.Kind{descriptor.KindInstance, descriptor.KindLoadBalancer}, svc.Kinds())

	ctx := testutil.TestContext(t)
	require.NoError(t, svc.Submit(ctx, testutil.RequestFor(provisioning.OperationCreate, inst)))
	require.NoError(t, svc.Submit(ctx, testutil.RequestFor(provisioning.OperationCreate, lb.Ref)))
	svc.Wait()

	finishes, fails := h.Recorder.Counts()
	assert.Equal(t, 2, finishes)
	assert.Equal(t, 0, fails)
	assert.Equal(t, 1, fixture.Servers())
	assert.Equal(t, 1, fixture.LoadBalancers())
}

func TestSubmit_RejectsBeforeStarting(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		req       provisioning.Request
		wantField string
	}{
		{
			name:      "unknown operation",
			req:       provisioning.Request{Operation: "RESIZE", ResourceRef: "instances/web-1", TaskRef: "tasks/bad"},
			wantField: "operation",
		},
		{
			name:      "unknown kind",
			req:       provisioning.Request{Operation: provisioning.OperationCreate, ResourceRef: "buckets/x", TaskRef: "tasks/bad"},
			wantField: "resourceReference",
		},
		{
			name:      "kind without workflow",
			req:       provisioning.Request{Operation: provisioning.OperationCreate, ResourceRef: "networks/web", TaskRef: "tasks/bad"},
			wantField: "resourceReference",
		},
		{
			name:      "operation the workflow lacks",
			req:       provisioning.Request{Operation: provisioning.OperationUpdate, ResourceRef: "load-balancers/api", TaskRef: "tasks/bad"},
			wantField: "operation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fixture := testutil.NewInfraFixture()
			h := testutil.NewHarness(t, fixture.Mock())
			notifier := &testutil.MockNotifier{}
			notifier.On("Fail", mock.Anything, "tasks/bad", mock.MatchedBy(func(err error) bool {
				var ve provisioning.ValidationError
				return errors.As(err, &ve) && ve.Field == tt.wantField
			})).Return(nil).Once()
			h.Runtime.Notifier = notifier

			svc := orchestration.NewService(h.Runtime, instance.Workflow(), loadbalancer.Workflow())
			err := svc.Submit(testutil.TestContext(t), tt.req)
			svc.Wait()

			var ve provisioning.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.wantField, ve.Field)
			notifier.AssertExpectations(t)
			notifier.AssertNotCalled(t, "Finish", mock.Anything, mock.Anything)
			assert.Empty(t, fixture.Calls("DescribeNetworks"))
		})
	}
}

func TestSubmit_BoundsConcurrency(t *testing.T) {
	t.Parallel()

	h := testutil.NewHarness(t, testutil.NewInfraFixture().Mock())
	h.Runtime.Settings.MaxWorkflows = 2
	g := newGate()
	svc := orchestration.NewService(h.Runtime, g)

	var submitters sync.WaitGroup
	for _, name := range []string{"a", "b", "c"} {
		submitters.Add(1)
		go func() {
			defer submitters.Done()
			assert.NoError(t, svc.Submit(context.Background(), diskRequest(name)))
		}()
	}

	<-g.started
	<-g.started
	select {
	case ref := <-g.started:
		t.Fatalf("%s started while the pool was full", ref)
	case <-time.After(50 * time.Millisecond):
	}

	close(g.release)
	submitters.Wait()
	svc.Wait()

	assert.Equal(t, int32(2), g.peak.Load())
	finishes, _ := h.Recorder.Counts()
	assert.Equal(t, 3, finishes)
}

func TestSubmit_CancelledWhileWaiting(t *testing.T) {
	t.Parallel()

	h := testutil.NewHarness(t, testutil.NewInfraFixture().Mock())
	h.Runtime.Settings.MaxWorkflows = 1
	g := newGate()
	svc := orchestration.NewService(h.Runtime, g)

	require.NoError(t, svc.Submit(context.Background(), diskRequest("first")))
	<-g.started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := svc.Submit(ctx, diskRequest("second"))
	require.ErrorIs(t, err, context.Canceled)

	close(g.release)
	svc.Wait()

	outcomes := h.Recorder.Outcomes()
	require.Len(t, outcomes, 2)
	var failed []string
	for _, o := range outcomes {
		if !o.Succeeded() {
			failed = append(failed, o.TaskRef)
		}
	}
	assert.Equal(t, []string{"tasks/second-CREATE"}, failed)
}

func TestRegister(t *testing.T) {
	t.Parallel()

	h := testutil.NewHarness(t, testutil.NewInfraFixture().Mock())
	svc := orchestration.NewService(h.Runtime)
	assert.Empty(t, svc.Kinds())

	require.NoError(t, svc.Register(instance.Workflow()))
	err := svc.Register(instance.Workflow())
	assert.ErrorContains(t, err, "instances is already registered")
	assert.Equal(t, []descriptor.Kind{descriptor.KindInstance}, svc.Kinds())
}
