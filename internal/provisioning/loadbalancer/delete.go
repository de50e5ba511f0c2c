package loadbalancer

import (
	"context"
	"fmt"

	"github.com/imamik/hcprov/internal/provisioning"
)

// deleteSecurityGroups removes the auxiliary firewalls. A failure is
// recorded and the teardown continues.
func deleteSecurityGroups(ctx context.Context, st *state) (provisioning.Stage, error) {
	for _, id := range st.Payload.LoadBalancer.Firewalls {
		if err := st.Client.DeleteFirewall(ctx, id); err != nil {
			st.Cleanup.Add(fmt.Errorf("delete firewall %d: %w", id, err))
			st.Runtime.Metrics.RecordCleanupFailure("firewall")
			provisioning.Emit(st.Logger, provisioning.EventCleanupFailed, "firewall", err, "id", id)
			continue
		}
		provisioning.Emit(st.Logger, provisioning.EventResourceDeleted, "firewall", nil, "id", id)
	}
	return StageDeleteLoadBalancer, nil
}

func deleteLoadBalancer(ctx context.Context, st *state) (provisioning.Stage, error) {
	lb := st.Payload.LoadBalancer
	if lb.RemoteID == 0 {
		st.Logger.Info("load balancer was never created, removing record only")
		return StageDeleteRecord, nil
	}
	if err := st.Client.DeleteLoadBalancer(ctx, lb.RemoteID); err != nil {
		return "", provisioning.Permanent(fmt.Sprintf("delete load balancer %d", lb.RemoteID), err)
	}
	provisioning.Emit(st.Logger, provisioning.EventResourceDeleted, "load balancer", nil, "id", lb.RemoteID)
	return StageDeleteRecord, nil
}

func deleteRecord(ctx context.Context, st *state) (provisioning.Stage, error) {
	ref := st.Payload.LoadBalancer.Ref
	if err := st.Runtime.Store.Delete(ctx, ref); err != nil {
		return "", fmt.Errorf("failed to delete record %s: %w", ref, err)
	}
	return provisioning.StageDone, nil
}

func mockDelete(ctx context.Context, st *state) (provisioning.Stage, error) {
	if err := st.Runtime.Store.Delete(ctx, st.Request.ResourceRef); err != nil {
		return "", err
	}
	return provisioning.StageDone, nil
}
