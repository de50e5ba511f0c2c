package instance

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/hcprov/internal/descriptor"
	hcloud_internal "github.com/imamik/hcprov/internal/platform/hcloud"
	"github.com/imamik/hcprov/internal/provisioning"
	"github.com/imamik/hcprov/internal/provisioning/resolve"
	"github.com/imamik/hcprov/internal/util/labels"
)

func modify(ctx context.Context, st *state) (provisioning.Stage, error) {
	inst := st.Payload.Instance
	if inst.RemoteID == 0 {
		return "", provisioning.ValidationError{Field: "remoteId", Message: fmt.Sprintf("instance %s has not been created", inst.Ref)}
	}
	server, err := st.Client.UpdateServer(ctx, inst.RemoteID, hcloud.ServerUpdateOpts{
		Name:   inst.Name,
		Labels: labels.NewLabelBuilder(inst.Name).Merge(inst.Labels).WithOwner(inst.Ref.String()).Build(),
	})
	if err != nil {
		return "", provisioning.Permanent(fmt.Sprintf("update server %d", inst.RemoteID), err)
	}
	st.Payload.Server = server
	// A stopped server stays stopped; only transitional states are awaited.
	if server.Status == hcloud.ServerStatusOff {
		st.Payload.Desired = hcloud.ServerStatusOff
	}
	return StagePoll, nil
}

func deleteServer(ctx context.Context, st *state) (provisioning.Stage, error) {
	inst := st.Payload.Instance
	if inst.RemoteID == 0 {
		st.Logger.Info("instance was never created, removing records only")
		return StageDeleteRecords, nil
	}
	action, err := st.Client.DeleteServer(ctx, inst.RemoteID)
	if err != nil {
		return "", provisioning.Permanent(fmt.Sprintf("delete server %d", inst.RemoteID), err)
	}
	if action == nil {
		st.Logger.Info("server already deleted", "id", inst.RemoteID)
		return StageDeleteRecords, nil
	}
	st.Payload.Action = action
	return StagePoll, nil
}

func awaitDeletion(ctx context.Context, st *state) (provisioning.Stage, error) {
	if err := resolve.For(st).AwaitAction(ctx, st.Payload.Action); err != nil {
		return "", err
	}
	provisioning.Emit(st.Logger, provisioning.EventResourceDeleted, "server", nil, "id", st.Payload.Instance.RemoteID)
	return StageDeleteRecords, nil
}

// deleteRecords removes the instance record and the NIC records it owns.
// Disks are kept; their volumes outlive the server.
func deleteRecords(ctx context.Context, st *state) (provisioning.Stage, error) {
	inst := st.Payload.Instance
	for _, ref := range inst.NICs {
		if err := st.Runtime.Store.Delete(ctx, ref); err != nil {
			return "", fmt.Errorf("failed to delete record %s: %w", ref, err)
		}
	}
	if err := st.Runtime.Store.Delete(ctx, inst.Ref); err != nil {
		return "", fmt.Errorf("failed to delete record %s: %w", inst.Ref, err)
	}
	return provisioning.StageDone, nil
}

func validateCredentials(ctx context.Context, st *state) (provisioning.Stage, error) {
	locations, err := hcloud_internal.ValidateCredentials(ctx, st.Client)
	if err != nil {
		return "", err
	}
	for _, loc := range locations {
		if loc.Name == st.Payload.Instance.Location {
			st.Logger.Info("credential validated", "locations", len(locations))
			return provisioning.StageDone, nil
		}
	}
	return "", fmt.Errorf("location %s is not available to credential %q", st.Payload.Instance.Location, st.Payload.Instance.Credential)
}

// mockCreate records a synthetic server without touching the provider.
func mockCreate(ctx context.Context, st *state) (provisioning.Stage, error) {
	ref := st.Request.ResourceRef
	if _, err := provisioning.Load[descriptor.Instance](ctx, st.Runtime, ref); err != nil {
		return "", err
	}
	err := provisioning.PatchBack(ctx, st.Runtime, ref, map[string]any{
		descriptor.FieldMockID: "mock-" + uuid.NewString(),
		descriptor.FieldStatus: string(hcloud.ServerStatusRunning),
	})
	if err != nil {
		return "", err
	}
	return provisioning.StageDone, nil
}

func mockDelete(ctx context.Context, st *state) (provisioning.Stage, error) {
	if err := st.Runtime.Store.Delete(ctx, st.Request.ResourceRef); err != nil {
		return "", err
	}
	return provisioning.StageDone, nil
}

func mockNoop(context.Context, *state) (provisioning.Stage, error) {
	return provisioning.StageDone, nil
}
