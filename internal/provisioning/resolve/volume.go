package resolve

import (
	"context"
	"fmt"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/hcprov/internal/descriptor"
	hcloud_internal "github.com/imamik/hcprov/internal/platform/hcloud"
	"github.com/imamik/hcprov/internal/provisioning"
	"github.com/imamik/hcprov/internal/provisioning/poll"
	"github.com/imamik/hcprov/internal/util/async"
	"github.com/imamik/hcprov/internal/util/labels"
)

// Volume binds a data disk to the volume with the same name, creating it in
// location when absent, and waits until it is available.
func (r *Resolver) Volume(ctx context.Context, d descriptor.Disk, location string) (*hcloud.Volume, error) {
	if d.Boot {
		return nil, fmt.Errorf("disk %s is a boot disk", d.Ref)
	}
	if d.SizeGB <= 0 {
		return nil, fmt.Errorf("disk %s: size must be positive, got %d", d.Ref, d.SizeGB)
	}

	volume, _, err := ensure(ctx, r, ensureOp[*hcloud.Volume]{
		kind: "volume",
		name: d.Name,
		ref:  d.Ref,
		describe: func(ctx context.Context) (*hcloud.Volume, bool, error) {
			volumes, err := r.client.DescribeVolumes(ctx, hcloud_internal.Filter{Name: d.Name})
			if err != nil {
				return nil, false, err
			}
			for _, v := range volumes {
				if v.Name == d.Name {
					return v, true, nil
				}
			}
			return nil, false, nil
		},
		create: func(ctx context.Context) (*hcloud.Volume, error) {
			opts := hcloud.VolumeCreateOpts{
				Name:     d.Name,
				Size:     d.SizeGB,
				Location: &hcloud.Location{Name: location},
				Labels:   labels.NewLabelBuilder(d.Name).WithOwner(d.Ref.String()).Build(),
			}
			if d.Format != "" {
				opts.Format = hcloud.Ptr(d.Format)
			}
			return r.client.CreateVolume(ctx, opts)
		},
		patch: func(v *hcloud.Volume) map[string]any {
			if v.ID == d.RemoteID {
				return nil
			}
			return map[string]any{descriptor.FieldRemoteID: v.ID}
		},
	})
	if err != nil {
		return nil, err
	}
	if volume.Server != nil {
		return nil, fmt.Errorf("volume %s is attached to server %d", d.Name, volume.Server.ID)
	}

	if volume.Status != hcloud.VolumeStatusAvailable {
		snap, err := r.rt.Poller.Await(ctx, poll.Request{
			ResourceID: fmt.Sprintf("volume %d", volume.ID),
			Desired:    string(hcloud.VolumeStatusAvailable),
			Deadline:   r.deadline,
			Describe: func(ctx context.Context) (poll.Snapshot, error) {
				v, err := r.client.GetVolume(ctx, volume.ID)
				if err != nil {
					return poll.Snapshot{}, err
				}
				return poll.Snapshot{Status: string(v.Status), Resource: v}, nil
			},
		})
		if err != nil {
			return nil, err
		}
		volume = snap.Resource.(*hcloud.Volume)
	}

	if string(volume.Status) != d.Status {
		if err := provisioning.PatchBack(ctx, r.rt, d.Ref, map[string]any{descriptor.FieldStatus: string(volume.Status)}); err != nil {
			return nil, err
		}
	}
	return volume, nil
}

// Volumes resolves every data disk concurrently, in order.
func (r *Resolver) Volumes(ctx context.Context, disks []descriptor.Disk, location string) ([]*hcloud.Volume, error) {
	jobs := make([]async.Job[*hcloud.Volume], len(disks))
	for i, d := range disks {
		jobs[i] = async.Job[*hcloud.Volume]{
			Name: d.Ref.String(),
			Func: func(ctx context.Context) (*hcloud.Volume, error) { return r.Volume(ctx, d, location) },
		}
	}
	return async.Join(ctx, r.rt.MaxConcurrentOps(), jobs)
}
