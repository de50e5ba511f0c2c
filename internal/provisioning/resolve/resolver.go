package resolve

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/hcprov/internal/descriptor"
	hcloud_internal "github.com/imamik/hcprov/internal/platform/hcloud"
	"github.com/imamik/hcprov/internal/provisioning"
	"github.com/imamik/hcprov/internal/provisioning/poll"
	"github.com/imamik/hcprov/internal/util/async"
)

// Resolver resolves sub-resources for one workflow.
type Resolver struct {
	rt       *provisioning.Runtime
	client   hcloud_internal.Cloud
	log      logr.Logger
	deadline time.Time
}

// New returns a Resolver using client. Waits started by the resolver share
// deadline.
func New(rt *provisioning.Runtime, client hcloud_internal.Cloud, log logr.Logger, deadline time.Time) *Resolver {
	return &Resolver{rt: rt, client: client, log: log, deadline: deadline}
}

// For returns a Resolver bound to a workflow state.
func For[P any](st *provisioning.State[P]) *Resolver {
	return New(st.Runtime, st.Client, st.Logger, st.Deadline)
}

// CreateError reports a failed create call.
type CreateError struct {
	Kind string
	Name string
	Err  error
}

func (e *CreateError) Error() string {
	return fmt.Sprintf("failed to create %s %s: %v", e.Kind, e.Name, e.Err)
}

func (e *CreateError) Unwrap() error {
	return e.Err
}

// ensureOp is one describe-or-create resolution.
type ensureOp[T any] struct {
	kind string
	name string
	ref  descriptor.Reference
	// describe returns the matching object and true, or false when absent.
	describe func(ctx context.Context) (T, bool, error)
	create   func(ctx context.Context) (T, error)
	// patch returns the fields to write back onto ref, or nil.
	patch func(T) map[string]any
	// tag labels a created object. Optional.
	tag func(ctx context.Context, obj T) error
}

// ensure runs op and reports whether the object was created.
func ensure[T any](ctx context.Context, r *Resolver, op ensureOp[T]) (T, bool, error) {
	var zero T
	obj, found, err := op.describe(ctx)
	if err != nil {
		return zero, false, fmt.Errorf("failed to describe %s %s: %w", op.kind, op.name, err)
	}

	created := false
	if found {
		provisioning.Emit(r.log, provisioning.EventResourceExists, op.kind, nil, "name", op.name)
	} else {
		obj, err = op.create(ctx)
		if err != nil {
			return zero, false, &CreateError{Kind: op.kind, Name: op.name, Err: err}
		}
		created = true
		provisioning.Emit(r.log, provisioning.EventResourceCreated, op.kind, nil, "name", op.name)
	}

	if op.patch != nil && op.ref != "" {
		if delta := op.patch(obj); len(delta) > 0 {
			if err := provisioning.PatchBack(ctx, r.rt, op.ref, delta); err != nil {
				return zero, created, err
			}
		}
	}

	if created && op.tag != nil {
		if err := op.tag(ctx, obj); err != nil {
			r.log.Error(err, "failed to tag resource, continuing", "kind", op.kind, "name", op.name)
		}
	}
	return obj, created, nil
}

// Descriptors loads every ref concurrently. The first failure fails the
// whole batch and no result is returned.
func Descriptors[T any](ctx context.Context, rt *provisioning.Runtime, refs []descriptor.Reference) ([]T, error) {
	jobs := make([]async.Job[T], len(refs))
	for i, ref := range refs {
		jobs[i] = async.Job[T]{
			Name: ref.String(),
			Func: func(ctx context.Context) (T, error) {
				return provisioning.Load[T](ctx, rt, ref)
			},
		}
	}
	return async.Join(ctx, rt.MaxConcurrentOps(), jobs)
}

// AwaitAction waits for action to succeed.
func (r *Resolver) AwaitAction(ctx context.Context, action *hcloud.Action) error {
	return AwaitAction(ctx, r.rt.Poller, r.client, action, r.deadline)
}

// AwaitAction waits until action reaches success. A nil action is a no-op.
// An action in state error, or with an error message, fails immediately.
func AwaitAction(ctx context.Context, poller *poll.Poller, client hcloud_internal.ActionClient, action *hcloud.Action, deadline time.Time) error {
	if action == nil {
		return nil
	}
	id := fmt.Sprintf("action %d (%s)", action.ID, action.Command)
	_, err := poller.Await(ctx, poll.Request{
		ResourceID:    id,
		Desired:       string(hcloud.ActionStatusSuccess),
		FailureStates: []string{string(hcloud.ActionStatusError)},
		Deadline:      deadline,
		Describe: func(ctx context.Context) (poll.Snapshot, error) {
			a, err := client.GetAction(ctx, action.ID)
			if err != nil {
				return poll.Snapshot{}, err
			}
			return poll.Snapshot{ID: id, Status: string(a.Status), Failure: a.ErrorMessage, Resource: a}, nil
		},
	})
	return err
}

// AwaitActions waits for every action in order.
func (r *Resolver) AwaitActions(ctx context.Context, actions []*hcloud.Action) error {
	for _, a := range actions {
		if err := r.AwaitAction(ctx, a); err != nil {
			return err
		}
	}
	return nil
}
