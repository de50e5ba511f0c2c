package provisioning

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/segmentio/ksuid"

	"github.com/imamik/hcprov/internal/config"
	"github.com/imamik/hcprov/internal/descriptor"
	hcloud_internal "github.com/imamik/hcprov/internal/platform/hcloud"
	"github.com/imamik/hcprov/internal/provisioning/poll"
	"github.com/imamik/hcprov/internal/store"
	"github.com/imamik/hcprov/internal/task"
)

// ClientSource hands out provider clients. *hcloud.ClientCache implements it.
type ClientSource interface {
	Get(credential, region string) (hcloud_internal.Cloud, error)
	Invalidate(credential, region string)
}

// Runtime is the explicit registry of collaborators shared by workflows.
// It is built once and never mutated while workflows run.
type Runtime struct {
	Store    store.Store
	Clients  ClientSource
	Notifier task.Notifier
	Poller   *poll.Poller
	Settings *config.Settings
	Metrics  *Metrics
	Logger   logr.Logger
	Clock    poll.Clock
}

// Validate checks that every required collaborator is set.
func (rt *Runtime) Validate() error {
	switch {
	case rt.Store == nil:
		return fmt.Errorf("runtime: store is required")
	case rt.Clients == nil:
		return fmt.Errorf("runtime: client source is required")
	case rt.Notifier == nil:
		return fmt.Errorf("runtime: notifier is required")
	case rt.Poller == nil:
		return fmt.Errorf("runtime: poller is required")
	case rt.Settings == nil:
		return fmt.Errorf("runtime: settings are required")
	}
	return nil
}

func (rt *Runtime) now() time.Time {
	if rt.Clock != nil {
		return rt.Clock.Now()
	}
	return time.Now()
}

// MaxConcurrentOps returns the fan-out bound.
func (rt *Runtime) MaxConcurrentOps() int {
	if rt.Settings == nil {
		return 0
	}
	return rt.Settings.MaxConcurrentOps
}

// Load reads the descriptor at ref into a new T.
func Load[T any](ctx context.Context, rt *Runtime, ref descriptor.Reference) (T, error) {
	var out T
	if err := rt.Store.Get(ctx, ref, &out); err != nil {
		return out, fmt.Errorf("failed to load %s: %w", ref, err)
	}
	return out, nil
}

// PatchBack writes the resolved fields of ref.
func PatchBack(ctx context.Context, rt *Runtime, ref descriptor.Reference, delta map[string]any) error {
	if err := rt.Store.Patch(ctx, ref, delta); err != nil {
		return fmt.Errorf("failed to patch %s: %w", ref, err)
	}
	return nil
}

// NewState creates the state of one request.
func NewState[P any](rt *Runtime, kind descriptor.Kind, req Request) *State[P] {
	id := ksuid.New().String()
	now := rt.now()
	return &State[P]{
		ID:       id,
		Kind:     kind,
		Request:  req,
		Started:  now,
		Deadline: now.Add(rt.Settings.WorkflowTimeout),
		Runtime:  rt,
		Logger: rt.Logger.WithValues(
			"workflow", id,
			"kind", string(kind),
			"operation", string(req.Operation),
			"ref", req.ResourceRef.String(),
		),
	}
}
