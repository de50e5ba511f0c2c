package provisioning

import (
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/hcprov/internal/descriptor"
	hcloud_internal "github.com/imamik/hcprov/internal/platform/hcloud"
)

// State is the per-request accumulator a Dispatcher advances. It is owned by
// a single workflow and never shared, so it carries no lock.
type State[P any] struct {
	ID       string
	Kind     descriptor.Kind
	Request  Request
	Stage    Stage
	Path     []Stage
	Started  time.Time
	Deadline time.Time
	Client   hcloud_internal.Cloud
	Runtime  *Runtime
	Logger   logr.Logger
	// Cleanup collects tolerated teardown failures.
	Cleanup CleanupError
	Payload P

	err error
	// credential and region key the client in Runtime.Clients.
	credential string
	region     string
}

// UseClient fetches the client for (credential, region) and remembers the
// key so a rejected credential can be dropped from the cache.
func (s *State[P]) UseClient(credential, region string) error {
	c, err := s.Runtime.Clients.Get(credential, region)
	if err != nil {
		return fmt.Errorf("failed to get client for credential %q in %s: %w", credential, region, err)
	}
	s.Client = c
	s.credential = credential
	s.region = region
	return nil
}

// invalidateClient drops the client from the cache when err shows the
// provider rejected its credential.
func (s *State[P]) invalidateClient(err error) {
	if s.Client == nil || s.Runtime == nil || s.Runtime.Clients == nil || !hcloud_internal.IsUnauthorized(err) {
		return
	}
	s.Runtime.Clients.Invalidate(s.credential, s.region)
	s.Logger.Info("credential was rejected, cached client dropped", "credential", s.credential, "region", s.region)
}

// Fail records err as the terminal error. Only the first error is kept.
func (s *State[P]) Fail(err error) {
	if s.err == nil && err != nil {
		s.err = err
	}
}

// Err returns the terminal error, if any.
func (s *State[P]) Err() error {
	return s.err
}

// Visited reports whether the state passed through stage.
func (s *State[P]) Visited(stage Stage) bool {
	for _, st := range s.Path {
		if st == stage {
			return true
		}
	}
	return false
}
