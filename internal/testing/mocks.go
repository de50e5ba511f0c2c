package testing

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	hcloud_internal "github.com/imamik/hcprov/internal/platform/hcloud"
)

// MockNotifier is a testify mock of task.Notifier.
type MockNotifier struct {
	mock.Mock
}

// Finish records a success notification.
func (m *MockNotifier) Finish(ctx context.Context, taskRef string) error {
	args := m.Called(ctx, taskRef)
	return args.Error(0)
}

// Fail records a failure notification.
func (m *MockNotifier) Fail(ctx context.Context, taskRef string, cause error) error {
	args := m.Called(ctx, taskRef, cause)
	return args.Error(0)
}

// ClientKey is a (credential, region) pair requested from StaticClients.
type ClientKey struct {
	Credential string
	Region     string
}

// StaticClients hands out a single Cloud for every key and records requests.
type StaticClients struct {
	Cloud hcloud_internal.Cloud
	// Err, when set, is returned by every Get.
	Err error

	mu          sync.Mutex
	requested   []ClientKey
	invalidated []ClientKey
}

// Get returns Cloud or Err.
func (s *StaticClients) Get(credential, region string) (hcloud_internal.Cloud, error) {
	s.mu.Lock()
	s.requested = append(s.requested, ClientKey{Credential: credential, Region: region})
	s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Cloud, nil
}

// Invalidate records the key.
func (s *StaticClients) Invalidate(credential, region string) {
	s.mu.Lock()
	s.invalidated = append(s.invalidated, ClientKey{Credential: credential, Region: region})
	s.mu.Unlock()
}

// Requested returns every key passed to Get.
func (s *StaticClients) Requested() []ClientKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ClientKey(nil), s.requested...)
}

// Invalidated returns every key passed to Invalidate.
func (s *StaticClients) Invalidated() []ClientKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ClientKey(nil), s.invalidated...)
}
