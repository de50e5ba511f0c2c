package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/hcprov/internal/descriptor"
	"github.com/imamik/hcprov/internal/platform/s3"
)

var subnetRef = descriptor.NewReference(descriptor.KindSubnet, "web-a")

func seedSubnet() descriptor.Subnet {
	return descriptor.Subnet{
		Ref:         subnetRef,
		Network:     "networks/web",
		IPRange:     "10.0.1.0/24",
		NetworkZone: "eu-central",
	}
}

// exerciseStore runs the behaviour every Store implementation shares.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	var missing descriptor.Subnet
	err := s.Get(ctx, subnetRef, &missing)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, s.Patch(ctx, subnetRef, map[string]any{"remoteId": "1/10.0.1.0/24"}), ErrNotFound)

	require.NoError(t, s.Put(ctx, subnetRef, seedSubnet()))

	var got descriptor.Subnet
	require.NoError(t, s.Get(ctx, subnetRef, &got))
	assert.Equal(t, seedSubnet(), got)

	require.NoError(t, s.Patch(ctx, subnetRef, map[string]any{descriptor.FieldRemoteID: "42/10.0.1.0/24"}))

	got = descriptor.Subnet{}
	require.NoError(t, s.Get(ctx, subnetRef, &got))
	assert.Equal(t, "42/10.0.1.0/24", got.RemoteID)
	assert.Equal(t, "10.0.1.0/24", got.IPRange, "untouched fields survive a patch")
	assert.Equal(t, descriptor.Reference("networks/web"), got.Network)

	require.NoError(t, s.Delete(ctx, subnetRef))
	require.ErrorIs(t, s.Get(ctx, subnetRef, &got), ErrNotFound)
	require.NoError(t, s.Delete(ctx, subnetRef), "deleting twice is fine")
}

func TestMemory(t *testing.T) {
	t.Parallel()
	exerciseStore(t, NewMemory())
}

func TestMemory_PatchNilRemovesKey(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Put(ctx, subnetRef, seedSubnet()))
	require.NoError(t, m.Patch(ctx, subnetRef, map[string]any{"type": "cloud"}))

	doc, ok := m.Raw(subnetRef)
	require.True(t, ok)
	assert.Equal(t, "cloud", doc["type"])

	require.NoError(t, m.Patch(ctx, subnetRef, map[string]any{"type": nil}))
	doc, _ = m.Raw(subnetRef)
	assert.NotContains(t, doc, "type")
	assert.Equal(t, 1, m.Len())
}

func TestMemory_PatchTypedSlices(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ref := descriptor.NewReference(descriptor.KindLoadBalancer, "edge")
	m := NewMemory()
	require.NoError(t, m.Put(ctx, ref, descriptor.LoadBalancer{Ref: ref, Name: "edge", Type: "lb11"}))
	require.NoError(t, m.Patch(ctx, ref, map[string]any{descriptor.FieldFirewalls: []int64{7, 9}}))

	var lb descriptor.LoadBalancer
	require.NoError(t, m.Get(ctx, ref, &lb))
	assert.Equal(t, []int64{7, 9}, lb.Firewalls)
	assert.Equal(t, "lb11", lb.Type)
}

func TestMemory_ConcurrentPatches(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Put(ctx, subnetRef, seedSubnet()))

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, m.Patch(ctx, subnetRef, map[string]any{fmt.Sprintf("k%d", i): i}))
		}()
	}
	wg.Wait()

	doc, _ := m.Raw(subnetRef)
	assert.Len(t, doc, 4+20)
}

func TestFile(t *testing.T) {
	t.Parallel()

	f, err := OpenFile(filepath.Join(t.TempDir(), "state", "descriptors.yaml"))
	require.NoError(t, err)
	exerciseStore(t, f)
}

func TestFile_Reopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "descriptors.yaml")

	f, err := OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, f.Put(ctx, subnetRef, seedSubnet()))
	require.NoError(t, f.Patch(ctx, subnetRef, map[string]any{descriptor.FieldRemoteID: "42/10.0.1.0/24"}))

	reopened, err := OpenFile(path)
	require.NoError(t, err)

	var got descriptor.Subnet
	require.NoError(t, reopened.Get(ctx, subnetRef, &got))
	assert.Equal(t, "42/10.0.1.0/24", got.RemoteID)
	assert.Equal(t, "eu-central", got.NetworkZone)
}

// fakeObjects is an in-memory ObjectClient.
type fakeObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	getErr  error
}

func (f *fakeObjects) GetObject(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", s3.ErrObjectNotFound, key)
	}
	return data, nil
}

func (f *fakeObjects) PutObject(_ context.Context, key string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return nil
}

func (f *fakeObjects) DeleteObject(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func TestS3(t *testing.T) {
	t.Parallel()

	objects := &fakeObjects{objects: map[string][]byte{}}
	exerciseStore(t, NewS3(objects, "hcprov"))
}

func TestS3_KeyLayout(t *testing.T) {
	t.Parallel()

	objects := &fakeObjects{objects: map[string][]byte{}}
	s := NewS3(objects, "prod")
	require.NoError(t, s.Put(context.Background(), subnetRef, seedSubnet()))

	assert.Contains(t, objects.objects, "prod/subnets/web-a.yaml")
}

func TestS3_GetError(t *testing.T) {
	t.Parallel()

	objects := &fakeObjects{objects: map[string][]byte{}, getErr: fmt.Errorf("access denied")}
	var got descriptor.Subnet
	err := NewS3(objects, "").Get(context.Background(), subnetRef, &got)

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
