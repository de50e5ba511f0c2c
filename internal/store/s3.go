package store

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/imamik/hcprov/internal/descriptor"
	"github.com/imamik/hcprov/internal/platform/s3"
)

// ObjectClient is the subset of the object storage client the S3 store uses.
type ObjectClient interface {
	GetObject(ctx context.Context, key string) ([]byte, error)
	PutObject(ctx context.Context, key string, data []byte) error
	DeleteObject(ctx context.Context, key string) error
}

// S3 stores one YAML object per descriptor under "<prefix>/<kind>/<name>.yaml".
//
// Patches are read-modify-write; the mutex serializes them within a process
// only.
type S3 struct {
	mu     sync.Mutex
	client ObjectClient
	prefix string
}

// NewS3 returns a store writing objects through client.
func NewS3(client ObjectClient, prefix string) *S3 {
	return &S3{client: client, prefix: prefix}
}

func (s *S3) key(ref descriptor.Reference) string {
	return path.Join(s.prefix, string(ref)+".yaml")
}

func (s *S3) load(ctx context.Context, ref descriptor.Reference) (Document, error) {
	data, err := s.client.GetObject(ctx, s.key(ref))
	if errors.Is(err, s3.ErrObjectNotFound) {
		return nil, notFound(ref)
	}
	if err != nil {
		return nil, err
	}
	doc := Document{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", ref, err)
	}
	return doc, nil
}

func (s *S3) save(ctx context.Context, ref descriptor.Reference, doc Document) error {
	data, err := yaml.Marshal(map[string]any(doc))
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", ref, err)
	}
	return s.client.PutObject(ctx, s.key(ref), data)
}

// Get implements Store.
func (s *S3) Get(ctx context.Context, ref descriptor.Reference, out any) error {
	doc, err := s.load(ctx, ref)
	if err != nil {
		return err
	}
	return Decode(doc, out)
}

// Patch implements Store.
func (s *S3) Patch(ctx context.Context, ref descriptor.Reference, delta map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx, ref)
	if err != nil {
		return err
	}
	merged, err := merge(doc, delta)
	if err != nil {
		return err
	}
	return s.save(ctx, ref, merged)
}

// Delete implements Store.
func (s *S3) Delete(ctx context.Context, ref descriptor.Reference) error {
	return s.client.DeleteObject(ctx, s.key(ref))
}

// Put implements Store.
func (s *S3) Put(ctx context.Context, ref descriptor.Reference, value any) error {
	doc, err := ToDocument(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, ref, doc)
}
