package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/imamik/hcprov/internal/descriptor"
)

// File is a Store backed by a single YAML file mapping references to
// documents. Every mutation rewrites the file.
type File struct {
	mu   sync.Mutex
	path string
	mem  *Memory
}

// OpenFile loads path. A missing file yields an empty store.
func OpenFile(path string) (*File, error) {
	f := &File{path: path, mem: NewMemory()}

	data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied path
	if errors.Is(err, os.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}

	raw := map[string]Document{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse store file %s: %w", path, err)
	}
	for ref, doc := range raw {
		f.mem.docs[descriptor.Reference(ref)] = doc
	}
	return f, nil
}

// Get implements Store.
func (f *File) Get(ctx context.Context, ref descriptor.Reference, out any) error {
	return f.mem.Get(ctx, ref, out)
}

// Patch implements Store.
func (f *File) Patch(ctx context.Context, ref descriptor.Reference, delta map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.mem.Patch(ctx, ref, delta); err != nil {
		return err
	}
	return f.flush()
}

// Delete implements Store.
func (f *File) Delete(ctx context.Context, ref descriptor.Reference) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.mem.Delete(ctx, ref); err != nil {
		return err
	}
	return f.flush()
}

// Put implements Store.
func (f *File) Put(ctx context.Context, ref descriptor.Reference, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.mem.Put(ctx, ref, value); err != nil {
		return err
	}
	return f.flush()
}

func (f *File) flush() error {
	f.mem.mu.RLock()
	refs := make([]string, 0, len(f.mem.docs))
	for ref := range f.mem.docs {
		refs = append(refs, string(ref))
	}
	sort.Strings(refs)

	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, ref := range refs {
		var value yaml.Node
		if err := value.Encode(f.mem.docs[descriptor.Reference(ref)]); err != nil {
			f.mem.mu.RUnlock()
			return fmt.Errorf("failed to encode %s: %w", ref, err)
		}
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: ref},
			&value,
		)
	}
	f.mem.mu.RUnlock()

	data, err := yaml.Marshal(root)
	if err != nil {
		return fmt.Errorf("failed to encode store file: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(f.path), 0o750); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write store file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("failed to replace store file: %w", err)
	}
	return nil
}
