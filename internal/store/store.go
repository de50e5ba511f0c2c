package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/imamik/hcprov/internal/descriptor"
)

// ErrNotFound is returned when no document exists for a reference.
var ErrNotFound = errors.New("descriptor not found")

// Document is the persisted form of a descriptor.
type Document map[string]any

// Store is the persistence boundary used by workflows.
type Store interface {
	// Get decodes the document stored under ref into out.
	Get(ctx context.Context, ref descriptor.Reference, out any) error
	// Patch merges delta into the top level of the stored document.
	Patch(ctx context.Context, ref descriptor.Reference, delta map[string]any) error
	// Delete removes the document. Deleting a missing document is not an error.
	Delete(ctx context.Context, ref descriptor.Reference) error
	// Put replaces the whole document.
	Put(ctx context.Context, ref descriptor.Reference, value any) error
}

// ToDocument converts a descriptor value into its document form using the
// yaml field names.
func ToDocument(value any) (Document, error) {
	if doc, ok := value.(Document); ok {
		return doc.clone(), nil
	}
	raw, err := yaml.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode descriptor: %w", err)
	}
	doc := Document{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to normalize descriptor: %w", err)
	}
	return doc, nil
}

// Decode maps a document onto a typed descriptor.
func Decode(doc Document, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "yaml",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := dec.Decode(map[string]any(doc)); err != nil {
		return fmt.Errorf("failed to decode descriptor: %w", err)
	}
	return nil
}

// merge applies delta onto a copy of doc. A nil value removes the key.
func merge(doc Document, delta map[string]any) (Document, error) {
	out := doc.clone()
	normalized, err := ToDocument(delta)
	if err != nil {
		return nil, err
	}
	for k, v := range delta {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = normalized[k]
	}
	return out, nil
}

func (d Document) clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

func notFound(ref descriptor.Reference) error {
	return fmt.Errorf("%w: %s", ErrNotFound, ref)
}
