package hcloud

import (
	"context"
	"fmt"
	"reflect"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// DeleteOperation encapsulates get-then-delete logic for any hcloud resource
// addressed by id. It succeeds if the resource does not exist.
//
// Usage example:
//
//	func (c *RealClient) DeleteFirewall(ctx context.Context, id int64) error {
//	    return (&DeleteOperation[*hcloud.Firewall]{
//	        ID:           id,
//	        ResourceType: "firewall",
//	        Get:          c.client.Firewall.GetByID,
//	        Delete:       c.client.Firewall.Delete,
//	    }).Execute(ctx)
//	}
type DeleteOperation[T any] struct {
	ID           int64
	ResourceType string

	// Get retrieves the resource by id; a nil result means it is gone.
	Get func(ctx context.Context, id int64) (T, *hcloud.Response, error)

	// Delete removes the resource
	Delete func(ctx context.Context, resource T) (*hcloud.Response, error)
}

// Execute performs the delete operation once.
func (op *DeleteOperation[T]) Execute(ctx context.Context) error {
	resource, _, err := op.Get(ctx, op.ID)
	if err != nil {
		return fmt.Errorf("failed to get %s %d: %w", op.ResourceType, op.ID, err)
	}
	if isNil(resource) {
		return nil
	}

	if _, err := op.Delete(ctx, resource); err != nil {
		if IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to delete %s %d: %w", op.ResourceType, op.ID, err)
	}
	return nil
}

// getByID wraps an hcloud by-id lookup so that an absent resource becomes a
// not_found error instead of a nil result.
func getByID[T any](
	ctx context.Context,
	kind string,
	id int64,
	get func(context.Context, int64) (T, *hcloud.Response, error),
) (T, error) {
	var zero T
	resource, _, err := get(ctx, id)
	if err != nil {
		return zero, fmt.Errorf("failed to get %s %d: %w", kind, id, err)
	}
	if isNil(resource) {
		return zero, NotFoundError(kind, id)
	}
	return resource, nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
