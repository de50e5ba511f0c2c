package labels

import (
	"sort"
	"strconv"
	"strings"
)

// Label keys, namespaced under hcprov.io.
const (
	KeyName      = "hcprov.io/name"
	KeyManagedBy = "hcprov.io/managed-by"
	KeyNetwork   = "hcprov.io/network"
	KeyOwner     = "hcprov.io/owner"
	KeyRole      = "hcprov.io/role"
)

// ManagedByHcprov marks objects created by this tool.
const ManagedByHcprov = "hcprov"

// Role values.
const (
	RoleDefaultFirewall = "default-firewall"
	RoleAuxFirewall     = "lb-firewall"
)

// LabelBuilder provides a fluent interface for building resource labels.
type LabelBuilder struct {
	labels map[string]string
}

// NewLabelBuilder creates a builder with the name and manager pre-set.
func NewLabelBuilder(name string) *LabelBuilder {
	return &LabelBuilder{
		labels: map[string]string{
			KeyName:      sanitize(name),
			KeyManagedBy: ManagedByHcprov,
		},
	}
}

// WithNetwork scopes the object to a network id.
func (lb *LabelBuilder) WithNetwork(networkID int64) *LabelBuilder {
	lb.labels[KeyNetwork] = strconv.FormatInt(networkID, 10)
	return lb
}

// WithOwner records the descriptor reference that declared the object.
func (lb *LabelBuilder) WithOwner(ref string) *LabelBuilder {
	lb.labels[KeyOwner] = sanitize(ref)
	return lb
}

// WithRole adds a role label.
func (lb *LabelBuilder) WithRole(role string) *LabelBuilder {
	lb.labels[KeyRole] = role
	return lb
}

// Merge adds all labels from the provided map. Existing keys are overwritten.
func (lb *LabelBuilder) Merge(extra map[string]string) *LabelBuilder {
	for k, v := range extra {
		lb.labels[k] = v
	}
	return lb
}

// Build returns a copy of the labels map.
func (lb *LabelBuilder) Build() map[string]string {
	result := make(map[string]string, len(lb.labels))
	for k, v := range lb.labels {
		result[k] = v
	}
	return result
}

// Selector renders labels as an hcloud label selector ("a=b,c=d"), sorted by key.
func Selector(labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+labels[k])
	}
	return strings.Join(parts, ",")
}

// SelectorForNetwork selects objects scoped to a network id.
func SelectorForNetwork(networkID int64) string {
	return KeyNetwork + "=" + strconv.FormatInt(networkID, 10)
}

// sanitize maps a value onto the characters hcloud accepts in label values:
// alphanumerics, '-', '_' and '.', at most 63 characters.
func sanitize(v string) string {
	var b strings.Builder
	for _, r := range v {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('.')
		}
	}
	out := b.String()
	if len(out) > 63 {
		out = out[:63]
	}
	return strings.Trim(out, "-_.")
}
