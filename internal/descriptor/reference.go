package descriptor

import (
	"fmt"
	"strings"
)

// Kind identifies the type of a persisted descriptor.
type Kind string

// Descriptor kinds. The value doubles as the reference prefix.
const (
	KindNetwork      Kind = "networks"
	KindSubnet       Kind = "subnets"
	KindFirewall     Kind = "firewalls"
	KindDisk         Kind = "disks"
	KindNIC          Kind = "nics"
	KindInstance     Kind = "instances"
	KindLoadBalancer Kind = "load-balancers"
)

var knownKinds = map[Kind]bool{
	KindNetwork:      true,
	KindSubnet:       true,
	KindFirewall:     true,
	KindDisk:         true,
	KindNIC:          true,
	KindInstance:     true,
	KindLoadBalancer: true,
}

// Reference points at a persisted descriptor, formatted as "<kind>/<name>".
type Reference string

// NewReference builds a reference from its parts.
func NewReference(kind Kind, name string) Reference {
	return Reference(string(kind) + "/" + name)
}

// Kind returns the kind prefix of the reference.
func (r Reference) Kind() Kind {
	kind, _, _ := strings.Cut(string(r), "/")
	return Kind(kind)
}

// Name returns the part after the kind prefix.
func (r Reference) Name() string {
	_, name, _ := strings.Cut(string(r), "/")
	return name
}

// String implements fmt.Stringer.
func (r Reference) String() string {
	return string(r)
}

// Validate checks that the reference has a known kind and a non-empty name.
func (r Reference) Validate() error {
	if r == "" {
		return fmt.Errorf("reference is empty")
	}
	kind, name, ok := strings.Cut(string(r), "/")
	if !ok || name == "" {
		return fmt.Errorf("reference %q must have the form <kind>/<name>", string(r))
	}
	if !knownKinds[Kind(kind)] {
		return fmt.Errorf("reference %q has unknown kind %q", string(r), kind)
	}
	return nil
}
