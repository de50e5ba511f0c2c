// Package instance provisions Hetzner Cloud servers from instance
// descriptors.
//
// Create resolves the instance's disks, NICs, subnets, networks and firewalls
// before creating the server and waiting for it to run:
//
//	CLIENT → DISKS → NIC_STATES → SUBNET_STATES → NETWORK_STATES →
//	FIREWALL_STATES → RESOLVE_NETWORKS → RESOLVE_SUBNETS →
//	RESOLVE_SECURITY_GROUPS → BUILD_NIC_SPECS → CREATE → POLL → DONE
//
// Update renames and relabels a running server, Delete removes it together
// with its records, and Validate checks the credential against every
// location. Every graph starts with MOCK, which mock requests enter instead.
package instance
