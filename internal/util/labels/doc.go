// Package labels builds the label sets attached to Hetzner Cloud objects
// created by hcprov.
//
// Labels make created objects findable again: firewalls are scoped to their
// network with KeyNetwork, and every object records the descriptor that
// declared it.
package labels
