// Package descriptor defines the locally persisted resource declarations the
// provisioning workflows read and patch.
//
// A descriptor states what should exist ("subnet 10.0.1.0/24 in network
// web"). Its remote identifier is empty until a workflow resolves it against
// Hetzner Cloud and writes the identifier back through the store.
//
// Field names in the yaml tags are the persisted document keys; workflows patch
// documents by those keys and never rewrite fields they did not resolve.
package descriptor
