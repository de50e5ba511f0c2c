// Package resolve binds locally declared sub-resources to remote Hetzner
// Cloud objects.
//
// Every resolution follows the same pattern: describe the object by its
// declared identity, bind to a match when one exists, otherwise create it,
// write the new remote id back onto the descriptor and tag the new object.
// Tagging is best-effort. Batches of independent resolutions fan out through
// async.Join and fail as a unit.
package resolve
