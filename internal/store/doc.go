// Package store persists resource descriptors.
//
// Documents are keyed by descriptor reference and held as plain YAML maps.
// Workflows read a document once per resolution step and patch back only the
// keys they resolved; Patch never touches keys missing from the delta.
package store
