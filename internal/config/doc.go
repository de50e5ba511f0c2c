// Package config holds the runtime settings of hcprov.
//
// Settings are read once from environment variables, optionally overlaid by a
// YAML file, and passed explicitly to everything that needs them. Nothing in
// this package keeps process-wide state.
package config
