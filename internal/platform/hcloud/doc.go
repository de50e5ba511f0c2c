// Package hcloud adapts the Hetzner Cloud API to the calls the provisioning
// workflows make.
//
// # Architecture
//
//   - client.go: per-kind client interfaces combined into Cloud
//   - real_client.go: RealClient over hcloud-go
//   - network.go, firewall.go, volume.go, server.go, load_balancer.go: per-kind calls
//   - action.go: action and location lookups
//   - operations.go: generic get-then-delete
//   - errors.go: provider error classification
//   - cache.go: bounded cache of clients keyed by credential and region
//   - credentials.go: credential resolution and validation
//   - mock_client.go: MockClient for tests and dry runs
//
// # Errors
//
// Every call returns the provider error unchanged apart from wrapping. By-id
// lookups that find nothing return an hcloud.Error with code not_found rather
// than a nil result, so callers can treat "not yet visible" as a single error
// code. No call here retries; retrying is the poller's job.
package hcloud
