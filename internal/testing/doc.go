// Package testing provides shared fixtures and builders for workflow tests.
//
// It centralizes the pieces every workflow test needs:
//   - Harness: a Runtime over an in-memory store, a fake clock and a recorder
//   - InfraFixture: a MockClient backed by a small in-memory Hetzner world
//   - Topology: descriptor builders for an instance and its dependencies
//   - MockNotifier: a testify mock of the task notifier
//
// Usage:
//
//	fixture := testing.NewInfraFixture().WithNetwork(10, "web", "10.0.0.0/16", "10.0.1.0/24")
//	h := testing.NewHarness(t, fixture.Mock())
//	testing.NewTopology("web-1").Seed(t, h)
package testing
