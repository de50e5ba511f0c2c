// Package provisioning provides the per-request workflow engine that creates,
// modifies, validates and tears down cloud resources.
//
// # Subpackages
//
//   - poll/ — completion poller
//   - resolve/ — describe-or-create resolution of networks, subnets and firewalls
//   - instance/ — instance workflows
//   - loadbalancer/ — load balancer workflows
//
// # Core Types
//
// Request is the inbound unit of work. Each request gets its own State, which
// carries the request, the current Stage, the deadline, the provider client,
// the terminal error and a workflow-specific payload. A Dispatcher advances a
// State through a Graph by looking stages up in a handler table that was
// checked for coverage when the Dispatcher was built. DONE and ERROR are the
// only terminal stages and the only places a task notification is sent.
package provisioning
