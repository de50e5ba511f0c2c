// Package loadbalancer provisions Hetzner Cloud load balancers.
//
// A load balancer owns one auxiliary firewall that opens its destination
// ports on the targets it selects. Create makes the firewall first and
// records its id on the descriptor; Delete removes it before the load
// balancer and tolerates its failure.
package loadbalancer
