package resolve

import (
	"context"
	"errors"
	"fmt"
	"net"
	"slices"
	"strconv"
	"strings"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/hcprov/internal/descriptor"
	hcloud_internal "github.com/imamik/hcprov/internal/platform/hcloud"
	"github.com/imamik/hcprov/internal/provisioning"
	"github.com/imamik/hcprov/internal/util/async"
	"github.com/imamik/hcprov/internal/util/labels"
)

var anyIPs = []string{"0.0.0.0/0", "::/0"}

// FirewallSpec is a firewall to resolve.
type FirewallSpec struct {
	// Ref is the descriptor to patch with the remote id. Optional.
	Ref      descriptor.Reference
	RemoteID int64
	Name     string
	// Network scopes the lookup and supplies the range of inner rules.
	Network *hcloud.Network
	Ingress []descriptor.Rule
	Egress  []descriptor.Rule
	Inner   []descriptor.Rule
	Labels  map[string]string
	Role    string
	Owner   string
	ApplyTo []hcloud.FirewallResource
}

// FirewallFor builds the spec of a declared firewall inside its network.
func FirewallFor(fw descriptor.Firewall, network *hcloud.Network) FirewallSpec {
	return FirewallSpec{
		Ref:      fw.Ref,
		RemoteID: fw.RemoteID,
		Name:     fw.Name,
		Network:  network,
		Ingress:  fw.Ingress,
		Egress:   fw.Egress,
		Inner:    fw.Inner,
		Labels:   fw.Labels,
		Owner:    fw.Ref.String(),
	}
}

// DefaultFirewallName is the name of the firewall used by NICs that declare
// none.
func DefaultFirewallName(network *hcloud.Network) string {
	return "default-" + network.Name
}

// DefaultFirewall is the spec of a network's default firewall. It admits
// all traffic from inside the network.
func DefaultFirewall(network *hcloud.Network) FirewallSpec {
	return FirewallSpec{
		Name:    DefaultFirewallName(network),
		Network: network,
		Role:    labels.RoleDefaultFirewall,
		Inner: []descriptor.Rule{
			{Protocol: "tcp", Port: "any", Description: "network tcp"},
			{Protocol: "udp", Port: "any", Description: "network udp"},
			{Protocol: "icmp", Description: "network icmp"},
		},
	}
}

func (s FirewallSpec) scope() map[string]string {
	scope := map[string]string{}
	if s.Network != nil {
		scope[labels.KeyNetwork] = strconv.FormatInt(s.Network.ID, 10)
	}
	if s.Role != "" {
		scope[labels.KeyRole] = s.Role
	}
	return scope
}

// ruleGroups converts the declared rules into ingress, egress and inner
// groups, in the order they are applied.
func (s FirewallSpec) ruleGroups() ([3][]hcloud.FirewallRule, error) {
	var groups [3][]hcloud.FirewallRule
	var err error
	if groups[0], err = convertRules(hcloud.FirewallRuleDirectionIn, s.Ingress, nil); err != nil {
		return groups, fmt.Errorf("ingress: %w", err)
	}
	if groups[1], err = convertRules(hcloud.FirewallRuleDirectionOut, s.Egress, nil); err != nil {
		return groups, fmt.Errorf("egress: %w", err)
	}
	if len(s.Inner) > 0 {
		if s.Network == nil || s.Network.IPRange == nil {
			return groups, errors.New("inner rules need a network range")
		}
		if groups[2], err = convertRules(hcloud.FirewallRuleDirectionIn, s.Inner, []net.IPNet{*s.Network.IPRange}); err != nil {
			return groups, fmt.Errorf("inner: %w", err)
		}
	}
	return groups, nil
}

var groupNames = [3]string{"ingress", "egress", "inner"}

// Firewall binds spec to the firewall with the same name in its scope,
// creating it when absent, then applies ingress, egress and inner rules in
// that order.
//
// A failed create is logged and returns (nil, nil) so sibling firewalls
// proceed. A failed rule application is returned.
func (r *Resolver) Firewall(ctx context.Context, spec FirewallSpec) (*hcloud.Firewall, error) {
	groups, err := spec.ruleGroups()
	if err != nil {
		return nil, fmt.Errorf("firewall %s: %w", spec.Name, err)
	}
	scope := spec.scope()

	fw, created, err := ensure(ctx, r, ensureOp[*hcloud.Firewall]{
		kind: "firewall",
		name: spec.Name,
		ref:  spec.Ref,
		describe: func(ctx context.Context) (*hcloud.Firewall, bool, error) {
			firewalls, err := r.client.DescribeFirewalls(ctx, hcloud_internal.Filter{Name: spec.Name, Labels: scope})
			if err != nil {
				return nil, false, err
			}
			for _, fw := range firewalls {
				if fw.Name == spec.Name {
					return fw, true, nil
				}
			}
			return nil, false, nil
		},
		create: func(ctx context.Context) (*hcloud.Firewall, error) {
			return r.client.CreateFirewall(ctx, hcloud.FirewallCreateOpts{
				Name:    spec.Name,
				Labels:  labels.NewLabelBuilder(spec.Name).Merge(spec.Labels).Merge(scope).Build(),
				ApplyTo: spec.ApplyTo,
			})
		},
		patch: func(fw *hcloud.Firewall) map[string]any {
			if fw.ID == spec.RemoteID {
				return nil
			}
			return map[string]any{descriptor.FieldRemoteID: fw.ID}
		},
		tag: func(ctx context.Context, fw *hcloud.Firewall) error {
			if spec.Owner == "" {
				return nil
			}
			return r.client.LabelFirewall(ctx, fw, labels.NewLabelBuilder(spec.Name).WithOwner(spec.Owner).Build())
		},
	})

	var createErr *CreateError
	if errors.As(err, &createErr) {
		provisioning.Emit(r.log, provisioning.EventResourceSkipped, "firewall", err, "name", spec.Name)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := r.applyRules(ctx, fw, groups, created); err != nil {
		return nil, err
	}
	return fw, nil
}

func (r *Resolver) applyRules(ctx context.Context, fw *hcloud.Firewall, groups [3][]hcloud.FirewallRule, created bool) error {
	var want []hcloud.FirewallRule
	for _, g := range groups {
		want = append(want, g...)
	}
	if !created && rulesMatch(fw.Rules, want) {
		return nil
	}

	var applied []hcloud.FirewallRule
	for i, g := range groups {
		if len(g) == 0 {
			continue
		}
		applied = append(slices.Clone(applied), g...)
		if err := r.setRules(ctx, fw, applied); err != nil {
			return fmt.Errorf("failed to apply %s rules to firewall %s: %w", groupNames[i], fw.Name, err)
		}
	}
	if len(applied) == 0 && len(fw.Rules) > 0 {
		if err := r.setRules(ctx, fw, nil); err != nil {
			return fmt.Errorf("failed to clear rules of firewall %s: %w", fw.Name, err)
		}
	}
	fw.Rules = applied
	return nil
}

func (r *Resolver) setRules(ctx context.Context, fw *hcloud.Firewall, rules []hcloud.FirewallRule) error {
	actions, err := r.client.SetFirewallRules(ctx, fw, rules)
	if err != nil {
		return err
	}
	return r.AwaitActions(ctx, actions)
}

// Firewalls resolves every spec concurrently. Skipped firewalls are nil in
// the result.
func (r *Resolver) Firewalls(ctx context.Context, specs []FirewallSpec) ([]*hcloud.Firewall, error) {
	jobs := make([]async.Job[*hcloud.Firewall], len(specs))
	for i, spec := range specs {
		jobs[i] = async.Job[*hcloud.Firewall]{
			Name: "firewall " + spec.Name,
			Func: func(ctx context.Context) (*hcloud.Firewall, error) { return r.Firewall(ctx, spec) },
		}
	}
	return async.Join(ctx, r.rt.MaxConcurrentOps(), jobs)
}

func convertRules(direction hcloud.FirewallRuleDirection, rules []descriptor.Rule, ips []net.IPNet) ([]hcloud.FirewallRule, error) {
	out := make([]hcloud.FirewallRule, 0, len(rules))
	for i, rule := range rules {
		converted, err := convertRule(direction, rule, ips)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		out = append(out, converted)
	}
	return out, nil
}

func convertRule(direction hcloud.FirewallRuleDirection, rule descriptor.Rule, ips []net.IPNet) (hcloud.FirewallRule, error) {
	protocol := hcloud.FirewallRuleProtocol(strings.ToLower(rule.Protocol))
	switch protocol {
	case hcloud.FirewallRuleProtocolTCP, hcloud.FirewallRuleProtocolUDP:
		if rule.Port == "" {
			return hcloud.FirewallRule{}, fmt.Errorf("protocol %s needs a port", protocol)
		}
	case hcloud.FirewallRuleProtocolICMP, hcloud.FirewallRuleProtocolESP, hcloud.FirewallRuleProtocolGRE:
		if rule.Port != "" {
			return hcloud.FirewallRule{}, fmt.Errorf("protocol %s takes no port", protocol)
		}
	default:
		return hcloud.FirewallRule{}, fmt.Errorf("unknown protocol %q", rule.Protocol)
	}

	if ips == nil {
		cidrs := rule.CIDRs
		if len(cidrs) == 0 {
			cidrs = anyIPs
		}
		for _, c := range cidrs {
			ipNet, err := parseCIDR(c)
			if err != nil {
				return hcloud.FirewallRule{}, err
			}
			ips = append(ips, *ipNet)
		}
	}

	out := hcloud.FirewallRule{Direction: direction, Protocol: protocol}
	if rule.Port != "" {
		out.Port = hcloud.Ptr(rule.Port)
	}
	if rule.Description != "" {
		out.Description = hcloud.Ptr(rule.Description)
	}
	if direction == hcloud.FirewallRuleDirectionIn {
		out.SourceIPs = ips
	} else {
		out.DestinationIPs = ips
	}
	return out, nil
}

// rulesMatch compares rule sets ignoring order and descriptions.
func rulesMatch(have, want []hcloud.FirewallRule) bool {
	if len(have) != len(want) {
		return false
	}
	a := ruleKeys(have)
	b := ruleKeys(want)
	return slices.Equal(a, b)
}

func ruleKeys(rules []hcloud.FirewallRule) []string {
	keys := make([]string, len(rules))
	for i, rule := range rules {
		port := ""
		if rule.Port != nil {
			port = *rule.Port
		}
		var ips []string
		for _, ip := range append(slices.Clone(rule.SourceIPs), rule.DestinationIPs...) {
			ips = append(ips, ip.String())
		}
		slices.Sort(ips)
		keys[i] = fmt.Sprintf("%s|%s|%s|%s", rule.Direction, rule.Protocol, port, strings.Join(ips, ","))
	}
	slices.Sort(keys)
	return keys
}
