package descriptor

// Persisted document keys written back by workflows.
const (
	FieldRemoteID   = "remoteId"
	FieldStatus     = "status"
	FieldPublicIPv4 = "publicIPv4"
	FieldPrivateIPs = "privateIPs"
	FieldImage      = "image"
	FieldFirewalls  = "firewalls"
	FieldMockID     = "mockId"
)

// Network declares a private network (the VPC of a workload).
type Network struct {
	Ref      Reference         `yaml:"ref"`
	Name     string            `yaml:"name"`
	IPRange  string            `yaml:"ipRange"`
	Labels   map[string]string `yaml:"labels,omitempty"`
	RemoteID int64             `yaml:"remoteId,omitempty"`
}

// Subnet declares an IP range inside a network.
type Subnet struct {
	Ref         Reference `yaml:"ref"`
	Network     Reference `yaml:"network"`
	IPRange     string    `yaml:"ipRange"`
	NetworkZone string    `yaml:"networkZone"`
	// Type is the hcloud subnet type; empty means "cloud".
	Type     string `yaml:"type,omitempty"`
	RemoteID string `yaml:"remoteId,omitempty"`
}

// Rule is a single firewall rule. Port is a single port or a "from-to" range.
type Rule struct {
	Protocol    string   `yaml:"protocol"`
	Port        string   `yaml:"port,omitempty"`
	CIDRs       []string `yaml:"cidrs,omitempty"`
	Description string   `yaml:"description,omitempty"`
}

// Firewall declares a security group scoped to a network.
//
// Inner rules admit traffic from the firewall's own network; their CIDRs are
// replaced by the network range when applied.
type Firewall struct {
	Ref      Reference         `yaml:"ref"`
	Name     string            `yaml:"name"`
	Network  Reference         `yaml:"network"`
	Ingress  []Rule            `yaml:"ingress,omitempty"`
	Egress   []Rule            `yaml:"egress,omitempty"`
	Inner    []Rule            `yaml:"inner,omitempty"`
	Labels   map[string]string `yaml:"labels,omitempty"`
	RemoteID int64             `yaml:"remoteId,omitempty"`
}

// Disk declares a boot disk (an image) or a data volume.
type Disk struct {
	Ref    Reference `yaml:"ref"`
	Name   string    `yaml:"name"`
	Boot   bool      `yaml:"boot,omitempty"`
	Image  string    `yaml:"image,omitempty"`
	SizeGB int       `yaml:"sizeGB,omitempty"`
	Format string    `yaml:"format,omitempty"`
	// Status mirrors the remote volume status once resolved.
	Status   string `yaml:"status,omitempty"`
	RemoteID int64  `yaml:"remoteId,omitempty"`
}

// NIC declares a network attachment of an instance.
type NIC struct {
	Ref            Reference   `yaml:"ref"`
	Name           string      `yaml:"name"`
	DeviceIndex    int         `yaml:"deviceIndex"`
	Subnet         Reference   `yaml:"subnet"`
	Firewalls      []Reference `yaml:"firewalls,omitempty"`
	AssignPublicIP bool        `yaml:"assignPublicIP,omitempty"`
}

// Instance declares a server together with its disks and NICs.
type Instance struct {
	Ref        Reference         `yaml:"ref"`
	Name       string            `yaml:"name"`
	ServerType string            `yaml:"serverType"`
	Location   string            `yaml:"location"`
	Credential string            `yaml:"credential"`
	Disks      []Reference       `yaml:"disks,omitempty"`
	NICs       []Reference       `yaml:"nics,omitempty"`
	UserData   string            `yaml:"userData,omitempty"`
	Labels     map[string]string `yaml:"labels,omitempty"`
	Image      string            `yaml:"image,omitempty"`
	Status     string            `yaml:"status,omitempty"`
	PublicIPv4 string            `yaml:"publicIPv4,omitempty"`
	PrivateIPs []string          `yaml:"privateIPs,omitempty"`
	MockID     string            `yaml:"mockId,omitempty"`
	RemoteID   int64             `yaml:"remoteId,omitempty"`
}

// Service is a load balancer listener.
type Service struct {
	Protocol        string `yaml:"protocol"`
	ListenPort      int    `yaml:"listenPort"`
	DestinationPort int    `yaml:"destinationPort"`
}

// LoadBalancer declares a load balancer and the auxiliary firewalls it owns.
//
// Firewalls is written by the create workflow and consumed by teardown.
type LoadBalancer struct {
	Ref            Reference         `yaml:"ref"`
	Name           string            `yaml:"name"`
	Type           string            `yaml:"type"`
	Location       string            `yaml:"location"`
	Credential     string            `yaml:"credential"`
	Network        Reference         `yaml:"network,omitempty"`
	Algorithm      string            `yaml:"algorithm,omitempty"`
	Services       []Service         `yaml:"services,omitempty"`
	TargetSelector string            `yaml:"targetSelector,omitempty"`
	Labels         map[string]string `yaml:"labels,omitempty"`
	Firewalls      []int64           `yaml:"firewalls,omitempty"`
	MockID         string            `yaml:"mockId,omitempty"`
	RemoteID       int64             `yaml:"remoteId,omitempty"`
}
