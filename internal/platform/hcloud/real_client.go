package hcloud

import (
	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// RealClient implements Cloud using the Hetzner Cloud API.
type RealClient struct {
	client *hcloud.Client
	region string
}

var _ Cloud = (*RealClient)(nil)

// ClientOption configures a RealClient.
type ClientOption func(*RealClient)

// WithHCloudClient sets a custom hcloud client (useful for testing).
func WithHCloudClient(hc *hcloud.Client) ClientOption {
	return func(c *RealClient) {
		c.client = hc
	}
}

// WithRegion sets the location used when a call needs one and none is given.
func WithRegion(region string) ClientOption {
	return func(c *RealClient) {
		c.region = region
	}
}

// NewRealClient creates a new RealClient with optional configuration.
func NewRealClient(token string, opts ...ClientOption) *RealClient {
	c := &RealClient{
		client: hcloud.NewClient(
			hcloud.WithToken(token),
			hcloud.WithApplication("hcprov", ""),
		),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HCloudClient returns the underlying hcloud.Client.
func (c *RealClient) HCloudClient() *hcloud.Client {
	return c.client
}

// Region returns the default location of the client.
func (c *RealClient) Region() string {
	return c.region
}
