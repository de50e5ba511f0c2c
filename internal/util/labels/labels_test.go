package labels

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLabelBuilder(t *testing.T) {
	t.Parallel()

	labels := NewLabelBuilder("web-1").Build()

	assert.Equal(t, map[string]string{
		KeyName:      "web-1",
		KeyManagedBy: ManagedByHcprov,
	}, labels)
}

func TestLabelBuilder_Chain(t *testing.T) {
	t.Parallel()

	labels := NewLabelBuilder("allow-https").
		WithNetwork(4711).
		WithOwner("firewalls/allow-https").
		WithRole(RoleAuxFirewall).
		Merge(map[string]string{"team": "edge"}).
		Build()

	assert.Equal(t, "4711", labels[KeyNetwork])
	assert.Equal(t, "firewalls.allow-https", labels[KeyOwner])
	assert.Equal(t, RoleAuxFirewall, labels[KeyRole])
	assert.Equal(t, "edge", labels["team"])
}

func TestBuild_ReturnsCopy(t *testing.T) {
	t.Parallel()

	lb := NewLabelBuilder("web")
	first := lb.Build()
	first["mutated"] = "yes"

	assert.NotContains(t, lb.Build(), "mutated")
}

func TestSelector(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", Selector(nil))
	assert.Equal(t, "a=1,b=2", Selector(map[string]string{"b": "2", "a": "1"}))
	assert.Equal(t, "hcprov.io/network=12", SelectorForNetwork(12))
}

func TestSanitize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "web-1", want: "web-1"},
		{in: "instances/web 1", want: "instances.web.1"},
		{in: "-edge-", want: "edge"},
		{in: strings.Repeat("a", 80), want: strings.Repeat("a", 63)},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, sanitize(tt.in))
		})
	}
}
