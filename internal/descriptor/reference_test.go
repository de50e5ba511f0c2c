package descriptor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReference_Parts(t *testing.T) {
	t.Parallel()

	ref := NewReference(KindSubnet, "web-a")

	assert.Equal(t, Reference("subnets/web-a"), ref)
	assert.Equal(t, KindSubnet, ref.Kind())
	assert.Equal(t, "web-a", ref.Name())
	assert.Equal(t, "subnets/web-a", ref.String())
}

func TestReference_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		ref     Reference
		wantErr string
	}{
		{name: "valid instance", ref: "instances/web-1"},
		{name: "valid load balancer", ref: "load-balancers/edge"},
		{name: "empty", ref: "", wantErr: "empty"},
		{name: "missing name", ref: "instances/", wantErr: "<kind>/<name>"},
		{name: "missing separator", ref: "instances", wantErr: "<kind>/<name>"},
		{name: "unknown kind", ref: "buckets/logs", wantErr: "unknown kind"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.ref.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
