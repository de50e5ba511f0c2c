package provisioning

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequest_Validate(t *testing.T) {
	t.Parallel()

	valid := Request{Operation: OperationCreate, ResourceRef: "instances/web-1", TaskRef: "tasks/1"}

	tests := []struct {
		name      string
		mutate    func(*Request)
		wantField string
	}{
		{name: "valid", mutate: func(*Request) {}},
		{name: "missing operation", mutate: func(r *Request) { r.Operation = "" }, wantField: "operation"},
		{name: "unknown operation", mutate: func(r *Request) { r.Operation = "RESIZE" }, wantField: "operation"},
		{name: "missing task", mutate: func(r *Request) { r.TaskRef = "" }, wantField: "taskReference"},
		{name: "missing reference", mutate: func(r *Request) { r.ResourceRef = "" }, wantField: "resourceReference"},
		{name: "bad reference", mutate: func(r *Request) { r.ResourceRef = "buckets/x" }, wantField: "resourceReference"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := valid
			tt.mutate(&req)
			err := req.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var ve ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.wantField, ve.Field)
			assert.Contains(t, err.Error(), "invalid request")
		})
	}
}

func TestRequest_Property(t *testing.T) {
	t.Parallel()

	req := Request{CustomProperties: map[string]string{"region": "nbg1", "empty": ""}}
	assert.Equal(t, "nbg1", req.Property("region", "fsn1"))
	assert.Equal(t, "fsn1", req.Property("empty", "fsn1"))
	assert.Equal(t, "x", Request{}.Property("missing", "x"))
}

func TestCleanupError(t *testing.T) {
	t.Parallel()

	var ce CleanupError
	assert.False(t, ce.HasErrors())
	ce.Add(nil)
	assert.False(t, ce.HasErrors())

	first := errors.New("firewall 7 in use")
	ce.Add(first)
	assert.EqualError(t, &ce, "firewall 7 in use")
	assert.ErrorIs(t, &ce, first)

	second := errors.New("firewall 8 locked")
	ce.Add(second)
	assert.Contains(t, ce.Error(), "2 errors")
	assert.ErrorIs(t, &ce, second)
}

func TestPermanent(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Permanent("create server", nil))

	cause := errors.New("invalid input")
	err := Permanent("create server", cause)
	var ppe *PermanentProviderError
	require.ErrorAs(t, err, &ppe)
	assert.ErrorIs(t, err, cause)
	assert.EqualError(t, err, "create server: invalid input")
}
