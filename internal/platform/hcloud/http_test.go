package hcloud

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
	"github.com/hetznercloud/hcloud-go/v2/hcloud/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testServer mocks Hetzner Cloud API responses.
type testServer struct {
	server *httptest.Server
	mux    *http.ServeMux
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return &testServer{server: server, mux: mux}
}

func (ts *testServer) realClient() *RealClient {
	return NewRealClient("test-token",
		WithRegion("fsn1"),
		WithHCloudClient(hcloud.NewClient(
			hcloud.WithToken("test-token"),
			hcloud.WithEndpoint(ts.server.URL),
		)),
	)
}

func (ts *testServer) handleFunc(pattern string, handler http.HandlerFunc) {
	ts.mux.HandleFunc(pattern, handler)
}

// jsonResponse writes a JSON response with the given status code and body.
func jsonResponse(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

func notFoundResponse(w http.ResponseWriter) {
	jsonResponse(w, http.StatusNotFound, schema.ErrorResponse{
		Error: schema.Error{Code: string(hcloud.ErrorCodeNotFound), Message: "not found"},
	})
}

func TestRealClient_DescribeNetworks(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	var gotName string
	ts.handleFunc("/networks", func(w http.ResponseWriter, r *http.Request) {
		gotName = r.URL.Query().Get("name")
		jsonResponse(w, http.StatusOK, schema.NetworkListResponse{
			Networks: []schema.Network{{
				ID:      10,
				Name:    "web",
				IPRange: "10.0.0.0/16",
				Subnets: []schema.NetworkSubnet{{Type: "cloud", IPRange: "10.0.1.0/24", NetworkZone: "eu-central"}},
			}},
		})
	})

	networks, err := ts.realClient().DescribeNetworks(context.Background(), Filter{Name: "web"})
	require.NoError(t, err)
	require.Len(t, networks, 1)
	assert.Equal(t, "web", gotName)
	assert.Equal(t, int64(10), networks[0].ID)
	assert.Equal(t, "10.0.1.0/24", networks[0].Subnets[0].IPRange.String())
}

func TestRealClient_GetNetwork_Absent(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	ts.handleFunc("/networks/999", func(w http.ResponseWriter, _ *http.Request) {
		notFoundResponse(w)
	})

	_, err := ts.realClient().GetNetwork(context.Background(), 999)
	require.Error(t, err)
	assert.True(t, IsNotYetVisible(err))
}

func TestRealClient_GetServer_AbsentIsNotFound(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	ts.handleFunc("/servers/7", func(w http.ResponseWriter, _ *http.Request) {
		notFoundResponse(w)
	})

	server, err := ts.realClient().GetServer(context.Background(), 7)
	assert.Nil(t, server)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "server 7 not found")
}

func TestRealClient_DeleteServer_AlreadyGone(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	ts.handleFunc("/servers/7", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		notFoundResponse(w)
	})

	action, err := ts.realClient().DeleteServer(context.Background(), 7)
	require.NoError(t, err)
	assert.Nil(t, action)
}

func TestRealClient_GetAction_Failed(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	ts.handleFunc("/actions/5", func(w http.ResponseWriter, _ *http.Request) {
		jsonResponse(w, http.StatusOK, schema.ActionGetResponse{
			Action: schema.Action{
				ID:      5,
				Status:  "error",
				Command: "create_server",
				Error:   &schema.ActionError{Code: "server_error", Message: "placement failed"},
			},
		})
	})

	action, err := ts.realClient().GetAction(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, hcloud.ActionStatusError, action.Status)
	assert.Equal(t, "placement failed", action.ErrorMessage)
}

func TestRealClient_DeleteFirewall_Absent(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	ts.handleFunc("/firewalls/3", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method, "an absent firewall is never deleted")
		notFoundResponse(w)
	})

	require.NoError(t, ts.realClient().DeleteFirewall(context.Background(), 3))
}

func TestRealClient_ListLocations(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	ts.handleFunc("/locations", func(w http.ResponseWriter, _ *http.Request) {
		jsonResponse(w, http.StatusOK, schema.LocationListResponse{
			Locations: []schema.Location{
				{ID: 1, Name: "fsn1", NetworkZone: "eu-central"},
				{ID: 2, Name: "ash", NetworkZone: "us-east"},
			},
		})
	})
	ts.handleFunc("/locations/", func(w http.ResponseWriter, r *http.Request) {
		id := 1
		if r.URL.Path == "/locations/2" {
			id = 2
		}
		jsonResponse(w, http.StatusOK, schema.LocationGetResponse{Location: schema.Location{ID: int64(id)}})
	})

	locations, err := ValidateCredentials(context.Background(), ts.realClient())
	require.NoError(t, err)
	assert.Len(t, locations, 2)
}
