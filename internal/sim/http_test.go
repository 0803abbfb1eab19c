package sim

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRouterEndpoints(t *testing.T) {
	w := NewWorld(Workload{Slots: 3})
	ts := httptest.NewServer(Router(w))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", string(body))

	resp, err = http.Get(ts.URL + "/v1/accounts")
	require.NoError(t, err)
	var accounts []account
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&accounts))
	resp.Body.Close()
	require.Len(t, accounts, 3)
	for i, a := range accounts {
		require.Equal(t, i, a.ID)
		require.True(t, a.valid())
	}

	resp, err = http.Get(ts.URL + "/v1/stats")
	require.NoError(t, err)
	var stats struct {
		Accounts int `json:"accounts"`
		Slots    struct {
			Stores uint64 `json:"Stores"`
		} `json:"slots"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	resp.Body.Close()
	require.Equal(t, 3, stats.Accounts)
	require.Equal(t, uint64(3), stats.Slots.Stores) // one initial store per account

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Contains(t, string(body), "slotsim_torn_reads_total")
}

func TestRouterTuningLifecycle(t *testing.T) {
	w := NewWorld(Workload{Slots: 1})
	ts := httptest.NewServer(Router(w))
	defer ts.Close()

	// nothing published yet
	resp, err := http.Get(ts.URL + "/v1/tuning")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// publish
	req, err := http.NewRequest(http.MethodPut, ts.URL+"/v1/tuning",
		strings.NewReader(`{"load_share": 25, "write_burst": 2, "max_amount": 100}`))
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	var put map[string]uint64
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&put))
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, uint64(1), put["generation"])

	// read back
	resp, err = http.Get(ts.URL + "/v1/tuning")
	require.NoError(t, err)
	var tun tuning
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tun))
	resp.Body.Close()
	require.Equal(t, uint32(25), tun.LoadShare)
	require.Equal(t, uint64(1), tun.Generation)

	// reject junk
	req, err = http.NewRequest(http.MethodPut, ts.URL+"/v1/tuning",
		strings.NewReader(`{"load_share": 200}`))
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// drop
	req, err = http.NewRequest(http.MethodDelete, ts.URL+"/v1/tuning", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/v1/tuning")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}
