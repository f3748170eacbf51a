package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/copyleftdev/KILN/internal/config"
	"github.com/copyleftdev/KILN/internal/reconstruction"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	cfg := &config.Config{}
	cfg.Reconstruction.DefaultSteps = 200
	cfg.Reconstruction.DefaultT0 = 1e-4
	cfg.Reconstruction.CorrelationLength = 4
	cfg.Reconstruction.HistoryEvery = 50
	cfg.Reconstruction.MaxRuns = 2

	srv := NewServer(cfg, zap.NewNop(), prometheus.NewRegistry())
	r := chi.NewRouter()
	srv.RegisterRoutes(r)

	ts := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})
	return srv, ts
}

func stripeTarget(shape []int, band int) []int {
	data := make([]int, reconstruction.NumSites(shape))
	for idx := range data {
		coords := reconstruction.UnravelIndex(idx, shape)
		if (coords[1]/band)%2 == 0 {
			data[idx] = 1
		}
	}
	return data
}

func startRun(t *testing.T, ts *httptest.Server, body map[string]interface{}) (string, *http.Response) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(ts.URL+"/api/v1/reconstructions", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return decoded["reconstruction_id"], resp
}

func TestStartAndPollReconstruction(t *testing.T) {
	_, ts := newTestServer(t)

	shape := []int{12, 12}
	id, resp := startRun(t, ts, map[string]interface{}{
		"target":   stripeTarget(shape, 3),
		"shape":    shape,
		"periodic": true,
		"steps":    100,
		"seed":     7,
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.NotEmpty(t, id)

	deadline := time.Now().Add(30 * time.Second)
	var status map[string]interface{}
	for {
		require.True(t, time.Now().Before(deadline), "run did not finish in time")

		res, err := http.Get(ts.URL + "/api/v1/reconstructions/" + id)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, res.StatusCode)
		require.NoError(t, json.NewDecoder(res.Body).Decode(&status))
		res.Body.Close()

		if status["status"] == "completed" {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	assert.Equal(t, float64(100), status["steps"])
	assert.Contains(t, status, "initial_cost")
	assert.Contains(t, status, "final_cost")
}

func TestStartRejectsBadRequests(t *testing.T) {
	_, ts := newTestServer(t)

	for name, body := range map[string]map[string]interface{}{
		"bad shape": {
			"target": []int{0, 1},
			"shape":  []int{2},
		},
		"bad modifier": {
			"target":   stripeTarget([]int{8, 8}, 2),
			"shape":    []int{8, 8},
			"modifier": "teleport",
		},
		"bad cost": {
			"target": stripeTarget([]int{8, 8}, 2),
			"shape":  []int{8, 8},
			"cost":   "manhattan",
		},
	} {
		t.Run(name, func(t *testing.T) {
			_, resp := startRun(t, ts, body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestStatusUnknownRunIs404(t *testing.T) {
	_, ts := newTestServer(t)

	res, err := http.Get(ts.URL + "/api/v1/reconstructions/nope")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestCancelReconstruction(t *testing.T) {
	_, ts := newTestServer(t)

	shape := []int{16, 16}
	id, resp := startRun(t, ts, map[string]interface{}{
		"target":   stripeTarget(shape, 4),
		"shape":    shape,
		"periodic": true,
		"steps":    5000000,
		"seed":     9,
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/reconstructions/"+id, nil)
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	deadline := time.Now().Add(10 * time.Second)
	for {
		require.True(t, time.Now().Before(deadline), "cancellation did not land in time")

		statusRes, err := http.Get(ts.URL + "/api/v1/reconstructions/" + id)
		require.NoError(t, err)
		var status map[string]interface{}
		require.NoError(t, json.NewDecoder(statusRes.Body).Decode(&status))
		statusRes.Body.Close()

		if status["status"] == "cancelled" {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
}
