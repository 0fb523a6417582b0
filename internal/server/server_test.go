package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/EVOLVR/internal/config"
	"github.com/copyleftdev/EVOLVR/internal/logging"
	"github.com/copyleftdev/EVOLVR/internal/tuning"
)

// testConfig returns a minimal valid configuration for testing
func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Tuning.Parallelism = 2
	cfg.Tuning.PointsPerDimension = 5
	cfg.Tuning.GeneticMixing = 0.7
	cfg.Tuning.Seed = 42
	return cfg
}

// testLogger returns a logger that discards output
func testLogger() *logging.Logger {
	return logging.New(logging.ErrorLevel, io.Discard)
}

func testServer(t *testing.T) (*Server, *chi.Mux) {
	t.Helper()
	srv := NewServer(testConfig(), testLogger(), nil)
	t.Cleanup(func() { _ = srv.Close() })

	router := chi.NewRouter()
	srv.RegisterRoutes(router)
	return srv, router
}

func batchSearchSpace() config.SearchSpace {
	ss := config.SearchSpace{
		Family:    "logisticregression",
		Objective: tuning.Minimize,
		Strategy:  "batch",
		Boundaries: tuning.Boundaries{
			Numeric: map[string]tuning.NumericBounds{
				"regParam":        {Low: 0.0001, High: 1.0},
				"elasticNetParam": {Low: 0.0, High: 1.0},
				"maxIter":         {Low: 10, High: 50},
				"tolerance":       {Low: 0.000001, High: 0.01},
			},
		},
	}
	ss.Batch.FirstGenerationGenePool = 5
	ss.Batch.NumberOfGenerations = 2
	ss.Batch.NumberOfParentsToRetain = 2
	ss.Batch.NumberOfMutationsPerGeneration = 3
	return ss
}

func postRun(t *testing.T, router http.Handler, ss config.SearchSpace) string {
	t.Helper()
	body, err := json.Marshal(ss)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", bytes.NewReader(body))
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusAccepted, w.Code, "unexpected response: %s", w.Body.String())

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["run_id"])
	return resp["run_id"]
}

func runStatus(t *testing.T, router http.Handler, id string) map[string]interface{} {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+id, nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestStartRunRejectsInvalidBody(t *testing.T) {
	_, router := testServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader("{not json"))
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStartRunRejectsInvalidDeclaration(t *testing.T) {
	_, router := testServer(t)

	tests := []struct {
		name   string
		mutate func(*config.SearchSpace)
	}{
		{"unknown family", func(ss *config.SearchSpace) { ss.Family = "perceptron9000" }},
		{"missing boundary", func(ss *config.SearchSpace) { delete(ss.Boundaries.Numeric, "maxIter") }},
		{"bad objective", func(ss *config.SearchSpace) { ss.Objective = "fastest" }},
		{"bad strategy", func(ss *config.SearchSpace) { ss.Strategy = "simulated-annealing" }},
		{"unknown trainer", func(ss *config.SearchSpace) { ss.Trainer = "ackley" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ss := batchSearchSpace()
			tt.mutate(&ss)
			body, err := json.Marshal(ss)
			require.NoError(t, err)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", bytes.NewReader(body))
			router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestBatchRunLifecycle(t *testing.T) {
	_, router := testServer(t)
	id := postRun(t, router, batchSearchSpace())

	require.Eventually(t, func() bool {
		return runStatus(t, router, id)["status"] == "completed"
	}, 10*time.Second, 20*time.Millisecond, "batch run should complete")

	status := runStatus(t, router, id)
	assert.Equal(t, "batch", status["strategy"])
	assert.NotEmpty(t, status["end_time"])
	assert.NotNil(t, status["best"])

	// Gene pool of 5 plus one generation of 3 children.
	assert.Equal(t, float64(8), status["evaluated"])

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+id+"/report", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var rep struct {
		Results []json.RawMessage `json:"results"`
		Series  []struct {
			Index     int `json:"index"`
			Evaluated int `json:"evaluated"`
		} `json:"series"`
		Best *json.RawMessage `json:"best"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rep))
	assert.Len(t, rep.Results, 8)
	require.Len(t, rep.Series, 2)
	assert.Equal(t, 5, rep.Series[0].Evaluated)
	assert.Equal(t, 3, rep.Series[1].Evaluated)
	assert.NotNil(t, rep.Best)
}

func TestContinuousRunStop(t *testing.T) {
	_, router := testServer(t)

	ss := batchSearchSpace()
	ss.Strategy = "continuous"
	// Sized so the run is still going when the stop request lands.
	ss.Continuous.MaxIterations = 50_000_000
	ss.Continuous.RollingImprovementCount = 10_000_000
	ss.Continuous.MutationCount = 1

	id := postRun(t, router, ss)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/runs/"+id, nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "cancelled", runStatus(t, router, id)["status"])

	// A second stop request conflicts with the terminal status.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/api/v1/runs/"+id, nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusConflict, w.Code)

	// The drained run eventually records its end time while keeping the
	// cancelled status.
	require.Eventually(t, func() bool {
		return runStatus(t, router, id)["end_time"] != nil
	}, 10*time.Second, 20*time.Millisecond)
	assert.Equal(t, "cancelled", runStatus(t, router, id)["status"])
}

func TestRunNotFound(t *testing.T) {
	_, router := testServer(t)

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(method, "/api/v1/runs/no-such-run", nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	}
}

func TestClose(t *testing.T) {
	srv, router := testServer(t)

	ss := batchSearchSpace()
	ss.Strategy = "continuous"
	ss.Continuous.MaxIterations = 50_000_000
	ss.Continuous.RollingImprovementCount = 10_000_000
	ss.Continuous.MutationCount = 1
	postRun(t, router, ss)

	assert.NoError(t, srv.Close())
}
