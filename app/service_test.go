package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/crewsched/config"
	"github.com/kilianp07/crewsched/core/factory"
	"github.com/kilianp07/crewsched/core/metrics"
	"github.com/kilianp07/crewsched/core/model"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	jobs := filepath.Join(dir, "jobs.yaml")
	require.NoError(t, os.WriteFile(jobs, []byte("jobs:\n  - {id: north, address: 1 North St}\n  - {id: south, address: 2 South St}\n"), 0o600))
	cfg := &config.Config{
		Workday: config.WorkdayConfig{HQAddress: "9 Depot Rd"},
		Travel: config.TravelConfig{Provider: factory.ModuleConfig{Type: "static", Conf: map[string]any{
			"symmetric":       true,
			"default_minutes": 20,
			"routes": []any{
				map[string]any{"from": "1 North St", "to": "2 South St", "minutes": 30},
			},
		}}},
		Store:   config.StoreConfig{Backend: "sqlite", Path: filepath.Join(dir, "crew.db"), JobsFile: jobs},
		Metrics: metrics.Config{Sinks: []factory.ModuleConfig{{Type: "nop"}}},
		API:     config.APIConfig{Address: "127.0.0.1:0"},
	}
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

func serve(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestServiceCommitsThroughAPI(t *testing.T) {
	svc, err := New(testConfig(t))
	require.NoError(t, err)
	defer func() { require.NoError(t, svc.Close()) }()

	day := string(svc.Today())
	rr := serve(t, svc.Handler(), http.MethodPost, "/assignments",
		`{"job_id":"north","crew_id":"c1","day":"`+day+`","start":60,"end":120}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = serve(t, svc.Handler(), http.MethodPost, "/assignments",
		`{"job_id":"south","crew_id":"c1","day":"`+day+`","start":120,"end":180}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code, "no time to drive from north to south")

	rr = serve(t, svc.Handler(), http.MethodPost, "/assignments",
		`{"job_id":"south","crew_id":"c1","day":"`+day+`","start":150,"end":210}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var out struct {
		Assignment model.Assignment `json:"assignment"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	assert.Equal(t, 150, out.Assignment.StartMinutes)
	assert.Equal(t, "c1", out.Assignment.CrewID)

	rr = serve(t, svc.Handler(), http.MethodPost, "/reconcile", `{"day":"`+day+`"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var rec struct {
		Assignments []model.Assignment `json:"assignments"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rec))
	assert.Len(t, rec.Assignments, 2, "both commits persisted")
}

func TestRunStopsOnCancel(t *testing.T) {
	svc, err := New(testConfig(t))
	require.NoError(t, err)
	defer svc.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.Travel.Provider.Type = "teleport"
	_, err := New(cfg)
	assert.ErrorContains(t, err, "travel provider")
}
