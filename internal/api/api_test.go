package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/chainflow/internal/config"
	"github.com/vk/chainflow/internal/engine"
	"github.com/vk/chainflow/internal/executor"
	"github.com/vk/chainflow/internal/metrics"
	"github.com/vk/chainflow/internal/ports"
	"github.com/vk/chainflow/internal/run"
	"github.com/vk/chainflow/internal/store"
)

type echoExec struct{}

func (echoExec) Spec() executor.Spec {
	return executor.Spec{
		OperationType: "echo",
		Inputs:        []ports.Port{{Name: "in", Type: ports.Text}},
		Outputs:       []ports.Port{{Name: "out", Type: ports.Text}},
	}
}

func (echoExec) Validate(executor.Inputs) executor.ValidationResult { return executor.OK() }

func (echoExec) Execute(context.Context, executor.Inputs, *run.Context) (*executor.Result, error) {
	return &executor.Result{Outputs: map[string]any{"out": "done"}}, nil
}

func newTestServer(t *testing.T) (*Server, *engine.Engine) {
	t.Helper()
	r := executor.NewRegistry()
	r.Register(echoExec{})
	eng := engine.New(engine.Config{Registry: r, Store: store.NewMemoryStore()})

	cfg := config.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(eng, cfg, metrics.New(), logger), eng
}

func request(t *testing.T, srv *Server, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.App().Test(req, fiber.TestConfig{Timeout: 5 * time.Second})
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func graphDoc(nodes int) map[string]any {
	doc := map[string]any{"id": "g", "nodes": []any{}, "edges": []any{}}
	ns := make([]any, 0, nodes)
	for i := 0; i < nodes; i++ {
		ns = append(ns, map[string]any{"id": fmt.Sprintf("n%d", i), "operationType": "echo"})
	}
	doc["nodes"] = ns
	return doc
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := request(t, srv, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decode(t, resp)["status"])
}

func TestOperations(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := request(t, srv, http.MethodGet, "/operations", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, []any{"echo"}, body["operations"])
}

func TestSubmit(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		srv, eng := newTestServer(t)
		resp := request(t, srv, http.MethodPost, "/runs", map[string]any{"graph": graphDoc(1)})
		require.Equal(t, http.StatusAccepted, resp.StatusCode)

		runID, _ := decode(t, resp)["runId"].(string)
		require.NotEmpty(t, runID)
		eng.Wait(runID)

		snap, err := eng.Snapshot(context.Background(), runID)
		require.NoError(t, err)
		assert.Equal(t, run.StatusCompleted, snap.Run.Status)
	})

	t.Run("invalid body", func(t *testing.T) {
		srv, _ := newTestServer(t)
		req := httptest.NewRequest(http.MethodPost, "/runs", bytes.NewBufferString("{not json"))
		req.Header.Set("Content-Type", "application/json")
		resp, err := srv.App().Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown operation type", func(t *testing.T) {
		srv, _ := newTestServer(t)
		doc := map[string]any{"graph": map[string]any{
			"id":    "g",
			"nodes": []any{map[string]any{"id": "a", "operationType": "nope"}},
		}}
		resp := request(t, srv, http.MethodPost, "/runs", doc)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("structural faults reported as batch", func(t *testing.T) {
		srv, _ := newTestServer(t)
		doc := map[string]any{"graph": map[string]any{
			"id": "g",
			"nodes": []any{
				map[string]any{"id": "a", "operationType": "echo"},
				map[string]any{"id": "a", "operationType": "echo"},
			},
			"edges": []any{map[string]any{
				"id": "e1", "sourceNodeId": "a", "sourcePort": "out",
				"targetNodeId": "ghost", "targetPort": "in",
			}},
		}}
		resp := request(t, srv, http.MethodPost, "/runs", doc)
		require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		body := decode(t, resp)
		faults, ok := body["faults"].([]any)
		require.True(t, ok)
		assert.GreaterOrEqual(t, len(faults), 2)
	})

	t.Run("out-of-range options rejected", func(t *testing.T) {
		srv, _ := newTestServer(t)
		doc := map[string]any{
			"graph":   graphDoc(1),
			"options": map[string]any{"maxConcurrency": 1000},
		}
		resp := request(t, srv, http.MethodPost, "/runs", doc)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestQuery(t *testing.T) {
	srv, eng := newTestServer(t)

	resp := request(t, srv, http.MethodPost, "/runs", map[string]any{"graph": graphDoc(2)})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	runID := decode(t, resp)["runId"].(string)
	eng.Wait(runID)

	resp = request(t, srv, http.MethodGet, "/runs/"+runID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	runDoc := body["run"].(map[string]any)
	assert.Equal(t, "completed", runDoc["status"])
	assert.Len(t, body["steps"], 2)

	resp = request(t, srv, http.MethodGet, "/runs/ghost", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCancelInactiveRun(t *testing.T) {
	srv, eng := newTestServer(t)

	resp := request(t, srv, http.MethodPost, "/runs", map[string]any{"graph": graphDoc(1)})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	runID := decode(t, resp)["runId"].(string)
	eng.Wait(runID)

	resp = request(t, srv, http.MethodDelete, "/runs/"+runID, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := request(t, srv, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
