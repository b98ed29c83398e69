package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexstack/agency/core"
	"github.com/cortexstack/agency/engine"
	"github.com/cortexstack/agency/model"
	"github.com/cortexstack/agency/snapshot"
)

func newTestServer(t *testing.T, backend model.Backend) (*Server, *engine.Supervisor) {
	t.Helper()
	store, err := snapshot.NewFileStore(t.TempDir())
	require.NoError(t, err)
	sup := engine.New(backend, store, func(o *engine.Options) {
		o.Agents = []engine.AgentSpec{{Name: "CEO", Instruction: "You run the agency."}}
	})
	return New("127.0.0.1:0", sup), sup
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, model.NewMockBackend("test-model"))

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAgencyLifecycle(t *testing.T) {
	srv, _ := newTestServer(t, model.NewMockBackend("test-model"))
	handler := srv.Handler()

	// Not running yet.
	rec := doJSON(t, handler, http.MethodGet, "/agency/state", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var stateResp agencyStateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stateResp))
	assert.False(t, stateResp.Running)
	assert.Empty(t, stateResp.Agents)

	// Start.
	rec = doJSON(t, handler, http.MethodPost, "/agency/start", map[string]any{})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stateResp))
	assert.True(t, stateResp.Running)
	require.Len(t, stateResp.Agents, 1)
	assert.Equal(t, "0", stateResp.Agents[0].ID)

	// Double start conflicts.
	rec = doJSON(t, handler, http.MethodPost, "/agency/start", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Stop returns the snapshot name.
	rec = doJSON(t, handler, http.MethodPost, "/agency/stop", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stopResp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stopResp))
	assert.NotEmpty(t, stopResp["snapshot"])

	// Double stop conflicts.
	rec = doJSON(t, handler, http.MethodPost, "/agency/stop", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// The snapshot is listed and retrievable.
	rec = doJSON(t, handler, http.MethodGet, "/agency/states", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listResp map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	assert.Equal(t, []string{stopResp["snapshot"]}, listResp["states"])

	rec = doJSON(t, handler, http.MethodGet, "/agency/state/"+stopResp["snapshot"], nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var snap core.AgencyState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Len(t, snap.Agents, 1)
	assert.Equal(t, "CEO", snap.Agents[0].Name)
}

func TestSnapshotNotFound(t *testing.T) {
	srv, _ := newTestServer(t, model.NewMockBackend("test-model"))

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/agency/state/missing.json", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAgentMessage(t *testing.T) {
	backend := model.NewMockBackend("test-model")
	backend.QueueText("report filed")
	srv, _ := newTestServer(t, backend)
	handler := srv.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/agency/start", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/agent/0/message", map[string]string{"message": "file the report"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp messageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "report filed", resp.Reply)
	require.Len(t, resp.Agent.MessageHistory, 2)
	assert.Equal(t, "file the report", resp.Agent.MessageHistory[0].Text())

	// The same history is visible on the state endpoint.
	rec = doJSON(t, handler, http.MethodGet, "/agent/0/state", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var state core.AgentState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Len(t, state.MessageHistory, 2)
}

func TestAgentMessageValidation(t *testing.T) {
	srv, _ := newTestServer(t, model.NewMockBackend("test-model"))
	handler := srv.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/agency/start", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/agent/0/message", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/agent/99/message", map[string]string{"message": "hi"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAgentMessageWhenStopped(t *testing.T) {
	srv, _ := newTestServer(t, model.NewMockBackend("test-model"))

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/agent/0/message", map[string]string{"message": "hi"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAgentCreate(t *testing.T) {
	srv, _ := newTestServer(t, model.NewMockBackend("test-model"))
	handler := srv.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/agency/start", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/agent/create", map[string]string{
		"name":        "Analyst",
		"instruction": "You analyze.",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var state core.AgentState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, "1", state.ID)
	assert.Equal(t, "Analyst", state.Name)

	rec = doJSON(t, handler, http.MethodPost, "/agent/create", map[string]string{"instruction": "no name"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartFromSnapshot(t *testing.T) {
	backend := model.NewMockBackend("test-model")
	backend.QueueText("noted")
	srv, _ := newTestServer(t, backend)
	handler := srv.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/agency/start", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, handler, http.MethodPost, "/agent/0/message", map[string]string{"message": "remember this"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, handler, http.MethodPost, "/agency/stop", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stopResp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stopResp))

	rec = doJSON(t, handler, http.MethodPost, "/agency/start", map[string]string{"snapshot": stopResp["snapshot"]})
	require.Equal(t, http.StatusOK, rec.Code)
	var stateResp agencyStateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stateResp))
	require.Len(t, stateResp.Agents, 1)
	assert.Len(t, stateResp.Agents[0].MessageHistory, 2)
}
