package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tellergate/tellergate/internal/bank"
	"github.com/tellergate/tellergate/internal/bridge"
	"github.com/tellergate/tellergate/internal/orchestrator"
	"github.com/tellergate/tellergate/internal/session"
	"github.com/tellergate/tellergate/internal/tools"
)

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	store, err := session.NewStore(t.TempDir())
	require.NoError(t, err)

	reg, err := tools.NewRegistry(tools.Catalog())
	require.NoError(t, err)

	ex := tools.NewExecutor(reg, bank.NewMemoryService(), tools.ExecutorOptions{
		RetryBackoff: time.Millisecond,
	})
	orch := orchestrator.New(bridge.New(store, bank.TokenFor), ex, nil, orchestrator.Options{})
	return New(ex, orch, opts...)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

// ─── Catalog endpoints ─────────────────────────────────────────────────────

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(13), body["tools"])
}

func TestListTools_All(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/tools", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Len(t, body["tools"], 13)
}

func TestListTools_ByCategory(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/tools?category=cards", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Len(t, body["tools"], 3)
}

func TestListCategories(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/categories", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Len(t, body["categories"], 6)
}

// ─── Execute endpoints ─────────────────────────────────────────────────────

func TestExecute_Success(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/execute", map[string]any{
		"tool":       "banking_find_atm",
		"parameters": map[string]any{"location": "10001"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
}

func TestExecute_ValidationFailureInsideEnvelope(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/execute", map[string]any{
		"tool":       "banking_transfer_funds",
		"parameters": map[string]any{},
	})
	// Transport-level 200: the failure is part of the result envelope.
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["success"])
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "VALIDATION_ERROR", errObj["code"])
	assert.Len(t, errObj["fields"], 3)
}

func TestExecute_BadJSON(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/execute", bytes.NewBufferString("{nope"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExecuteBatch_OrderPreserved(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/executeBatch", map[string]any{
		"requests": []map[string]any{
			{"tool": "banking_find_atm", "parameters": map[string]any{"location": "10001"}},
			{"tool": "banking_no_such"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	results := body["results"].([]any)
	require.Len(t, results, 2)
	assert.Equal(t, true, results[0].(map[string]any)["success"])
	assert.Equal(t, false, results[1].(map[string]any)["success"])
}

// ─── Session endpoints ─────────────────────────────────────────────────────

func TestSessionLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/sessions", map[string]any{"userId": "u1"})
	require.Equal(t, http.StatusOK, rec.Code)
	sessionID := decode(t, rec)["sessionId"].(string)
	require.NotEmpty(t, sessionID)

	// Creating again resumes the same session.
	rec = doJSON(t, h, http.MethodPost, "/api/sessions", map[string]any{"userId": "u1"})
	assert.Equal(t, sessionID, decode(t, rec)["sessionId"])

	rec = doJSON(t, h, http.MethodPost, "/api/sessions/"+sessionID+"/messages", map[string]any{
		"userId": "u1", "message": "What's my balance?",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, sessionID, body["sessionId"])
	result := body["result"].(map[string]any)
	assert.Equal(t, true, result["success"])

	rec = doJSON(t, h, http.MethodGet, "/api/sessions/"+sessionID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ACTIVE", decode(t, rec)["status"])

	rec = doJSON(t, h, http.MethodGet, "/api/users/u1/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["sessions"], 1)

	rec = doJSON(t, h, http.MethodDelete, "/api/sessions/"+sessionID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/sessions/"+sessionID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "CLOSED", decode(t, rec)["status"])
}

func TestCreateSession_MissingUserID(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/sessions", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSession_NotFound(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/sessions/nope", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	errObj := decode(t, rec)["error"].(map[string]any)
	assert.Equal(t, "SESSION_NOT_FOUND", errObj["code"])
}

func TestFeedback_CompletesPausedExecution(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/sessions", map[string]any{"userId": "u1"})
	sessionID := decode(t, rec)["sessionId"].(string)

	rec = doJSON(t, h, http.MethodPost, "/api/sessions/"+sessionID+"/messages", map[string]any{
		"userId": "u1", "message": "I want to transfer money",
	})
	body := decode(t, rec)
	require.Equal(t, true, body["requiresHumanInput"])
	execID := body["executionId"].(string)

	rec = doJSON(t, h, http.MethodPost,
		"/api/sessions/"+sessionID+"/executions/"+execID+"/feedback", map[string]any{
			"value": map[string]any{"amount": 25, "toAccount": "savings"},
		})
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	result := body["result"].(map[string]any)
	assert.Equal(t, true, result["success"])
}

func TestFeedback_UnknownExecution404(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/sessions", map[string]any{"userId": "u1"})
	sessionID := decode(t, rec)["sessionId"].(string)

	rec = doJSON(t, h, http.MethodPost,
		"/api/sessions/"+sessionID+"/executions/nope/feedback", map[string]any{"value": "x"})
	require.Equal(t, http.StatusNotFound, rec.Code)
	errObj := decode(t, rec)["error"].(map[string]any)
	assert.Equal(t, "EXECUTION_NOT_FOUND", errObj["code"])
}
