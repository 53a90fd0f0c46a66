package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taleweave/taleweave/internal/config"
)

type mockLLM struct {
	responses []string
	err       error
}

func (m *mockLLM) Generate(context.Context, string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if len(m.responses) == 0 {
		return "", errors.New("mock llm: no responses queued")
	}
	next := m.responses[0]
	m.responses = m.responses[1:]
	return next, nil
}

func newTestServer(t *testing.T, mock *mockLLM) (*Server, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	srv := New(config.Default(), mock)
	return srv, srv.SetupRouter()
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var parsed map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &parsed))
	}
	return w, parsed
}

func createSession(t *testing.T, router *gin.Engine) string {
	t.Helper()
	w, resp := doJSON(t, router, http.MethodPost, "/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	id, _ := resp["session_id"].(string)
	require.NotEmpty(t, id)
	return id
}

func TestUnknownSession(t *testing.T) {
	_, router := newTestServer(t, &mockLLM{})
	w, resp := doJSON(t, router, http.MethodGet, "/sessions/nope/status", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "unknown session", resp["error"])
}

func TestRecordAndStatus(t *testing.T) {
	_, router := newTestServer(t, &mockLLM{})
	id := createSession(t, router)

	w, resp := doJSON(t, router, http.MethodPost, "/sessions/"+id+"/entities",
		gin.H{"kind": "npc", "name": "Baron Aldric", "description": "lord of Riverside"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, resp["entity_id"])

	w, resp = doJSON(t, router, http.MethodPost, "/sessions/"+id+"/facts",
		gin.H{"subject": "Baron Aldric", "content": "was cheated at cards", "category": "event", "source": "dm_narration"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, resp["fact_id"])

	w, resp = doJSON(t, router, http.MethodPost, "/sessions/"+id+"/relationships",
		gin.H{"from": "Baron Aldric", "to": "Riverside Guards", "kind": "leads"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), resp["strength"])

	w, resp = doJSON(t, router, http.MethodPost, "/sessions/"+id+"/consequences",
		gin.H{"trigger": "Player enters Riverside", "effect": "Guards attempt arrest", "severity": "major", "subject": "Baron Aldric"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, resp["consequence_id"])

	w, resp = doJSON(t, router, http.MethodGet, "/sessions/"+id+"/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), resp["current_turn"])
	assert.Equal(t, float64(2), resp["entities"])
	assert.Equal(t, float64(1), resp["facts"])
	assert.Equal(t, float64(1), resp["relationships"])
	assert.Equal(t, float64(1), resp["pending_consequences"])
}

func TestRecordEntityNormalizesKind(t *testing.T) {
	_, router := newTestServer(t, &mockLLM{})
	id := createSession(t, router)

	// Unrecognized kinds bucket to npc, same as the extraction path.
	w, _ := doJSON(t, router, http.MethodPost, "/sessions/"+id+"/entities",
		gin.H{"kind": "villager", "name": "Old Tom"})
	require.Equal(t, http.StatusOK, w.Code)

	w, resp := doJSON(t, router, http.MethodGet, "/sessions/"+id+"/snapshot", nil)
	require.Equal(t, http.StatusOK, w.Code)
	entities := resp["entities"].([]any)
	require.Len(t, entities, 1)
	assert.Equal(t, "npc", entities[0].(map[string]any)["kind"])
}

func TestRecordValidation(t *testing.T) {
	_, router := newTestServer(t, &mockLLM{})
	id := createSession(t, router)

	w, _ := doJSON(t, router, http.MethodPost, "/sessions/"+id+"/entities", gin.H{"kind": "npc"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = doJSON(t, router, http.MethodPost, "/sessions/"+id+"/facts", gin.H{"subject": "Baron"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = doJSON(t, router, http.MethodPost, "/sessions/"+id+"/consequences", gin.H{"trigger": "something"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProcessTurnTriggersConsequence(t *testing.T) {
	mock := &mockLLM{}
	_, router := newTestServer(t, mock)
	id := createSession(t, router)

	_, resp := doJSON(t, router, http.MethodPost, "/sessions/"+id+"/consequences",
		gin.H{"trigger": "Player enters Riverside", "effect": "Guards attempt arrest", "severity": "major"})
	consID := resp["consequence_id"].(string)

	mock.responses = append(mock.responses, fmt.Sprintf(
		`{"triggered_consequences": ["%s"], "relevant_entities": [], "explanation": "entering the village matches"}`, consID))

	w, resp := doJSON(t, router, http.MethodPost, "/sessions/"+id+"/turn",
		gin.H{"player_input": "I enter the village", "location": "Outskirts"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), resp["current_turn"])
	assert.Equal(t, "entering the village matches", resp["explanation"])

	triggered := resp["triggered"].([]any)
	require.Len(t, triggered, 1)
	first := triggered[0].(map[string]any)
	assert.Equal(t, consID, first["id"])
	assert.Equal(t, "Guards attempt arrest", first["description"])
	assert.Equal(t, "major", first["severity"])

	// Triggered is terminal; the next turn has nothing pending and the
	// classifier is not consulted.
	w, resp = doJSON(t, router, http.MethodPost, "/sessions/"+id+"/turn",
		gin.H{"player_input": "I enter the village again", "location": "Riverside"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, resp["triggered"])
	assert.Empty(t, mock.responses)
}

func TestProcessTurnDegradesOnClassifierFailure(t *testing.T) {
	mock := &mockLLM{err: errors.New("connection refused")}
	_, router := newTestServer(t, mock)
	id := createSession(t, router)

	doJSON(t, router, http.MethodPost, "/sessions/"+id+"/consequences",
		gin.H{"trigger": "Player enters Riverside", "effect": "Guards attempt arrest", "severity": "major"})

	w, resp := doJSON(t, router, http.MethodPost, "/sessions/"+id+"/turn",
		gin.H{"player_input": "I enter the village", "location": ""})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, resp["triggered"])
	assert.Equal(t, float64(1), resp["current_turn"])
}

func TestProcessTurnExtractsNarration(t *testing.T) {
	mock := &mockLLM{responses: []string{
		// Extraction reply for the narration.
		`{"entities": [{"name": "Baron Aldric", "kind": "npc", "description": "furious"}], "facts": [], "relationships": [], "consequences": [{"trigger": "Player enters Riverside", "effect": "Guards attempt arrest", "severity": "major", "subject": "Baron Aldric", "expires_in_turns": 0}]}`,
		// Relevance reply for the player input.
		`{"triggered_consequences": [], "relevant_entities": ["Baron Aldric"], "explanation": ""}`,
	}}
	_, router := newTestServer(t, mock)
	id := createSession(t, router)

	w, resp := doJSON(t, router, http.MethodPost, "/sessions/"+id+"/turn", gin.H{
		"player_input": "I ask about the baron",
		"location":     "tavern",
		"narration":    "The baron storms off, swearing the guards will hear of this.",
	})
	require.Equal(t, http.StatusOK, w.Code)

	entities := resp["relevant_entities"].([]any)
	require.Len(t, entities, 1)
	assert.Equal(t, "Baron Aldric", entities[0].(map[string]any)["name"])

	_, status := doJSON(t, router, http.MethodGet, "/sessions/"+id+"/status", nil)
	assert.Equal(t, float64(1), status["entities"])
	assert.Equal(t, float64(1), status["pending_consequences"])
}

func TestProcessTurnRejectsMalformedBody(t *testing.T) {
	_, router := newTestServer(t, &mockLLM{})
	id := createSession(t, router)

	req := httptest.NewRequest(http.MethodPost, "/sessions/"+id+"/turn", bytes.NewBufferString("{not json"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSnapshot(t *testing.T) {
	_, router := newTestServer(t, &mockLLM{})
	id := createSession(t, router)
	doJSON(t, router, http.MethodPost, "/sessions/"+id+"/entities", gin.H{"kind": "npc", "name": "Baron Aldric"})

	w, resp := doJSON(t, router, http.MethodGet, "/sessions/"+id+"/snapshot", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), resp["current_turn"])
	entities := resp["entities"].([]any)
	require.Len(t, entities, 1)
}

func TestExportWithoutGraphConfigured(t *testing.T) {
	_, router := newTestServer(t, &mockLLM{})
	id := createSession(t, router)

	w, resp := doJSON(t, router, http.MethodPost, "/sessions/"+id+"/export", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "no graph database configured", resp["error"])
}
