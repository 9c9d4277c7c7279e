package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lamb-project/lamb-core/pkg/assistant"
	"github.com/lamb-project/lamb-core/pkg/auth"
	"github.com/lamb-project/lamb-core/pkg/persistence"
	"github.com/lamb-project/lamb-core/pkg/plugins"
	"github.com/lamb-project/lamb-core/pkg/store"
)

func newTestServer(t *testing.T, regs *plugins.Registries, assistants AssistantStore) (*Server, *auth.Builder, *auth.NativeVerifier) {
	t.Helper()
	native := auth.NewNativeVerifier([]byte("completions-test-secret"))
	users := &fakeUsers{byEmail: map[string]*auth.CreatorUser{
		"alice@example.com": {Email: "alice@example.com", Role: "member", Enabled: true},
	}}
	builder := auth.NewBuilder(auth.NewVerifierChain(native), users, fakeOrgs{}, fakeAssistants{owners: map[int64]string{7: "alice@example.com"}}, fakeKB{}, nil)

	p := &Pipeline{Assistants: assistants, Registries: regs, Persist: persistence.New(newFakeChatStore())}
	srv := New(p, builder, nil, nil)
	return srv, builder, native
}

func bearerFor(t *testing.T, native *auth.NativeVerifier, email string) string {
	t.Helper()
	token, err := native.Sign("u1", email, "", time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestHandleCompletion_NonStreamingHappyPath(t *testing.T) {
	regs := plugins.NewRegistries()
	require.NoError(t, regs.PromptProcessors.Register("passthrough", passthroughProcessor{}))
	conn := &echoConnector{name: "openai", reply: "42 is the answer"}
	require.NoError(t, regs.Connectors.Register("openai", conn))

	assistants := fakeAssistantStore{rows: map[int64]*store.AssistantRow{
		7: assistantRow(t, 7, "alice@example.com", assistant.Metadata{Connector: "openai", PromptProcessor: "passthrough"}),
	}}
	srv, _, native := newTestServer(t, regs, assistants)

	body := `{"model":"lamb_assistant.7","messages":[{"role":"user","content":"what is it?"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	req.Header.Set("Authorization", bearerFor(t, native, "alice@example.com"))
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp completionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Choices, 1)
	require.Equal(t, "42 is the answer", resp.Choices[0].Message.Content)
	require.NotEmpty(t, resp.ChatID)
}

func TestHandleCompletion_MissingAuthIsUnauthenticated(t *testing.T) {
	regs := plugins.NewRegistries()
	srv, _, _ := newTestServer(t, regs, fakeAssistantStore{rows: map[int64]*store.AssistantRow{}})

	body := `{"model":"lamb_assistant.7","messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleCompletion_UnknownAssistantIsNotFound(t *testing.T) {
	regs := plugins.NewRegistries()
	srv, _, native := newTestServer(t, regs, fakeAssistantStore{rows: map[int64]*store.AssistantRow{}})

	body := `{"model":"lamb_assistant.7","messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	req.Header.Set("Authorization", bearerFor(t, native, "alice@example.com"))
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleCompletion_MalformedBodyIsBadRequest(t *testing.T) {
	regs := plugins.NewRegistries()
	srv, _, native := newTestServer(t, regs, fakeAssistantStore{rows: map[int64]*store.AssistantRow{}})

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader("{not json"))
	req.Header.Set("Authorization", bearerFor(t, native, "alice@example.com"))
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCompletion_StreamingEmitsSourcesThenChunksThenDone(t *testing.T) {
	regs := plugins.NewRegistries()
	orch := canResultOrchestrator{result: plugins.OrchestrationResult{
		Messages: []plugins.Message{{Role: "user", Content: "with context"}},
		Sources:  []plugins.Source{{Title: "doc-1"}},
	}}
	require.NoError(t, regs.Orchestrators.Register("parallel", orch))
	conn := &echoConnector{name: "openai", reply: "streamed answer"}
	require.NoError(t, regs.Connectors.Register("openai", conn))

	assistants := fakeAssistantStore{rows: map[int64]*store.AssistantRow{
		7: assistantRow(t, 7, "alice@example.com", assistant.Metadata{Connector: "openai", Orchestrator: "parallel"}),
	}}
	srv, _, native := newTestServer(t, regs, assistants)

	body := `{"model":"lamb_assistant.7","stream":true,"messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	req.Header.Set("Authorization", bearerFor(t, native, "alice@example.com"))
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	var frames []string
	scanner := bufio.NewScanner(bytes.NewReader(rec.Body.Bytes()))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") {
			frames = append(frames, strings.TrimPrefix(line, "data: "))
		}
	}
	require.GreaterOrEqual(t, len(frames), 3)
	require.Contains(t, frames[0], "doc-1")
	require.Equal(t, "[DONE]", frames[len(frames)-1])
}
