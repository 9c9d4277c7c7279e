package promptprocessor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lamb-project/lamb-core/pkg/assistant"
	"github.com/lamb-project/lamb-core/pkg/plugins"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestMoodleAugment_ExtractUserID_PrefersResolvedEmail(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("wsfunction") {
		case "core_user_get_users_by_field":
			_ = json.NewEncoder(w).Encode([]map[string]any{{"id": 42}})
		}
	})

	m := NewMoodleAugment(srv.URL, "tok")
	req := plugins.OrchestrationRequest{OpenWebUIHeaders: map[string]string{"x-openwebui-user-email": "a@b.com"}}
	require.Equal(t, "42", m.extractUserID(context.Background(), req))
}

func TestMoodleAugment_ExtractUserID_FallsBackToEmailWhenUnresolved(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]any{})
	})

	m := NewMoodleAugment(srv.URL, "tok")
	req := plugins.OrchestrationRequest{OpenWebUIHeaders: map[string]string{"x-openwebui-user-email": "a@b.com"}}
	require.Equal(t, "a@b.com", m.extractUserID(context.Background(), req))
}

func TestMoodleAugment_ExtractUserID_FallsBackToOpenWebUIUserID(t *testing.T) {
	m := NewMoodleAugment("", "")
	req := plugins.OrchestrationRequest{OpenWebUIHeaders: map[string]string{"x-openwebui-user-id": "owui-7"}}
	require.Equal(t, "owui-7", m.extractUserID(context.Background(), req))
}

func TestMoodleAugment_ExtractUserID_FallsThroughMetadataChain(t *testing.T) {
	m := NewMoodleAugment("", "")
	req := plugins.OrchestrationRequest{Metadata: map[string]any{"lti_user_id": "lti-9"}}
	require.Equal(t, "lti-9", m.extractUserID(context.Background(), req))
}

func TestMoodleAugment_ExtractUserID_DefaultsWhenNothingPresent(t *testing.T) {
	m := NewMoodleAugment("", "")
	require.Equal(t, "default", m.extractUserID(context.Background(), plugins.OrchestrationRequest{}))
}

func TestMoodleAugment_Process_FillsMoodleInfoPlaceholder(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("wsfunction") {
		case "core_enrol_get_users_courses":
			_ = json.NewEncoder(w).Encode([]map[string]any{
				{"id": 1, "fullname": "Intro to Go", "shortname": "GO101", "categoryname": "CS"},
			})
		}
	})

	m := NewMoodleAugment(srv.URL, "tok")
	a := assistant.Assistant{
		PromptTemplate: "{moodle_info_for_user}\n{user_input}",
	}
	req := plugins.OrchestrationRequest{
		Messages: []plugins.Message{{Role: "user", Content: "hi"}},
		Metadata: map[string]any{"user_id": "7"},
	}

	out, err := m.Process(context.Background(), req, a, "")
	require.NoError(t, err)
	require.Contains(t, out[0].Content, "Intro to Go")
	require.Contains(t, out[0].Content, "GO101")
}

func TestMoodleAugment_Process_LMSFailureNeverErrorsRequest(t *testing.T) {
	m := NewMoodleAugment("http://127.0.0.1:0", "tok")
	a := assistant.Assistant{PromptTemplate: "{moodle_info_for_user}\n{user_input}"}
	req := plugins.OrchestrationRequest{
		Messages: []plugins.Message{{Role: "user", Content: "hi"}},
	}

	out, err := m.Process(context.Background(), req, a, "")
	require.NoError(t, err)
	require.Contains(t, out[0].Content, "Unable to retrieve course information")
}

func TestMoodleAugment_Process_WithoutMoodlePlaceholdersSkipsLookup(t *testing.T) {
	m := NewMoodleAugment("", "")
	a := assistant.Assistant{PromptTemplate: "{user_input}"}
	req := plugins.OrchestrationRequest{
		Messages: []plugins.Message{{Role: "user", Content: "hello"}},
	}

	out, err := m.Process(context.Background(), req, a, "")
	require.NoError(t, err)
	require.Equal(t, "\n\nhello\n\n", out[0].Content)
}
