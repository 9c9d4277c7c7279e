package kb

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQuery_SendsBearerAuthAndBody(t *testing.T) {
	var gotAuth string
	var gotBody QueryRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.Equal(t, "/collections/docs/query", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(QueryResponse{Documents: []Document{
			{Data: "chunk one", Metadata: DocumentMetadata{Filename: "a.pdf", FileURL: "/files/a.pdf"}, Similarity: 0.9},
		}})
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	resp, err := c.Query(context.Background(), "docs", QueryRequest{QueryText: "what is go?", TopK: 3}, "")
	require.NoError(t, err)
	require.Equal(t, "Bearer tok", gotAuth)
	require.Equal(t, "what is go?", gotBody.QueryText)
	require.Len(t, resp.Documents, 1)
	require.Equal(t, "chunk one", resp.Documents[0].Data)
}

func TestQuery_PluginNameAppendedAsQueryParam(t *testing.T) {
	var gotPlugin string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPlugin = r.URL.Query().Get("plugin_name")
		_ = json.NewEncoder(w).Encode(QueryResponse{})
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	_, err := c.Query(context.Background(), "docs", QueryRequest{}, ParentChildQuery)
	require.NoError(t, err)
	require.Equal(t, ParentChildQuery, gotPlugin)
}

func TestQuery_NonOKStatusReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	_, err := c.Query(context.Background(), "docs", QueryRequest{}, "")
	require.Error(t, err)
}

func TestResolveSourceURL_PriorityOrder(t *testing.T) {
	c := New("https://kb.example.com", "tok")

	require.Equal(t, "https://youtube.com/x", c.ResolveSourceURL(DocumentMetadata{
		SourceURL:       "https://youtube.com/x",
		OriginalFileURL: "/orig/a.pdf",
		FileURL:         "/files/a.pdf",
	}))

	require.Equal(t, "https://kb.example.com/orig/a.pdf", c.ResolveSourceURL(DocumentMetadata{
		OriginalFileURL: "/orig/a.pdf",
		FileURL:         "/files/a.pdf",
	}))

	require.Equal(t, "https://kb.example.com/files/a.pdf", c.ResolveSourceURL(DocumentMetadata{
		FileURL: "/files/a.pdf",
	}))

	require.Equal(t, "", c.ResolveSourceURL(DocumentMetadata{}))
}

func TestDisplayTitle_FallsBackToOriginalFilename(t *testing.T) {
	require.Equal(t, "a.pdf", DocumentMetadata{Filename: "a.pdf"}.DisplayTitle())
	require.Equal(t, "b.pdf", DocumentMetadata{OriginalFilename: "b.pdf"}.DisplayTitle())
	require.Equal(t, "Unknown", DocumentMetadata{}.DisplayTitle())
}
