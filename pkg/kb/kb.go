// Package kb is the client for the KB server contract LAMB consumes
// (spec §6.2): a document-collection semantic search service queried by
// RAG tool plugins.
package kb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/lamb-project/lamb-core/pkg/httpclient"
)

// Client queries a single KB server instance (spec §6.2).
type Client struct {
	baseURL string
	token   string
	http    *httpclient.Client
}

// New builds a Client bound to a KB server base URL and bearer token.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpclient.New(httpclient.WithMaxRetries(0)),
	}
}

// QueryRequest is the body of a collection query (spec §6.2).
type QueryRequest struct {
	QueryText    string         `json:"query_text"`
	TopK         int            `json:"top_k"`
	Threshold    float64        `json:"threshold"`
	PluginParams map[string]any `json:"plugin_params"`
}

// Document is one retrieved chunk (spec §6.2 "documents[].data").
type Document struct {
	Data       string           `json:"data"`
	Metadata   DocumentMetadata `json:"metadata"`
	Similarity float64          `json:"similarity"`
}

// DocumentMetadata is the subset of KB-server-returned metadata LAMB
// interprets (spec §6.2 "metadata fields we interpret").
type DocumentMetadata struct {
	SourceURL        string `json:"source_url"`
	OriginalFileURL  string `json:"original_file_url"`
	MarkdownFileURL  string `json:"markdown_file_url"`
	ImagesFolderURL  string `json:"images_folder_url"`
	FileURL          string `json:"file_url"`
	Filename         string `json:"filename"`
	OriginalFilename string `json:"original_filename"`
	ChunkIndex       *int   `json:"chunk_index"`
	Page             *int   `json:"page"`
	ParentChunkID    string `json:"parent_chunk_id"`
	ParentText       string `json:"parent_text"`
}

// QueryResponse is the KB server's response to a collection query.
type QueryResponse struct {
	Documents []Document `json:"documents"`
}

// ParentChildQuery requests the alternative query plugin that returns
// parent chunks for semantically matched child chunks (spec §6.2
// "optional alternative query plugin").
const ParentChildQuery = "parent_child_query"

// Query runs a semantic search against one collection. pluginName may
// be empty (the default query plugin) or ParentChildQuery.
func (c *Client) Query(ctx context.Context, collectionID string, req QueryRequest, pluginName string) (QueryResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return QueryResponse{}, fmt.Errorf("encode kb query: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/query", c.baseURL, collectionID)
	if pluginName != "" {
		url += "?plugin_name=" + pluginName
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return QueryResponse{}, fmt.Errorf("build kb query request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return QueryResponse{}, fmt.Errorf("query kb collection %s: %w", collectionID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return QueryResponse{}, fmt.Errorf("kb collection %s returned status %d", collectionID, resp.StatusCode)
	}

	var out QueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return QueryResponse{}, fmt.Errorf("decode kb response for %s: %w", collectionID, err)
	}
	return out, nil
}

// ResolveSourceURL picks the best available citation URL for a document
// (spec §6.2 priority order: source_url > original_file_url > file_url),
// prefixing relative file URLs with the KB server's own base URL.
func (c *Client) ResolveSourceURL(meta DocumentMetadata) string {
	switch {
	case meta.SourceURL != "":
		return meta.SourceURL
	case meta.OriginalFileURL != "":
		return c.baseURL + meta.OriginalFileURL
	case meta.FileURL != "":
		return c.baseURL + meta.FileURL
	default:
		return ""
	}
}

// ResolveOriginalURL resolves the document's original (pre-conversion)
// file URL, if any.
func (c *Client) ResolveOriginalURL(meta DocumentMetadata) string {
	if meta.OriginalFileURL == "" {
		return ""
	}
	return c.baseURL + meta.OriginalFileURL
}

// MarkdownURL resolves the document's markdown rendering URL, if any.
func (c *Client) MarkdownURL(meta DocumentMetadata) string {
	if meta.MarkdownFileURL == "" {
		return ""
	}
	return c.baseURL + meta.MarkdownFileURL
}

// DisplayTitle picks a human-readable title for a citation.
func (meta DocumentMetadata) DisplayTitle() string {
	switch {
	case meta.Filename != "":
		return meta.Filename
	case meta.OriginalFilename != "":
		return meta.OriginalFilename
	default:
		return "Unknown"
	}
}
