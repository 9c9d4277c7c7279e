package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/lamb-project/lamb-core/pkg/auth"
	lambcoreerrors "github.com/lamb-project/lamb-core/pkg/lambcore/errors"
	"github.com/lamb-project/lamb-core/pkg/plugins"
)

const maxRequestBodyBytes = 8 << 20 // 8MiB: generous for a chat turn plus history, bounded against abuse

// HandleCompletion serves POST /v1/chat/completions (spec §6.1): decode
// the request, run the pipeline, and render either a single JSON object
// or an SSE stream depending on the request's stream flag.
func (s *Server) HandleCompletion(w http.ResponseWriter, r *http.Request) {
	ac := auth.FromContext(r.Context())
	if ac == nil {
		writeError(w, lambcoreerrors.New(lambcoreerrors.Unauthenticated, "authentication required"))
		return
	}

	var req CompletionRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, lambcoreerrors.Wrap(lambcoreerrors.ValidationError, "malformed request body", err))
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, err)
		return
	}

	owHeaders := extractOpenWebUIHeaders(r.Header)

	if req.Stream {
		s.handleStreamingCompletion(w, r, ac, req, owHeaders)
		return
	}
	s.handleNonStreamingCompletion(w, r, ac, req, owHeaders)
}

func (s *Server) handleNonStreamingCompletion(w http.ResponseWriter, r *http.Request, ac *auth.AuthContext, req CompletionRequest, owHeaders map[string]string) {
	result, err := s.Pipeline.Dispatch(r.Context(), ac, req, owHeaders)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := completionResponse{
		ID:      "chatcmpl-" + uuid.NewString(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   result.Model,
		ChatID:  result.ChatID,
		Sources: result.Sources,
		Choices: []responseChoice{{
			Index:        0,
			Message:      responseMessage{Role: "assistant", Content: result.Content},
			FinishReason: "stop",
		}},
		Usage: usage{
			PromptTokens:     result.PromptTokens,
			CompletionTokens: result.CompletionTokens,
			TotalTokens:      result.PromptTokens + result.CompletionTokens,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleStreamingCompletion(w http.ResponseWriter, r *http.Request, ac *auth.AuthContext, req CompletionRequest, owHeaders map[string]string) {
	if _, ok := w.(http.Flusher); !ok {
		writeError(w, lambcoreerrors.New(lambcoreerrors.Internal, "streaming unsupported by this response writer"))
		return
	}

	resolved, err := s.Pipeline.ResolveStream(r.Context(), ac, req, owHeaders)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	sse := newSSEWriter(w, "chatcmpl-"+uuid.NewString(), req.Model, time.Now().Unix())
	if err := sse.writeSources(resolved.Sources()); err != nil {
		return
	}

	var accumulated []byte
	emit := func(chunk plugins.CompletionChunk) error {
		if chunk.Content != "" {
			accumulated = append(accumulated, chunk.Content...)
			return sse.writeChunk(chunk.Content, false)
		}
		if chunk.FinishedAt {
			return sse.writeChunk("", true)
		}
		return nil
	}

	if err := s.Pipeline.StreamConnector(r.Context(), resolved, emit); err != nil {
		// Headers are already committed (200 + event-stream), so a
		// mid-stream failure is reported as a terminal SSE frame rather
		// than a fresh status code — there is no other way to signal it
		// to an OpenAI-compatible client once the body has started.
		_ = sse.writeFrame(map[string]any{"error": map[string]any{
			"code":    string(lambcoreerrors.KindOf(err)),
			"message": safeMessage(err),
		}})
		_ = sse.writeDone()
		return
	}
	if err := sse.writeDone(); err != nil {
		return
	}

	if _, persistErr := s.Pipeline.PersistExchange(r.Context(), ac, req, resolved.AssistantID(), string(accumulated)); persistErr != nil {
		s.Log.Error("failed to persist streamed exchange", "error", persistErr, "assistant_id", resolved.AssistantID())
	}
}

// writeMethodNotAllowed is used by routes that only accept a single verb.
func writeMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, lambcoreerrors.New(lambcoreerrors.ValidationError, fmt.Sprintf("method %s not allowed", r.Method)))
}
